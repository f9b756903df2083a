package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/s3gate/internal/audit"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	rec, err := New(context.Background(), DefaultConfig(path), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })
	return rec
}

func TestRecorder_RecordAndRecent(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()

	entries := []audit.Entry{
		{Timestamp: time.Now(), AccessKeyID: "AKID", Operation: "CreateBucket", Bucket: "b1", ResultCode: 200},
		{Timestamp: time.Now(), AccessKeyID: "AKID", Operation: "PutObject", Bucket: "b1", Key: "k1", ResultCode: 200, Bytes: 1024},
		{Timestamp: time.Now(), AccessKeyID: "AKID", Operation: "DeleteObject", Bucket: "b1", Key: "k1", ResultCode: 204},
	}
	for _, e := range entries {
		require.NoError(t, rec.Record(ctx, e))
	}

	recent, err := rec.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Recent returns most-recent-first.
	require.Equal(t, "DeleteObject", recent[0].Operation)
	require.Equal(t, "PutObject", recent[1].Operation)
	require.Equal(t, "CreateBucket", recent[2].Operation)
	require.Equal(t, int64(1024), recent[1].Bytes)
}

func TestRecorder_RecentRespectsLimit(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, rec.Record(ctx, audit.Entry{Timestamp: time.Now(), Operation: "PutObject", Bucket: "b1"}))
	}

	recent, err := rec.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}

func TestRecorder_Health(t *testing.T) {
	rec := newTestRecorder(t)
	require.NoError(t, rec.Health(context.Background()))
}

func TestRecorder_HealthAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	rec, err := New(context.Background(), DefaultConfig(path), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, rec.Close())
	require.Error(t, rec.Health(context.Background()))
}
