package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/s3gate/internal/audit"
)

// These tests require a reachable Postgres instance, named by
// S3GATE_TEST_POSTGRES_DSN, since pgxpool has no embedded/in-process mode
// the way modernc.org/sqlite does. They are skipped otherwise, matching
// the pattern tests/integration/ uses for environment-dependent setup.
func testDSN(t *testing.T) string {
	dsn := os.Getenv("S3GATE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("S3GATE_TEST_POSTGRES_DSN not set, skipping postgres audit backend test")
	}
	return dsn
}

func TestRecorder_RecordAndHealth(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	rec, err := New(ctx, Config{DSN: dsn}, zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, rec.Health(ctx))
	require.NoError(t, rec.Record(ctx, audit.Entry{
		Timestamp:   time.Now(),
		AccessKeyID: "AKID",
		Operation:   "CreateBucket",
		Bucket:      "b1",
		ResultCode:  200,
	}))
}
