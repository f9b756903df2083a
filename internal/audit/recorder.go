// Package audit records an append-only trail of completed mutating
// operations, per SPEC_FULL §3. It is purely observational: nothing in
// the core read/write path consults it to decide a request's outcome.
package audit

import (
	"context"
	"time"
)

// Entry is one audit record, written after a mutating operation
// completes (successfully or not).
type Entry struct {
	Timestamp   time.Time
	AccessKeyID string
	Operation   string
	Bucket      string
	Key         string
	ResultCode  int
	Bytes       int64
}

// Recorder persists audit entries. Implementations must not block the
// request path on slow storage for longer than necessary; callers are
// expected to record asynchronously where that matters.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Health(ctx context.Context) error
	Close() error
}

// NoopRecorder discards every entry. Used when the audit backend is
// disabled in configuration.
type NoopRecorder struct{}

func (NoopRecorder) Record(ctx context.Context, e Entry) error { return nil }
func (NoopRecorder) Health(ctx context.Context) error          { return nil }
func (NoopRecorder) Close() error                              { return nil }

var _ Recorder = NoopRecorder{}
