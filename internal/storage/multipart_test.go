package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/prn-tf/s3gate/internal/domain"
)

func TestMultipartUploadLifecycle(t *testing.T) {
	fs := newTestBackend(t)
	ctx := context.Background()
	if err := fs.CreateBucket(ctx, domain.NewBucket("b", "AKIATEST", domain.ACL{}, nil)); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}

	upload, err := fs.InitiateMultipartUpload(ctx, "b", "big-file", "AKIATEST", "application/octet-stream", nil)
	if err != nil {
		t.Fatalf("InitiateMultipartUpload: %v", err)
	}
	if upload.UploadID == "" {
		t.Fatal("expected non-empty upload ID")
	}

	part1Data := strings.Repeat("a", domain.MinPartSize)
	part1, err := fs.UploadPart(ctx, "b", upload.UploadID, 1, strings.NewReader(part1Data))
	if err != nil {
		t.Fatalf("UploadPart 1: %v", err)
	}
	part2, err := fs.UploadPart(ctx, "b", upload.UploadID, 2, strings.NewReader("tail"))
	if err != nil {
		t.Fatalf("UploadPart 2: %v", err)
	}

	parts, err := fs.ListParts(ctx, "b", upload.UploadID)
	if err != nil {
		t.Fatalf("ListParts: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}

	result, err := fs.CompleteMultipartUpload(ctx, "b", upload.UploadID, []domain.CompletedPart{
		{PartNumber: 1, ETag: part1.ETag},
		{PartNumber: 2, ETag: part2.ETag},
	})
	if err != nil {
		t.Fatalf("CompleteMultipartUpload: %v", err)
	}
	if result.Size != int64(len(part1Data)+len("tail")) {
		t.Errorf("expected size %d, got %d", len(part1Data)+len("tail"), result.Size)
	}
	if !strings.HasSuffix(result.ETag, "-2\"") {
		t.Errorf("expected composite ETag ending in -2, got %s", result.ETag)
	}

	if _, err := fs.GetMultipartUpload(ctx, "b", upload.UploadID); err != domain.ErrMultipartUploadNotFound {
		t.Errorf("expected upload to be gone after completion, got %v", err)
	}

	got, err := fs.GetObject(ctx, "b", "big-file", nil)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	got.Body.Close()
	if got.Size != result.Size {
		t.Errorf("expected assembled object size %d, got %d", result.Size, got.Size)
	}
}

func TestCompleteMultipartUploadRejectsSmallNonFinalPart(t *testing.T) {
	fs := newTestBackend(t)
	ctx := context.Background()
	if err := fs.CreateBucket(ctx, domain.NewBucket("b", "AKIATEST", domain.ACL{}, nil)); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	upload, err := fs.InitiateMultipartUpload(ctx, "b", "key", "AKIATEST", "", nil)
	if err != nil {
		t.Fatalf("InitiateMultipartUpload: %v", err)
	}

	part1, err := fs.UploadPart(ctx, "b", upload.UploadID, 1, strings.NewReader("too small"))
	if err != nil {
		t.Fatalf("UploadPart 1: %v", err)
	}
	part2, err := fs.UploadPart(ctx, "b", upload.UploadID, 2, strings.NewReader("tail"))
	if err != nil {
		t.Fatalf("UploadPart 2: %v", err)
	}

	_, err = fs.CompleteMultipartUpload(ctx, "b", upload.UploadID, []domain.CompletedPart{
		{PartNumber: 1, ETag: part1.ETag},
		{PartNumber: 2, ETag: part2.ETag},
	})
	if err != domain.ErrPartTooSmall {
		t.Fatalf("expected ErrPartTooSmall, got %v", err)
	}
}

func TestAbortMultipartUpload(t *testing.T) {
	fs := newTestBackend(t)
	ctx := context.Background()
	if err := fs.CreateBucket(ctx, domain.NewBucket("b", "AKIATEST", domain.ACL{}, nil)); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	upload, err := fs.InitiateMultipartUpload(ctx, "b", "key", "AKIATEST", "", nil)
	if err != nil {
		t.Fatalf("InitiateMultipartUpload: %v", err)
	}
	if err := fs.AbortMultipartUpload(ctx, "b", upload.UploadID); err != nil {
		t.Fatalf("AbortMultipartUpload: %v", err)
	}
	if _, err := fs.GetMultipartUpload(ctx, "b", upload.UploadID); err != domain.ErrMultipartUploadNotFound {
		t.Errorf("expected ErrMultipartUploadNotFound, got %v", err)
	}
}

func TestSweepExpiredUploads(t *testing.T) {
	fs := newTestBackend(t)
	ctx := context.Background()
	if err := fs.CreateBucket(ctx, domain.NewBucket("b", "AKIATEST", domain.ACL{}, nil)); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	upload, err := fs.InitiateMultipartUpload(ctx, "b", "key", "AKIATEST", "", nil)
	if err != nil {
		t.Fatalf("InitiateMultipartUpload: %v", err)
	}

	// A zero expiry means every upload, however recent, counts as expired.
	swept, err := fs.SweepExpiredUploads(ctx, "b", 0)
	if err != nil {
		t.Fatalf("SweepExpiredUploads: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 upload swept, got %d", swept)
	}
	if _, err := fs.GetMultipartUpload(ctx, "b", upload.UploadID); err != domain.ErrMultipartUploadNotFound {
		t.Errorf("expected upload removed after sweep, got %v", err)
	}
}
