// Package storage implements the filesystem-backed object store: buckets,
// objects, and multipart uploads laid out directly under a single root
// directory, with no content-addressable indirection. The file at
// <root>/<bucket>/<key> is the object; there is no separate manifest.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/prn-tf/s3gate/internal/domain"
)

// ErrNotFound-style sentinels are reused from the domain package
// (domain.ErrBucketNotFound, domain.ErrObjectNotFound, etc.) so the
// dispatcher can map storage failures to S3 error codes without a second
// error vocabulary.

// PutObjectResult carries back what the caller needs to build a PutObject
// response: the computed ETag and the final size written.
type PutObjectResult struct {
	ETag string
	Size int64
}

// GetObjectResult wraps a streamed object body together with the metadata
// needed to populate response headers. Body must be closed by the caller.
type GetObjectResult struct {
	Body         io.ReadCloser
	Size         int64
	ETag         string
	LastModified time.Time
	ContentRange string // set only for a 206 partial response
}

// ByteRange is an inclusive byte range requested via the Range header.
// Start == -1 marks an open-ended "last N bytes" (suffix) range.
type ByteRange struct {
	Start int64
	End   int64
}

// ListOptions configures a bucket listing (ListObjectsV1/V2).
type ListOptions struct {
	Prefix     string
	Delimiter  string
	MaxKeys    int
	StartAfter string // V2 start-after, or V1 marker
}

// ListResult is the outcome of a prefix/delimiter listing page.
type ListResult struct {
	Objects        []domain.ObjectInfo
	CommonPrefixes []string
	IsTruncated    bool
	NextToken      string // the last emitted key, opaque to the caller
}

// Backend is the storage layer's public surface: bucket, object, and
// multipart-upload lifecycle operations over the local filesystem.
type Backend interface {
	// Buckets

	CreateBucket(ctx context.Context, bucket *domain.Bucket) error
	DeleteBucket(ctx context.Context, name string) error
	GetBucket(ctx context.Context, name string) (*domain.Bucket, error)
	ListBuckets(ctx context.Context) ([]*domain.Bucket, error)
	BucketExists(ctx context.Context, name string) (bool, error)

	// Objects

	PutObject(ctx context.Context, bucket, key string, r io.Reader, contentType string) (*PutObjectResult, error)
	GetObject(ctx context.Context, bucket, key string, rng *ByteRange) (*GetObjectResult, error)
	HeadObject(ctx context.Context, bucket, key string) (*domain.Object, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket string, opts ListOptions) (*ListResult, error)

	// Multipart uploads

	InitiateMultipartUpload(ctx context.Context, bucket, key, initiator, contentType string, metadata map[string]string) (*domain.MultipartUpload, error)
	UploadPart(ctx context.Context, bucket, uploadID string, partNumber int, r io.Reader) (*domain.UploadPart, error)
	CompleteMultipartUpload(ctx context.Context, bucket, uploadID string, parts []domain.CompletedPart) (*PutObjectResult, error)
	AbortMultipartUpload(ctx context.Context, bucket, uploadID string) error
	GetMultipartUpload(ctx context.Context, bucket, uploadID string) (*domain.MultipartUpload, error)
	ListParts(ctx context.Context, bucket, uploadID string) ([]domain.UploadPart, error)
	ListMultipartUploads(ctx context.Context, bucket string) ([]*domain.MultipartUpload, error)

	// SweepExpiredUploads aborts every multipart upload in bucket whose
	// initiation time is older than expiry. Returns the number swept.
	SweepExpiredUploads(ctx context.Context, bucket string, expiry time.Duration) (int, error)
}
