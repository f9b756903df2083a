// Package domain contains the core business entities for s3gate.
package domain

import "time"

// MinPartSize is the minimum size (bytes) for any part except the last one.
const MinPartSize = 5 * 1024 * 1024

// MaxPartSize is the maximum size (bytes) of a single part.
const MaxPartSize = 5 * 1024 * 1024 * 1024

// MaxPartNumber is the largest permitted part number.
const MaxPartNumber = 10000

// MultipartUpload is a staged, in-progress object. On disk it is the
// directory <root>/<bucket>/_metadata/multipart/<upload-id>/ holding one
// file per part plus a meta.yaml sidecar carrying this struct.
type MultipartUpload struct {
	UploadID    string            `yaml:"upload_id"`
	Bucket      string            `yaml:"bucket"`
	Key         string            `yaml:"key"`
	Initiator   string            `yaml:"initiator"`
	ContentType string            `yaml:"content_type,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
	InitiatedAt time.Time         `yaml:"initiated_at"`

	// Parts is keyed by part number; the storage layer reconciles this
	// against the actual per-part files on disk rather than trusting it
	// blindly, since the sidecar and the staged files must agree.
	Parts map[int]UploadPart `yaml:"parts"`
}

// UploadPart is one uploaded segment of a multipart upload.
type UploadPart struct {
	PartNumber   int       `yaml:"part_number"`
	Size         int64     `yaml:"size"`
	ETag         string    `yaml:"etag"`
	LastModified time.Time `yaml:"last_modified"`
}

// CompletedPart identifies a part the client claims to have uploaded, as
// supplied in a CompleteMultipartUpload request body.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// IsExpired reports whether the upload was initiated more than expiry ago.
func (m *MultipartUpload) IsExpired(expiry time.Duration) bool {
	return time.Now().UTC().After(m.InitiatedAt.Add(expiry))
}

// ValidatePartNumber checks that a part number is within the legal S3 range.
func ValidatePartNumber(partNumber int) error {
	if partNumber < 1 || partNumber > MaxPartNumber {
		return ErrInvalidPartNumber
	}
	return nil
}
