package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/prn-tf/s3gate/internal/domain"
	"github.com/prn-tf/s3gate/internal/lock"
	"github.com/prn-tf/s3gate/internal/pkg/crypto"
)

func (fs *FSBackend) InitiateMultipartUpload(ctx context.Context, bucket, key, initiator, contentType string, metadata map[string]string) (*domain.MultipartUpload, error) {
	if err := domain.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	if ok, err := fs.BucketExists(ctx, bucket); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrBucketNotFound
	}

	uploadID, err := crypto.GenerateUploadID()
	if err != nil {
		return nil, fmt.Errorf("generate upload id: %w", err)
	}
	upload := &domain.MultipartUpload{
		UploadID:    uploadID,
		Bucket:      bucket,
		Key:         key,
		Initiator:   initiator,
		ContentType: contentType,
		Metadata:    metadata,
		InitiatedAt: time.Now().UTC(),
		Parts:       map[int]domain.UploadPart{},
	}

	if err := os.MkdirAll(fs.multipartDir(bucket, uploadID), 0o755); err != nil {
		return nil, fmt.Errorf("create multipart staging dir: %w", err)
	}
	if err := fs.writeMultipartMeta(upload); err != nil {
		os.RemoveAll(fs.multipartDir(bucket, uploadID))
		return nil, err
	}
	return upload, nil
}

func (fs *FSBackend) UploadPart(ctx context.Context, bucket, uploadID string, partNumber int, r io.Reader) (*domain.UploadPart, error) {
	if err := domain.ValidatePartNumber(partNumber); err != nil {
		return nil, err
	}

	lk := lock.NewLock(fs.locker, lock.Keys.MultipartUpload(uploadID))
	acquired, err := lk.Acquire(ctx, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("acquire upload lock: %w", err)
	}
	if !acquired {
		return nil, domain.NewDomainError(domain.ErrInternalError, "multipart upload lock contended", uploadID)
	}
	defer lk.Release(ctx)

	upload, err := fs.readMultipartMeta(bucket, uploadID)
	if err != nil {
		return nil, err
	}

	target := fs.partPath(bucket, uploadID, partNumber)
	hr := crypto.NewHashReader(r)
	tmp, err := os.CreateTemp(fs.multipartDir(bucket, uploadID), "part.*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create part temp file: %w", err)
	}
	tmpPath := tmp.Name()
	size, copyErr := io.Copy(tmp, hr)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write part body: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close part temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rename part into place: %w", err)
	}

	part := domain.UploadPart{
		PartNumber:   partNumber,
		Size:         size,
		ETag:         hr.ETag(),
		LastModified: time.Now().UTC(),
	}
	upload.Parts[partNumber] = part
	if err := fs.writeMultipartMeta(upload); err != nil {
		return nil, err
	}
	return &part, nil
}

// CompleteMultipartUpload validates the client's part list against the
// recorded sidecar state, concatenates the staged parts in order into the
// final object, and removes the staging directory.
func (fs *FSBackend) CompleteMultipartUpload(ctx context.Context, bucket, uploadID string, parts []domain.CompletedPart) (*PutObjectResult, error) {
	lk := lock.NewLock(fs.locker, lock.Keys.MultipartUpload(uploadID))
	acquired, err := lk.Acquire(ctx, 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("acquire upload lock: %w", err)
	}
	if !acquired {
		return nil, domain.NewDomainError(domain.ErrInternalError, "multipart upload lock contended", uploadID)
	}
	defer lk.Release(ctx)

	upload, err := fs.readMultipartMeta(bucket, uploadID)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, domain.ErrNoPartsProvided
	}

	lastNumber := -1
	partMD5s := make([][]byte, 0, len(parts))
	for i, cp := range parts {
		if cp.PartNumber <= lastNumber {
			return nil, domain.ErrInvalidPartOrder
		}
		lastNumber = cp.PartNumber

		recorded, ok := upload.Parts[cp.PartNumber]
		if !ok {
			return nil, domain.ErrPartNotFound
		}
		if recorded.ETag != cp.ETag {
			return nil, domain.ErrPartETagMismatch
		}
		if i < len(parts)-1 && recorded.Size < domain.MinPartSize {
			return nil, domain.ErrPartTooSmall
		}
		md5Bytes, err := partMD5Bytes(recorded.ETag)
		if err != nil {
			return nil, domain.NewDomainError(domain.ErrInternalError, "corrupt part etag", uploadID)
		}
		partMD5s = append(partMD5s, md5Bytes)
	}

	target, err := fs.objectPath(bucket, upload.Key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create object parent dirs: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "complete.*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create assembly temp file: %w", err)
	}
	tmpPath := tmp.Name()
	var totalSize int64
	for _, cp := range parts {
		partFile, err := os.Open(fs.partPath(bucket, uploadID, cp.PartNumber))
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return nil, fmt.Errorf("open staged part: %w", err)
		}
		n, err := io.Copy(tmp, partFile)
		partFile.Close()
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return nil, fmt.Errorf("assemble part: %w", err)
		}
		totalSize += n
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close assembly temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rename assembled object into place: %w", err)
	}

	if err := os.RemoveAll(fs.multipartDir(bucket, uploadID)); err != nil {
		fs.logger.Warn().Err(err).Str("upload_id", uploadID).Msg("failed to remove multipart staging dir after completion")
	}

	return &PutObjectResult{
		ETag: crypto.ComputeMultipartETag(partMD5s),
		Size: totalSize,
	}, nil
}

func (fs *FSBackend) AbortMultipartUpload(ctx context.Context, bucket, uploadID string) error {
	lk := lock.NewLock(fs.locker, lock.Keys.MultipartUpload(uploadID))
	acquired, err := lk.Acquire(ctx, 30*time.Second)
	if err != nil {
		return fmt.Errorf("acquire upload lock: %w", err)
	}
	if !acquired {
		return domain.NewDomainError(domain.ErrInternalError, "multipart upload lock contended", uploadID)
	}
	defer lk.Release(ctx)

	if _, err := fs.readMultipartMeta(bucket, uploadID); err != nil {
		return err
	}
	if err := os.RemoveAll(fs.multipartDir(bucket, uploadID)); err != nil {
		return fmt.Errorf("remove multipart staging dir: %w", err)
	}
	return nil
}

func (fs *FSBackend) GetMultipartUpload(ctx context.Context, bucket, uploadID string) (*domain.MultipartUpload, error) {
	return fs.readMultipartMeta(bucket, uploadID)
}

func (fs *FSBackend) ListParts(ctx context.Context, bucket, uploadID string) ([]domain.UploadPart, error) {
	upload, err := fs.readMultipartMeta(bucket, uploadID)
	if err != nil {
		return nil, err
	}
	parts := make([]domain.UploadPart, 0, len(upload.Parts))
	for _, p := range upload.Parts {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts, nil
}

func (fs *FSBackend) ListMultipartUploads(ctx context.Context, bucket string) ([]*domain.MultipartUpload, error) {
	entries, err := os.ReadDir(fs.multipartRootDir(bucket))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read multipart root: %w", err)
	}
	uploads := make([]*domain.MultipartUpload, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		u, err := fs.readMultipartMeta(bucket, e.Name())
		if err != nil {
			if errors.Is(err, domain.ErrMultipartUploadNotFound) {
				continue
			}
			return nil, err
		}
		uploads = append(uploads, u)
	}
	sort.Slice(uploads, func(i, j int) bool { return uploads[i].Key < uploads[j].Key })
	return uploads, nil
}

// SweepExpiredUploads aborts every multipart upload in bucket whose
// initiation time is older than expiry, under the bucket's advisory lock
// so it never races a concurrent CreateBucket/DeleteBucket.
func (fs *FSBackend) SweepExpiredUploads(ctx context.Context, bucket string, expiry time.Duration) (int, error) {
	uploads, err := fs.ListMultipartUploads(ctx, bucket)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, u := range uploads {
		if !u.IsExpired(expiry) {
			continue
		}
		if err := fs.AbortMultipartUpload(ctx, bucket, u.UploadID); err != nil {
			fs.logger.Warn().Err(err).Str("bucket", bucket).Str("upload_id", u.UploadID).Msg("failed to sweep expired multipart upload")
			continue
		}
		swept++
	}
	return swept, nil
}

func (fs *FSBackend) readMultipartMeta(bucket, uploadID string) (*domain.MultipartUpload, error) {
	data, err := os.ReadFile(fs.multipartMetaPath(bucket, uploadID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrMultipartUploadNotFound
		}
		return nil, fmt.Errorf("read multipart metadata: %w", err)
	}
	var u domain.MultipartUpload
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, domain.NewDomainError(domain.ErrInternalError, "corrupt multipart metadata", uploadID)
	}
	if u.Parts == nil {
		u.Parts = map[int]domain.UploadPart{}
	}
	return &u, nil
}

func (fs *FSBackend) writeMultipartMeta(upload *domain.MultipartUpload) error {
	data, err := yaml.Marshal(upload)
	if err != nil {
		return fmt.Errorf("marshal multipart metadata: %w", err)
	}
	return writeFileAtomic(fs.multipartMetaPath(upload.Bucket, upload.UploadID), data, 0o644)
}

// partMD5Bytes extracts the raw MD5 bytes from a quoted hex ETag, for
// feeding into the multipart composite-ETag formula.
func partMD5Bytes(etag string) ([]byte, error) {
	hexPart := trimQuotes(etag)
	return hexDecode(hexPart)
}
