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

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/prn-tf/s3gate/internal/domain"
	"github.com/prn-tf/s3gate/internal/lock"
	"github.com/prn-tf/s3gate/internal/pkg/crypto"
)

// FSBackend is the single-node filesystem implementation of Backend.
// Every bucket is a directory under root; every object is a plain file at
// <root>/<bucket>/<key>; every in-progress multipart upload is a directory
// under <root>/<bucket>/_metadata/multipart/<upload-id>/.
type FSBackend struct {
	root   string
	locker lock.Locker
	logger zerolog.Logger
}

// Config holds the knobs the core storage layer consumes (SPEC_FULL §6,
// "Config interface (consumed)"). Everything else is ambient server
// configuration layered around this.
type Config struct {
	Root string
}

// NewFSBackend creates a filesystem-backed Backend rooted at cfg.Root.
// The root directory is created if it doesn't already exist.
func NewFSBackend(cfg Config, locker lock.Locker, logger zerolog.Logger) (*FSBackend, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FSBackend{
		root:   cfg.Root,
		locker: locker,
		logger: logger.With().Str("component", "storage").Logger(),
	}, nil
}

// =============================================================================
// Buckets
// =============================================================================

func (fs *FSBackend) CreateBucket(ctx context.Context, bucket *domain.Bucket) error {
	lk := lock.NewLock(fs.locker, lock.Keys.Bucket(bucket.Name))
	acquired, err := lk.Acquire(ctx, 10*time.Second)
	if err != nil {
		return fmt.Errorf("acquire bucket lock: %w", err)
	}
	if !acquired {
		return domain.NewDomainError(domain.ErrInternalError, "bucket lock contended", bucket.Name)
	}
	defer lk.Release(ctx)

	dir := fs.bucketDir(bucket.Name)
	if _, err := os.Stat(dir); err == nil {
		return domain.ErrBucketAlreadyExists
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat bucket dir: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(dir, metadataDirName), 0o755); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}
	// Metadata is written last so a bucket directory without a readable
	// sidecar is never mistaken for an existing bucket (domain invariant).
	if err := fs.writeBucketMeta(bucket); err != nil {
		os.RemoveAll(dir)
		return err
	}
	return nil
}

func (fs *FSBackend) DeleteBucket(ctx context.Context, name string) error {
	lk := lock.NewLock(fs.locker, lock.Keys.Bucket(name))
	acquired, err := lk.Acquire(ctx, 10*time.Second)
	if err != nil {
		return fmt.Errorf("acquire bucket lock: %w", err)
	}
	if !acquired {
		return domain.NewDomainError(domain.ErrInternalError, "bucket lock contended", name)
	}
	defer lk.Release(ctx)

	dir := fs.bucketDir(name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrBucketNotFound
		}
		return fmt.Errorf("read bucket dir: %w", err)
	}
	for _, e := range entries {
		if e.Name() != metadataDirName {
			return domain.ErrBucketNotEmpty
		}
	}
	if err := os.RemoveAll(filepath.Join(dir, metadataDirName)); err != nil {
		return fmt.Errorf("remove bucket metadata: %w", err)
	}
	if err := os.Remove(dir); err != nil {
		return fmt.Errorf("remove bucket dir: %w", err)
	}
	return nil
}

func (fs *FSBackend) GetBucket(ctx context.Context, name string) (*domain.Bucket, error) {
	return fs.readBucketMeta(name)
}

func (fs *FSBackend) BucketExists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(fs.bucketMetaPath(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (fs *FSBackend) ListBuckets(ctx context.Context) ([]*domain.Bucket, error) {
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage root: %w", err)
	}
	buckets := make([]*domain.Bucket, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := fs.readBucketMeta(e.Name())
		if err != nil {
			if errors.Is(err, domain.ErrBucketNotFound) {
				continue
			}
			return nil, err
		}
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name < buckets[j].Name })
	return buckets, nil
}

func (fs *FSBackend) readBucketMeta(name string) (*domain.Bucket, error) {
	data, err := os.ReadFile(fs.bucketMetaPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrBucketNotFound
		}
		return nil, fmt.Errorf("read bucket metadata: %w", err)
	}
	var b domain.Bucket
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, domain.NewDomainError(domain.ErrInternalError, "corrupt bucket metadata", name)
	}
	return &b, nil
}

func (fs *FSBackend) writeBucketMeta(bucket *domain.Bucket) error {
	data, err := yaml.Marshal(bucket)
	if err != nil {
		return fmt.Errorf("marshal bucket metadata: %w", err)
	}
	path := fs.bucketMetaPath(bucket.Name)
	return writeFileAtomic(path, data, 0o644)
}

// =============================================================================
// Objects
// =============================================================================

func (fs *FSBackend) PutObject(ctx context.Context, bucket, key string, r io.Reader, contentType string) (*PutObjectResult, error) {
	if err := domain.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	if ok, err := fs.BucketExists(ctx, bucket); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrBucketNotFound
	}

	target, err := fs.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create object parent dirs: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	hr := crypto.NewHashReader(r)
	size, copyErr := io.Copy(tmp, hr)
	closeErr := tmp.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("write object body: %w", copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return nil, fmt.Errorf("rename temp file into place: %w", err)
	}
	tmpPath = ""

	return &PutObjectResult{ETag: hr.ETag(), Size: size}, nil
}

func (fs *FSBackend) GetObject(ctx context.Context, bucket, key string, rng *ByteRange) (*GetObjectResult, error) {
	if err := domain.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	path, err := fs.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat object: %w", err)
	}
	etag, err := fileETag(path)
	if err != nil {
		f.Close()
		return nil, err
	}

	result := &GetObjectResult{
		Body:         f,
		Size:         info.Size(),
		ETag:         etag,
		LastModified: info.ModTime().UTC(),
	}

	if rng == nil {
		return result, nil
	}

	start, end, err := resolveRange(*rng, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek object: %w", err)
	}
	result.Body = &limitedReadCloser{r: io.LimitReader(f, end-start+1), c: f}
	result.Size = end - start + 1
	result.ContentRange = fmt.Sprintf("bytes %d-%d/%d", start, end, info.Size())
	return result, nil
}

// resolveRange interprets Range against the object's total size:
// suffix ranges (Start == -1) mean "the last End bytes"; open ranges
// (End == -1) mean "from Start to the end of the object".
func resolveRange(rng ByteRange, total int64) (start, end int64, err error) {
	switch {
	case rng.Start == -1:
		start = total - rng.End
		if start < 0 {
			start = 0
		}
		end = total - 1
	case rng.End == -1:
		start = rng.Start
		end = total - 1
	default:
		start = rng.Start
		end = rng.End
	}
	if start < 0 || start > end || start >= total {
		return 0, 0, domain.ErrInvalidRange
	}
	if end >= total {
		end = total - 1
	}
	return start, end, nil
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error                { return l.c.Close() }

func (fs *FSBackend) HeadObject(ctx context.Context, bucket, key string) (*domain.Object, error) {
	if err := domain.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	path, err := fs.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	etag, err := fileETag(path)
	if err != nil {
		return nil, err
	}
	return &domain.Object{
		Key:          key,
		Size:         info.Size(),
		ETag:         etag,
		LastModified: info.ModTime().UTC(),
	}, nil
}

// DeleteObject unlinks the object file. A missing object is not an error:
// S3 DELETE is idempotent.
func (fs *FSBackend) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := domain.ValidateObjectKey(key); err != nil {
		return err
	}
	path, err := fs.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	fs.pruneEmptyParents(bucket, filepath.Dir(path))
	return nil
}

// pruneEmptyParents best-effort removes now-empty directories between an
// object's parent and the bucket root, stopping at the first non-empty one.
func (fs *FSBackend) pruneEmptyParents(bucket, dir string) {
	root := fs.bucketDir(bucket)
	for dir != root && len(dir) > len(root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// fileETag computes the quoted MD5 ETag of a file's current contents.
func fileETag(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for etag: %w", err)
	}
	defer f.Close()
	hr := crypto.NewHashReader(f)
	if _, err := io.Copy(io.Discard, hr); err != nil {
		return "", fmt.Errorf("hash object: %w", err)
	}
	return hr.ETag(), nil
}

// writeFileAtomic writes data to a temp file in the same directory as path
// and renames it into place, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}

var _ Backend = (*FSBackend)(nil)
