package storage

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prn-tf/s3gate/internal/domain"
)

const defaultMaxKeys = 1000

// ListObjects performs a depth-first walk of the bucket, filtered by
// prefix, grouping into CommonPrefixes when a delimiter is given. The
// _metadata directory is never visited.
func (fs *FSBackend) ListObjects(ctx context.Context, bucket string, opts ListOptions) (*ListResult, error) {
	if ok, err := fs.BucketExists(ctx, bucket); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrBucketNotFound
	}

	maxKeys := opts.MaxKeys
	if maxKeys <= 0 || maxKeys > defaultMaxKeys {
		maxKeys = defaultMaxKeys
	}

	root := fs.bucketDir(bucket)
	var keys []string
	walkErr := filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == metadataDirName || strings.HasPrefix(rel, metadataDirName+"/") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		keys = append(keys, rel)
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, os.ErrNotExist) {
			return &ListResult{}, nil
		}
		return nil, fmt.Errorf("walk bucket tree: %w", walkErr)
	}
	sort.Strings(keys)

	result := &ListResult{}
	seenPrefixes := map[string]bool{}
	count := 0
	lastEmitted := ""

	for _, key := range keys {
		if !strings.HasPrefix(key, opts.Prefix) {
			continue
		}
		// StartAfter/continuation-token is a lexicographic cursor, not an
		// exact key to match: the token handed back for a truncated page
		// can itself be a synthetic CommonPrefix (e.g. "dir999/") that no
		// real key is ever byte-equal to, so equality would wedge the scan
		// at "not started" for the rest of the bucket.
		if key <= opts.StartAfter {
			continue
		}

		remainder := key[len(opts.Prefix):]
		if opts.Delimiter != "" {
			if idx := strings.Index(remainder, opts.Delimiter); idx >= 0 {
				commonPrefix := opts.Prefix + remainder[:idx+len(opts.Delimiter)]
				if seenPrefixes[commonPrefix] {
					continue
				}
				if count >= maxKeys {
					result.IsTruncated = true
					result.NextToken = lastEmitted
					return result, nil
				}
				seenPrefixes[commonPrefix] = true
				result.CommonPrefixes = append(result.CommonPrefixes, commonPrefix)
				lastEmitted = commonPrefix
				count++
				continue
			}
		}

		if count >= maxKeys {
			result.IsTruncated = true
			result.NextToken = lastEmitted
			return result, nil
		}

		info, err := fs.HeadObject(ctx, bucket, key)
		if err != nil {
			if errors.Is(err, domain.ErrObjectNotFound) {
				continue
			}
			return nil, err
		}
		result.Objects = append(result.Objects, domain.ObjectInfo{
			Key:          info.Key,
			Size:         info.Size,
			ETag:         info.ETag,
			LastModified: info.LastModified,
		})
		lastEmitted = key
		count++
	}

	return result, nil
}
