package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/prn-tf/s3gate/internal/domain"
)

// metadataDirName is the reserved top-level entry inside every bucket
// directory; it is never exposed in listings and ignored when deciding
// whether a bucket is empty.
const metadataDirName = "_metadata"

// multipartDirName is the subdirectory of _metadata holding staged uploads.
const multipartDirName = "multipart"

// bucketMetaFile is the sidecar recording a bucket's attributes.
const bucketMetaFile = "bucket.yaml"

// multipartMetaFile is the sidecar recording an in-progress upload's state.
const multipartMetaFile = "meta.yaml"

func (fs *FSBackend) bucketDir(bucket string) string {
	return filepath.Join(fs.root, bucket)
}

func (fs *FSBackend) bucketMetaPath(bucket string) string {
	return filepath.Join(fs.bucketDir(bucket), metadataDirName, bucketMetaFile)
}

func (fs *FSBackend) multipartRootDir(bucket string) string {
	return filepath.Join(fs.bucketDir(bucket), metadataDirName, multipartDirName)
}

func (fs *FSBackend) multipartDir(bucket, uploadID string) string {
	return filepath.Join(fs.multipartRootDir(bucket), uploadID)
}

func (fs *FSBackend) multipartMetaPath(bucket, uploadID string) string {
	return filepath.Join(fs.multipartDir(bucket, uploadID), multipartMetaFile)
}

func (fs *FSBackend) partPath(bucket, uploadID string, partNumber int) string {
	return filepath.Join(fs.multipartDir(bucket, uploadID), partNumberName(partNumber))
}

// objectPath resolves a key to its on-disk path, rejecting any key that
// would escape the bucket directory. Callers must validate the key with
// domain.ValidateObjectKey first; this is a second, structural check on
// the resolved path itself.
func (fs *FSBackend) objectPath(bucket, key string) (string, error) {
	clean := filepath.Join(fs.bucketDir(bucket), filepath.FromSlash(key))
	base := fs.bucketDir(bucket) + string(filepath.Separator)
	if !strings.HasPrefix(clean, base) {
		return "", domain.ErrInvalidObjectName
	}
	return clean, nil
}

// partNumberName zero-pads a part number so a plain directory listing
// sorts numerically, keeping ListParts output ordered without an extra
// sort pass. MaxPartNumber is 10000, so 5 digits always covers it.
func partNumberName(n int) string {
	return fmt.Sprintf("%05d", n)
}
