package dispatch

import (
	"context"

	"github.com/prn-tf/s3gate/internal/domain"
)

// GetBucketACL implements auth.BucketACLChecker, letting the auth
// middleware evaluate anonymous access against a bucket's stored ACL.
func (d *Dispatcher) GetBucketACL(ctx context.Context, bucketName string) (*domain.ACL, error) {
	bucket, err := d.backend.GetBucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	return &bucket.ACL, nil
}
