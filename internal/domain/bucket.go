// Package domain contains the core business entities for s3gate.
package domain

import (
	"regexp"
	"time"
)

// bucketNameRegex validates S3-compliant bucket names.
// Rules: 3-63 characters, lowercase letters, numbers, hyphens only.
// Must start and end with a letter or number.
var bucketNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

var ipAddressRegex = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// CORSRule describes one allowed cross-origin access pattern for a bucket.
type CORSRule struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// ACL describes who may access a bucket without a valid signature.
type ACL struct {
	// Public, when true, permits anonymous reads (and, with PublicWrite, writes).
	Public bool `yaml:"public"`

	// PublicWrite additionally permits anonymous PUT/DELETE when Public is true.
	PublicWrite bool `yaml:"public_write"`

	// AllowedCIDRs restricts anonymous access to a set of client IP ranges.
	// An empty list means no IP restriction beyond the Public flag.
	AllowedCIDRs []string `yaml:"allowed_cidrs"`
}

// DefaultRegion is the region assigned to a bucket when none is given,
// and the region under which BucketAlreadyOwnedByYou resolves to 200.
const DefaultRegion = "de-muc-01"

// Bucket is a named container for objects.
// On disk it is the directory <root>/<bucket>/ plus a sidecar
// _metadata/bucket.yaml; the directory exists iff the sidecar exists and parses.
type Bucket struct {
	Name      string     `yaml:"name"`
	Region    string     `yaml:"region"`
	Owner     string     `yaml:"owner"` // access-key-id of the creator
	CreatedAt time.Time  `yaml:"created_at"`
	ACL       ACL        `yaml:"acl"`
	CORS      []CORSRule `yaml:"cors"`
}

// NewBucket creates a new Bucket owned by the given access key.
func NewBucket(name, owner string, acl ACL, cors []CORSRule) *Bucket {
	return &Bucket{
		Name:      name,
		Region:    DefaultRegion,
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
		ACL:       acl,
		CORS:      cors,
	}
}

// ValidateBucketName checks a bucket name against S3 naming rules.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return ErrBucketNameLength
	}
	if !bucketNameRegex.MatchString(name) {
		return ErrBucketNameFormat
	}
	if ipAddressRegex.MatchString(name) {
		return ErrBucketNameIPFormat
	}
	return nil
}
