package dispatch

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prn-tf/s3gate/internal/domain"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name           string
		err            error
		missingSegment string
		want           s3Error
	}{
		{"nil error", nil, "", s3Error{}},
		{"bucket not found", domain.ErrBucketNotFound, "", errNoSuchBucket},
		{"bucket already exists", domain.ErrBucketAlreadyExists, "", errBucketAlreadyExists},
		{"bucket not empty", domain.ErrBucketNotEmpty, "", errBucketNotEmpty},
		{"bucket name length", domain.ErrBucketNameLength, "", errInvalidBucketName},
		{"object not found", domain.ErrObjectNotFound, "", errNoSuchKey},
		{"invalid range", domain.ErrInvalidRange, "", errInvalidRange},
		{"multipart upload not found", domain.ErrMultipartUploadNotFound, "", errNoSuchUpload},
		{"part etag mismatch", domain.ErrPartETagMismatch, "", errInvalidPart},
		{"invalid part order", domain.ErrInvalidPartOrder, "", errInvalidPartOrder},
		{"access denied", domain.ErrAccessDenied, "", errAccessDenied},
		{"invalid access key", domain.ErrInvalidAccessKeyID, "", errInvalidAccessKeyID},
		{"signature mismatch", domain.ErrSignatureDoesNotMatch, "", errSignatureDoesNotMatch},
		{"request time skewed", domain.ErrRequestTimeTooSkewed, "", errRequestTimeTooSkewed},
		{"malformed xml", domain.ErrMalformedXML, "", errMalformedXML},
		{"missing key via os.ErrNotExist", os.ErrNotExist, "key", errNoSuchKey},
		{"missing bucket via os.ErrNotExist", os.ErrNotExist, "bucket", errNoSuchBucket},
		{"permission denied maps to internal", os.ErrPermission, "", errInternal},
		{"unrecognized error maps to internal", fmt.Errorf("boom"), "", errInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.err, tc.missingSegment)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMapError_WrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("get object: %w", domain.ErrObjectNotFound)
	require.Equal(t, errNoSuchKey, mapError(wrapped, ""))
}
