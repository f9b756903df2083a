package dispatch

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		method string
		bucket string
		key    string
		query  map[string][]string
		want   Operation
	}{
		{"list buckets", http.MethodGet, "", "", nil, OpListBuckets},
		{"root POST is unknown", http.MethodPost, "", "", nil, OpUnknown},
		{"create bucket", http.MethodPut, "bucket", "", nil, OpCreateBucket},
		{"delete bucket", http.MethodDelete, "bucket", "", nil, OpDeleteBucket},
		{"list objects v1", http.MethodGet, "bucket", "", nil, OpListObjectsV1},
		{"list objects v2", http.MethodGet, "bucket", "", map[string][]string{"list-type": {"2"}}, OpListObjectsV2},
		{"list multipart uploads", http.MethodGet, "bucket", "", map[string][]string{"uploads": {""}}, OpListMultipartUploads},
		{"put object", http.MethodPut, "bucket", "key", nil, OpPutObject},
		{"upload part", http.MethodPut, "bucket", "key", map[string][]string{"partNumber": {"1"}, "uploadId": {"abc"}}, OpUploadPart},
		{"initiate multipart", http.MethodPost, "bucket", "key", map[string][]string{"uploads": {""}}, OpInitiateMultipart},
		{"complete multipart", http.MethodPost, "bucket", "key", map[string][]string{"uploadId": {"abc"}}, OpCompleteMultipart},
		{"post without markers is unknown", http.MethodPost, "bucket", "key", nil, OpUnknown},
		{"list parts", http.MethodGet, "bucket", "key", map[string][]string{"uploadId": {"abc"}}, OpListParts},
		{"presigned get", http.MethodGet, "bucket", "key", map[string][]string{"X-Amz-Signature": {"sig"}}, OpPresignedGet},
		{"get object", http.MethodGet, "bucket", "key", nil, OpGetObject},
		{"abort multipart", http.MethodDelete, "bucket", "key", map[string][]string{"uploadId": {"abc"}}, OpAbortMultipart},
		{"delete object", http.MethodDelete, "bucket", "key", nil, OpDeleteObject},
		{"cors preflight", http.MethodOptions, "bucket", "key", nil, OpCorsPreflight},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.method, tc.bucket, tc.key, tc.query)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestOperationString(t *testing.T) {
	require.Equal(t, "PutObject", OpPutObject.String())
	require.Equal(t, "Unknown", OpUnknown.String())
	require.Equal(t, "Unknown", Operation(999).String())
}

func TestIsMutating(t *testing.T) {
	mutating := []Operation{
		OpCreateBucket, OpDeleteBucket, OpPutObject, OpDeleteObject,
		OpInitiateMultipart, OpCompleteMultipart, OpAbortMultipart,
	}
	for _, op := range mutating {
		require.True(t, isMutating(op), "%s should be audited", op.String())
	}

	nonMutating := []Operation{
		OpListBuckets, OpListObjectsV1, OpListObjectsV2, OpGetObject,
		OpUploadPart, OpListParts, OpListMultipartUploads, OpCorsPreflight, OpUnknown,
	}
	for _, op := range nonMutating {
		require.False(t, isMutating(op), "%s should not be audited", op.String())
	}
}
