// Package dispatch classifies incoming HTTP requests into S3 operations
// and carries out each one against the storage backend, producing the S3
// XML 2006-03-01 wire responses.
package dispatch

import "net/http"

// Operation identifies one of the classified S3 REST operations. The
// classification table in Classify is the only place that decides which
// operation a request maps to.
type Operation int

const (
	OpUnknown Operation = iota
	OpListBuckets
	OpCreateBucket
	OpDeleteBucket
	OpListMultipartUploads
	OpListObjectsV2
	OpListObjectsV1
	OpCorsPreflight
	OpUploadPart
	OpPutObject
	OpInitiateMultipart
	OpCompleteMultipart
	OpListParts
	OpPresignedGet
	OpGetObject
	OpAbortMultipart
	OpDeleteObject
)

// String names match the S3 action names used in credential permission
// rules (§4.2's Authorize call uses these as the "action").
func (op Operation) String() string {
	switch op {
	case OpListBuckets:
		return "ListBuckets"
	case OpCreateBucket:
		return "CreateBucket"
	case OpDeleteBucket:
		return "DeleteBucket"
	case OpListMultipartUploads:
		return "ListMultipartUploads"
	case OpListObjectsV2:
		return "ListObjectsV2"
	case OpListObjectsV1:
		return "ListObjectsV1"
	case OpCorsPreflight:
		return "CorsPreflight"
	case OpUploadPart:
		return "UploadPart"
	case OpPutObject:
		return "PutObject"
	case OpInitiateMultipart:
		return "InitiateMultipart"
	case OpCompleteMultipart:
		return "CompleteMultipart"
	case OpListParts:
		return "ListParts"
	case OpPresignedGet:
		return "PresignedGet"
	case OpGetObject:
		return "GetObject"
	case OpAbortMultipart:
		return "AbortMultipart"
	case OpDeleteObject:
		return "DeleteObject"
	default:
		return "Unknown"
	}
}

// Classify maps (method, query) to an Operation for a bucket-only path.
// hasKey tells the caller's path parsing whether an object key followed
// the bucket segment; the two classification halves never overlap.
func classifyBucket(method string, query map[string][]string) Operation {
	switch method {
	case http.MethodGet:
		if _, ok := query["uploads"]; ok {
			return OpListMultipartUploads
		}
		if lt, ok := query["list-type"]; ok && len(lt) > 0 && lt[0] == "2" {
			return OpListObjectsV2
		}
		return OpListObjectsV1
	case http.MethodPut:
		return OpCreateBucket
	case http.MethodDelete:
		return OpDeleteBucket
	default:
		return OpUnknown
	}
}

// classifyObject maps (method, query) to an Operation for a /<bucket>/<key> path.
func classifyObject(method string, query map[string][]string) Operation {
	_, hasPartNumber := query["partNumber"]
	_, hasUploadID := query["uploadId"]
	_, hasUploads := query["uploads"]
	_, hasSignature := query["X-Amz-Signature"]

	switch method {
	case http.MethodOptions:
		return OpCorsPreflight
	case http.MethodPut:
		if hasPartNumber && hasUploadID {
			return OpUploadPart
		}
		return OpPutObject
	case http.MethodPost:
		if hasUploads {
			return OpInitiateMultipart
		}
		if hasUploadID {
			return OpCompleteMultipart
		}
		return OpUnknown
	case http.MethodGet:
		if hasUploadID {
			return OpListParts
		}
		if hasSignature {
			return OpPresignedGet
		}
		return OpGetObject
	case http.MethodDelete:
		if hasUploadID {
			return OpAbortMultipart
		}
		return OpDeleteObject
	default:
		return OpUnknown
	}
}

// Classify maps an HTTP request's method, path shape, and query to an
// Operation, per SPEC_FULL §4.3's classification table.
func Classify(method, bucket, key string, query map[string][]string) Operation {
	if bucket == "" {
		if method == http.MethodGet {
			return OpListBuckets
		}
		return OpUnknown
	}
	if key == "" {
		return classifyBucket(method, query)
	}
	return classifyObject(method, query)
}
