package dispatch

import (
	"errors"
	"net/http"
	"os"

	"github.com/prn-tf/s3gate/internal/domain"
)

// s3Error pairs an S3 error code with the HTTP status and message it maps
// to, per SPEC_FULL §7's taxonomy table.
type s3Error struct {
	Code    string
	Status  int
	Message string
}

var (
	errInvalidBucketName     = s3Error{"InvalidBucketName", http.StatusBadRequest, "The specified bucket is not valid."}
	errBucketAlreadyExists   = s3Error{"BucketAlreadyExists", http.StatusConflict, "The requested bucket name is not available."}
	errBucketAlreadyOwnedByYou = s3Error{"BucketAlreadyOwnedByYou", http.StatusConflict, "Your previous request to create the named bucket succeeded and you already own it."}
	errNoSuchBucket          = s3Error{"NoSuchBucket", http.StatusNotFound, "The specified bucket does not exist."}
	errBucketNotEmpty        = s3Error{"BucketNotEmpty", http.StatusConflict, "The bucket you tried to delete is not empty."}
	errNoSuchKey             = s3Error{"NoSuchKey", http.StatusNotFound, "The specified key does not exist."}
	errInvalidObjectName     = s3Error{"InvalidObjectName", http.StatusBadRequest, "The specified key is not valid."}
	errInvalidRange          = s3Error{"InvalidRange", http.StatusRequestedRangeNotSatisfiable, "The requested range is not satisfiable."}
	errNoSuchUpload          = s3Error{"NoSuchUpload", http.StatusNotFound, "The specified multipart upload does not exist."}
	errInvalidPart           = s3Error{"InvalidPart", http.StatusBadRequest, "One or more of the specified parts could not be found or did not match."}
	errInvalidPartOrder      = s3Error{"InvalidPartOrder", http.StatusBadRequest, "The list of parts was not in ascending order."}
	errAccessDenied          = s3Error{"AccessDenied", http.StatusForbidden, "Access Denied."}
	errInvalidAccessKeyID    = s3Error{"InvalidAccessKeyId", http.StatusForbidden, "The access key ID you provided does not exist."}
	errSignatureDoesNotMatch = s3Error{"SignatureDoesNotMatch", http.StatusForbidden, "The request signature we calculated does not match the signature you provided."}
	errRequestTimeTooSkewed  = s3Error{"RequestTimeTooSkewed", http.StatusForbidden, "The difference between the request time and the server's time is too large."}
	errMalformedXML          = s3Error{"MalformedXML", http.StatusBadRequest, "The XML you provided was not well-formed or did not validate against our published schema."}
	errInternal              = s3Error{"InternalError", http.StatusInternalServerError, "We encountered an internal error. Please try again."}
	errMethodNotAllowed      = s3Error{"MethodNotAllowed", http.StatusMethodNotAllowed, "The specified method is not allowed against this resource."}
)

// mapError translates a domain/storage error into an S3 error. IO errors
// that surface directly (not wrapped as a domain sentinel) are mapped by
// ENOENT/EACCES/EPERM per SPEC_FULL §7's propagation policy.
func mapError(err error, missingSegment string) s3Error {
	switch {
	case err == nil:
		return s3Error{}
	case errors.Is(err, domain.ErrBucketNotFound):
		return errNoSuchBucket
	case errors.Is(err, domain.ErrBucketAlreadyExists):
		return errBucketAlreadyExists
	case errors.Is(err, domain.ErrBucketNotEmpty):
		return errBucketNotEmpty
	case errors.Is(err, domain.ErrBucketNameLength),
		errors.Is(err, domain.ErrBucketNameFormat),
		errors.Is(err, domain.ErrBucketNameIPFormat):
		return errInvalidBucketName
	case errors.Is(err, domain.ErrObjectNotFound):
		return errNoSuchKey
	case errors.Is(err, domain.ErrObjectKeyTooLong),
		errors.Is(err, domain.ErrInvalidObjectName):
		return errInvalidObjectName
	case errors.Is(err, domain.ErrInvalidRange):
		return errInvalidRange
	case errors.Is(err, domain.ErrMultipartUploadNotFound),
		errors.Is(err, domain.ErrMultipartUploadExpired):
		return errNoSuchUpload
	case errors.Is(err, domain.ErrPartNotFound),
		errors.Is(err, domain.ErrPartETagMismatch),
		errors.Is(err, domain.ErrPartTooSmall),
		errors.Is(err, domain.ErrPartTooLarge),
		errors.Is(err, domain.ErrInvalidPartNumber),
		errors.Is(err, domain.ErrNoPartsProvided):
		return errInvalidPart
	case errors.Is(err, domain.ErrInvalidPartOrder):
		return errInvalidPartOrder
	case errors.Is(err, domain.ErrAccessDenied):
		return errAccessDenied
	case errors.Is(err, domain.ErrInvalidAccessKeyID):
		return errInvalidAccessKeyID
	case errors.Is(err, domain.ErrSignatureDoesNotMatch):
		return errSignatureDoesNotMatch
	case errors.Is(err, domain.ErrRequestTimeTooSkewed):
		return errRequestTimeTooSkewed
	case errors.Is(err, domain.ErrMalformedXML):
		return errMalformedXML
	case errors.Is(err, os.ErrNotExist):
		if missingSegment == "key" {
			return errNoSuchKey
		}
		return errNoSuchBucket
	case errors.Is(err, os.ErrPermission):
		return errInternal
	default:
		return errInternal
	}
}
