package dispatch

import (
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/s3gate/internal/audit"
	"github.com/prn-tf/s3gate/internal/auth"
	"github.com/prn-tf/s3gate/internal/domain"
	"github.com/prn-tf/s3gate/internal/metrics"
	"github.com/prn-tf/s3gate/internal/storage"
)

// maxListBodySize bounds the size of request bodies the dispatcher reads
// fully into memory (CompleteMultipartUpload's XML part list). Streamed
// bodies (PutObject, UploadPart) never go through this path.
const maxListBodySize = 1 << 20

// Config configures a Dispatcher.
type Config struct {
	Backend       storage.Backend
	Metrics       *metrics.Metrics
	Audit         audit.Recorder
	Logger        zerolog.Logger
	DefaultRegion string
	DefaultACL    domain.ACL
	DefaultCORS   []domain.CORSRule
}

// Dispatcher implements SPEC_FULL §4.3: it classifies requests into S3
// operations, evaluates authorization, calls the storage backend, and
// renders S3 XML responses and errors.
type Dispatcher struct {
	backend       storage.Backend
	metrics       *metrics.Metrics
	audit         audit.Recorder
	logger        zerolog.Logger
	defaultRegion string
	defaultACL    domain.ACL
	defaultCORS   []domain.CORSRule
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	rec := cfg.Audit
	if rec == nil {
		rec = audit.NoopRecorder{}
	}
	return &Dispatcher{
		backend:       cfg.Backend,
		metrics:       cfg.Metrics,
		audit:         rec,
		logger:        cfg.Logger.With().Str("component", "dispatch").Logger(),
		defaultRegion: cfg.DefaultRegion,
		defaultACL:    cfg.DefaultACL,
		defaultCORS:   cfg.DefaultCORS,
	}
}

// recordAudit appends an entry for a mutating operation, per SPEC_FULL §3.
// Audit failures are logged, not propagated: the trail is observational
// and must never affect the response already sent to the client.
func (d *Dispatcher) recordAudit(r *http.Request, op Operation, bucket, key string, status int, bytes int64) {
	accessKeyID := ""
	if authCtx := auth.GetAuthContext(r.Context()); authCtx != nil {
		accessKeyID = authCtx.AccessKeyID
	}
	entry := audit.Entry{
		Timestamp:   time.Now(),
		AccessKeyID: accessKeyID,
		Operation:   op.String(),
		Bucket:      bucket,
		Key:         key,
		ResultCode:  status,
		Bytes:       bytes,
	}
	if err := d.audit.Record(r.Context(), entry); err != nil {
		d.logger.Warn().Err(err).Str("operation", op.String()).Msg("audit record failed")
	}
}

// isMutating reports whether op is one of the operations SPEC_FULL §3
// names as audited: CreateBucket, DeleteBucket, PutObject, DeleteObject,
// InitiateMultipart, CompleteMultipart, AbortMultipart.
func isMutating(op Operation) bool {
	switch op {
	case OpCreateBucket, OpDeleteBucket, OpPutObject, OpDeleteObject,
		OpInitiateMultipart, OpCompleteMultipart, OpAbortMultipart:
		return true
	default:
		return false
	}
}

// Router builds the chi router for the S3 surface plus the ambient
// /healthz and /metrics endpoints, mounted outside the auth middleware
// group per SPEC_FULL §4.1.
func (d *Dispatcher) Router(authMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", d.handleHealthz)
	if d.metrics != nil {
		r.Handle("/metrics", d.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		// Request-ID stamping runs ahead of auth so a request rejected by
		// auth still carries x-amz-request-id and a <RequestId> in its
		// error body (§6), instead of only requests that reach d.handle.
		r.Use(auth.RequestIDMiddleware)
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		h := http.HandlerFunc(d.handle)
		r.Handle("/", h)
		r.Handle("/{bucket}", h)
		r.Handle("/{bucket}/*", h)
	})

	return r
}

// handleHealthz implements SPEC_FULL §10's readiness probe: 200 once the
// storage root is reachable and the audit backend (if any) is pingable.
// Mounted outside auth and metrics collection.
func (d *Dispatcher) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := d.backend.ListBuckets(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	if err := d.audit.Health(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handle is the one entry point for the S3 surface (§4.1): it parses the
// bucket/key from the path, classifies the operation, checks
// authorization, and dispatches to the matching op method.
func (d *Dispatcher) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	bucket := chi.URLParam(r, "bucket")
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")

	op := Classify(r.Method, bucket, key, r.URL.Query())
	if op == OpUnknown {
		d.writeError(w, r, bucket, key, errMethodNotAllowed)
		return
	}

	resource := resourceName(bucket, key)
	if !d.authorize(r, op, resource) {
		d.writeError(w, r, bucket, key, errAccessDenied)
		return
	}

	status := d.dispatch(w, r, op, bucket, key)
	if d.metrics != nil {
		d.metrics.RecordRequest(op.String(), status, time.Since(start))
	}
	if isMutating(op) {
		bytes := int64(0)
		if op == OpPutObject {
			bytes = r.ContentLength
		}
		d.recordAudit(r, op, bucket, key, status, bytes)
	}
}

// authorize evaluates the resolved credential's permission rules against
// the classified operation and resource, per §4.2's Authorization step.
// Anonymous requests (no Permissions attached, because ACL already
// admitted them in the auth middleware) are allowed through unchanged.
func (d *Dispatcher) authorize(r *http.Request, op Operation, resource string) bool {
	authCtx := auth.GetAuthContext(r.Context())
	if authCtx == nil || authCtx.Permissions == nil {
		return true
	}
	return authCtx.Permissions.Authorize(op.String(), resource)
}

func resourceName(bucket, key string) string {
	if bucket == "" {
		return "*"
	}
	if key == "" {
		return bucket
	}
	return bucket + "/" + key
}

func (d *Dispatcher) dispatch(w http.ResponseWriter, r *http.Request, op Operation, bucket, key string) int {
	switch op {
	case OpListBuckets:
		return d.listBuckets(w, r)
	case OpCreateBucket:
		return d.createBucket(w, r, bucket)
	case OpDeleteBucket:
		return d.deleteBucket(w, r, bucket)
	case OpListMultipartUploads:
		return d.listMultipartUploads(w, r, bucket)
	case OpListObjectsV2:
		return d.listObjects(w, r, bucket, true)
	case OpListObjectsV1:
		return d.listObjects(w, r, bucket, false)
	case OpCorsPreflight:
		return d.handleCorsPreflight(w, r, bucket)
	case OpUploadPart:
		return d.uploadPart(w, r, bucket, key)
	case OpPutObject:
		return d.putObject(w, r, bucket, key)
	case OpInitiateMultipart:
		return d.initiateMultipart(w, r, bucket, key)
	case OpCompleteMultipart:
		return d.completeMultipart(w, r, bucket, key)
	case OpListParts:
		return d.listParts(w, r, bucket, key)
	case OpPresignedGet, OpGetObject:
		return d.getObject(w, r, bucket, key)
	case OpAbortMultipart:
		return d.abortMultipart(w, r, bucket, key)
	case OpDeleteObject:
		return d.deleteObject(w, r, bucket, key)
	default:
		d.writeError(w, r, bucket, key, errMethodNotAllowed)
		return errMethodNotAllowed.Status
	}
}

// =============================================================================
// Bucket operations
// =============================================================================

func (d *Dispatcher) listBuckets(w http.ResponseWriter, r *http.Request) int {
	buckets, err := d.backend.ListBuckets(r.Context())
	if err != nil {
		d.writeError(w, r, "", "", mapError(err, ""))
		return errInternal.Status
	}
	owner := ""
	if authCtx := auth.GetAuthContext(r.Context()); authCtx != nil {
		owner = authCtx.AccessKeyID
	}
	d.writeXML(w, http.StatusOK, newListAllMyBucketsResult(owner, buckets))
	return http.StatusOK
}

func (d *Dispatcher) createBucket(w http.ResponseWriter, r *http.Request, bucketName string) int {
	if err := domain.ValidateBucketName(bucketName); err != nil {
		d.writeError(w, r, bucketName, "", mapError(err, "bucket"))
		return mapError(err, "bucket").Status
	}

	owner := ""
	if authCtx := auth.GetAuthContext(r.Context()); authCtx != nil {
		owner = authCtx.AccessKeyID
	}

	bucket := domain.NewBucket(bucketName, owner, d.defaultACL, d.defaultCORS)
	err := d.backend.CreateBucket(r.Context(), bucket)
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return http.StatusOK
	}
	if err == domain.ErrBucketAlreadyExists {
		existing, getErr := d.backend.GetBucket(r.Context(), bucketName)
		if getErr == nil && existing.Owner == owner && existing.Region == domain.DefaultRegion {
			w.WriteHeader(http.StatusOK)
			return http.StatusOK
		}
		if getErr == nil && existing.Owner == owner {
			d.writeError(w, r, bucketName, "", errBucketAlreadyOwnedByYou)
			return errBucketAlreadyOwnedByYou.Status
		}
		d.writeError(w, r, bucketName, "", errBucketAlreadyExists)
		return errBucketAlreadyExists.Status
	}

	d.writeError(w, r, bucketName, "", mapError(err, "bucket"))
	return mapError(err, "bucket").Status
}

func (d *Dispatcher) deleteBucket(w http.ResponseWriter, r *http.Request, bucketName string) int {
	if err := d.backend.DeleteBucket(r.Context(), bucketName); err != nil {
		mapped := mapError(err, "bucket")
		d.writeError(w, r, bucketName, "", mapped)
		return mapped.Status
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent
}

func (d *Dispatcher) listObjects(w http.ResponseWriter, r *http.Request, bucketName string, v2 bool) int {
	q := r.URL.Query()
	opts := storage.ListOptions{
		Prefix:    q.Get("prefix"),
		Delimiter: q.Get("delimiter"),
		MaxKeys:   1000,
	}
	if mk := q.Get("max-keys"); mk != "" {
		if n, err := strconv.Atoi(mk); err == nil && n > 0 {
			opts.MaxKeys = n
		}
	}
	if v2 {
		opts.StartAfter = q.Get("start-after")
		if token := q.Get("continuation-token"); token != "" {
			if decoded, err := decodeContinuationToken(token); err == nil {
				opts.StartAfter = decoded
			}
		}
	} else {
		opts.StartAfter = q.Get("marker")
	}

	result, err := d.backend.ListObjects(r.Context(), bucketName, opts)
	if err != nil {
		mapped := mapError(err, "bucket")
		d.writeError(w, r, bucketName, "", mapped)
		return mapped.Status
	}
	if result.IsTruncated && v2 {
		result.NextToken = encodeContinuationToken(result.NextToken)
	}
	d.writeXML(w, http.StatusOK, newListBucketResult(bucketName, opts, result, v2))
	return http.StatusOK
}

// =============================================================================
// Object operations
// =============================================================================

func (d *Dispatcher) putObject(w http.ResponseWriter, r *http.Request, bucket, key string) int {
	if b, err := d.backend.GetBucket(r.Context(), bucket); err == nil {
		d.applyCORSHeaders(w, r, b)
	}
	res, err := d.backend.PutObject(r.Context(), bucket, key, r.Body, r.Header.Get("Content-Type"))
	if err != nil {
		mapped := mapError(err, missingSegmentFor(err))
		d.writeError(w, r, bucket, key, mapped)
		return mapped.Status
	}
	w.Header().Set("ETag", res.ETag)
	w.WriteHeader(http.StatusOK)
	return http.StatusOK
}

func (d *Dispatcher) getObject(w http.ResponseWriter, r *http.Request, bucket, key string) int {
	rng, rangeErr := parseRange(r.Header.Get("Range"))
	if rangeErr != nil {
		d.writeError(w, r, bucket, key, errInvalidRange)
		return errInvalidRange.Status
	}

	if b, err := d.backend.GetBucket(r.Context(), bucket); err == nil {
		d.applyCORSHeaders(w, r, b)
	}

	result, err := d.backend.GetObject(r.Context(), bucket, key, rng)
	if err != nil {
		mapped := mapError(err, missingSegmentFor(err))
		d.writeError(w, r, bucket, key, mapped)
		return mapped.Status
	}
	defer result.Body.Close()

	w.Header().Set("ETag", result.ETag)
	w.Header().Set("Last-Modified", result.LastModified.UTC().Format(http.TimeFormat))
	if ct := inferContentType(key); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(result.Size, 10))

	status := http.StatusOK
	if result.ContentRange != "" {
		w.Header().Set("Content-Range", result.ContentRange)
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)
	_, _ = io.Copy(w, result.Body)
	return status
}

func (d *Dispatcher) deleteObject(w http.ResponseWriter, r *http.Request, bucket, key string) int {
	if err := d.backend.DeleteObject(r.Context(), bucket, key); err != nil {
		mapped := mapError(err, missingSegmentFor(err))
		d.writeError(w, r, bucket, key, mapped)
		return mapped.Status
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent
}

// =============================================================================
// Multipart operations
// =============================================================================

func (d *Dispatcher) initiateMultipart(w http.ResponseWriter, r *http.Request, bucket, key string) int {
	owner := ""
	if authCtx := auth.GetAuthContext(r.Context()); authCtx != nil {
		owner = authCtx.AccessKeyID
	}
	upload, err := d.backend.InitiateMultipartUpload(r.Context(), bucket, key, owner, r.Header.Get("Content-Type"), nil)
	if err != nil {
		mapped := mapError(err, "bucket")
		d.writeError(w, r, bucket, key, mapped)
		return mapped.Status
	}
	d.writeXML(w, http.StatusOK, &InitiateMultipartUploadResult{
		Xmlns:    s3Namespace,
		Bucket:   bucket,
		Key:      key,
		UploadID: upload.UploadID,
	})
	return http.StatusOK
}

func (d *Dispatcher) uploadPart(w http.ResponseWriter, r *http.Request, bucket, key string) int {
	uploadID := r.URL.Query().Get("uploadId")
	partNumber, err := strconv.Atoi(r.URL.Query().Get("partNumber"))
	if err != nil {
		d.writeError(w, r, bucket, key, errInvalidPart)
		return errInvalidPart.Status
	}

	part, err := d.backend.UploadPart(r.Context(), bucket, uploadID, partNumber, r.Body)
	if err != nil {
		mapped := mapError(err, "bucket")
		d.writeError(w, r, bucket, key, mapped)
		return mapped.Status
	}
	w.Header().Set("ETag", part.ETag)
	w.WriteHeader(http.StatusOK)
	return http.StatusOK
}

func (d *Dispatcher) completeMultipart(w http.ResponseWriter, r *http.Request, bucket, key string) int {
	uploadID := r.URL.Query().Get("uploadId")

	body := http.MaxBytesReader(w, r.Body, maxListBodySize)
	var reqBody completeMultipartUploadRequest
	if err := xml.NewDecoder(body).Decode(&reqBody); err != nil {
		d.writeError(w, r, bucket, key, errMalformedXML)
		return errMalformedXML.Status
	}

	parts := make([]domain.CompletedPart, 0, len(reqBody.Parts))
	for _, p := range reqBody.Parts {
		parts = append(parts, domain.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	res, err := d.backend.CompleteMultipartUpload(r.Context(), bucket, uploadID, parts)
	if err != nil {
		mapped := mapError(err, "bucket")
		d.writeError(w, r, bucket, key, mapped)
		return mapped.Status
	}

	d.writeXML(w, http.StatusOK, &CompleteMultipartUploadResult{
		Xmlns:    s3Namespace,
		Location: "/" + bucket + "/" + key,
		Bucket:   bucket,
		Key:      key,
		ETag:     res.ETag,
	})
	return http.StatusOK
}

func (d *Dispatcher) abortMultipart(w http.ResponseWriter, r *http.Request, bucket, key string) int {
	uploadID := r.URL.Query().Get("uploadId")
	if err := d.backend.AbortMultipartUpload(r.Context(), bucket, uploadID); err != nil {
		mapped := mapError(err, "bucket")
		d.writeError(w, r, bucket, key, mapped)
		return mapped.Status
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent
}

func (d *Dispatcher) listParts(w http.ResponseWriter, r *http.Request, bucket, key string) int {
	uploadID := r.URL.Query().Get("uploadId")
	parts, err := d.backend.ListParts(r.Context(), bucket, uploadID)
	if err != nil {
		mapped := mapError(err, "bucket")
		d.writeError(w, r, bucket, key, mapped)
		return mapped.Status
	}
	entries := make([]partEntry, 0, len(parts))
	for _, p := range parts {
		entries = append(entries, partEntry{
			PartNumber:   p.PartNumber,
			LastModified: p.LastModified.UTC().Format(time.RFC3339),
			ETag:         p.ETag,
			Size:         p.Size,
		})
	}
	d.writeXML(w, http.StatusOK, &ListPartsResult{
		Xmlns:    s3Namespace,
		Bucket:   bucket,
		Key:      key,
		UploadID: uploadID,
		Part:     entries,
	})
	return http.StatusOK
}

func (d *Dispatcher) listMultipartUploads(w http.ResponseWriter, r *http.Request, bucket string) int {
	uploads, err := d.backend.ListMultipartUploads(r.Context(), bucket)
	if err != nil {
		mapped := mapError(err, "bucket")
		d.writeError(w, r, bucket, "", mapped)
		return mapped.Status
	}
	entries := make([]uploadEntry, 0, len(uploads))
	for _, u := range uploads {
		entries = append(entries, uploadEntry{
			Key:       u.Key,
			UploadID:  u.UploadID,
			Initiated: u.InitiatedAt.UTC().Format(time.RFC3339),
		})
	}
	d.writeXML(w, http.StatusOK, &ListMultipartUploadsResult{
		Xmlns:  s3Namespace,
		Bucket: bucket,
		Upload: entries,
	})
	return http.StatusOK
}

// =============================================================================
// Response helpers
// =============================================================================

func (d *Dispatcher) writeXML(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(v)
}

func (d *Dispatcher) writeError(w http.ResponseWriter, r *http.Request, bucket, key string, e s3Error) {
	if d.metrics != nil {
		d.metrics.RecordError(e.Code)
	}
	if e.Status >= http.StatusInternalServerError {
		d.logger.Error().Str("bucket", bucket).Str("key", key).Str("code", e.Code).Msg("request failed")
	} else {
		d.logger.Debug().Str("bucket", bucket).Str("key", key).Str("code", e.Code).Msg("request rejected")
	}
	resource := resourceName(bucket, key)
	if resource == "*" {
		resource = ""
	} else {
		resource = "/" + resource
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(e.Status)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(&Error{
		Code:      e.Code,
		Message:   e.Message,
		Resource:  resource,
		RequestID: auth.GetRequestID(r.Context()),
	})
}

// missingSegmentFor reports whether a not-found error is best attributed
// to the bucket or the key segment of the path, for XML <Resource> and
// IO-error mapping purposes.
func missingSegmentFor(err error) string {
	if err == domain.ErrObjectNotFound {
		return "key"
	}
	return "bucket"
}
