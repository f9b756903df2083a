package dispatch

import (
	"net/http"
	"strings"

	"github.com/prn-tf/s3gate/internal/domain"
)

// matchCORSRule returns the first CORS rule on bucket matching origin and
// method, or nil if none applies.
func matchCORSRule(bucket *domain.Bucket, origin, method string) *domain.CORSRule {
	for i := range bucket.CORS {
		rule := &bucket.CORS[i]
		if !originAllowed(rule.AllowedOrigins, origin) {
			continue
		}
		if !methodAllowed(rule.AllowedMethods, method) {
			continue
		}
		return rule
	}
	return nil
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func methodAllowed(allowed []string, method string) bool {
	for _, m := range allowed {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// handleCorsPreflight implements SPEC_FULL §4.3's CORS Preflight operation.
// It returns the status actually written, since rejection can happen at
// three different points and the caller needs the real value for metrics.
func (d *Dispatcher) handleCorsPreflight(w http.ResponseWriter, r *http.Request, bucketName string) int {
	origin := r.Header.Get("Origin")
	requestMethod := r.Header.Get("Access-Control-Request-Method")
	if origin == "" || requestMethod == "" {
		w.WriteHeader(http.StatusForbidden)
		return http.StatusForbidden
	}

	bucket, err := d.backend.GetBucket(r.Context(), bucketName)
	if err != nil {
		w.WriteHeader(http.StatusForbidden)
		return http.StatusForbidden
	}

	rule := matchCORSRule(bucket, origin, requestMethod)
	if rule == nil {
		w.WriteHeader(http.StatusForbidden)
		return http.StatusForbidden
	}

	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", strings.Join(rule.AllowedMethods, ", "))
	if requestHeaders := r.Header.Get("Access-Control-Request-Headers"); requestHeaders != "" {
		w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
	} else if len(rule.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(rule.AllowedHeaders, ", "))
	}
	w.Header().Set("Access-Control-Max-Age", "3600")
	w.WriteHeader(http.StatusOK)
	return http.StatusOK
}

// applyCORSHeaders sets the Access-Control-Allow-Origin response header on
// a normal (non-preflight) request when the bucket's CORS rule accepts the
// request's Origin, per §4.1.
func (d *Dispatcher) applyCORSHeaders(w http.ResponseWriter, r *http.Request, bucket *domain.Bucket) {
	origin := r.Header.Get("Origin")
	if origin == "" || bucket == nil {
		return
	}
	if rule := matchCORSRule(bucket, origin, r.Method); rule != nil {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
}
