package auth

import (
	"context"
	"net/http"

	"github.com/prn-tf/s3gate/internal/pkg/crypto"
)

// requestIDContextKey is the context key for the per-request ID.
type requestIDContextKey struct{}

// RequestIDContextKey is the key used to store the request ID in the
// request context.
var RequestIDContextKey = requestIDContextKey{}

// RequestIDMiddleware stamps every request with an opaque request ID,
// echoed in x-amz-request-id and in every error body, including the ones
// the auth middleware itself writes. It must run ahead of Middleware in
// the chain so a rejected request still carries a request ID (§6).
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, err := crypto.GenerateRequestID()
		if err != nil {
			reqID = "unknown"
		}
		w.Header().Set("x-amz-request-id", reqID)
		ctx := context.WithValue(r.Context(), RequestIDContextKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID stamped by RequestIDMiddleware, or
// "" if none is present (e.g. in a test that doesn't wire the middleware).
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return id
	}
	return ""
}
