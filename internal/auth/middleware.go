// Package auth provides AWS Signature Version 4 authentication for s3gate.
package auth

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prn-tf/s3gate/internal/domain"
)

// AccessKeyStore resolves an access key ID to its credential record.
// The config layer's CredentialSet snapshot (SPEC_FULL §9) satisfies this.
type AccessKeyStore interface {
	// GetActiveAccessKey looks up a credential by access key ID.
	// Returns ErrInvalidAccessKeyID-compatible error if unknown; there is
	// no separate active/inactive state or last-used tracking, since
	// credentials are an immutable snapshot supplied wholesale by config.
	GetActiveAccessKey(ctx context.Context, accessKeyID string) (*domain.Credential, error)
}

// BucketACLChecker defines the interface for checking bucket ACL permissions.
type BucketACLChecker interface {
	// GetBucketACL returns the ACL for a bucket by name, or nil if the
	// bucket does not exist.
	GetBucketACL(ctx context.Context, bucketName string) (*domain.ACL, error)
}

// Config contains configuration for the auth middleware.
type Config struct {
	// Region is the expected AWS region.
	Region string

	// Service is the expected AWS service (usually "s3").
	Service string

	// AllowAnonymous allows unauthenticated requests (for public buckets).
	AllowAnonymous bool

	// SkipPaths are paths that skip authentication.
	SkipPaths []string

	// BucketACLChecker checks bucket ACL for anonymous access (optional).
	BucketACLChecker BucketACLChecker
}

// DefaultConfig returns the default auth configuration.
func DefaultConfig() Config {
	return Config{
		Region:           DefaultRegion,
		Service:          ServiceS3,
		AllowAnonymous:   false,
		SkipPaths:        []string{"/health", "/metrics"},
		BucketACLChecker: nil,
	}
}

// extractBucketName extracts the bucket name from the URL path.
// S3-style path: /bucket-name/key or /bucket-name
func extractBucketName(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return ""
}

// isReadOperation checks if the HTTP method is a read operation.
func isReadOperation(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// clientIP extracts the request's remote IP, stripping the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// aclAllowsIP reports whether acl.AllowedCIDRs is empty (no restriction)
// or contains a CIDR covering ip.
func aclAllowsIP(acl *domain.ACL, ip string) bool {
	if len(acl.AllowedCIDRs) == 0 {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidr := range acl.AllowedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

// bucketACLAllowsIP enforces a bucket's AllowedCIDRs allowlist against an
// already-authenticated (signed or presigned) request, per SPEC_FULL §4.2:
// "a valid presigned URL substitutes for authentication; ACL checks
// (bucket public, allowed-IP) still apply" — and the same holds for a
// fully signed request, since the CIDR restriction is a property of the
// bucket, not of how the caller proved their identity. Requests with no
// resolvable target bucket (ListBuckets, a bucket not yet created) or no
// configured checker are let through unrestricted.
func (c Config) bucketACLAllowsIP(r *http.Request) bool {
	if c.BucketACLChecker == nil {
		return true
	}
	bucketName := extractBucketName(r.URL.Path)
	if bucketName == "" {
		return true
	}
	acl, err := c.BucketACLChecker.GetBucketACL(r.Context(), bucketName)
	if err != nil || acl == nil {
		return true
	}
	return aclAllowsIP(acl, clientIP(r))
}

// anonymousAllowed reports whether acl permits an anonymous request of
// the given method, per SPEC_FULL §4.2: public buckets allow reads (and,
// with PublicWrite, writes), subject to the allowed-IP restriction.
func anonymousAllowed(acl *domain.ACL, method, ip string) bool {
	if acl == nil || !acl.Public {
		return false
	}
	if !aclAllowsIP(acl, ip) {
		return false
	}
	if isReadOperation(method) {
		return true
	}
	return acl.PublicWrite
}

// Middleware creates an authentication middleware.
func Middleware(store AccessKeyStore, config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check if path should skip authentication
			for _, path := range config.SkipPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Determine auth type
			authType := GetAuthType(r)

			switch authType {
			case AuthTypeAnonymous:
				// Check if anonymous access is allowed
				if config.AllowAnonymous {
					next.ServeHTTP(w, r)
					return
				}

				// Check bucket ACL for anonymous access
				if config.BucketACLChecker != nil {
					bucketName := extractBucketName(r.URL.Path)
					if bucketName != "" {
						acl, err := config.BucketACLChecker.GetBucketACL(r.Context(), bucketName)
						if err == nil && anonymousAllowed(acl, r.Method, clientIP(r)) {
							next.ServeHTTP(w, r)
							return
						}
					}
				}

				writeAuthError(w, r, ErrAccessDenied)
				return

			case AuthTypeSignedV4:
				authCtx, err := handleSignedV4(r, store, config)
				if err != nil {
					log.Debug().Err(err).Str("path", r.URL.Path).Msg("SignedV4 authentication failed")
					writeAuthError(w, r, err)
					return
				}
				if !config.bucketACLAllowsIP(r) {
					writeAuthError(w, r, ErrAccessDenied)
					return
				}
				r = r.WithContext(context.WithValue(r.Context(), AuthContextKey, authCtx))

			case AuthTypePresignedV4:
				authCtx, err := handlePresignedV4(r, store, config)
				if err != nil {
					log.Debug().Err(err).Str("path", r.URL.Path).Msg("PresignedV4 authentication failed")
					writeAuthError(w, r, err)
					return
				}
				if !config.bucketACLAllowsIP(r) {
					writeAuthError(w, r, ErrAccessDenied)
					return
				}
				r = r.WithContext(context.WithValue(r.Context(), AuthContextKey, authCtx))

			default:
				writeAuthError(w, r, ErrInvalidAuthorizationHeader)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// handleSignedV4 handles AWS Signature V4 authentication.
func handleSignedV4(r *http.Request, store AccessKeyStore, config Config) (*AuthContext, error) {
	// Parse authorization header
	authHeader := r.Header.Get(AuthorizationHeader)
	signedValues, err := ParseSignV4(authHeader)
	if err != nil {
		return nil, err
	}

	// Validate request time
	requestTime, err := GetRequestTime(r)
	if err != nil {
		return nil, ErrMissingSecurityHeader
	}

	if err := ValidateRequestTime(requestTime); err != nil {
		return nil, err
	}

	// Lookup access key
	cred, err := store.GetActiveAccessKey(r.Context(), signedValues.Credential.AccessKey)
	if err != nil {
		return nil, ErrInvalidAccessKeyID
	}

	// Get payload hash
	payloadHash := GetPayloadHash(r)

	// Verify signature
	if err := VerifySignature(r, cred.SecretAccessKey, *signedValues, payloadHash); err != nil {
		return nil, err
	}

	return &AuthContext{
		AccessKeyID: cred.AccessKeyID,
		Credential:  signedValues.Credential,
		Permissions: cred,
		AuthType:    AuthTypeSignedV4,
		RequestTime: requestTime,
		Region:      signedValues.Credential.Scope.Region,
	}, nil
}

// handlePresignedV4 handles presigned URL authentication.
func handlePresignedV4(r *http.Request, store AccessKeyStore, config Config) (*AuthContext, error) {
	// Parse presigned URL parameters
	signedValues, expires, err := ParsePresignedV4(r)
	if err != nil {
		return nil, err
	}

	// Get request time
	requestTime, err := GetRequestTime(r)
	if err != nil {
		return nil, ErrMissingSecurityHeader
	}

	// Check if URL has expired
	expirationTime := requestTime.Add(time.Duration(expires) * time.Second)
	if time.Now().UTC().After(expirationTime) {
		return nil, ErrPresignedURLExpired
	}

	// Lookup access key
	cred, err := store.GetActiveAccessKey(r.Context(), signedValues.Credential.AccessKey)
	if err != nil {
		return nil, ErrInvalidAccessKeyID
	}

	// For presigned URLs, we need to reconstruct the canonical request
	// The signed headers are in query params, and we verify against those
	payloadHash := GetPayloadHash(r)

	// Build canonical request for presigned URL
	// Note: For presigned URLs, the query string includes auth params which need special handling
	if err := VerifySignature(r, cred.SecretAccessKey, *signedValues, payloadHash); err != nil {
		return nil, err
	}

	return &AuthContext{
		AccessKeyID: cred.AccessKeyID,
		Credential:  signedValues.Credential,
		Permissions: cred,
		AuthType:    AuthTypePresignedV4,
		RequestTime: requestTime,
		Region:      signedValues.Credential.Scope.Region,
	}, nil
}

// writeAuthError writes an S3-compatible error response, with the same
// <Resource>/<RequestId> fields dispatch.writeError renders for errors
// raised past auth (§6).
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	authErr := NewAuthError(err)
	authErr.Resource = resourcePath(r.URL.Path)
	authErr.RequestID = GetRequestID(r.Context())

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(authErr.HTTPStatus)

	xmlResponse := `<?xml version="1.0" encoding="UTF-8"?>
<Error>
    <Code>` + string(authErr.Code) + `</Code>
    <Message>` + authErr.Message + `</Message>
    <Resource>` + authErr.Resource + `</Resource>
    <RequestId>` + authErr.RequestID + `</RequestId>
</Error>`

	_, _ = w.Write([]byte(xmlResponse))
}

// resourcePath mirrors dispatch.writeError's <Resource> rendering: the
// request path as-is, or "" for the bucket-less root ("/" or "*").
func resourcePath(path string) string {
	if path == "" || path == "/" {
		return ""
	}
	return path
}

// GetAuthContext retrieves the AuthContext from a request context.
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}

// GetUserContext retrieves the auth context along with an ok flag,
// for callers that prefer the comma-ok idiom over a nil check.
func GetUserContext(ctx context.Context) (*AuthContext, bool) {
	authCtx := GetAuthContext(ctx)
	if authCtx == nil {
		return nil, false
	}
	return authCtx, true
}

// RequireAuth is a helper to get auth context or return error.
func RequireAuth(ctx context.Context) (*AuthContext, error) {
	authCtx := GetAuthContext(ctx)
	if authCtx == nil {
		return nil, ErrAccessDenied
	}
	return authCtx, nil
}
