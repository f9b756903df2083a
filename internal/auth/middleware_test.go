package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prn-tf/s3gate/internal/domain"
)

type fakeACLChecker struct {
	acl *domain.ACL
	err error
}

func (f fakeACLChecker) GetBucketACL(ctx context.Context, bucketName string) (*domain.ACL, error) {
	return f.acl, f.err
}

func TestExtractBucketName(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/", ""},
		{"/bucket", "bucket"},
		{"/bucket/", "bucket"},
		{"/bucket/key", "bucket"},
		{"/bucket/nested/key.txt", "bucket"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, extractBucketName(tc.path), "path %q", tc.path)
	}
}

func TestIsReadOperation(t *testing.T) {
	require.True(t, isReadOperation(http.MethodGet))
	require.True(t, isReadOperation(http.MethodHead))
	require.False(t, isReadOperation(http.MethodPut))
	require.False(t, isReadOperation(http.MethodPost))
	require.False(t, isReadOperation(http.MethodDelete))
}

func TestAclAllowsIP(t *testing.T) {
	t.Run("no restriction when AllowedCIDRs is empty", func(t *testing.T) {
		acl := &domain.ACL{}
		require.True(t, aclAllowsIP(acl, "203.0.113.5"))
	})

	t.Run("allows IP within an allowed CIDR", func(t *testing.T) {
		acl := &domain.ACL{AllowedCIDRs: []string{"10.0.0.0/8", "192.168.1.0/24"}}
		require.True(t, aclAllowsIP(acl, "192.168.1.42"))
		require.True(t, aclAllowsIP(acl, "10.1.2.3"))
	})

	t.Run("denies IP outside all allowed CIDRs", func(t *testing.T) {
		acl := &domain.ACL{AllowedCIDRs: []string{"10.0.0.0/8"}}
		require.False(t, aclAllowsIP(acl, "203.0.113.5"))
	})

	t.Run("unparseable IP is denied", func(t *testing.T) {
		acl := &domain.ACL{AllowedCIDRs: []string{"10.0.0.0/8"}}
		require.False(t, aclAllowsIP(acl, "not-an-ip"))
	})

	t.Run("malformed CIDR entries are skipped, not fatal", func(t *testing.T) {
		acl := &domain.ACL{AllowedCIDRs: []string{"garbage", "10.0.0.0/8"}}
		require.True(t, aclAllowsIP(acl, "10.1.2.3"))
	})
}

func TestAnonymousAllowed(t *testing.T) {
	t.Run("nil ACL denies", func(t *testing.T) {
		require.False(t, anonymousAllowed(nil, http.MethodGet, "203.0.113.5"))
	})

	t.Run("non-public ACL denies", func(t *testing.T) {
		acl := &domain.ACL{Public: false}
		require.False(t, anonymousAllowed(acl, http.MethodGet, "203.0.113.5"))
	})

	t.Run("public ACL allows reads", func(t *testing.T) {
		acl := &domain.ACL{Public: true}
		require.True(t, anonymousAllowed(acl, http.MethodGet, "203.0.113.5"))
		require.True(t, anonymousAllowed(acl, http.MethodHead, "203.0.113.5"))
	})

	t.Run("public ACL denies writes without PublicWrite", func(t *testing.T) {
		acl := &domain.ACL{Public: true}
		require.False(t, anonymousAllowed(acl, http.MethodPut, "203.0.113.5"))
	})

	t.Run("public ACL with PublicWrite allows writes", func(t *testing.T) {
		acl := &domain.ACL{Public: true, PublicWrite: true}
		require.True(t, anonymousAllowed(acl, http.MethodPut, "203.0.113.5"))
	})

	t.Run("CIDR restriction applies to reads and writes alike", func(t *testing.T) {
		acl := &domain.ACL{Public: true, PublicWrite: true, AllowedCIDRs: []string{"10.0.0.0/8"}}
		require.False(t, anonymousAllowed(acl, http.MethodGet, "203.0.113.5"))
		require.True(t, anonymousAllowed(acl, http.MethodGet, "10.1.2.3"))
	})
}

// TestBucketACLAllowsIP covers the CIDR allowlist enforcement applied to
// already-authenticated (signed/presigned) requests, not just anonymous
// ones: a bucket's AllowedCIDRs restriction is a property of the bucket,
// independent of how the caller proved their identity.
func TestBucketACLAllowsIP(t *testing.T) {
	req := func(ip string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/mybucket/key", nil)
		r.RemoteAddr = ip + ":54321"
		return r
	}

	t.Run("no checker configured lets everything through", func(t *testing.T) {
		cfg := Config{}
		require.True(t, cfg.bucketACLAllowsIP(req("203.0.113.5")))
	})

	t.Run("no resolvable bucket lets everything through", func(t *testing.T) {
		cfg := Config{BucketACLChecker: fakeACLChecker{acl: &domain.ACL{AllowedCIDRs: []string{"10.0.0.0/8"}}}}
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "203.0.113.5:1234"
		require.True(t, cfg.bucketACLAllowsIP(r))
	})

	t.Run("bucket lookup failure lets the request through", func(t *testing.T) {
		cfg := Config{BucketACLChecker: fakeACLChecker{err: domain.ErrBucketNotFound}}
		require.True(t, cfg.bucketACLAllowsIP(req("203.0.113.5")))
	})

	t.Run("denies a signed request outside the bucket's AllowedCIDRs", func(t *testing.T) {
		cfg := Config{BucketACLChecker: fakeACLChecker{acl: &domain.ACL{AllowedCIDRs: []string{"10.0.0.0/8"}}}}
		require.False(t, cfg.bucketACLAllowsIP(req("203.0.113.5")))
	})

	t.Run("allows a signed request inside the bucket's AllowedCIDRs", func(t *testing.T) {
		cfg := Config{BucketACLChecker: fakeACLChecker{acl: &domain.ACL{AllowedCIDRs: []string{"10.0.0.0/8"}}}}
		require.True(t, cfg.bucketACLAllowsIP(req("10.1.2.3")))
	})
}

// TestWriteAuthError covers SPEC_FULL §6's requirement that every error
// body, including ones the auth layer rejects before dispatch ever runs,
// carries a <Resource> and <RequestId>.
func TestWriteAuthError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/mybucket/key", nil)
	ctx := context.WithValue(r.Context(), RequestIDContextKey, "req-123")
	r = r.WithContext(ctx)

	w := httptest.NewRecorder()
	writeAuthError(w, r, ErrAccessDenied)

	body := w.Body.String()
	require.Contains(t, body, "<Resource>/mybucket/key</Resource>")
	require.Contains(t, body, "<RequestId>req-123</RequestId>")
	require.Contains(t, body, "<Code>AccessDenied</Code>")
}
