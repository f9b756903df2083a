package config

import (
	"context"
	"sync/atomic"

	"github.com/prn-tf/s3gate/internal/domain"
)

// CredentialStore adapts a domain.CredentialSet snapshot to
// auth.AccessKeyStore. It holds an atomically-swappable pointer so an
// admin-triggered reload (SPEC_FULL §9) can publish a fresh snapshot
// without ever mutating the one in-flight requests are using.
type CredentialStore struct {
	set atomic.Pointer[domain.CredentialSet]
}

// NewCredentialStore wraps an initial snapshot.
func NewCredentialStore(set *domain.CredentialSet) *CredentialStore {
	s := &CredentialStore{}
	s.set.Store(set)
	return s
}

// GetActiveAccessKey implements auth.AccessKeyStore.
func (s *CredentialStore) GetActiveAccessKey(ctx context.Context, accessKeyID string) (*domain.Credential, error) {
	cred := s.set.Load().Lookup(accessKeyID)
	if cred == nil {
		return nil, domain.ErrInvalidAccessKeyID
	}
	return cred, nil
}

// Swap atomically replaces the snapshot. Safe to call concurrently with
// GetActiveAccessKey; in-flight requests that already looked up a
// credential keep their own reference, unaffected by the swap.
func (s *CredentialStore) Swap(set *domain.CredentialSet) {
	s.set.Store(set)
}
