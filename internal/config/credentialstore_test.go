package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prn-tf/s3gate/internal/domain"
)

func TestCredentialStore_GetActiveAccessKey(t *testing.T) {
	set := domain.NewCredentialSet([]domain.Credential{
		{AccessKeyID: "AKID1", SecretAccessKey: "secret1"},
	})
	store := NewCredentialStore(set)

	cred, err := store.GetActiveAccessKey(context.Background(), "AKID1")
	require.NoError(t, err)
	require.Equal(t, "secret1", cred.SecretAccessKey)

	_, err = store.GetActiveAccessKey(context.Background(), "unknown")
	require.ErrorIs(t, err, domain.ErrInvalidAccessKeyID)
}

func TestCredentialStore_Swap(t *testing.T) {
	initial := domain.NewCredentialSet([]domain.Credential{
		{AccessKeyID: "AKID1", SecretAccessKey: "secret1"},
	})
	store := NewCredentialStore(initial)

	replacement := domain.NewCredentialSet([]domain.Credential{
		{AccessKeyID: "AKID2", SecretAccessKey: "secret2"},
	})
	store.Swap(replacement)

	_, err := store.GetActiveAccessKey(context.Background(), "AKID1")
	require.ErrorIs(t, err, domain.ErrInvalidAccessKeyID)

	cred, err := store.GetActiveAccessKey(context.Background(), "AKID2")
	require.NoError(t, err)
	require.Equal(t, "secret2", cred.SecretAccessKey)
}
