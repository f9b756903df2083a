package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContinuationTokenRoundTrip(t *testing.T) {
	cases := []string{"", "a", "some/nested/key.txt", "key with spaces"}
	for _, key := range cases {
		token := encodeContinuationToken(key)
		decoded, err := decodeContinuationToken(token)
		require.NoError(t, err)
		require.Equal(t, key, decoded)
	}
}

func TestDecodeContinuationToken_Invalid(t *testing.T) {
	_, err := decodeContinuationToken("not-valid-base64!!!")
	require.Error(t, err)
}
