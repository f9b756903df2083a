package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prn-tf/s3gate/internal/domain"
	"github.com/prn-tf/s3gate/internal/storage"
)

func TestParseRange(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    *storage.ByteRange
		wantErr error
	}{
		{"empty header", "", nil, nil},
		{"closed range", "bytes=0-499", &storage.ByteRange{Start: 0, End: 499}, nil},
		{"open-ended range", "bytes=500-", &storage.ByteRange{Start: 500, End: -1}, nil},
		{"suffix range", "bytes=-500", &storage.ByteRange{Start: -1, End: 500}, nil},
		{"missing prefix", "0-499", nil, domain.ErrInvalidRange},
		{"malformed spec", "bytes=abc", nil, domain.ErrInvalidRange},
		{"end before start", "bytes=500-0", nil, domain.ErrInvalidRange},
		{"negative suffix length", "bytes=-abc", nil, domain.ErrInvalidRange},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseRange(tc.header)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
