package dispatch

import (
	"strconv"
	"strings"

	"github.com/prn-tf/s3gate/internal/domain"
	"github.com/prn-tf/s3gate/internal/storage"
)

// parseRange parses an HTTP Range header of the form "bytes=a-b",
// "bytes=a-" (open), or "bytes=-N" (suffix) into a storage.ByteRange. An
// empty header yields (nil, nil): no range requested.
func parseRange(header string) (*storage.ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil, domain.ErrInvalidRange
	}
	spec := strings.TrimPrefix(header, prefix)
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil, domain.ErrInvalidRange
	}

	if parts[0] == "" {
		// Suffix range: bytes=-N
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n < 0 {
			return nil, domain.ErrInvalidRange
		}
		return &storage.ByteRange{Start: -1, End: n}, nil
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return nil, domain.ErrInvalidRange
	}
	if parts[1] == "" {
		return &storage.ByteRange{Start: start, End: -1}, nil
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return nil, domain.ErrInvalidRange
	}
	return &storage.ByteRange{Start: start, End: end}, nil
}
