package storage

import (
	"encoding/hex"
	"strings"
)

func trimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
