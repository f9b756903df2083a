package dispatch

import "encoding/base64"

// encodeContinuationToken and decodeContinuationToken implement
// ListObjectsV2's opaque continuation-token as a base64 encoding of the
// last returned key, per SPEC_FULL §4.3's listing semantics.
func encodeContinuationToken(lastKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(lastKey))
}

func decodeContinuationToken(token string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
