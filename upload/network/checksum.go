package network

import (
	"crypto/md5" //nolint:gosec
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

func normalizeETag(etag string) string {
	return strings.ToLower(strings.Trim(etag, `"`))
}

func base64ToHex(checksum string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(checksum)
	if err != nil {
		return "", fmt.Errorf("base64 decode checksum: %w", err)
	}
	return hex.EncodeToString(decoded), nil
}

// contentMD5 is the Content-MD5 header value of data.
func contentMD5(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec
	return base64.StdEncoding.EncodeToString(sum[:])
}

// checksumSHA256 is the x-amz-checksum-sha256 header value of data.
func checksumSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
