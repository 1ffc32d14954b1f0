package transfer

import (
	"crypto/md5" //nolint:gosec
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DigestAlgorithm selects the checksum computed for every chunk.
// The store must be able to confirm the same checksum for an uploaded part.
type DigestAlgorithm string

const (
	// DigestMD5 matches the ETag S3 returns for a non-encrypted part.
	DigestMD5 DigestAlgorithm = "md5"
	// DigestSHA256 matches the part's additional SHA-256 checksum.
	DigestSHA256 DigestAlgorithm = "sha256"
)

// ParseDigestAlgorithm converts a user provided name into a DigestAlgorithm. An empty name means md5.
func ParseDigestAlgorithm(name string) (DigestAlgorithm, error) {
	switch DigestAlgorithm(name) {
	case "", DigestMD5:
		return DigestMD5, nil
	case DigestSHA256:
		return DigestSHA256, nil
	default:
		return "", fmt.Errorf("unknown digest algorithm: %s (supported: md5, sha256)", name)
	}
}

// Sum returns the lowercase hex digest of data.
func (a DigestAlgorithm) Sum(data []byte) string {
	switch a {
	case DigestSHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := md5.Sum(data) //nolint:gosec
		return hex.EncodeToString(sum[:])
	}
}
