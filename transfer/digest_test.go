package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestAlgorithm_Sum(t *testing.T) {
	tests := []struct {
		algorithm DigestAlgorithm
		want      string
	}{
		{algorithm: DigestMD5, want: "5d41402abc4b2a76b9719d911017c592"},
		{algorithm: DigestSHA256, want: "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
	}
	for _, tt := range tests {
		t.Run(string(tt.algorithm), func(t *testing.T) {
			data := []byte("hello")

			assert.Equal(t, tt.want, tt.algorithm.Sum(data))
			assert.Equal(t, tt.algorithm.Sum(data), tt.algorithm.Sum([]byte("hello")))
		})
	}
}

func TestParseDigestAlgorithm(t *testing.T) {
	got, err := ParseDigestAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, DigestMD5, got)

	got, err = ParseDigestAlgorithm("sha256")
	require.NoError(t, err)
	assert.Equal(t, DigestSHA256, got)

	_, err = ParseDigestAlgorithm("crc32")
	assert.Error(t, err)
}
