package keytemplate

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, path, content string) []byte {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sum := sha256.Sum256([]byte(content))
	return sum[:]
}

func combined(checksums ...[]byte) string {
	hash := sha256.New()
	for _, c := range checksums {
		hash.Write(c)
	}
	return hex.EncodeToString(hash.Sum(nil))
}

type envRepository struct {
	envVars map[string]string
}

func (repo envRepository) Get(key string) string {
	return repo.envVars[key]
}

func (repo envRepository) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo envRepository) Unset(key string) error {
	delete(repo.envVars, key)
	return nil
}

func (repo envRepository) List() []string {
	var values []string
	for k, v := range repo.envVars {
		values = append(values, k+"="+v)
	}
	return values
}
