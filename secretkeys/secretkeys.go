package secretkeys

import (
	"strings"

	"github.com/bitrise-io/go-utils/v2/env"
)

const (
	EnvKey    = "BITRISE_SECRET_ENV_KEY_LIST"
	separator = ","
)

// Manager reads the list of environment variables holding secrets.
type Manager interface {
	Load(envRepository env.Repository) []string
	Format(keys []string) string
	IsSecret(envRepository env.Repository, key string) bool
}

type manager struct {
}

func NewManager() Manager {
	return manager{}
}

// Load returns the secret keys, empty entries are dropped.
func (manager) Load(envRepository env.Repository) []string {
	var keys []string
	for _, key := range strings.Split(envRepository.Get(EnvKey), separator) {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func (manager) Format(keys []string) string {
	return strings.Join(keys, separator)
}

func (m manager) IsSecret(envRepository env.Repository, key string) bool {
	for _, secret := range m.Load(envRepository) {
		if secret == key {
			return true
		}
	}
	return false
}
