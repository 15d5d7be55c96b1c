package config

import "context"

// SecretProvider resolves secret identifiers (SSM paths, or env var names
// locally) to plaintext values. Keys that cannot be found are left out of
// the returned map.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
