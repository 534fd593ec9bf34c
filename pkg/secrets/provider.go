package secrets

import "context"

// Provider fetches secrets stored as flat JSON objects.
type Provider interface {
	// GetSecret retrieves a secret by name and returns its key-value map.
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}
