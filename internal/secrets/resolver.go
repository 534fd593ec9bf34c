package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	pkgsecrets "github.com/redstone-finance/solana-connector/pkg/secrets"
)

// Resolver resolves named secrets from a Provider and caches the parsed result.
// It is generic over the parsed type so signer keys and any future secret share
// the same lookup path.
type Resolver[T any] struct {
	logger   *zap.Logger
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[T]
}

// NewResolver constructs a resolver. cache may be nil to disable caching.
func NewResolver[T any](logger *zap.Logger, provider pkgsecrets.Provider, cache *pkgsecrets.Cache[T]) *Resolver[T] {
	return &Resolver[T]{logger: logger, provider: provider, cache: cache}
}

// Resolve fetches secret name, parses it with parse and caches the result.
func (r *Resolver[T]) Resolve(ctx context.Context, name string, parse func(map[string]string) (T, error)) (T, error) {
	load := func() (T, error) {
		var zero T
		raw, err := r.provider.GetSecret(ctx, name)
		if err != nil {
			r.logger.Warn("aws.secret_fetch_failed", zap.String("key", name), zap.Error(err))
			return zero, fmt.Errorf("resolve secret %q: %w", name, err)
		}
		v, err := parse(raw)
		if err != nil {
			return zero, fmt.Errorf("parse secret %q: %w", name, err)
		}
		r.logger.Info("aws.secret_resolved", zap.String("key", name))
		return v, nil
	}

	if r.cache == nil {
		return load()
	}
	v, _, err := r.cache.GetOrLoad(name, load)
	return v, err
}
