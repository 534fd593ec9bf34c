package pusher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/internal/metrics"
	"github.com/redstone-finance/solana-connector/internal/redstone"
	"github.com/redstone-finance/solana-connector/pkg/secrets"
)

// AccountReader is the subset of *rpc.Client used to read price accounts.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// Reader reads and decodes on-chain price accounts.
type Reader struct {
	logger  *zap.Logger
	client  AccountReader
	program redstone.ProgramConfig
	cache   *secrets.Cache[redstone.PriceData]
}

// NewReader creates a Reader. A non-positive ttl disables caching.
func NewReader(logger *zap.Logger, client AccountReader, program redstone.ProgramConfig, ttl time.Duration) *Reader {
	return &Reader{
		logger:  logger,
		client:  client,
		program: program,
		cache:   secrets.NewCache[redstone.PriceData](ttl),
	}
}

// GetPrice returns the decoded price account of feedID.
func (r *Reader) GetPrice(ctx context.Context, feedID string) (redstone.PriceData, error) {
	pd, hit, err := r.cache.GetOrLoad(feedID, func() (redstone.PriceData, error) {
		return r.read(ctx, feedID)
	})
	switch {
	case err != nil:
		metrics.PriceReads.WithLabelValues(feedID, "error").Inc()
		return redstone.PriceData{}, err
	case hit:
		metrics.PriceReads.WithLabelValues(feedID, "cache").Inc()
	default:
		metrics.PriceReads.WithLabelValues(feedID, "rpc").Inc()
	}
	return pd, nil
}

// Invalidate drops the cached price of feedID.
func (r *Reader) Invalidate(feedID string) {
	r.cache.Bust(feedID)
}

func (r *Reader) read(ctx context.Context, feedID string) (redstone.PriceData, error) {
	address, _, err := redstone.DerivePriceAccount(r.program.ProgramID, feedID)
	if err != nil {
		return redstone.PriceData{}, err
	}

	res, err := r.client.GetAccountInfo(ctx, address)
	if errors.Is(err, rpc.ErrNotFound) {
		return redstone.PriceData{}, fmt.Errorf("%w: %s (%s)", ErrPriceAccountNotFound, feedID, address)
	}
	if err != nil {
		return redstone.PriceData{}, fmt.Errorf("get account %s: %w", address, err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return redstone.PriceData{}, fmt.Errorf("%w: %s (%s)", ErrPriceAccountNotFound, feedID, address)
	}

	pd, err := redstone.DecodePriceAccount(res.Value.Data.GetBinary())
	if err != nil {
		return redstone.PriceData{}, fmt.Errorf("decode account %s: %w", address, err)
	}
	r.logger.Debug("price.read",
		zap.String("feed", feedID),
		zap.String("account", address.String()),
		zap.String("layout", pd.Layout.String()),
		zap.String("value", pd.Value))
	return pd, nil
}
