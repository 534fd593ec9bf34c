package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/pkg/model"
)

// ErrHistoryUnavailable is returned by history queries when no Postgres is configured.
var ErrHistoryUnavailable = errors.New("push history unavailable: postgres not configured")

// Store persists push outcomes: the latest attempt per feed in Redis and the
// full history in Postgres when configured.
type Store interface {
	RecordPush(ctx context.Context, attempt *model.PushAttempt) error
	LastPush(ctx context.Context, feedID string) (*model.PushAttempt, error)
	RecentPushes(ctx context.Context, feedID string, limit int) ([]model.PushAttempt, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

type HybridStore struct {
	redis   *redis.Client
	PG      *pgxpool.Pool
	history *HistoryWriter
	lastTTL time.Duration
	logger  *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// Options configures NewHybrid. PGURL may be empty to run Redis-only.
type Options struct {
	RedisAddr string
	RedisDB   int
	RedisPass string
	PGURL     string
	PGPool    PGPoolConfig
	// LastPushTTL bounds how long the latest attempt is kept; zero keeps it forever.
	LastPushTTL time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store.
func NewHybrid(ctx context.Context, opts Options, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		DB:       opts.RedisDB,
		Password: opts.RedisPass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	s := &HybridStore{redis: rdb, lastTTL: opts.LastPushTTL, logger: logger}
	if opts.PGURL == "" {
		return s, nil
	}

	pool, err := newPGPool(ctx, opts.PGURL, opts.PGPool)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	s.PG = pool
	s.history = NewHistoryWriter(pool, logger)
	if err := s.history.EnsureSchema(ctx); err != nil {
		s.logger.Warn("store.pg.schema_failed", zap.Error(err))
	}
	return s, nil
}

func newPGPool(ctx context.Context, url string, pc PGPoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	if pc.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pc.HealthCheckPeriod
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pool, nil
}

func lastPushKey(feedID string) string {
	return "pusher:last_push:" + feedID
}

// RecordPush caches the attempt as the feed's latest and appends it to history.
// A Postgres failure is returned after the Redis write has already happened.
func (s *HybridStore) RecordPush(ctx context.Context, attempt *model.PushAttempt) error {
	if attempt == nil {
		return nil
	}
	data, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, lastPushKey(attempt.FeedID), data, s.lastTTL).Err(); err != nil {
		s.logger.Error("store.redis.set_failed", zap.String("feed", attempt.FeedID), zap.Error(err))
		return fmt.Errorf("cache last push: %w", err)
	}
	if s.history != nil {
		return s.history.Insert(ctx, attempt)
	}
	return nil
}

// LastPush returns the latest attempt for feedID, or nil when none was recorded.
func (s *HybridStore) LastPush(ctx context.Context, feedID string) (*model.PushAttempt, error) {
	data, err := s.redis.Get(ctx, lastPushKey(feedID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var a model.PushAttempt
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// RecentPushes lists the newest attempts for feedID from Postgres.
func (s *HybridStore) RecentPushes(ctx context.Context, feedID string, limit int) ([]model.PushAttempt, error) {
	if s.PG == nil {
		return nil, ErrHistoryUnavailable
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.PG.Query(ctx, selectRecentSQL, feedID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PushAttempt
	for rows.Next() {
		var a model.PushAttempt
		var durationMs int64
		var status string
		if err := rows.Scan(&a.ID, &a.FeedID, &a.PriceAccount, &a.Path, &a.Signature,
			&a.PayloadSize, &status, &a.Stage, &a.Error, &a.Trigger, &a.StartedAt, &durationMs); err != nil {
			return nil, err
		}
		a.Status = model.PushStatus(status)
		a.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
