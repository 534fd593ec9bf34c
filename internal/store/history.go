package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/pkg/model"
)

// DBExecutor is the subset of pgxpool.Pool the history writer needs.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS oracle;
	CREATE TABLE IF NOT EXISTS oracle.push_attempt (
		id            UUID PRIMARY KEY,
		feed_id       TEXT        NOT NULL,
		price_account TEXT        NOT NULL DEFAULT '',
		path          TEXT        NOT NULL,
		signature     TEXT        NOT NULL DEFAULT '',
		payload_size  INTEGER     NOT NULL DEFAULT 0,
		status        TEXT        NOT NULL,
		stage         TEXT        NOT NULL DEFAULT '',
		error         TEXT        NOT NULL DEFAULT '',
		trigger       TEXT        NOT NULL DEFAULT '',
		started_at    TIMESTAMPTZ NOT NULL,
		duration_ms   BIGINT      NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS push_attempt_feed_started_idx
		ON oracle.push_attempt (feed_id, started_at DESC);
`

const insertPushSQL = `
	INSERT INTO oracle.push_attempt (
		id, feed_id, price_account, path, signature, payload_size,
		status, stage, error, trigger, started_at, duration_ms
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO NOTHING
`

const selectRecentSQL = `
	SELECT id, feed_id, price_account, path, signature, payload_size,
	       status, stage, error, trigger, started_at, duration_ms
	FROM oracle.push_attempt
	WHERE feed_id = $1
	ORDER BY started_at DESC
	LIMIT $2
`

// HistoryWriter appends push attempts to oracle.push_attempt.
type HistoryWriter struct {
	db     DBExecutor
	logger *zap.Logger
}

func NewHistoryWriter(db DBExecutor, logger *zap.Logger) *HistoryWriter {
	return &HistoryWriter{db: db, logger: logger}
}

// EnsureSchema creates the history table when missing.
func (w *HistoryWriter) EnsureSchema(ctx context.Context) error {
	_, err := w.db.Exec(ctx, schemaSQL)
	return err
}

// Insert writes one attempt. Re-inserting the same attempt id is a no-op.
func (w *HistoryWriter) Insert(ctx context.Context, a *model.PushAttempt) error {
	if a == nil {
		return nil
	}
	_, err := w.db.Exec(ctx, insertPushSQL,
		a.ID,
		a.FeedID,
		a.PriceAccount,
		a.Path,
		a.Signature,
		a.PayloadSize,
		string(a.Status),
		a.Stage,
		a.Error,
		a.Trigger,
		a.StartedAt,
		a.Duration.Milliseconds(),
	)
	if err != nil {
		w.logger.Error("store.pg.insert_push_failed",
			zap.String("attempt_id", a.ID.String()),
			zap.String("feed", a.FeedID),
			zap.Error(err))
		return err
	}
	w.logger.Debug("store.pg.push_recorded",
		zap.String("attempt_id", a.ID.String()),
		zap.String("feed", a.FeedID),
		zap.String("status", string(a.Status)))
	return nil
}
