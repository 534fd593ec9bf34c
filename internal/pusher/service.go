package pusher

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/internal/delivery"
	"github.com/redstone-finance/solana-connector/internal/gateway"
	"github.com/redstone-finance/solana-connector/internal/metrics"
	"github.com/redstone-finance/solana-connector/internal/redstone"
	"github.com/redstone-finance/solana-connector/pkg/model"
)

// Trigger records what started a push.
type Trigger string

const (
	TriggerScheduler Trigger = "scheduler"
	TriggerManual    Trigger = "manual"
	TriggerCLI       Trigger = "cli"
)

// PayloadFetcher obtains a signed price payload.
type PayloadFetcher interface {
	FetchPayload(ctx context.Context, req gateway.Request) ([]byte, error)
}

// Deliverer signs and submits transactions.
type Deliverer interface {
	BuildSignedTransaction(ctx context.Context, signer solana.PrivateKey, instructions ...solana.Instruction) (*delivery.SignedTransaction, error)
	Send(ctx context.Context, path delivery.Path, stx *delivery.SignedTransaction) (string, error)
}

// Recorder persists push attempts.
type Recorder interface {
	RecordPush(ctx context.Context, attempt *model.PushAttempt) error
}

// EventPublisher emits push attempts as events.
type EventPublisher interface {
	PublishPush(ctx context.Context, attempt *model.PushAttempt) error
}

// Service runs the push flow: fetch → encode → derive → sign → submit.
// Each call recomputes everything; concurrent calls are not serialized.
type Service struct {
	logger  *zap.Logger
	program redstone.ProgramConfig
	feeds   []string
	path    delivery.Path
	signer  solana.PrivateKey

	fetcher   PayloadFetcher
	deliverer Deliverer
	recorder  Recorder
	events    EventPublisher
	reader    *Reader

	now func() time.Time
}

// Option configures optional collaborators.
type Option func(*Service)

func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

func WithEventPublisher(p EventPublisher) Option { return func(s *Service) { s.events = p } }

// WithReader lets successful pushes invalidate the reader's cached price.
func WithReader(r *Reader) Option { return func(s *Service) { s.reader = r } }

func NewService(
	logger *zap.Logger,
	program redstone.ProgramConfig,
	feeds []string,
	path delivery.Path,
	signer solana.PrivateKey,
	fetcher PayloadFetcher,
	deliverer Deliverer,
	opts ...Option,
) *Service {
	s := &Service{
		logger:    logger,
		program:   program,
		feeds:     feeds,
		path:      path,
		signer:    signer,
		fetcher:   fetcher,
		deliverer: deliverer,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Feeds returns the configured feed ids.
func (s *Service) Feeds() []string { return s.feeds }

// Signer returns the public key paying for pushes.
func (s *Service) Signer() solana.PublicKey { return s.signer.PublicKey() }

// PushAll pushes every configured feed in order and joins the failures.
func (s *Service) PushAll(ctx context.Context, trigger Trigger) error {
	var errs []error
	for _, feed := range s.feeds {
		if _, err := s.Push(ctx, feed, trigger); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Push performs one attempt for feedID. The returned attempt is non-nil even on
// failure; the error is a *StageError.
func (s *Service) Push(ctx context.Context, feedID string, trigger Trigger) (*model.PushAttempt, error) {
	start := time.Now()
	attempt := &model.PushAttempt{
		ID:        uuid.New(),
		FeedID:    feedID,
		Path:      string(s.path),
		Trigger:   string(trigger),
		StartedAt: s.now().UTC(),
	}

	err := s.run(ctx, attempt)
	attempt.Duration = s.now().Sub(attempt.StartedAt)

	if err != nil {
		attempt.Status = model.PushStatusFailed
		attempt.Stage = string(StageOf(err))
		attempt.Error = err.Error()
		metrics.IncStageFailure(feedID, attempt.Stage)
		s.logger.Error("push.failed",
			zap.String("attempt_id", attempt.ID.String()),
			zap.String("feed", feedID),
			zap.String("stage", attempt.Stage),
			zap.Time("attempted_at", attempt.StartedAt),
			zap.Error(err))
	} else {
		attempt.Status = model.PushStatusSubmitted
		metrics.LastSuccess.WithLabelValues(feedID).SetToCurrentTime()
		if s.reader != nil {
			s.reader.Invalidate(feedID)
		}
		s.logger.Info("push.submitted",
			zap.String("attempt_id", attempt.ID.String()),
			zap.String("feed", feedID),
			zap.String("path", attempt.Path),
			zap.String("signature", attempt.Signature),
			zap.Int64("attempted_at_ms", attempt.StartedAt.UnixMilli()),
			zap.Duration("duration", attempt.Duration))
	}
	metrics.IncPush(feedID, attempt.Path, string(attempt.Status))
	metrics.ObserveDuration(metrics.PushDuration, start, feedID, attempt.Path)

	s.record(ctx, attempt)
	return attempt, err
}

func (s *Service) run(ctx context.Context, attempt *model.PushAttempt) error {
	feedID := attempt.FeedID
	fail := func(stage Stage, err error) error {
		return &StageError{Stage: stage, FeedID: feedID, Err: err}
	}

	payload, err := s.fetcher.FetchPayload(ctx, gateway.Request{
		DataPackagesIDs:    []string{feedID},
		DataServiceID:      s.program.DataServiceID,
		UniqueSignersCount: s.program.UniqueSignersCount,
	})
	if err != nil {
		return fail(StageFetch, err)
	}
	attempt.PayloadSize = len(payload)
	metrics.PayloadBytes.WithLabelValues(feedID).Observe(float64(len(payload)))

	data, err := redstone.EncodeInstruction(s.program.Discriminator, feedID, payload)
	if err != nil {
		return fail(StageEncode, err)
	}

	priceAccount, _, err := redstone.DerivePriceAccount(s.program.ProgramID, feedID)
	if err != nil {
		return fail(StageDerive, err)
	}
	attempt.PriceAccount = priceAccount.String()

	ix := redstone.NewPushInstruction(s.program, s.signer.PublicKey(), priceAccount, data)
	stx, err := s.deliverer.BuildSignedTransaction(ctx, s.signer, ix)
	if err != nil {
		return fail(StageSign, err)
	}

	sig, err := s.deliverer.Send(ctx, s.path, stx)
	if err != nil {
		return fail(StageSubmit, err)
	}
	attempt.Signature = sig
	return nil
}

// record stores and publishes the attempt. Failures are logged only.
func (s *Service) record(ctx context.Context, attempt *model.PushAttempt) {
	if s.recorder != nil {
		if err := s.recorder.RecordPush(ctx, attempt); err != nil {
			s.logger.Warn("push.record_failed", zap.String("attempt_id", attempt.ID.String()), zap.Error(err))
		}
	}
	if s.events != nil {
		if err := s.events.PublishPush(ctx, attempt); err != nil {
			s.logger.Warn("push.publish_failed", zap.String("attempt_id", attempt.ID.String()), zap.Error(err))
		}
	}
}
