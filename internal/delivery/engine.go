package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Path selects how a signed transaction reaches the ledger.
type Path string

const (
	PathRPC   Path = "rpc"
	PathRelay Path = "relay"
)

// ParsePath validates a configured delivery path.
func ParsePath(s string) (Path, error) {
	switch p := Path(s); p {
	case PathRPC, PathRelay:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPath, s)
	}
}

// RPC is the subset of *rpc.Client the engine needs.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendRawTransactionWithOpts(ctx context.Context, raw []byte, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

// SignedTransaction is a serialized transaction together with the validity
// window of the blockhash it was signed against.
type SignedTransaction struct {
	Tx                   *solana.Transaction
	Raw                  []byte
	Signature            solana.Signature
	LastValidBlockHeight uint64
}

// Options tunes confirmation on the primary path.
type Options struct {
	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

func DefaultOptions() Options {
	return Options{
		Commitment:     rpc.CommitmentConfirmed,
		ConfirmTimeout: 35 * time.Second,
		PollInterval:   500 * time.Millisecond,
	}
}

// Engine builds, signs and submits transactions.
type Engine struct {
	logger *zap.Logger
	rpc    RPC
	relay  *Relay
	opts   Options
}

// NewEngine creates an Engine. relay may be nil when only the rpc path is used.
func NewEngine(logger *zap.Logger, client RPC, relay *Relay, opts Options) *Engine {
	def := DefaultOptions()
	if opts.Commitment == "" {
		opts.Commitment = def.Commitment
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = def.ConfirmTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	return &Engine{logger: logger, rpc: client, relay: relay, opts: opts}
}

// BuildSignedTransaction fetches a fresh blockhash and signs a transaction paying
// from signer. The blockhash is never cached between calls.
func (e *Engine) BuildSignedTransaction(
	ctx context.Context,
	signer solana.PrivateKey,
	instructions ...solana.Instruction,
) (*SignedTransaction, error) {
	recent, err := e.rpc.GetLatestBlockhash(ctx, e.opts.Commitment)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}
	if recent == nil || recent.Value == nil {
		return nil, errors.New("get latest blockhash: empty result")
	}

	payer := signer.PublicKey()
	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if payer.Equals(key) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	return &SignedTransaction{
		Tx:                   tx,
		Raw:                  raw,
		Signature:            tx.Signatures[0],
		LastValidBlockHeight: recent.Value.LastValidBlockHeight,
	}, nil
}

// Send submits stx on the given path and returns the signature reported by it.
// The relay may legitimately return an empty signature.
func (e *Engine) Send(ctx context.Context, path Path, stx *SignedTransaction) (string, error) {
	switch path {
	case PathRPC:
		sig, err := e.Submit(ctx, stx)
		if err != nil {
			return "", err
		}
		return sig.String(), nil
	case PathRelay:
		if e.relay == nil {
			return "", errors.New("relay path not configured")
		}
		return e.relay.SubmitViaRelay(ctx, stx.Raw)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
}

// Submit broadcasts through the RPC endpoint and blocks until the configured
// commitment is reached. Failures are returned as-is; nothing is retried here.
func (e *Engine) Submit(ctx context.Context, stx *SignedTransaction) (solana.Signature, error) {
	sig, err := e.rpc.SendRawTransactionWithOpts(ctx, stx.Raw, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: e.opts.Commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	e.logger.Debug("delivery.sent", zap.String("signature", sig.String()))

	if err := e.confirm(ctx, sig, stx.LastValidBlockHeight); err != nil {
		return sig, err
	}
	return sig, nil
}

func (e *Engine) confirm(ctx context.Context, sig solana.Signature, lastValid uint64) error {
	confirmCtx, cancel := context.WithTimeout(ctx, e.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-confirmCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %s after %s", ErrConfirmationTimeout, sig, e.opts.ConfirmTimeout)
		case <-ticker.C:
		}

		res, err := e.rpc.GetSignatureStatuses(confirmCtx, false, sig)
		if err != nil {
			e.logger.Debug("delivery.status_failed", zap.String("signature", sig.String()), zap.Error(err))
			continue
		}
		if res != nil && len(res.Value) > 0 && res.Value[0] != nil {
			status := res.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, sig, status.Err)
			}
			if reached(status.ConfirmationStatus, e.opts.Commitment) {
				return nil
			}
		}

		if lastValid == 0 {
			continue
		}
		height, err := e.rpc.GetBlockHeight(confirmCtx, e.opts.Commitment)
		if err != nil {
			continue
		}
		if height > lastValid {
			return fmt.Errorf("%w: %s: block height %d > %d", ErrBlockhashExpired, sig, height, lastValid)
		}
	}
}

var commitmentRank = map[string]int{
	string(rpc.CommitmentProcessed): 1,
	string(rpc.CommitmentConfirmed): 2,
	string(rpc.CommitmentFinalized): 3,
}

// reached reports whether a status satisfies the wanted commitment.
func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	got, ok := commitmentRank[string(status)]
	if !ok {
		return false
	}
	w, ok := commitmentRank[string(want)]
	if !ok {
		w = commitmentRank[string(rpc.CommitmentConfirmed)]
	}
	return got >= w
}
