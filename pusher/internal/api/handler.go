package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/internal/pusher"
	"github.com/redstone-finance/solana-connector/internal/redstone"
	"github.com/redstone-finance/solana-connector/internal/store"
	"github.com/redstone-finance/solana-connector/pkg/model"
)

// priceDecimals is the fixed-point scale of RedStone values.
const priceDecimals = 8

// PushService runs a single push attempt.
type PushService interface {
	Push(ctx context.Context, feedID string, trigger pusher.Trigger) (*model.PushAttempt, error)
}

// PriceReader reads the on-chain price of a feed.
type PriceReader interface {
	GetPrice(ctx context.Context, feedID string) (redstone.PriceData, error)
}

// PushHistory looks up recorded attempts.
type PushHistory interface {
	LastPush(ctx context.Context, feedID string) (*model.PushAttempt, error)
	RecentPushes(ctx context.Context, feedID string, limit int) ([]model.PushAttempt, error)
}

// PushResponse is returned by the manual trigger.
type PushResponse struct {
	FeedID    string `json:"feedId"`
	AttemptID string `json:"attemptId"`
	Path      string `json:"path"`
	Signature string `json:"signature"`
	Stage     string `json:"stage,omitempty"`
	ErrorMsg  string `json:"error,omitempty"`
}

// PriceResponse is the decoded on-chain price.
type PriceResponse struct {
	FeedID    string `json:"feedId"`
	Value     string `json:"value"`
	Timestamp string `json:"timestamp"`
	Layout    string `json:"layout"`
	Price     string `json:"price"`
}

// PushHandler serves the pusher HTTP API.
type PushHandler struct {
	logger  *zap.Logger
	service PushService
	reader  PriceReader
	history PushHistory
	feeds   map[string]struct{}
}

// NewPushHandler creates a handler. history may be nil when no store is
// configured; an empty feeds list allows any feed id.
func NewPushHandler(logger *zap.Logger, service PushService, reader PriceReader, history PushHistory, feeds []string) *PushHandler {
	allowed := make(map[string]struct{}, len(feeds))
	for _, f := range feeds {
		allowed[f] = struct{}{}
	}
	return &PushHandler{
		logger:  logger,
		service: service,
		reader:  reader,
		history: history,
		feeds:   allowed,
	}
}

func (h *PushHandler) known(feedID string) bool {
	if len(h.feeds) == 0 {
		return true
	}
	_, ok := h.feeds[feedID]
	return ok
}

// Push triggers one push for the feed in the path.
func (h *PushHandler) Push(c *fiber.Ctx) error {
	feedID := c.Params("feedId")
	if !h.known(feedID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown feed " + feedID})
	}

	h.logger.Info("api.push", zap.String("feed", feedID))
	attempt, err := h.service.Push(c.Context(), feedID, pusher.TriggerManual)
	if attempt == nil {
		attempt = &model.PushAttempt{FeedID: feedID}
	}
	resp := PushResponse{
		FeedID:    feedID,
		AttemptID: attempt.ID.String(),
		Path:      attempt.Path,
		Signature: attempt.Signature,
	}
	if err != nil {
		resp.Stage = string(pusher.StageOf(err))
		resp.ErrorMsg = err.Error()
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// Price returns the decoded price account of a feed.
func (h *PushHandler) Price(c *fiber.Ctx) error {
	feedID := c.Params("feedId")

	pd, err := h.reader.GetPrice(c.Context(), feedID)
	switch {
	case errors.Is(err, pusher.ErrPriceAccountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, redstone.ErrFeedIDTooLong):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		h.logger.Error("api.price_failed", zap.String("feed", feedID), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	price, err := pd.Scaled(priceDecimals)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(PriceResponse{
		FeedID:    pd.FeedID,
		Value:     pd.Value,
		Timestamp: pd.Timestamp,
		Layout:    pd.Layout.String(),
		Price:     price.String(),
	})
}

// LastPush returns the latest recorded attempt of a feed.
func (h *PushHandler) LastPush(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "push history is not configured"})
	}
	feedID := c.Params("feedId")

	attempt, err := h.history.LastPush(c.Context(), feedID)
	if err != nil {
		h.logger.Error("api.last_push_failed", zap.String("feed", feedID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if attempt == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no push recorded for " + feedID})
	}
	return c.JSON(attempt)
}

// RecentPushes lists recorded attempts of a feed, newest first.
func (h *PushHandler) RecentPushes(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "push history is not configured"})
	}
	feedID := c.Params("feedId")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be between 1 and 500"})
		}
		limit = n
	}

	attempts, err := h.history.RecentPushes(c.Context(), feedID, limit)
	if errors.Is(err, store.ErrHistoryUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		h.logger.Error("api.recent_pushes_failed", zap.String("feed", feedID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if attempts == nil {
		attempts = []model.PushAttempt{}
	}
	return c.JSON(attempts)
}
