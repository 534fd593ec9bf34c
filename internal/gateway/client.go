package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/internal/rate"
)

// Client fetches signed data packages from the RedStone oracle gateways and
// serializes them into a payload.
type Client struct {
	logger     *zap.Logger
	http       *resty.Client
	rateMgr    *rate.Manager
	urls       []string
	serializer Serializer
}

// NewClient builds a gateway client. An empty urls slice selects DefaultGatewayURLs;
// rateMgr may be nil.
func NewClient(logger *zap.Logger, urls []string, timeout time.Duration, rateMgr *rate.Manager) *Client {
	if len(urls) == 0 {
		urls = DefaultGatewayURLs
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		logger:     logger,
		http:       resty.New().SetTimeout(timeout),
		rateMgr:    rateMgr,
		urls:       urls,
		serializer: NewSerializer(),
	}
}

// FetchPayload fetches the latest packages for req, enforces the signer quorum and
// returns the serialized payload. Each gateway is tried once; the first HTTP 200 wins.
func (c *Client) FetchPayload(ctx context.Context, req Request) ([]byte, error) {
	resp, err := c.fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	packages, err := SelectPackages(resp, req.DataPackagesIDs, req.UniqueSignersCount)
	if err != nil {
		return nil, err
	}

	payload, err := c.serializer.Serialize(packages)
	if err != nil {
		return nil, fmt.Errorf("serialize payload: %w", err)
	}

	c.logger.Debug("gateway.payload_built",
		zap.Strings("feeds", req.DataPackagesIDs),
		zap.Int("packages", len(packages)),
		zap.Int("bytes", len(payload)))
	return payload, nil
}

func (c *Client) fetch(ctx context.Context, req Request) (Response, error) {
	feeds := strings.Join(req.DataPackagesIDs, ",")
	params := map[string]string{
		"dataFeedIds":        feeds,
		"dataPackagesIds":    feeds,
		"minimalSignerCount": strconv.Itoa(req.UniqueSignersCount),
	}

	var lastErr error
	for _, base := range c.urls {
		if c.rateMgr != nil {
			if err := c.rateMgr.Wait(ctx, base); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		url := fmt.Sprintf("%s/data-packages/latest/%s", strings.TrimRight(base, "/"), req.DataServiceID)
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(url)
		if err != nil {
			lastErr = err
			c.logger.Warn("gateway.request_failed", zap.String("url", url), zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.StatusCode() != http.StatusOK {
			lastErr = fmt.Errorf("status %d", resp.StatusCode())
			c.logger.Warn("gateway.bad_status", zap.String("url", url), zap.Int("status", resp.StatusCode()))
			continue
		}

		var out Response
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return nil, fmt.Errorf("decode gateway response from %s: %w", base, err)
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, lastErr)
}

// SelectPackages picks, for every feed in order, the first quorum packages with
// distinct signer addresses.
func SelectPackages(resp Response, feedIDs []string, quorum int) ([]SignedDataPackage, error) {
	if quorum < 1 {
		quorum = 1
	}

	var selected []SignedDataPackage
	for _, feed := range feedIDs {
		seen := make(map[string]struct{}, quorum)
		for _, pkg := range resp[feed] {
			if len(seen) == quorum {
				break
			}
			signer := strings.ToLower(pkg.SignerAddress)
			if signer == "" {
				continue
			}
			if _, dup := seen[signer]; dup {
				continue
			}
			seen[signer] = struct{}{}
			selected = append(selected, pkg)
		}
		if len(seen) < quorum {
			return nil, fmt.Errorf("%w: feed %s has %d, want %d", ErrInsufficientSigners, feed, len(seen), quorum)
		}
	}
	return selected, nil
}
