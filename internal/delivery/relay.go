package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/redstone-finance/solana-connector/internal/httpclient"
)

// DefaultRelayURL is the Jito block engine transaction endpoint.
const DefaultRelayURL = "https://mainnet.block-engine.jito.wtf/api/v1/transactions"

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Result  *string   `json:"result"`
	Error   *rpcError `json:"error"`
}

// Relay posts pre-signed transactions to an HTTP relay as JSON-RPC sendTransaction calls.
type Relay struct {
	logger *zap.Logger
	exec   *httpclient.Executor
	url    string
}

// NewRelay wraps exec, whose retry policy governs relay attempts.
func NewRelay(logger *zap.Logger, exec *httpclient.Executor, url string) *Relay {
	if url == "" {
		url = DefaultRelayURL
	}
	return &Relay{logger: logger, exec: exec, url: url}
}

// SubmitViaRelay sends raw as a base58 transaction. Non-2xx responses, transport
// failures and JSON-RPC error envelopes are retried with the executor's backoff;
// after the last attempt the last error is returned. The result may be empty when
// the relay acknowledges without a signature.
func (r *Relay) SubmitViaRelay(ctx context.Context, raw []byte) (string, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendTransaction",
		Params:  []any{base58.Encode(raw)},
	})
	if err != nil {
		return "", fmt.Errorf("marshal relay request: %w", err)
	}

	newReq := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	var out rpcResponse
	accept := func() error {
		if out.Error != nil {
			return fmt.Errorf("%w: code %d: %s", ErrRelayRejected, out.Error.Code, out.Error.Message)
		}
		return nil
	}

	if err := r.exec.DoJSON(ctx, newReq, r.url, &out, accept); err != nil {
		return "", err
	}

	if out.Result == nil {
		r.logger.Info("relay.submitted_without_signature", zap.String("url", r.url))
		return "", nil
	}
	r.logger.Info("relay.submitted", zap.String("signature", *out.Result))
	return *out.Result, nil
}
