// internal/broadcast/gateway.go
package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// GatewaySubmitter routes requests through an execution-gateway REST API that
// owns transaction building, signing and confirmation. A gateway timeout is
// an ambiguous outcome and maps to ErrSubmitTimeout.
type GatewaySubmitter struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewGatewaySubmitter creates a submitter for one gateway instance.
func NewGatewaySubmitter(name, baseURL string, timeout time.Duration) *GatewaySubmitter {
	return &GatewaySubmitter{
		name:    name,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *GatewaySubmitter) Name() string { return g.name }

// Submit posts the request and waits for the confirmed result.
func (g *GatewaySubmitter) Submit(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(struct {
		TokenMint       string  `json:"token_mint"`
		PoolID          string  `json:"pool_id"`
		Venue           string  `json:"venue"`
		Side            string  `json:"side"`
		AmountSol       float64 `json:"amount_sol,omitempty"`
		TokenQuantity   float64 `json:"token_quantity,omitempty"`
		SlippagePercent float64 `json:"slippage_percent"`
	}{
		TokenMint:       req.TokenMint,
		PoolID:          req.PoolID,
		Venue:           string(req.Venue),
		Side:            string(req.Side),
		AmountSol:       req.AmountSol,
		TokenQuantity:   req.TokenQuantity,
		SlippagePercent: req.SlippagePercent,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/submit", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrSubmitTimeout
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusGatewayTimeout:
		// The gateway lost track of the transaction; it may still land.
		return nil, ErrSubmitTimeout
	default:
		return nil, fmt.Errorf("gateway %s returned %d", g.name, resp.StatusCode)
	}

	var payload struct {
		Signature      string  `json:"signature"`
		FilledQuantity float64 `json:"filled_quantity"`
		SolDelta       float64 `json:"sol_delta"`
		Price          float64 `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode gateway result: %w", err)
	}

	return &Result{
		Signature:      payload.Signature,
		FilledQuantity: payload.FilledQuantity,
		SolDelta:       payload.SolDelta,
		Price:          payload.Price,
	}, nil
}

// Balance queries the wallet's holding of the given token.
func (g *GatewaySubmitter) Balance(ctx context.Context, tokenMint string) (float64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/balance?mint="+tokenMint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("gateway %s balance returned %d", g.name, resp.StatusCode)
	}

	var payload struct {
		Balance float64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	return payload.Balance, nil
}
