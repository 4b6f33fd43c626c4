// internal/venue/http.go
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quietlabs/edgebot/internal/types"
)

// HTTPProvider polls a market-data service for venue snapshots over JSON.
type HTTPProvider struct {
	venue  types.VenueType
	url    string
	client *http.Client
}

// NewHTTPProvider creates a snapshot provider for one venue endpoint.
func NewHTTPProvider(v types.VenueType, url string) *HTTPProvider {
	return &HTTPProvider{
		venue:  v,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) Venue() types.VenueType { return p.venue }

// Fetch polls the endpoint once.
func (p *HTTPProvider) Fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot endpoint returned %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Venue == "" {
		snap.Venue = p.venue
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	return &snap, nil
}

// HTTPPriceSource fetches single-token spot prices from the market-data
// service. Used by the monitor between full snapshots.
type HTTPPriceSource struct {
	url    string
	client *http.Client
}

// NewHTTPPriceSource creates a price source for the given endpoint.
func NewHTTPPriceSource(url string) *HTTPPriceSource {
	return &HTTPPriceSource{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Price returns the current SOL price of one token.
func (p *HTTPPriceSource) Price(ctx context.Context, tokenMint, poolID string, v types.VenueType) (float64, error) {
	url := fmt.Sprintf("%s?mint=%s&pool=%s&venue=%s", p.url, tokenMint, poolID, v)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		PriceSol float64 `json:"price_sol"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	if payload.PriceSol <= 0 {
		return 0, fmt.Errorf("non-positive price for %s", tokenMint)
	}
	return payload.PriceSol, nil
}

// HTTPConsensusClient requests trade approvals from an external decision
// service. Any transport or decode error surfaces to the caller, which must
// treat it as "not approved".
type HTTPConsensusClient struct {
	url    string
	client *http.Client
}

// NewHTTPConsensusClient creates a consensus client for the given endpoint.
func NewHTTPConsensusClient(url string, timeout time.Duration) *HTTPConsensusClient {
	return &HTTPConsensusClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Decide implements ConsensusClient.
func (c *HTTPConsensusClient) Decide(ctx context.Context, summary EdgeSummary) (Decision, error) {
	body, err := json.Marshal(summary)
	if err != nil {
		return Decision{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Decision{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Decision{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("consensus endpoint returned %d", resp.StatusCode)
	}

	var decision Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	return decision, nil
}

// HTTPThreatScorer queries a token-safety service for a 0-1 threat score.
type HTTPThreatScorer struct {
	url    string
	client *http.Client
}

// NewHTTPThreatScorer creates a threat scorer for the given endpoint.
func NewHTTPThreatScorer(url string) *HTTPThreatScorer {
	return &HTTPThreatScorer{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Score implements ThreatScorer.
func (t *HTTPThreatScorer) Score(ctx context.Context, tokenMint string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url+"?mint="+tokenMint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("threat endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode threat score: %w", err)
	}
	if payload.Score < 0 || payload.Score > 1 {
		return 0, fmt.Errorf("threat score %f out of range", payload.Score)
	}
	return payload.Score, nil
}
