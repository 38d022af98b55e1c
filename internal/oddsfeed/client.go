// Package oddsfeed talks to the external odds provider that serves totals
// lines. All calls go through a shared rate limiter and a simple
// consecutive-failure circuit breaker so a degraded provider cannot stall
// the decision path.
package oddsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

// Client fetches totals lines over HTTP with retries, rate limiting and a
// circuit breaker. It implements the line-refresh hook the decision
// pipeline uses for stale markets.
type Client struct {
	client  *retryablehttp.Client
	limiter *rate.Limiter
	baseURL string
	apiKey  string
	logger  *logrus.Entry

	mu                sync.Mutex
	circuitBreakerMax int
	consecutiveErrors int
	open              bool
	lastError         error
}

// NewClient creates an odds feed client from configuration.
func NewClient(cfg config.OddsFeedConfig, logger *logrus.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.CheckRetry = retryPolicy()
	retryClient.Logger = nil

	return &Client{
		client:            retryClient,
		limiter:           rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		baseURL:           cfg.BaseURL,
		apiKey:            cfg.APIKey,
		logger:            logger.WithField("component", "oddsfeed"),
		circuitBreakerMax: cfg.CircuitBreakerMax,
	}
}

// lineResponse is the provider's wire format for a single totals market.
type lineResponse struct {
	ContestID  string  `json:"contest_id"`
	Sport      string  `json:"sport"`
	Line       string  `json:"line"`
	Timestamp  string  `json:"timestamp"`
	SourceID   string  `json:"source_id"`
	SourceType string  `json:"source_type"`
	Scope      string  `json:"scope"`
}

// Refresh fetches the current line for a contest and scope.
func (c *Client) Refresh(ctx context.Context, contestID uuid.UUID, scope models.MarketScope) (*models.MarketSnapshot, error) {
	url := fmt.Sprintf("%s/v1/markets/%s/totals?scope=%s", c.baseURL, contestID, scope)

	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("odds feed returned %d: %s", resp.StatusCode, body)
	}

	var payload lineResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode line response: %w", err)
	}

	return c.toSnapshot(payload)
}

func (c *Client) toSnapshot(payload lineResponse) (*models.MarketSnapshot, error) {
	contestID, err := uuid.Parse(payload.ContestID)
	if err != nil {
		return nil, fmt.Errorf("invalid contest id %q: %w", payload.ContestID, err)
	}

	line, err := decimal.NewFromString(payload.Line)
	if err != nil {
		return nil, fmt.Errorf("invalid line value %q: %w", payload.Line, err)
	}

	ts, err := time.Parse(time.RFC3339, payload.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid line timestamp %q: %w", payload.Timestamp, err)
	}

	return &models.MarketSnapshot{
		ContestID:     contestID,
		Sport:         payload.Sport,
		LineValue:     line,
		LineTimestamp: ts,
		SourceID:      payload.SourceID,
		SourceType:    models.MarketSourceType(payload.SourceType),
		Scope:         models.MarketScope(payload.Scope),
	}, nil
}

// get executes a GET with rate limiting and circuit breaking.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	c.mu.Lock()
	if c.open {
		lastErr := c.lastError
		c.mu.Unlock()
		return nil, fmt.Errorf("circuit breaker open: %v", lastErr)
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}

	if resp.StatusCode < 500 {
		c.recordSuccess()
	}
	return resp, nil
}

func (c *Client) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveErrors++
	c.lastError = err
	if c.consecutiveErrors >= c.circuitBreakerMax && !c.open {
		c.open = true
		c.logger.WithError(err).WithField("consecutive_errors", c.consecutiveErrors).
			Warn("Circuit breaker opened")
	}
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveErrors = 0
	c.open = false
}

// Reset closes the circuit breaker manually.
func (c *Client) Reset() {
	c.recordSuccess()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	return nil
}

// retryPolicy retries network errors, 429s and 5xx responses.
func retryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return true, nil
		}
		return false, nil
	}
}
