// Package paramsvc talks to the upstream rate-parameter service. The
// service owns team rate modeling; this side only needs the per-contest
// sampling parameters and a health signal.
package paramsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
	"github.com/yourusername/pickwise/internal/pipeline"
)

// ContestParams are the sampling parameters for one contest, as served by
// the rate-parameter service.
type ContestParams struct {
	ContestID   uuid.UUID `json:"contest_id"`
	Sport       string    `json:"sport"`
	HomeMean    float64   `json:"home_mean"`
	HomeStd     float64   `json:"home_std"`
	AwayMean    float64   `json:"away_mean"`
	AwayStd     float64   `json:"away_std"`
	DataQuality float64   `json:"data_quality"`
	GeneratedAt time.Time `json:"generated_at"`

	// Sub-component rates are optional; the decomposition check is skipped
	// when the service does not expose them for a contest.
	PossessionsPerTeam  float64 `json:"possessions_per_team,omitempty"`
	PointsPerPossession float64 `json:"points_per_possession,omitempty"`
}

// SubRates returns the decomposition inputs, or nil when the service did
// not provide them.
func (p *ContestParams) SubRates() *pipeline.SubComponentRates {
	if p.PossessionsPerTeam <= 0 || p.PointsPerPossession <= 0 {
		return nil
	}
	return &pipeline.SubComponentRates{
		PossessionsPerTeam:  p.PossessionsPerTeam,
		PointsPerPossession: p.PointsPerPossession,
	}
}

// Sampler builds the per-contest outcome sampler the simulation engine
// draws from. Side scores are independent normals floored at zero.
func (p *ContestParams) Sampler() pipeline.Sampler {
	homeMean, homeStd := p.HomeMean, p.HomeStd
	awayMean, awayStd := p.AwayMean, p.AwayStd

	return pipeline.SamplerFunc(func(rng *rand.Rand) pipeline.Outcome {
		home := homeMean + rng.NormFloat64()*homeStd
		away := awayMean + rng.NormFloat64()*awayStd
		if home < 0 {
			home = 0
		}
		if away < 0 {
			away = 0
		}
		return pipeline.Outcome{Home: home, Away: away}
	})
}

// Client fetches contest parameters over HTTP and probes service health
// over gRPC.
type Client struct {
	http    *retryablehttp.Client
	httpURL string
	conn    *grpc.ClientConn
	health  grpc_health_v1.HealthClient
	timeout time.Duration
	logger  *logrus.Entry
}

// NewClient connects to the rate-parameter service.
func NewClient(cfg config.ParamServiceConfig, logger *logrus.Logger) (*Client, error) {
	creds := grpc.WithTransportCredentials(insecure.NewCredentials())
	if cfg.UseTLS {
		creds = grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, ""))
	}

	connectParams := grpc.ConnectParams{
		Backoff: backoff.Config{
			BaseDelay:  1 * time.Second,
			Multiplier: 1.6,
			Jitter:     0.2,
			MaxDelay:   5 * time.Second,
		},
		MinConnectTimeout: 10 * time.Second,
	}

	keepAlive := keepalive.ClientParameters{
		Time:                30 * time.Second,
		Timeout:             10 * time.Second,
		PermitWithoutStream: true,
	}

	conn, err := grpc.NewClient(cfg.GRPCAddress,
		creds,
		grpc.WithConnectParams(connectParams),
		grpc.WithKeepaliveParams(keepAlive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to param service: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient.Timeout = timeout
	httpClient.RetryMax = 3
	httpClient.Logger = nil

	logger.WithField("address", cfg.GRPCAddress).Info("Connected to param service")

	return &Client{
		http:    httpClient,
		httpURL: cfg.HTTPURL,
		conn:    conn,
		health:  grpc_health_v1.NewHealthClient(conn),
		timeout: timeout,
		logger:  logger.WithField("component", "paramsvc"),
	}, nil
}

// Params fetches sampling parameters for a contest.
func (c *Client) Params(ctx context.Context, contestID uuid.UUID) (*ContestParams, error) {
	url := fmt.Sprintf("%s/v1/contests/%s/params", c.httpURL, contestID)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contest params: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.ErrContestNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("param service returned %d: %s", resp.StatusCode, body)
	}

	var params ContestParams
	if err := json.NewDecoder(resp.Body).Decode(&params); err != nil {
		return nil, fmt.Errorf("failed to decode contest params: %w", err)
	}

	if params.HomeStd <= 0 || params.AwayStd <= 0 {
		return nil, fmt.Errorf("param service returned degenerate distribution for %s", contestID)
	}

	return &params, nil
}

// Healthy probes the service's gRPC health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("param service health check failed: %w", err)
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("param service not serving: %s", resp.Status)
	}
	return nil
}

// Close closes the gRPC connection and idle HTTP connections.
func (c *Client) Close() error {
	c.http.HTTPClient.CloseIdleConnections()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
