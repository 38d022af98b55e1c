package paramsvc

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

func newTestParamClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	client, err := NewClient(config.ParamServiceConfig{
		HTTPURL:        baseURL,
		GRPCAddress:    "localhost:0",
		TimeoutSeconds: 2,
	}, logger)
	require.NoError(t, err)
	return client
}

func TestParamsFetch(t *testing.T) {
	contestID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"contest_id": %q,
			"sport": "basketball",
			"home_mean": 112.4,
			"home_std": 9.8,
			"away_mean": 108.1,
			"away_std": 10.2,
			"data_quality": 0.92,
			"generated_at": "2026-01-15T12:00:00Z"
		}`, contestID)
	}))
	defer server.Close()

	client := newTestParamClient(t, server.URL)
	defer client.Close()

	params, err := client.Params(context.Background(), contestID)
	require.NoError(t, err)

	assert.Equal(t, contestID, params.ContestID)
	assert.Equal(t, 112.4, params.HomeMean)
	assert.Equal(t, 0.92, params.DataQuality)
}

func TestParamsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestParamClient(t, server.URL)
	defer client.Close()

	_, err := client.Params(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrContestNotFound)
}

func TestParamsRejectsDegenerateDistribution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"contest_id": %q, "home_mean": 110, "home_std": 0, "away_mean": 105, "away_std": 10}`, uuid.New())
	}))
	defer server.Close()

	client := newTestParamClient(t, server.URL)
	defer client.Close()

	_, err := client.Params(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degenerate distribution")
}

func TestSamplerIsDeterministicPerSeed(t *testing.T) {
	params := &ContestParams{
		HomeMean: 112.0,
		HomeStd:  10.0,
		AwayMean: 108.0,
		AwayStd:  9.0,
	}
	sampler := params.Sampler()

	first := sampler.Sample(rand.New(rand.NewSource(42)))
	second := sampler.Sample(rand.New(rand.NewSource(42)))
	assert.Equal(t, first, second)

	// Scores never go negative even with absurd variance.
	wild := (&ContestParams{HomeMean: 1, HomeStd: 100, AwayMean: 1, AwayStd: 100}).Sampler()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		outcome := wild.Sample(rng)
		require.GreaterOrEqual(t, outcome.Home, 0.0)
		require.GreaterOrEqual(t, outcome.Away, 0.0)
	}
}
