package oddsfeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

func newTestClient(baseURL string) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewClient(config.OddsFeedConfig{
		BaseURL:           baseURL,
		APIKey:            "test-key",
		TimeoutSeconds:    2,
		MaxRetries:        0,
		RateLimit:         100.0,
		CircuitBreakerMax: 3,
	}, logger)
}

func TestRefreshParsesLine(t *testing.T) {
	contestID := uuid.New()
	ts := time.Now().UTC().Truncate(time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "full_contest", r.URL.Query().Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"contest_id": %q,
			"sport": "basketball",
			"line": "224.5",
			"timestamp": %q,
			"source_id": "book-1",
			"source_type": "bookmaker",
			"scope": "full_contest"
		}`, contestID, ts.Format(time.RFC3339))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	defer client.Close()

	snap, err := client.Refresh(context.Background(), contestID, models.ScopeFullContest)
	require.NoError(t, err)

	assert.Equal(t, contestID, snap.ContestID)
	assert.Equal(t, 224.5, snap.Line())
	assert.Equal(t, models.SourceBookmaker, snap.SourceType)
	assert.Equal(t, models.ScopeFullContest, snap.Scope)
	assert.True(t, snap.HasLine())
}

func TestRefreshNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	defer client.Close()

	_, err := client.Refresh(context.Background(), uuid.New(), models.ScopeFullContest)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1") // nothing listening
	defer client.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.Refresh(ctx, uuid.New(), models.ScopeFullContest)
		require.Error(t, err)
	}

	_, err := client.Refresh(ctx, uuid.New(), models.ScopeFullContest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")

	// Reset closes the breaker again.
	client.Reset()
	_, err = client.Refresh(ctx, uuid.New(), models.ScopeFullContest)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "circuit breaker open")
}

func TestRefreshRejectsMalformedLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"contest_id": "not-a-uuid", "line": "224.5", "timestamp": "2026-01-15T12:00:00Z"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	defer client.Close()

	_, err := client.Refresh(context.Background(), uuid.New(), models.ScopeFullContest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid contest id")
}
