// Package livefeed maintains a WebSocket subscription to the live score
// provider and exposes the latest in-game state per contest for the
// reality check.
package livefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/metrics"
	"github.com/yourusername/pickwise/internal/pipeline"
)

// ScoreUpdate is the provider's wire format for one in-game score event.
type ScoreUpdate struct {
	ContestID      string  `json:"contest_id"`
	ElapsedMinutes float64 `json:"elapsed_minutes"`
	HomePoints     float64 `json:"home_points"`
	AwayPoints     float64 `json:"away_points"`
	Heartbeat      bool    `json:"heartbeat,omitempty"`
}

// Stream holds a live score subscription. Updates overwrite each other per
// contest; only the latest state matters to a decision.
type Stream struct {
	streamURL string
	token     string
	reconnect time.Duration
	logger    *logrus.Entry

	mu              sync.RWMutex
	conn            *websocket.Conn
	connected       bool
	states          map[uuid.UUID]pipeline.LiveContext
	lastMessageTime time.Time
}

// NewStream creates a stream client from configuration.
func NewStream(cfg config.LiveFeedConfig, logger *logrus.Logger) *Stream {
	reconnect := time.Duration(cfg.ReconnectSeconds) * time.Second
	if reconnect <= 0 {
		reconnect = 5 * time.Second
	}

	return &Stream{
		streamURL: cfg.StreamURL,
		token:     cfg.Token,
		reconnect: reconnect,
		logger:    logger.WithField("component", "livefeed"),
		states:    make(map[uuid.UUID]pipeline.LiveContext),
	}
}

// Run connects and re-dials on failure until the context is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	backoff := s.reconnect
	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.WithError(err).Warn("Stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, s.streamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.lastMessageTime = time.Now()
	s.mu.Unlock()
	metrics.UpdateLiveFeedConnected(true)

	defer func() {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		metrics.UpdateLiveFeedConnected(false)
		conn.Close()
	}()

	if err := conn.WriteJSON(map[string]interface{}{
		"op":    "subscribe",
		"token": s.token,
	}); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	// Unblock ReadJSON when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			return fmt.Errorf("error reading message: %w", err)
		}

		s.mu.Lock()
		s.lastMessageTime = time.Now()
		s.mu.Unlock()

		var update ScoreUpdate
		if err := json.Unmarshal(raw, &update); err != nil {
			s.logger.WithError(err).Warn("Dropping malformed score update")
			continue
		}
		if update.Heartbeat {
			continue
		}
		s.apply(update)
	}
}

func (s *Stream) apply(update ScoreUpdate) {
	contestID, err := uuid.Parse(update.ContestID)
	if err != nil {
		s.logger.WithField("contest_id", update.ContestID).Warn("Dropping update with bad contest id")
		return
	}

	s.mu.Lock()
	s.states[contestID] = pipeline.LiveContext{
		ElapsedMinutes: update.ElapsedMinutes,
		HomePoints:     update.HomePoints,
		AwayPoints:     update.AwayPoints,
	}
	s.mu.Unlock()
}

// Context returns the latest live state for a contest, if any update has
// arrived. A contest with no state is pre-game as far as the pipeline is
// concerned.
func (s *Stream) Context(contestID uuid.UUID) (pipeline.LiveContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[contestID]
	return state, ok
}

// Forget drops the live state for a contest after it finishes.
func (s *Stream) Forget(contestID uuid.UUID) {
	s.mu.Lock()
	delete(s.states, contestID)
	s.mu.Unlock()
}

// IsConnected reports whether the stream is currently connected.
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// LastMessageTime returns the time of the last received message.
func (s *Stream) LastMessageTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMessageTime
}
