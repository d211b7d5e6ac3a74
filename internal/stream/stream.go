// Package stream pushes recording progress to a live route viewer over
// WebSocket. Points are fire-and-forget; the route_start announcement and
// the saved notification wait for a server ack.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rbignon/ER-Route-tracker/pkg/core"
	"github.com/rbignon/ER-Route-tracker/pkg/streaming"
)

// Config holds live-viewer connection settings.
type Config struct {
	URL    string
	Secret string
}

// Client streams samples to the viewer with a single write goroutine.
type Client struct {
	conn *connection
	cfg  Config
}

// New creates a new streaming client.
func New(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		conn: newConnection(log),
		cfg:  cfg,
	}
}

// Connect dials the viewer.
func (s *Client) Connect() error {
	return s.conn.dial(s.cfg.URL, s.cfg.Secret)
}

// Close disconnects from the viewer.
func (s *Client) Close() error {
	return s.conn.close()
}

// Depth reports the send queue backlog.
func (s *Client) Depth() int {
	return len(s.conn.sendCh)
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (s *Client) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	s.conn.send(data)
	return nil
}

// StartRoute announces a new recording and waits for the server ack. The
// announcement is cached so a reconnect can replay it.
func (s *Client) StartRoute(p streaming.RouteStartPayload) error {
	data, err := marshalEnvelope(streaming.TypeRouteStart, p)
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	s.conn.mu.Lock()
	s.conn.cachedStartMsg = data
	s.conn.mu.Unlock()

	return s.conn.sendAndWait(data, streaming.TypeRouteStart, ackTimeout)
}

// SendPoint streams one live sample.
func (s *Client) SendPoint(sessionID string, pt core.RoutePoint) error {
	return s.sendEnvelope(streaming.TypeRoutePoint, streaming.RoutePointPayload{
		SessionID: sessionID,
		Point:     pt,
	})
}

// RouteSaved reports a completed save, waits for the server ack and clears
// the cached announcement.
func (s *Client) RouteSaved(p streaming.RouteSavedPayload) error {
	data, err := marshalEnvelope(streaming.TypeRouteSaved, p)
	if err != nil {
		return err
	}
	err = s.conn.sendAndWait(data, streaming.TypeRouteSaved, ackTimeout)

	// Clear cached state regardless of error.
	s.conn.mu.Lock()
	s.conn.cachedStartMsg = nil
	s.conn.mu.Unlock()

	return err
}
