package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbignon/ER-Route-tracker/pkg/core"
	"github.com/rbignon/ER-Route-tracker/pkg/streaming"
)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and acks route_start/route_saved.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeRouteStart || env.Type == streaming.TypeRouteSaved {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartAndSavedAcked(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	s := New(Config{URL: wsURL(srv), Secret: "test"}, zerolog.Nop())
	require.NoError(t, s.Connect())
	defer s.Close()

	require.NoError(t, s.StartRoute(streaming.RouteStartPayload{
		SessionID:  "sess-1",
		IntervalMs: 100,
		StartedAt:  "2026-08-23 14:05:01",
	}))
	require.NoError(t, s.RouteSaved(streaming.RouteSavedPayload{
		SessionID:  "sess-1",
		Name:       "route_2026-08-23_14-05-01",
		PointCount: 2,
	}))

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeRouteStart, msgs[0].Type)
	assert.Equal(t, streaming.TypeRouteSaved, msgs[len(msgs)-1].Type)
}

func TestPointsAreFireAndForget(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	s := New(Config{URL: wsURL(srv), Secret: "s"}, zerolog.Nop())
	require.NoError(t, s.Connect())
	defer s.Close()

	require.NoError(t, s.StartRoute(streaming.RouteStartPayload{SessionID: "sess-1"}))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SendPoint("sess-1", core.RoutePoint{
			GlobalX:     float32(i),
			MapIDStr:    "m60_45_00_00",
			TimestampMs: uint64(i) * 100,
		}))
	}

	require.NoError(t, s.RouteSaved(streaming.RouteSavedPayload{SessionID: "sess-1"}))

	// Give a moment for all messages to arrive at the server.
	time.Sleep(50 * time.Millisecond)

	types := make(map[string]int)
	for _, m := range ml.all() {
		types[m.Type]++
	}
	assert.Equal(t, 1, types[streaming.TypeRouteStart])
	assert.Equal(t, 3, types[streaming.TypeRoutePoint])
	assert.Equal(t, 1, types[streaming.TypeRouteSaved])
}

func TestPointPayloadRoundTrip(t *testing.T) {
	pt := core.RoutePoint{
		X: 1, Y: 2, Z: 3,
		GlobalX: 101, GlobalY: 2, GlobalZ: 203,
		MapID: 0x3C2D0000, MapIDStr: "m60_45_00_00",
		TimestampMs: 500, OnTorrent: true,
	}
	data, err := marshalEnvelope(streaming.TypeRoutePoint, streaming.RoutePointPayload{
		SessionID: "sess-1",
		Point:     pt,
	})
	require.NoError(t, err)

	var env streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, streaming.TypeRoutePoint, env.Type)

	var payload streaming.RoutePointPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "sess-1", payload.SessionID)
	assert.Equal(t, pt, payload.Point)
}
