package worker

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/rbignon/ER-Route-tracker/internal/dispatcher"
	"github.com/rbignon/ER-Route-tracker/internal/model"
	"github.com/rbignon/ER-Route-tracker/pkg/streaming"
)

// RegisterHandlers wires the recording events to the sink queues. All
// handlers run synchronously on the dispatching goroutine; they only
// push, the drain goroutine does the writing, so the queue order
// matches the event order.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Route lifecycle - rare
	d.Register(streaming.TypeRouteStart, m.handleRouteStart, dispatcher.Logged())
	d.Register(streaming.TypeRouteSaved, m.handleRouteSaved, dispatcher.Logged())

	// High-volume samples
	d.Register(streaming.TypeRoutePoint, m.handleRoutePoint)
}

func (m *Manager) handleRouteStart(e dispatcher.Event) (any, error) {
	p, ok := e.Payload.(streaming.RouteStartPayload)
	if !ok {
		return nil, fmt.Errorf("route start payload is %T", e.Payload)
	}

	m.queues.Starts.Push(p)

	extra, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal route start payload: %w", err)
	}
	m.queues.Events.Push(model.TrackerEvent{
		Time:      e.Timestamp,
		SessionID: p.SessionID,
		Name:      streaming.TypeRouteStart,
		Message:   fmt.Sprintf("recording at %d ms", p.IntervalMs),
		ExtraData: datatypes.JSON(extra),
	})
	return nil, nil
}

func (m *Manager) handleRoutePoint(e dispatcher.Event) (any, error) {
	s, ok := e.Payload.(Sample)
	if !ok {
		return nil, fmt.Errorf("route point payload is %T", e.Payload)
	}
	m.queues.Points.Push(s)
	return nil, nil
}

func (m *Manager) handleRouteSaved(e dispatcher.Event) (any, error) {
	p, ok := e.Payload.(streaming.RouteSavedPayload)
	if !ok {
		return nil, fmt.Errorf("route saved payload is %T", e.Payload)
	}

	m.queues.Saves.Push(p)

	extra, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal route saved payload: %w", err)
	}
	m.queues.Events.Push(model.TrackerEvent{
		Time:      e.Timestamp,
		SessionID: p.SessionID,
		Name:      streaming.TypeRouteSaved,
		Message:   p.Name,
		ExtraData: datatypes.JSON(extra),
	})
	return nil, nil
}
