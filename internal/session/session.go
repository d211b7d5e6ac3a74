// Package session tracks the attachment to a running game client. A new
// session begins on every successful attach and everything recorded,
// stored or streamed afterwards carries its id.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session describes one attachment to a game process.
type Session struct {
	ID          string
	StartedAt   time.Time
	ProcessName string
	PID         int
	GameVersion string
}

// Context holds the active session. The run loop replaces it on attach;
// background sinks and log handlers read it concurrently.
type Context struct {
	mu      sync.RWMutex
	current *Session
}

// NewContext creates a Context with a placeholder session.
func NewContext() *Context {
	return &Context{
		current: &Session{ProcessName: "no game attached"},
	}
}

// Get returns the current session.
func (c *Context) Get() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Attached reports whether a real session has begun.
func (c *Context) Attached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.ID != ""
}

// Begin starts a new session for an attached process and returns it.
func (c *Context) Begin(processName string, pid int, gameVersion string) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		StartedAt:   time.Now(),
		ProcessName: processName,
		PID:         pid,
		GameVersion: gameVersion,
	}
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
	return s
}
