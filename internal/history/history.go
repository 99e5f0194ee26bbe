package history

import (
	"context"
	"time"
)

// EventType defines the kind of launch event.
type EventType string

const (
	EventLaunch       EventType = "launch"        // executable resolved, about to spawn
	EventLaunchFailed EventType = "launch_failed" // executable missing or could not start
	EventReady        EventType = "ready"         // readiness probe succeeded
	EventTimeout      EventType = "timeout"       // readiness deadline passed
	EventExit         EventType = "exit"          // server process exited
	EventTerminate    EventType = "terminate"     // launcher signalled the server
)

// Event is one launch lifecycle record.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	LaunchID   string    `json:"launch_id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	PID        int       `json:"pid"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for launch events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Reader is implemented by sinks that can list what they stored.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Nop discards events.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }
func (Nop) Close() error                      { return nil }
