// Package session admits chat sessions under a fixed capacity, queues the
// overflow in FIFO order and evicts sessions after a period of inactivity,
// promoting queued sessions as capacity frees up.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sweetpotato0/agentgate/agent"
)

// Handle is what a Factory produces for a new session.
type Handle struct {
	Agent  *agent.Agent
	Config agent.RunConfig
	// Model names the LLM behind Agent, reported in reply metadata.
	Model string
}

// Factory builds the agent for a session. Create may block on network and
// storage calls; the Manager never holds its lock while it runs.
type Factory interface {
	Create(ctx context.Context, sessionID string) (*Handle, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, sessionID string) (*Handle, error)

func (f FactoryFunc) Create(ctx context.Context, sessionID string) (*Handle, error) {
	return f(ctx, sessionID)
}

// FactoryError reports a failed agent creation.
type FactoryError struct {
	SessionID string
	Err       error
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("failed to create agent for session %s: %v", e.SessionID, e.Err)
}

func (e *FactoryError) Unwrap() error { return e.Err }

// Session is a read-only snapshot of an active session.
type Session struct {
	ID           string
	Agent        *agent.Agent
	Config       agent.RunConfig
	Model        string
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// Outcome is the result of admitting a session id.
type Outcome int

const (
	// OutcomeActive means the session already existed; its timer was reset.
	OutcomeActive Outcome = iota
	// OutcomeCreated means a new session was created for the id.
	OutcomeCreated
	// OutcomeQueued means the id waits in the queue.
	OutcomeQueued
)

func (o Outcome) String() string {
	switch o {
	case OutcomeActive:
		return "active"
	case OutcomeCreated:
		return "created"
	case OutcomeQueued:
		return "queued"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Admission describes how an id was admitted. Session is set for active and
// created outcomes, Position (1-based) for queued ones.
type Admission struct {
	Outcome  Outcome
	Session  Session
	Position int
}

// Stats is a point-in-time view of the manager's occupancy.
type Stats struct {
	Active    int `json:"active"`
	Pending   int `json:"pending"`
	Queued    int `json:"queued"`
	MaxActive int `json:"maxActive"`
}

// EventType names a lifecycle transition reported to an EventHook.
type EventType string

const (
	EventCreated         EventType = "created"
	EventQueued          EventType = "queued"
	EventPromoted        EventType = "promoted"
	EventPromotionFailed EventType = "promotion_failed"
	EventExpired         EventType = "expired"
)

// Event is passed to the hook installed with WithEventHook.
type Event struct {
	Type      EventType
	SessionID string
	// Position is set for EventQueued.
	Position int
	// Err is set for EventPromotionFailed.
	Err error
}
