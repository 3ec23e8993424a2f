package session

import (
	"time"

	"github.com/sweetpotato0/agentgate/clock"
)

// record is the mutable registry entry behind a Session. All fields are
// guarded by Manager.mu.
type record struct {
	id         string
	handle     Handle
	createdAt  time.Time
	lastActive time.Time

	timer clock.Timer
	// gen increases on every timer reset so a callback from a replaced
	// timer can recognise itself as stale.
	gen uint64
}

func (r *record) snapshot() Session {
	return Session{
		ID:           r.id,
		Agent:        r.handle.Agent,
		Config:       r.handle.Config,
		Model:        r.handle.Model,
		CreatedAt:    r.createdAt,
		LastActiveAt: r.lastActive,
	}
}

func (r *record) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
