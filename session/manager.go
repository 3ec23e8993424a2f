package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sweetpotato0/agentgate/clock"
	errorskg "github.com/sweetpotato0/agentgate/errors"
	"github.com/sweetpotato0/agentgate/pkg/logging"
	"github.com/sweetpotato0/agentgate/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxActive      = 20
	DefaultInactivity     = 10 * time.Minute
	DefaultFactoryTimeout = time.Minute
)

// Manager owns the session registry, the wait queue and the set of
// sessions whose agent is being created. Every state transition happens
// under mu, which is never held while the factory runs.
type Manager struct {
	mu       sync.Mutex
	registry *registry
	queue    *Queue
	// pending holds ids whose factory call is in flight. It reserves their
	// slot so that active+pending never exceeds maxActive.
	pending  map[string]struct{}
	closed   bool
	inflight sync.WaitGroup

	factory        Factory
	clock          clock.Clock
	logger         *slog.Logger
	maxActive      int
	inactivity     time.Duration
	factoryTimeout time.Duration
	hook           func(Event)
}

// Option is a function that configures a Manager.
type Option func(*Manager)

// WithMaxActive bounds the number of concurrent sessions.
func WithMaxActive(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxActive = n
		}
	}
}

// WithInactivity sets how long a session may stay idle before eviction.
func WithInactivity(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.inactivity = d
		}
	}
}

// WithFactoryTimeout bounds each factory call. Zero disables the bound.
func WithFactoryTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.factoryTimeout = d
		}
	}
}

// WithClock replaces the system clock, typically with clock.Fake in tests.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger overrides the logger used by the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEventHook registers fn to observe lifecycle transitions. fn runs
// outside the manager's lock and must not block for long.
func WithEventHook(fn func(Event)) Option {
	return func(m *Manager) {
		m.hook = fn
	}
}

// NewManager creates a manager that builds agents with factory.
//
// Example:
//
//	mgr := session.NewManager(fac, session.WithMaxActive(20))
//	defer mgr.Close(ctx)
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		registry:       newRegistry(),
		queue:          NewQueue(),
		pending:        make(map[string]struct{}),
		factory:        factory,
		clock:          clock.System{},
		maxActive:      DefaultMaxActive,
		inactivity:     DefaultInactivity,
		factoryTimeout: DefaultFactoryTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.WithComponent("session_manager")
	}
	return m
}

// Admit routes a request for id: an active session has its inactivity timer
// reset, an unknown id gets a new session when capacity allows and is queued
// otherwise. An id whose agent is being created by another request yields
// errors.ErrConflict. A failed creation is returned as *FactoryError.
func (m *Manager) Admit(ctx context.Context, id string) (Admission, error) {
	return m.admit(ctx, id, false)
}

// Start is Admit for explicit session starts: an id that is already active
// or being created yields errors.ErrAlreadyExists.
func (m *Manager) Start(ctx context.Context, id string) (Admission, error) {
	return m.admit(ctx, id, true)
}

func (m *Manager) admit(ctx context.Context, id string, exclusive bool) (adm Admission, err error) {
	if strings.TrimSpace(id) == "" {
		return Admission{}, fmt.Errorf("session id is required: %w", errorskg.ErrInvalidInput)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "session.admit", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.Bool("session.exclusive", exclusive),
	))
	defer func() {
		span.SetAttributes(attribute.String("session.outcome", adm.Outcome.String()))
		telemetry.End(span, err)
	}()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Admission{}, fmt.Errorf("session manager is closed: %w", errorskg.ErrUnavailable)
	}

	if rec, ok := m.registry.get(id); ok {
		if exclusive {
			m.mu.Unlock()
			return Admission{}, fmt.Errorf("session %s: %w", id, errorskg.ErrAlreadyExists)
		}
		m.resetTimerLocked(rec)
		snap := rec.snapshot()
		m.mu.Unlock()
		return Admission{Outcome: OutcomeActive, Session: snap}, nil
	}

	if _, ok := m.pending[id]; ok {
		m.mu.Unlock()
		if exclusive {
			return Admission{}, fmt.Errorf("session %s: %w", id, errorskg.ErrAlreadyExists)
		}
		return Admission{}, fmt.Errorf("session %s is being created: %w", id, errorskg.ErrConflict)
	}

	if pos := m.queue.Position(id); pos > 0 {
		m.mu.Unlock()
		return Admission{Outcome: OutcomeQueued, Position: pos}, nil
	}

	if m.queue.Len() == 0 && m.freeLocked() > 0 {
		m.reserveLocked(id)
		m.mu.Unlock()

		sess, err := m.create(ctx, id)
		if err != nil {
			m.mu.Lock()
			m.releaseLocked(id)
			m.mu.Unlock()
			// Arrivals queued behind the reservation may now fit.
			m.fill(ctx)
			return Admission{}, err
		}
		m.emit(Event{Type: EventCreated, SessionID: id})
		return Admission{Outcome: OutcomeCreated, Session: sess}, nil
	}

	// Either the registry is full or earlier arrivals are still waiting;
	// in both cases id goes behind them.
	pos := m.queue.Enqueue(id, m.clock.Now())
	stats := m.statsLocked()
	m.mu.Unlock()

	m.logger.Info("session queued", "id", id, "position", pos, "active", stats.Active, "pending", stats.Pending)
	m.emit(Event{Type: EventQueued, SessionID: id, Position: pos})

	m.fill(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.registry.get(id); ok {
		return Admission{Outcome: OutcomeCreated, Session: rec.snapshot()}, nil
	}
	if pos := m.queue.Position(id); pos > 0 {
		return Admission{Outcome: OutcomeQueued, Position: pos}, nil
	}
	// Another request's fill pass dequeued id and is creating it now.
	return Admission{Outcome: OutcomeQueued, Position: 1}, nil
}

// Touch resets the inactivity timer of an active session. It reports
// whether id was active.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.registry.get(id)
	if !ok || m.closed {
		return false
	}
	m.resetTimerLocked(rec)
	return true
}

// Lookup returns the active session for id.
func (m *Manager) Lookup(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.registry.get(id)
	if !ok {
		return Session{}, false
	}
	return rec.snapshot(), true
}

// ActiveSessions returns the ids of all active sessions, sorted.
func (m *Manager) ActiveSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.ids()
}

// Queued returns the wait queue in FIFO order.
func (m *Manager) Queued() []QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Snapshot()
}

// Stats returns the current occupancy.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

// Close stops every timer, drops all sessions and the queue, and waits for
// in-flight factory calls to return or ctx to end. Later calls fail with
// errors.ErrUnavailable.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, id := range m.registry.ids() {
		rec, _ := m.registry.get(id)
		rec.stopTimer()
		m.registry.delete(id)
	}
	dropped := m.queue.Len()
	m.queue.Clear()
	m.mu.Unlock()

	m.logger.Info("session manager closing", "dropped_queue", dropped)

	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight session creations: %w", ctx.Err())
	}
}

// create runs the factory for a reserved id and installs the session. The
// reservation is consumed on success and left in place on failure.
func (m *Manager) create(ctx context.Context, id string) (Session, error) {
	m.inflight.Add(1)
	defer m.inflight.Done()

	fctx := context.WithoutCancel(ctx)
	if m.factoryTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(fctx, m.factoryTimeout)
		defer cancel()
	}

	start := m.clock.Now()
	h, err := m.factory.Create(fctx, id)
	if err == nil && (h == nil || h.Agent == nil) {
		err = fmt.Errorf("factory returned no agent")
	}
	if err != nil {
		m.logger.Error("session creation failed", "id", id, "error", err)
		return Session{}, &FactoryError{SessionID: id, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Session{}, fmt.Errorf("session manager is closed: %w", errorskg.ErrUnavailable)
	}

	now := m.clock.Now()
	rec := &record{id: id, handle: *h, createdAt: now, lastActive: now}
	m.resetTimerLocked(rec)
	m.registry.put(rec)
	delete(m.pending, id)

	m.logger.Info("session created", "id", id, "active", m.registry.len(),
		"took", now.Sub(start).String())
	return rec.snapshot(), nil
}

// fill promotes queue heads while capacity is free. It stops at the first
// factory failure, leaving the failed entry at the head for the next pass.
func (m *Manager) fill(ctx context.Context) {
	for {
		m.mu.Lock()
		if m.closed || m.queue.Len() == 0 || m.freeLocked() <= 0 {
			m.mu.Unlock()
			return
		}
		entry, _ := m.queue.Dequeue()
		m.reserveLocked(entry.SessionID)
		m.mu.Unlock()

		if err := m.promote(ctx, entry); err != nil {
			return
		}
	}
}

func (m *Manager) promote(ctx context.Context, entry QueueEntry) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "session.promote", trace.WithAttributes(
		attribute.String("session.id", entry.SessionID),
		attribute.String("session.waited", m.clock.Now().Sub(entry.EnqueuedAt).String()),
	))
	defer func() { telemetry.End(span, err) }()

	if _, err = m.create(ctx, entry.SessionID); err != nil {
		m.mu.Lock()
		m.releaseLocked(entry.SessionID)
		if !m.closed {
			m.queue.RequeueHead(entry)
		}
		queued := m.queue.Len()
		m.mu.Unlock()

		m.logger.Error("failed to promote queued session; requeued at head",
			"id", entry.SessionID, "queued", queued, "error", err)
		m.emit(Event{Type: EventPromotionFailed, SessionID: entry.SessionID, Err: err})
		return err
	}

	m.mu.Lock()
	queued := m.queue.Len()
	m.mu.Unlock()
	m.logger.Info("queued session promoted", "id", entry.SessionID, "queued", queued)
	m.emit(Event{Type: EventPromoted, SessionID: entry.SessionID})
	return nil
}

// expire is the timer callback. A callback from a replaced timer, or for a
// session that is already gone, does nothing.
func (m *Manager) expire(id string, gen uint64) {
	m.mu.Lock()
	rec, ok := m.registry.get(id)
	if !ok || rec.gen != gen || m.closed {
		m.mu.Unlock()
		return
	}
	m.registry.delete(id)
	rec.timer = nil
	idle := m.clock.Now().Sub(rec.lastActive)
	active := m.registry.len()
	m.mu.Unlock()

	m.logger.Info("session inactive; cleaning up", "id", id,
		"idle", idle.String(), "active", active)
	m.emit(Event{Type: EventExpired, SessionID: id})

	m.fill(context.Background())
}

func (m *Manager) resetTimerLocked(rec *record) {
	rec.stopTimer()
	rec.gen++
	rec.lastActive = m.clock.Now()
	id, gen := rec.id, rec.gen
	rec.timer = m.clock.AfterFunc(m.inactivity, func() { m.expire(id, gen) })
}

func (m *Manager) freeLocked() int {
	return m.maxActive - m.registry.len() - len(m.pending)
}

func (m *Manager) reserveLocked(id string) {
	m.pending[id] = struct{}{}
}

func (m *Manager) releaseLocked(id string) {
	delete(m.pending, id)
}

func (m *Manager) statsLocked() Stats {
	return Stats{
		Active:    m.registry.len(),
		Pending:   len(m.pending),
		Queued:    m.queue.Len(),
		MaxActive: m.maxActive,
	}
}

func (m *Manager) emit(e Event) {
	if m.hook != nil {
		m.hook(e)
	}
}
