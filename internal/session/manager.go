package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/truthmd/truthlink/pkg/credstr"
)

// Defaults fixed by product requirement; overridable through Options for
// deployments and tests.
const (
	DefaultIdleTimeout = 5 * time.Minute
	DefaultRemoveDelay = 30 * time.Second
)

// Options tune the lifecycle controller.
type Options struct {
	// IdleTimeout is the inactivity window after which the sweep terminates
	// a session.
	IdleTimeout time.Duration
	// RemoveDelay is how long a record outlives its terminal transition so
	// the final fan-out frame and late pollers still see it. Zero removes
	// synchronously.
	RemoveDelay time.Duration
	// Audit records linking-attempt history; nil disables it.
	Audit AuditRecorder
}

// GenerateResult is the synchronous answer to a generation request. Pairing
// code and QR payload arrive later through the event stream.
type GenerateResult struct {
	SessionID   string `json:"sessionId"`
	PairingCode string `json:"pairingCode,omitempty"`
	QRCode      string `json:"qrCode,omitempty"`
	Status      Status `json:"status"`
	Message     string `json:"message"`
}

type linkState struct {
	linker Linker
	cancel context.CancelFunc
}

// Manager drives sessions from creation to a terminal state. It owns every
// record mutation: adapter events, explicit termination and the inactivity
// sweep all funnel through it, serialized by one mutex so transitions stay
// monotonic along the state machine.
type Manager struct {
	store   *Store
	factory LinkerFactory
	pub     Publisher
	audit   AuditRecorder

	idleTimeout time.Duration
	removeDelay time.Duration

	// mu serializes every record mutation: adapter events, explicit
	// termination and the sweep all take it, so there is one writer.
	mu    sync.Mutex
	links map[string]*linkState
}

// NewManager wires the controller. Store, factory and publisher are
// required.
func NewManager(store *Store, factory LinkerFactory, pub Publisher, opts Options) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.RemoveDelay < 0 {
		opts.RemoveDelay = DefaultRemoveDelay
	}
	m := &Manager{
		store:       store,
		factory:     factory,
		pub:         pub,
		audit:       opts.Audit,
		idleTimeout: opts.IdleTimeout,
		removeDelay: opts.RemoveDelay,
		links:       make(map[string]*linkState),
	}
	return m
}

// IdleTimeout reports the configured inactivity window.
func (m *Manager) IdleTimeout() time.Duration { return m.idleTimeout }

// Generate creates a session record and asks the adapter to open a
// connection. It returns once the record exists; it never waits for the
// pairing code or QR payload.
func (m *Manager) Generate(ctx context.Context, method Method, phone string) (GenerateResult, error) {
	rec, err := m.store.Create(method, phone)
	if err != nil {
		return GenerateResult{}, err
	}

	linker, err := m.factory(rec.ID, method, phone)
	if err != nil {
		m.store.Remove(rec.ID)
		return GenerateResult{}, fmt.Errorf("open link adapter: %w", err)
	}

	if m.audit != nil {
		m.audit.SessionCreated(rec)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	st := &linkState{linker: linker, cancel: cancel}
	m.mu.Lock()
	m.links[rec.ID] = st
	m.mu.Unlock()

	go m.run(runCtx, rec.ID, st)

	zap.L().Info("session created",
		zap.String("session_id", rec.ID),
		zap.String("method", string(method)))
	return GenerateResult{
		SessionID: rec.ID,
		Status:    rec.Status,
		Message:   "session created, waiting for the linking flow to start",
	}, nil
}

// run consumes the adapter's event stream for one session until the context
// is cancelled or a terminal event lands.
func (m *Manager) run(ctx context.Context, id string, st *linkState) {
	if err := st.linker.Open(ctx); err != nil {
		zap.L().Warn("link adapter open failed", zap.String("session_id", id), zap.Error(err))
		m.handleEvent(id, st, Event{Kind: EventStatus, Status: StatusFailed, Message: err.Error()})
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-st.linker.Events():
			m.handleEvent(id, st, ev)
		}
	}
}

// handleEvent applies one normalized adapter event to the session. Events
// from a superseded adapter instance are discarded: terminate may have
// replaced or removed the link while a callback was in flight.
func (m *Manager) handleEvent(id string, st *linkState, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links[id] != st {
		zap.L().Debug("discarding event from stale adapter", zap.String("session_id", id))
		return
	}

	rec, ok := m.store.Get(id)
	if !ok || rec.Status.Terminal() {
		return
	}

	ev.SessionID = id
	switch ev.Kind {
	case EventStatus:
		m.applyStatus(rec, st, ev)
	case EventPairingCode:
		if rec.Method != MethodPairing || ev.PairingCode == "" {
			return
		}
		m.store.Update(id, func(r *Record) { r.PairingCode = ev.PairingCode })
		m.pub.Publish(ev)
	case EventQR:
		if rec.Method != MethodQR || ev.QRCode == "" {
			return
		}
		// QR payloads rotate; each emission supersedes the previous one.
		m.store.Update(id, func(r *Record) { r.QRCode = ev.QRCode })
		m.pub.Publish(ev)
	default:
		zap.L().Warn("unexpected adapter event kind",
			zap.String("session_id", id), zap.String("kind", string(ev.Kind)))
	}
}

func (m *Manager) applyStatus(rec Record, st *linkState, ev Event) {
	id := rec.ID
	switch ev.Status {
	case StatusConnecting:
		if rec.Status != StatusPending {
			return
		}
		m.store.Update(id, func(r *Record) { r.Status = StatusConnecting })
		m.pub.Publish(ev)

	case StatusConnected:
		exported := credstr.Encode(ev.Credentials)
		now := m.store.Now()
		m.store.Update(id, func(r *Record) {
			r.Status = StatusConnected
			r.Credential = exported
			r.LinkedAt = &now
		})
		ev.Credentials = nil
		ev.Credential = exported
		m.pub.Publish(ev)
		m.finish(id, st, StatusConnected, ev.Message)
		zap.L().Info("session linked", zap.String("session_id", id))

	case StatusFailed:
		m.store.Update(id, func(r *Record) { r.Status = StatusFailed })
		m.pub.Publish(ev)
		m.finish(id, st, StatusFailed, ev.Message)
		zap.L().Warn("session failed", zap.String("session_id", id), zap.String("reason", ev.Message))

	default:
		zap.L().Warn("adapter emitted unexpected status",
			zap.String("session_id", id), zap.String("status", string(ev.Status)))
	}
}

// finish tears down the adapter and schedules record removal after a
// terminal transition. Caller holds the manager lock.
func (m *Manager) finish(id string, st *linkState, final Status, message string) {
	delete(m.links, id)
	st.cancel()
	go st.linker.Close()

	if m.audit != nil {
		if rec, ok := m.store.Get(id); ok {
			m.audit.SessionClosed(rec, message)
		}
	}
	if m.removeDelay <= 0 {
		m.store.Remove(id)
		return
	}
	time.AfterFunc(m.removeDelay, func() { m.store.Remove(id) })
}

// Terminate moves a non-terminal session to terminated, closes the adapter
// connection and removes the record. Unknown ids fail with
// ErrSessionNotFound, which also makes a second call a harmless no-op. A
// record that already reached a terminal state is treated the same way: it
// only lingers for the removal delay so late pollers can read it, and no
// transition out of a terminal state exists.
func (m *Manager) Terminate(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.store.Get(id)
	if !ok || rec.Status.Terminal() {
		return ErrSessionNotFound
	}
	st := m.links[id]
	delete(m.links, id)

	m.store.Update(id, func(r *Record) { r.Status = StatusTerminated })
	m.pub.Publish(Event{
		SessionID: id,
		Kind:      EventStatus,
		Status:    StatusTerminated,
		Message:   "session terminated",
	})
	if st != nil {
		st.cancel()
		go st.linker.Close()
	}
	if m.audit != nil {
		rec.Status = StatusTerminated
		m.audit.SessionClosed(rec, "terminated by request")
	}
	m.store.Remove(id)

	zap.L().Info("session terminated", zap.String("session_id", id))
	return nil
}

// SweepIdle terminates every session idle beyond the timeout. Invoked on a
// fixed interval by the application scheduler.
func (m *Manager) SweepIdle() []string {
	swept := m.store.Sweep(m.idleTimeout)
	if len(swept) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(swept))
	for _, rec := range swept {
		if st := m.links[rec.ID]; st != nil {
			delete(m.links, rec.ID)
			st.cancel()
			go st.linker.Close()
		}
		m.pub.Publish(Event{
			SessionID: rec.ID,
			Kind:      EventStatus,
			Status:    StatusTerminated,
			Message:   "session timed out",
		})
		if m.audit != nil {
			rec.Status = StatusTerminated
			m.audit.SessionClosed(rec, "inactivity timeout")
		}
		ids = append(ids, rec.ID)
		zap.L().Info("session swept after inactivity", zap.String("session_id", rec.ID))
	}
	return ids
}

// Snapshot returns a copy of the current record.
func (m *Manager) Snapshot(id string) (Record, bool) {
	return m.store.Get(id)
}

// SnapshotEvents rebuilds the event view of the current record so a late
// subscriber can resynchronize: current status first, then the last pairing
// code or QR payload if one was issued.
func (m *Manager) SnapshotEvents(id string) []Event {
	rec, ok := m.store.Get(id)
	if !ok {
		return nil
	}
	evs := []Event{{
		SessionID:  id,
		Kind:       EventStatus,
		Status:     rec.Status,
		Credential: rec.Credential,
	}}
	if rec.PairingCode != "" {
		evs = append(evs, Event{SessionID: id, Kind: EventPairingCode, PairingCode: rec.PairingCode})
	}
	if rec.QRCode != "" {
		evs = append(evs, Event{SessionID: id, Kind: EventQR, QRCode: rec.QRCode})
	}
	return evs
}

// ActiveSessions reports how many records are live.
func (m *Manager) ActiveSessions() int {
	return m.store.Len()
}

// Shutdown closes every live adapter connection. Records are left in place;
// the process is exiting and owns no durable session state anyway.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, st := range m.links {
		st.cancel()
		st.linker.Close()
		delete(m.links, id)
	}
}
