// Package hub fans normalized session events out to real-time subscribers.
// The controller publishes onto an EventBus topic; the hub's synchronous
// bus handler routes each event to every subscriber attached to that
// session id, preserving emission order.
package hub

import (
	"sync"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"

	"github.com/truthmd/truthlink/internal/session"
)

const eventTopic = "session:event"

// subscriberBuffer bounds how far a slow client may fall behind before it
// is dropped and has to resubscribe (resyncing via snapshot).
const subscriberBuffer = 64

// SnapshotFunc rebuilds the event view of a session's current record so a
// late subscriber can catch up. Provided by the lifecycle controller.
type SnapshotFunc func(sessionID string) []session.Event

// Subscriber is one attached real-time client.
type Subscriber struct {
	hub       *Hub
	sessionID string
	ch        chan session.Event
	once      sync.Once
}

// Events yields this subscriber's ordered event stream. The channel is
// closed when the subscriber is dropped or closed.
func (s *Subscriber) Events() <-chan session.Event { return s.ch }

// Close detaches the subscriber. Detaching never affects the session
// itself. Idempotent.
func (s *Subscriber) Close() {
	s.hub.detach(s)
	// the once only guards the channel close; detach is idempotent and must
	// not sit inside it or it would deadlock against dispatch's drop path
	s.once.Do(func() { close(s.ch) })
}

// Hub is the publish/subscribe broker between the lifecycle controller and
// websocket clients.
type Hub struct {
	bus      EventBus.Bus
	snapshot SnapshotFunc

	mu   sync.Mutex
	subs map[string]map[*Subscriber]struct{}
}

// New creates the hub. The snapshot function may be nil, in which case late
// subscribers only receive live events.
func New(snapshot SnapshotFunc) *Hub {
	h := &Hub{
		bus:      EventBus.New(),
		snapshot: snapshot,
		subs:     make(map[string]map[*Subscriber]struct{}),
	}
	// synchronous subscription keeps per-session emission order intact
	if err := h.bus.Subscribe(eventTopic, h.dispatch); err != nil {
		panic(err)
	}
	return h
}

// SetSnapshot installs the resync source after construction (the controller
// and hub reference each other, so one side is wired late).
func (h *Hub) SetSnapshot(snapshot SnapshotFunc) {
	h.mu.Lock()
	h.snapshot = snapshot
	h.mu.Unlock()
}

// Publish implements session.Publisher.
func (h *Hub) Publish(ev session.Event) {
	h.bus.Publish(eventTopic, ev)
}

// Subscribe attaches a new subscriber to a session id. Snapshot frames for
// the current record state are queued before any subsequent live event.
func (h *Hub) Subscribe(sessionID string) *Subscriber {
	sub := &Subscriber{
		hub:       h,
		sessionID: sessionID,
		ch:        make(chan session.Event, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}

	if h.snapshot != nil {
		for _, ev := range h.snapshot(sessionID) {
			sub.ch <- ev
		}
	}
	return sub
}

// dispatch runs on the publisher's goroutine for every bus emission.
func (h *Hub) dispatch(ev session.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[ev.SessionID] {
		select {
		case sub.ch <- ev:
		default:
			// the subscriber stopped draining; cut it loose rather than
			// block every other client of this session
			zap.L().Warn("dropping slow event subscriber",
				zap.String("session_id", ev.SessionID))
			delete(h.subs[ev.SessionID], sub)
			sub.once.Do(func() { close(sub.ch) })
		}
	}
}

func (h *Hub) detach(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.sessionID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.sessionID)
	}
}

// SubscriberCount reports how many clients are attached to a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}
