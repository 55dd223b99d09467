package session

import "context"

// Linker owns exactly one underlying WhatsApp connection for one session
// and normalizes the external library's callbacks into Event values.
// Implementations live in internal/walink; tests substitute fakes.
type Linker interface {
	// Open starts the underlying connection. It returns an error only for
	// failures detectable immediately; everything later arrives as events.
	Open(ctx context.Context) error
	// Events yields normalized events in emission order. The channel is
	// never closed by the linker; consumers stop via context cancellation
	// after a terminal event.
	Events() <-chan Event
	// Close tears the connection down. Idempotent.
	Close()
}

// LinkerFactory builds the linker for a freshly created session.
type LinkerFactory func(sessionID string, method Method, phone string) (Linker, error)

// Publisher receives every normalized event the controller forwards to
// real-time subscribers.
type Publisher interface {
	Publish(Event)
}

// AuditRecorder captures linking-attempt history. Implementations must not
// retain the record. A nil recorder disables auditing.
type AuditRecorder interface {
	SessionCreated(Record)
	SessionClosed(rec Record, message string)
}
