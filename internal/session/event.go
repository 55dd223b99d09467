package session

// EventKind tags the normalized events the link adapter produces. The
// external WhatsApp client's callback payloads never cross this boundary;
// the controller and the fan-out hub only ever see Event values.
type EventKind string

const (
	EventStatus      EventKind = "status"
	EventPairingCode EventKind = "pairing_code"
	EventQR          EventKind = "qr"
)

// Event is one normalized adapter or controller emission for a session.
type Event struct {
	SessionID string
	Kind      EventKind

	// Status fields, set when Kind == EventStatus.
	Status  Status
	Message string

	// Credentials carries the raw credential material, present only on the
	// single status event that enters StatusConnected.
	Credentials []byte

	// Credential is the exported credential string, filled in by the
	// controller before fan-out so subscribers never see raw material.
	Credential string

	PairingCode string
	QRCode      string
}
