package session

import "time"

// Method selects how the phone authorizes the new linked device.
type Method string

const (
	MethodPairing Method = "pairing"
	MethodQR      Method = "qr"
)

// Valid reports whether m is a known connection method.
func (m Method) Valid() bool {
	return m == MethodPairing || m == MethodQR
}

// Status is the lifecycle state of a linking session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusFailed     Status = "failed"
	StatusTerminated Status = "terminated"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusConnected || s == StatusFailed || s == StatusTerminated
}

// Record is the unit of session state. Records live only in the Store;
// every other component refers to a session by id and works on copies.
type Record struct {
	ID          string `json:"id"`
	Method      Method `json:"connectionMethod"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Status      Status `json:"status"`

	// Exactly one of PairingCode/QRCode is ever populated, matching Method.
	PairingCode string `json:"pairingCode,omitempty"`
	QRCode      string `json:"qrCode,omitempty"`

	// Credential is the exported session string (TRUTH-MD:~<base64>),
	// populated exactly once, on the transition into StatusConnected.
	Credential string `json:"credential,omitempty"`

	CreatedAt      time.Time  `json:"createdAt"`
	LinkedAt       *time.Time `json:"linkedAt,omitempty"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
}
