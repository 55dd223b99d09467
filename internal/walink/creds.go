package walink

import (
	"encoding/base64"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/util/keys"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// credentialPayload is the raw credential material exported to the user
// once linking succeeds. The encoder (pkg/credstr) wraps its JSON bytes in
// the external session-string format.
type credentialPayload struct {
	JID            string `json:"jid"`
	RegistrationID uint32 `json:"registrationId"`
	NoiseKey       string `json:"noiseKey"`
	IdentityKey    string `json:"identityKey"`
	AdvSecretKey   string `json:"advSecretKey"`
	Platform       string `json:"platform,omitempty"`
	PushName       string `json:"pushName,omitempty"`
}

// marshalCredentials snapshots the authentication keys out of a fully
// paired device. It refuses to produce a partial payload.
func marshalCredentials(dev *store.Device) ([]byte, error) {
	if dev == nil || dev.ID == nil {
		return nil, errors.New("device has not completed pairing")
	}
	if dev.NoiseKey == nil || dev.IdentityKey == nil {
		return nil, errors.New("device key material missing")
	}
	return json.Marshal(credentialPayload{
		JID:            dev.ID.String(),
		RegistrationID: dev.RegistrationID,
		NoiseKey:       encodeKeyPair(dev.NoiseKey),
		IdentityKey:    encodeKeyPair(dev.IdentityKey),
		AdvSecretKey:   base64.StdEncoding.EncodeToString(dev.AdvSecretKey),
		Platform:       dev.Platform,
		PushName:       dev.PushName,
	})
}

// encodeKeyPair packs private followed by public key bytes.
func encodeKeyPair(kp *keys.KeyPair) string {
	buf := make([]byte, 0, 64)
	buf = append(buf, kp.Priv[:]...)
	buf = append(buf, kp.Pub[:]...)
	return base64.StdEncoding.EncodeToString(buf)
}
