package walink

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/util/keys"
)

func pairedDevice(t *testing.T) *store.Device {
	t.Helper()
	jid := types.NewJID("2348012345678", types.DefaultUserServer)
	return &store.Device{
		ID:             &jid,
		RegistrationID: 42,
		NoiseKey:       keys.NewKeyPair(),
		IdentityKey:    keys.NewKeyPair(),
		AdvSecretKey:   []byte("adv-secret"),
		Platform:       "chrome",
		PushName:       "TruthLink",
	}
}

func TestMarshalCredentials(t *testing.T) {
	dev := pairedDevice(t)
	raw, err := marshalCredentials(dev)
	require.NoError(t, err)

	var payload credentialPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, dev.ID.String(), payload.JID)
	assert.Equal(t, uint32(42), payload.RegistrationID)
	assert.Equal(t, "chrome", payload.Platform)

	noise, err := base64.StdEncoding.DecodeString(payload.NoiseKey)
	require.NoError(t, err)
	require.Len(t, noise, 64)
	assert.Equal(t, dev.NoiseKey.Priv[:], noise[:32])
	assert.Equal(t, dev.NoiseKey.Pub[:], noise[32:])

	adv, err := base64.StdEncoding.DecodeString(payload.AdvSecretKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("adv-secret"), adv)
}

func TestMarshalCredentialsRefusesPartialDevice(t *testing.T) {
	_, err := marshalCredentials(nil)
	assert.Error(t, err)

	dev := pairedDevice(t)
	dev.ID = nil
	_, err = marshalCredentials(dev)
	assert.Error(t, err, "no partial credential for an unpaired device")

	dev = pairedDevice(t)
	dev.NoiseKey = nil
	_, err = marshalCredentials(dev)
	assert.Error(t, err)
}
