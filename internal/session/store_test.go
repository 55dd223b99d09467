package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a hand-advanced clock for deterministic sweep tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestStoreCreateValidation(t *testing.T) {
	s := NewStore(nil)

	_, err := s.Create(MethodPairing, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.Create(MethodPairing, "not-digits")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.Create(Method("sms"), "2348012345678")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	rec, err := s.Create(MethodPairing, "2348012345678")
	require.NoError(t, err)
	assert.Regexp(t, `^truth_[0-9a-f]+$`, rec.ID)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "2348012345678", rec.PhoneNumber)
}

func TestStoreQRIgnoresPhone(t *testing.T) {
	s := NewStore(nil)
	rec, err := s.Create(MethodQR, "2348012345678")
	require.NoError(t, err)
	assert.Empty(t, rec.PhoneNumber)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := NewStore(nil)
	rec, err := s.Create(MethodQR, "")
	require.NoError(t, err)

	got, ok := s.Get(rec.ID)
	require.True(t, ok)
	got.Status = StatusFailed // must not leak back into the store

	again, ok := s.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, StatusPending, again.Status)
}

func TestStoreUpdateRefreshesActivity(t *testing.T) {
	clk := newFakeClock()
	s := NewStore(clk.Now)
	rec, err := s.Create(MethodQR, "")
	require.NoError(t, err)

	clk.Advance(90 * time.Second)
	require.True(t, s.Update(rec.ID, func(r *Record) { r.QRCode = "payload-1" }))

	got, _ := s.Get(rec.ID)
	assert.Equal(t, "payload-1", got.QRCode)
	assert.Equal(t, clk.Now(), got.LastActivityAt)

	assert.False(t, s.Update("truth_ffff", func(r *Record) {}))
}

func TestStoreRemoveIdempotent(t *testing.T) {
	s := NewStore(nil)
	rec, err := s.Create(MethodQR, "")
	require.NoError(t, err)

	s.Remove(rec.ID)
	s.Remove(rec.ID) // no panic, no error

	_, ok := s.Get(rec.ID)
	assert.False(t, ok)
}

func TestStoreSweep(t *testing.T) {
	clk := newFakeClock()
	s := NewStore(clk.Now)

	stale, err := s.Create(MethodQR, "")
	require.NoError(t, err)

	clk.Advance(4 * time.Minute)
	fresh, err := s.Create(MethodQR, "")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute) // stale is now 6m idle, fresh only 2m
	swept := s.Sweep(5 * time.Minute)
	require.Len(t, swept, 1)
	assert.Equal(t, stale.ID, swept[0].ID)

	_, ok := s.Get(stale.ID)
	assert.False(t, ok)
	_, ok = s.Get(fresh.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStoreSweepSkipsTerminalRecords(t *testing.T) {
	clk := newFakeClock()
	s := NewStore(clk.Now)

	rec, err := s.Create(MethodQR, "")
	require.NoError(t, err)
	require.True(t, s.Update(rec.ID, func(r *Record) { r.Status = StatusConnected }))

	clk.Advance(10 * time.Minute)
	assert.Empty(t, s.Sweep(5*time.Minute), "terminal records are not the sweep's to remove")

	got, ok := s.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, StatusConnected, got.Status)
}
