package session

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/truthmd/truthlink/pkg/sessionid"
)

// Clock supplies time to the store; injectable for deterministic tests.
type Clock func() time.Time

var phonePattern = regexp.MustCompile(`^[0-9]{6,15}$`)

// Store holds all live session records in memory. It is the only shared
// mutable resource; all mutation goes through Update so reads never observe
// a half-applied patch. Nothing outside the store keeps a *Record.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     Clock
}

// NewStore creates an empty store. A nil clock falls back to time.Now.
func NewStore(now Clock) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{records: make(map[string]*Record), now: now}
}

// Create validates the request, allocates an identifier and inserts a
// pending record. The returned value is a copy.
func (s *Store) Create(method Method, phone string) (Record, error) {
	if !method.Valid() {
		return Record{}, fmt.Errorf("%w: unknown connection method %q", ErrInvalidRequest, method)
	}
	if method == MethodPairing && !phonePattern.MatchString(phone) {
		return Record{}, fmt.Errorf("%w: phone number must be a plain digit string", ErrInvalidRequest)
	}
	if method == MethodQR {
		phone = ""
	}

	now := s.now()
	rec := &Record{
		ID:             sessionid.New(),
		Method:         method,
		PhoneNumber:    phone,
		Status:         StatusPending,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()
	return *rec, nil
}

// Now reads the store's clock.
func (s *Store) Now() time.Time { return s.now() }

// Get returns a copy of the record, if present.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Update applies patch atomically with respect to concurrent reads and
// refreshes LastActivityAt. It reports whether the record existed.
func (s *Store) Update(id string, patch func(*Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	patch(rec)
	rec.LastActivityAt = s.now()
	return true
}

// Remove deletes the record. Idempotent.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
}

// Sweep removes and returns every non-terminal record idle for longer than
// maxIdle. Terminal records are left alone; their removal is already
// scheduled by whoever drove the terminal transition.
func (s *Store) Sweep(maxIdle time.Duration) []Record {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var swept []Record
	for id, rec := range s.records {
		if rec.Status.Terminal() {
			continue
		}
		if now.Sub(rec.LastActivityAt) > maxIdle {
			swept = append(swept, *rec)
			delete(s.records, id)
		}
	}
	return swept
}

// Len reports the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
