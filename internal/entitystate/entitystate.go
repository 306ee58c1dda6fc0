// Package entitystate holds the synthetic epoch/timestamp counters the
// facades attach to otherwise-stateless upstream data (spec §4.E). Registry,
// group, resource, and version entities are derived on the fly from
// upstream responses; this store only tracks how many times, and when,
// a given path's payload was observed to change.
package entitystate

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// State is the epoch/timestamp triple tracked for one logical path.
type State struct {
	Epoch      int
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Store is a process-local, path-keyed map of State. It is safe for
// concurrent use; multiple facade instances in one process must use
// disjoint Stores (spec §9, "disjoint cache directories").
type Store struct {
	mu     sync.Mutex
	states map[string]*entry
	now    func() time.Time
}

type entry struct {
	state   State
	hash    [32]byte
	hashSet bool
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		states: make(map[string]*entry),
		now:    time.Now,
	}
}

// Get returns the current state for path, seeding it on first observation.
func (s *Store) Get(path string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seedLocked(path).state
}

// Observe records a fresh upstream payload for path. The epoch is bumped
// only when payload's content hash differs from the last observation for
// this path (the chosen resolution of spec §9's open question); otherwise
// only modifiedat-eligibility is checked — a stable payload leaves the
// state untouched.
func (s *Store) Observe(path string, payload []byte) State {
	sum := sha256.Sum256(payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.seedLocked(path)
	if e.hashSet && e.hash == sum {
		return e.state
	}

	now := s.now()
	if e.hashSet {
		// Payload actually changed since the last observation.
		e.state.Epoch++
		e.state.ModifiedAt = now
	}
	e.hash = sum
	e.hashSet = true
	return e.state
}

// Touch bumps modifiedat and epoch unconditionally, for callers that know a
// path changed without re-fetching its payload.
func (s *Store) Touch(path string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.seedLocked(path)
	now := s.now()
	e.state.Epoch++
	e.state.ModifiedAt = now
	return e.state
}

func (s *Store) seedLocked(path string) *entry {
	e, ok := s.states[path]
	if ok {
		return e
	}
	now := s.now()
	e = &entry{state: State{Epoch: 1, CreatedAt: now, ModifiedAt: now}}
	s.states[path] = e
	return e
}

// hashHex is exposed for tests that want to assert on the stored content hash.
func hashHex(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
