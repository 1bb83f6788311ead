package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Errors returned by Store implementations.
var (
	ErrNotFound = errors.New("session not found")
	ErrExists   = errors.New("session already exists")
)

// Store keeps sessions by id. Implementations serialize access to each
// session while allowing different sessions to proceed in parallel.
type Store interface {
	// Create adds a new session. It fails with ErrExists if id is taken.
	Create(id, userID string) (*Session, error)
	// Do runs fn with exclusive access to the session. A session deleted
	// before fn could run is reported as ErrNotFound.
	Do(id string, fn func(*Session) error) error
	// Upsert is like Do but creates the session first if needed.
	Upsert(id string, fn func(*Session) error) error
	// Delete removes the session, then runs fn (if non-nil) with exclusive
	// access to it.
	Delete(id string, fn func(*Session) error) error
	// Len returns the number of live sessions.
	Len() int
	// Sweep removes sessions idle for longer than maxIdle and returns
	// their ids.
	Sweep(maxIdle time.Duration) []string
}

// MapStore is an in-memory Store. The map lock only covers lookup, creation
// and deletion; each session has its own lock held for the whole of fn.
type MapStore struct {
	opts Options
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ Store = (*MapStore)(nil)

// NewMapStore creates an empty store whose sessions are sized by opts.
// A nil now uses time.Now.
func NewMapStore(opts Options, now func() time.Time) *MapStore {
	if now == nil {
		now = time.Now
	}
	return &MapStore{
		opts:     opts,
		now:      now,
		sessions: make(map[string]*Session),
	}
}

// Create implements Store.
func (m *MapStore) Create(id, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}
	s := New(id, userID, m.opts, m.now())
	m.sessions[id] = s
	return s, nil
}

// errRemoved reports that a session left the map while a caller waited for
// its lock.
var errRemoved = errors.New("session removed")

// Do implements Store.
func (m *MapStore) Do(id string, fn func(*Session) error) error {
	s, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	err := m.run(id, s, fn)
	if errors.Is(err, errRemoved) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// Upsert implements Store. A session deleted while the caller waited for it
// is replaced by a fresh one, so the frame is never applied to a session
// that is no longer stored.
func (m *MapStore) Upsert(id string, fn func(*Session) error) error {
	for {
		s, ok := m.lookup(id)
		if !ok {
			m.mu.Lock()
			if s, ok = m.sessions[id]; !ok {
				s = New(id, "", m.opts, m.now())
				m.sessions[id] = s
			}
			m.mu.Unlock()
		}
		if err := m.run(id, s, fn); !errors.Is(err, errRemoved) {
			return err
		}
	}
}

func (m *MapStore) lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// run holds s for fn. A non-empty id requires s to still be the stored
// session once its lock is held; errRemoved is returned otherwise.
func (m *MapStore) run(id string, s *Session, fn func(*Session) error) error {
	now := m.now()
	s.touch(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if cur, ok := m.lookup(id); !ok || cur != s {
			return errRemoved
		}
	}
	s.LastSeen = now
	return fn(s)
}

// Delete implements Store.
func (m *MapStore) Delete(id string, fn func(*Session) error) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if fn == nil {
		return nil
	}
	return m.run("", s, fn)
}

// Len implements Store.
func (m *MapStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep implements Store. Idleness is read from the request arrival time, so
// Sweep never waits on a session lock and a session with a frame in flight
// is not idle.
func (m *MapStore) Sweep(maxIdle time.Duration) []string {
	cutoff := m.now().Add(-maxIdle)

	m.mu.RLock()
	idle := make(map[string]*Session)
	for id, s := range m.sessions {
		if s.idleSince(cutoff) {
			idle[id] = s
		}
	}
	m.mu.RUnlock()
	if len(idle) == 0 {
		return nil
	}

	m.mu.Lock()
	var removed []string
	for id, s := range idle {
		// Skip sessions replaced or touched since the scan.
		if cur, ok := m.sessions[id]; ok && cur == s && s.idleSince(cutoff) {
			delete(m.sessions, id)
			removed = append(removed, id)
		}
	}
	m.mu.Unlock()

	sort.Strings(removed)
	return removed
}
