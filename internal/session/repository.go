package session

import (
	"errors"
	"sort"
	"sync"

	"danmaku-overlay/internal/danmaku"
)

// Repository defines the concurrency-safe contract for looking up sessions.
type Repository interface {
	// Create stores s. It fails with ErrSessionExists if the id is taken.
	Create(s *Session) error

	// Get returns the session with the given id or ErrSessionNotFound.
	Get(id SessionID) (*Session, error)

	// Delete removes and returns the session so the caller can shut it down.
	Delete(id SessionID) (*Session, error)

	// List returns every session ordered by id.
	List() []*Session

	// ActiveSessionCount returns the number of sessions whose engine is
	// attached. Used for metrics.
	ActiveSessionCount() int
}

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session with an id that
	// is already in use.
	ErrSessionExists = errors.New("session already exists")
)

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
// Sessions own running engines, so they only ever live in process memory.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[SessionID]*Session
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{sessions: make(map[SessionID]*Session)}
}

// Create implements Repository.Create.
func (r *InMemoryRepository) Create(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return ErrSessionExists
	}
	r.sessions[s.ID] = s
	return nil
}

// Get implements Repository.Get.
func (r *InMemoryRepository) Get(id SessionID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete implements Repository.Delete.
func (r *InMemoryRepository) Delete(id SessionID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(r.sessions, id)
	return s, nil
}

// List implements Repository.List.
func (r *InMemoryRepository) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveSessionCount implements Repository.ActiveSessionCount.
func (r *InMemoryRepository) ActiveSessionCount() int {
	n := 0
	for _, s := range r.List() {
		if s.Engine.State() != danmaku.StateEmpty {
			n++
		}
	}
	return n
}
