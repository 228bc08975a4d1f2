package viewer

import (
	"errors"
	"sync"
)

// Repository is the concurrency-safe registry of open viewer sessions.
type Repository interface {
	// Add registers a new session. Adding an existing id is an error.
	Add(s *ViewerSession) error

	// Get returns the session with the given id.
	Get(id SessionID) (*ViewerSession, error)

	// Remove unregisters and returns the session. Removing an unknown id
	// returns ErrSessionNotFound.
	Remove(id SessionID) (*ViewerSession, error)

	// All returns every open session, in no particular order.
	All() []*ViewerSession

	// ActiveSessionCount returns the number of open sessions. Used for metrics.
	ActiveSessionCount() int
}

var (
	// ErrSessionNotFound is returned for an unknown or closed session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when adding a session whose id is taken.
	ErrSessionExists = errors.New("session already exists")
)

// InMemoryRepository is a concurrency-safe Repository on top of a Store.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// Add implements Repository.Add.
func (r *InMemoryRepository) Add(s *ViewerSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetSession(s.ID); exists {
		return ErrSessionExists
	}
	r.store.SetSession(s)
	return nil
}

// Get implements Repository.Get.
func (r *InMemoryRepository) Get(id SessionID) (*ViewerSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.store.GetSession(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove implements Repository.Remove.
func (r *InMemoryRepository) Remove(id SessionID) (*ViewerSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store.GetSession(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	r.store.DeleteSession(id)
	return s, nil
}

// All implements Repository.All.
func (r *InMemoryRepository) All() []*ViewerSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListSessionIDs()
	out := make([]*ViewerSession, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.store.GetSession(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// ActiveSessionCount implements Repository.ActiveSessionCount.
func (r *InMemoryRepository) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store.ListSessionIDs())
}
