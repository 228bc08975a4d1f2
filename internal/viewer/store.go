package viewer

// Store is the persistence abstraction for viewer sessions.
// The Repository uses Store for all reads and writes and does its own locking.
type Store interface {
	GetSession(id SessionID) (*ViewerSession, bool)
	SetSession(s *ViewerSession)
	DeleteSession(id SessionID)
	ListSessionIDs() []SessionID
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	sessions map[SessionID]*ViewerSession
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[SessionID]*ViewerSession),
	}
}

// GetSession implements Store.GetSession.
func (s *InMemoryStore) GetSession(id SessionID) (*ViewerSession, bool) {
	vs, ok := s.sessions[id]
	return vs, ok
}

// SetSession implements Store.SetSession.
func (s *InMemoryStore) SetSession(vs *ViewerSession) {
	s.sessions[vs.ID] = vs
}

// DeleteSession implements Store.DeleteSession.
func (s *InMemoryStore) DeleteSession(id SessionID) {
	delete(s.sessions, id)
}

// ListSessionIDs implements Store.ListSessionIDs.
func (s *InMemoryStore) ListSessionIDs() []SessionID {
	ids := make([]SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}
