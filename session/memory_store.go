package session

import (
	"context"
	"sync"
)

// MemoryStore is the process-local session table: a client-id-keyed map
// under one RWMutex. It is the only Store implementation; persistence
// across broker restarts is explicitly out of scope.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Session)}
}

// guard folds the context and closed checks every operation shares.
// Callers hold the appropriate lock.
func (m *MemoryStore) guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrStoreClosed
	}
	return nil
}

func (m *MemoryStore) Save(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.guard(ctx); err != nil {
		return err
	}
	m.byID[session.GetClientID()] = session
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, clientID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.guard(ctx); err != nil {
		return nil, err
	}
	sess, ok := m.byID[clientID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (m *MemoryStore) Delete(ctx context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.guard(ctx); err != nil {
		return err
	}
	delete(m.byID, clientID)
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, clientID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.guard(ctx); err != nil {
		return false, err
	}
	_, ok := m.byID[clientID]
	return ok, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.guard(ctx); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the number of stored sessions, connected or not.
func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.guard(ctx); err != nil {
		return 0, err
	}
	return int64(len(m.byID)), nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.closed = true
	m.byID = nil
	return nil
}
