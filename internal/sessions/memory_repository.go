package sessions

import (
	"context"
	"sync"
)

// MemoryRepository keeps sessions in process when neither Redis nor MongoDB is configured.
type MemoryRepository struct {
	mu    sync.Mutex
	store map[string]Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: map[string]Session{}}
}

func (m *MemoryRepository) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[s.ID] = *s
	return nil
}

func (m *MemoryRepository) Get(ctx context.Context, digest string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[digest]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryRepository) Take(ctx context.Context, digest string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[digest]
	if !ok {
		return nil, nil
	}
	delete(m.store, digest)
	return &s, nil
}

func (m *MemoryRepository) Delete(ctx context.Context, digest string) error {
	_, err := m.Take(ctx, digest)
	return err
}

func (m *MemoryRepository) DeleteBySub(ctx context.Context, sub string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.store {
		if s.Sub == sub {
			delete(m.store, id)
			n++
		}
	}
	return n, nil
}
