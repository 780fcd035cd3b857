package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	polls    map[string]*Poll
	settings *Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{polls: make(map[string]*Poll)}
}

func (m *MemoryStore) GetSettings(ctx context.Context) (*Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, ErrNotFound
	}
	cp := *m.settings
	return &cp, nil
}

func (m *MemoryStore) PutSettings(ctx context.Context, s *Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.UpdatedAt = time.Now().UTC()
	m.settings = &cp
	return nil
}

func (m *MemoryStore) FindPoll(ctx context.Context, id string) (*Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryStore) UpsertPoll(ctx context.Context, p *Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p.Clone()
	cp.UpdatedAt = time.Now().UTC()
	m.polls[p.ID] = cp
	return nil
}

func (m *MemoryStore) FindActivePolls(ctx context.Context) ([]*Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var active []*Poll
	for _, p := range m.polls {
		if p.IsActive {
			active = append(active, p.Clone())
		}
	}
	return active, nil
}

func (m *MemoryStore) MarkPollResolved(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[id]
	if !ok || !p.IsActive {
		return false, nil
	}
	p.IsActive = false
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}
