package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory. The zero value is not
// usable; call NewMemoryStore.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[Field]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[Field]string)}
}

// NewMemoryStoreFrom seeds a store from a snapshot; empty fields are skipped.
func NewMemoryStoreFrom(s Session) *MemoryStore {
	m := NewMemoryStore()
	for f, v := range map[Field]string{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Wallet:       s.Wallet,
		ActiveOrg:    s.ActiveOrg,
	} {
		if v != "" {
			m.values[f] = v
		}
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, f Field) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[f], nil
}

func (m *MemoryStore) Set(_ context.Context, f Field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[f] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, f Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, f)
	return nil
}

var _ Store = (*MemoryStore)(nil)
