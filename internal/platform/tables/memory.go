package tables

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests. Setting Err makes every
// subsequent Save fail with it; FailTables does the same for single tables.
type MemoryStore struct {
	mu         sync.Mutex
	tables     map[string]Table
	Err        error
	FailTables map[string]error
	Saves      int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]Table)}
}

func (m *MemoryStore) Load(_ context.Context, name string) (Table, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	return t.Clone(), ok, nil
}

func (m *MemoryStore) Save(_ context.Context, name string, t Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return saveErr(name, m.Err)
	}
	if err := m.FailTables[name]; err != nil {
		return saveErr(name, err)
	}
	m.tables[name] = t.Clone()
	m.Saves++
	return nil
}
