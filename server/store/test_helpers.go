package store

import (
	"net/http"
	"sync"

	"github.com/mattermost/mattermost/server/public/model"
)

// MemoryKV is an in-memory KVStore for tests.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string][]byte

	// FailKey makes every operation on that key fail.
	FailKey string
}

// NewMemoryKV creates an empty in-memory KV store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) fail(key string) *model.AppError {
	if m.FailKey != "" && m.FailKey == key {
		return model.NewAppError("MemoryKV", "kv.failure", nil, "forced failure for "+key, http.StatusInternalServerError)
	}
	return nil
}

// KVGet returns a copy of the stored value, or nil if the key is absent.
func (m *MemoryKV) KVGet(key string) ([]byte, *model.AppError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(key); err != nil {
		return nil, err
	}

	value, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

// KVSet stores a copy of value.
func (m *MemoryKV) KVSet(key string, value []byte) *model.AppError {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(key); err != nil {
		return err
	}

	m.values[key] = append([]byte(nil), value...)
	return nil
}

// KVDelete removes key.
func (m *MemoryKV) KVDelete(key string) *model.AppError {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(key); err != nil {
		return err
	}

	delete(m.values, key)
	return nil
}

// Keys returns the number of stored keys.
func (m *MemoryKV) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.values)
}
