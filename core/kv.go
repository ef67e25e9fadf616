package core

import (
	"encoding/json"
	"sync"
)

// memoryKV is the in-process key/value backend handed to native modules that
// persist through the KVGet/KVPut storage abstraction.
type memoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string][]byte)}
}

func (m *memoryKV) KVPut(key []byte, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = encoded
	return nil
}

func (m *memoryKV) KVGet(key []byte, out interface{}) (bool, error) {
	m.mu.RLock()
	encoded, ok := m.data[string(key)]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}
