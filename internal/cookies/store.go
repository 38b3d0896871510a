// Package cookies stores the widget nonce under a single named key, either in a
// cookie jar shared with the HTTP client or in memory.
package cookies

import (
	"net/url"
	"strings"
	"sync"
)

// Store gets, sets and clears a named value. Absence is the empty string.
type Store interface {
	Get(key string) string
	Set(key, value string)
	Clear(key string)
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

func (m *MemoryStore) Set(key, value string) {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
}

func (m *MemoryStore) Clear(key string) {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
}

// ParseHeader looks key up in a document-cookie style string such as
// "a=1; uber-nonce=abc". The string is URL-decoded first and the first pair
// whose name matches wins.
func ParseHeader(raw, key string) string {
	if raw == "" || key == "" {
		return ""
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	prefix := key + "="
	for _, part := range strings.Split(decoded, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, prefix) {
			return part[len(prefix):]
		}
	}
	return ""
}
