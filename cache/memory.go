package cache

import (
	"strings"
	"sync"
)

type MemCache struct {
	mutex *sync.RWMutex
	db    map[string]CacheEntry
}

func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[string]CacheEntry),
	}
}

func (m MemCache) Get(key string) (CacheEntry, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entry, ok := m.db[key]
	entry.Payload = copyBytes(entry.Payload)
	return entry, ok, nil
}

func (m MemCache) Put(ce CacheEntry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	ce.Payload = copyBytes(ce.Payload)
	m.db[ce.Key] = ce
	return nil
}

// entries never share a payload with callers
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (m MemCache) Purge(key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, key)
	return nil
}

func (m MemCache) Has(key string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.db[key]
	return ok
}

func (m MemCache) AllKeys(prefix string, cb func(string)) {
	m.mutex.RLock()
	keys := make([]string, 0, len(m.db))
	for key := range m.db {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	m.mutex.RUnlock()
	for _, key := range keys {
		cb(key)
	}
}
