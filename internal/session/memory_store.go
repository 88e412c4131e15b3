package session

import (
	"log"
	"sync"
	"time"

	"uglink/internal/constants"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

type MemoryStore struct {
	entries sync.Map
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		now:  time.Now,
		done: make(chan struct{}),
	}
	go store.cleanupLoop()
	return store
}

func (st *MemoryStore) Get(key string) (string, bool) {
	val, ok := st.entries.Load(key)
	if !ok {
		return "", false
	}
	entry := val.(memoryEntry)
	if entry.isExpired(st.now()) {
		st.entries.Delete(key)
		return "", false
	}
	return entry.value, true
}

func (st *MemoryStore) Put(key, value string, ttl time.Duration) error {
	st.entries.Store(key, memoryEntry{
		value:     value,
		expiresAt: st.now().Add(ttl),
	})
	return nil
}

// TTL reports the time left before key expires.
func (st *MemoryStore) TTL(key string) (time.Duration, bool) {
	val, ok := st.entries.Load(key)
	if !ok {
		return 0, false
	}
	entry := val.(memoryEntry)
	left := entry.expiresAt.Sub(st.now())
	if left <= 0 {
		return 0, false
	}
	return left, true
}

func (st *MemoryStore) Close() error {
	st.once.Do(func() { close(st.done) })
	return nil
}

func (st *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(constants.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-st.done:
			return
		case <-ticker.C:
			st.cleanupExpired()
		}
	}
}

func (st *MemoryStore) cleanupExpired() {
	now := st.now()
	st.entries.Range(func(key, value interface{}) bool {
		if value.(memoryEntry).isExpired(now) {
			st.entries.Delete(key)
			log.Printf("🗑 Expired cache entry cleaned up: %s", key)
		}
		return true
	})
}
