package session

import "time"

// Store is a string key-value cache with per-entry time-to-live.
type Store interface {
	// Get returns the value for key; ok is false when the key is absent or expired.
	Get(key string) (value string, ok bool)
	Put(key, value string, ttl time.Duration) error
	Close() error
}
