package session

import (
	"log"

	"github.com/redis/go-redis/v9"

	"uglink/internal/config"
)

// NewStore picks Redis when configured and falls back to memory when it is
// unreachable.
func NewStore(cfg config.Redis, prefix string) Store {
	if cfg.Enabled() {
		store, err := NewRedisStore(&redis.Options{
			Addr:     cfg.Addr(),
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		}, prefix)
		if err != nil {
			log.Printf("⚠️  Redis connection failed: %v", err)
			log.Println("💾 Falling back to in-memory credential cache")
			return NewMemoryStore()
		}
		log.Printf("💾 Using Redis credential cache: %s", cfg.Addr())
		return store
	}

	log.Println("💾 Using in-memory credential cache")
	return NewMemoryStore()
}
