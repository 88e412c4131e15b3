package session

import (
	"fmt"

	"uglink/internal/constants"
)

// ProxyCredential is the session cookie and origin obtained from a handshake.
type ProxyCredential struct {
	Cookie string
	Origin string
}

func (c ProxyCredential) Valid() bool {
	return c.Cookie != "" && c.Origin != ""
}

// LoadCredential reads both cache entries. A lone entry counts as a miss.
func LoadCredential(store Store) (ProxyCredential, bool) {
	cookie, ok := store.Get(constants.CookieCacheKey)
	if !ok || cookie == "" {
		return ProxyCredential{}, false
	}
	origin, ok := store.Get(constants.OriginCacheKey)
	if !ok || origin == "" {
		return ProxyCredential{}, false
	}
	return ProxyCredential{Cookie: cookie, Origin: origin}, true
}

// SaveCredential writes the cookie and origin with the fixed credential TTL.
func SaveCredential(store Store, cred ProxyCredential) error {
	if !cred.Valid() {
		return fmt.Errorf("refusing to cache incomplete credential")
	}
	if err := store.Put(constants.CookieCacheKey, cred.Cookie, constants.CredentialTTL); err != nil {
		return err
	}
	if err := store.Put(constants.OriginCacheKey, cred.Origin, constants.CredentialTTL); err != nil {
		return err
	}
	return nil
}
