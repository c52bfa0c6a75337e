package auth

import (
	"context"
	"sync"
	"time"

	"fleet-monitor/compliance/internal/config"
)

// KeyLookup resolves a device API key to its fleet id, "" when unknown.
type KeyLookup interface {
	GetAPIKey(ctx context.Context, apiKey string) (string, error)
}

type cacheEntry struct {
	fleetID   string
	expiresAt time.Time
}

type Authenticator struct {
	localCache sync.Map
	lookup     KeyLookup
	ttl        time.Duration
	staticKeys map[string]bool
	now        func() time.Time
}

func NewAuthenticator(cfg *config.Config, lookup KeyLookup) *Authenticator {
	staticKeys := make(map[string]bool, len(cfg.ValidAPIKeys))
	for _, k := range cfg.ValidAPIKeys {
		if k != "" {
			staticKeys[k] = true
		}
	}

	return &Authenticator{
		lookup:     lookup,
		ttl:        time.Duration(cfg.AuthCacheTTLSeconds) * time.Second,
		staticKeys: staticKeys,
		now:        time.Now,
	}
}

// Resolve checks a device key and returns the fleet it belongs to. Static
// keys carry no fleet and resolve to "". ok is false for unknown keys or
// when the backing lookup fails.
func (a *Authenticator) Resolve(ctx context.Context, apiKey string) (fleetID string, ok bool) {
	if apiKey == "" {
		return "", false
	}

	// Level 0: static config keys
	if a.staticKeys[apiKey] {
		return "", true
	}

	// Level 1: in-memory cache
	if raw, found := a.localCache.Load(apiKey); found {
		entry := raw.(cacheEntry)
		if a.now().Before(entry.expiresAt) {
			return entry.fleetID, true
		}
		a.localCache.Delete(apiKey)
	}

	// Level 2: Redis lookup
	if a.lookup == nil {
		return "", false
	}
	fleetID, err := a.lookup.GetAPIKey(ctx, apiKey)
	if err != nil || fleetID == "" {
		return "", false
	}

	a.localCache.Store(apiKey, cacheEntry{
		fleetID:   fleetID,
		expiresAt: a.now().Add(a.ttl),
	})

	return fleetID, true
}
