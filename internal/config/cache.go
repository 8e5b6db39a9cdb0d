package config

import (
	"os"
	"time"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching will be disabled.
// Methods lists the HTTP methods to cache (e.g. GET, HEAD).  TTL defines the
// lifetime of cache entries.  KeyStrategy determines which parts of the request
// contribute to the cache key ("route" or "route_query").
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig { return CacheFromEnv(os.LookupEnv) }

// CacheFromEnv reads CACHE_* with defaults.  All methods are upper-cased.
func CacheFromEnv(lookup Lookup) CacheConfig {
	e := env{lookup: lookup}
	c := CacheConfig{
		Enabled:      e.flag("CACHE_ENABLED", true),
		Methods:      e.methods("CACHE_METHODS", "GET"),
		TTL:          e.dur("CACHE_TTL", 5*time.Minute),
		KeyStrategy:  e.str("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       e.str("CACHE_PREFIX", "dwell:cache"),
		MaxBodyBytes: e.num("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if c.TTL <= 0 {
		c.TTL = time.Second
	}
	return c
}
