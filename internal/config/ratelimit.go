package config

import (
	"os"
	"time"
)

// RateLimitConfig configures the token bucket in front of the IndieAuth
// endpoints. KeyStrategy is one of "ip", "route", "ip_route" or
// "ip_me_route".
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig { return RateLimitFromEnv(os.LookupEnv) }

// RateLimitFromEnv reads RATE_LIMIT_* and clamps the bucket to sane values.
func RateLimitFromEnv(lookup Lookup) RateLimitConfig {
	e := env{lookup: lookup}
	def := RateLimitConfig{
		Enabled:        e.flag("RATE_LIMIT_ENABLED", true),
		Capacity:       e.num("RATE_LIMIT_CAPACITY", 20),
		RefillTokens:   e.num("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: e.dur("RATE_LIMIT_REFILL_INTERVAL", 3*time.Second),
		TTL:            e.dur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    e.str("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
		Prefix:         e.str("RATE_LIMIT_PREFIX", "dwell:rl"),
		Debug:          e.flag("RATE_LIMIT_DEBUG", false),
	}
	if b := e.num("RATE_LIMIT_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if every := e.dur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	minTTL := 5 * def.RefillInterval
	if def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}
