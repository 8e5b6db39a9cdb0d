package config

// Redis backs the IndieAuth rate limiter and the read-path response cache.
// If the server cannot be reached at startup, callers get nil and run
// without either.

import (
	"context"
	"crypto/tls"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is read from:
//
//	REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//	REDIS_ADDR – host:port shorthand, used when host/port are not both set
//	REDIS_PASSWORD – optional password
//	REDIS_DB – database number (default 0)
//	REDIS_TLS – enable TLS when "true" or "1"
//	REDIS_ENABLED – "false" skips Redis entirely
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TLS      bool
}

func RedisFromEnv(lookup Lookup) RedisConfig {
	e := env{lookup: lookup}
	addr := e.str("REDIS_ADDR", "localhost:6379")
	if host, port := e.get("REDIS_HOST"), e.get("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	return RedisConfig{
		Enabled:  e.flag("REDIS_ENABLED", true),
		Addr:     addr,
		Password: e.get("REDIS_PASSWORD"),
		DB:       e.num("REDIS_DB", 0),
		TLS:      e.flag("REDIS_TLS", false),
	}
}

// NewRedisClient connects using the process environment. The returned
// client is nil when Redis is disabled or unreachable.
func NewRedisClient() *redis.Client {
	return NewRedisClientFrom(RedisFromEnv(os.LookupEnv))
}

func NewRedisClientFrom(rc RedisConfig) *redis.Client {
	if !rc.Enabled {
		return nil
	}
	var tlsConf *tls.Config
	if rc.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		TLSConfig: tlsConf,
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
