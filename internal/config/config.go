package config // package config loads application configuration from environment variables

import (
	"fmt"
	"log"  // log is used to report configuration errors and halt execution
	"os"   // os provides access to environment variables
	"time" // durations for code lifetime and sweeping

	"github.com/joho/godotenv" // optional .env file loading
)

// Lookup reads one variable. os.LookupEnv satisfies it; tests pass a map.
type Lookup func(key string) (string, bool)

// MapLookup adapts a map to Lookup.
func MapLookup(m map[string]string) Lookup {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	ContentDir string // root of the year=/month=/day= document tree
	IndexDir   string // sqlite generation files
	MediaDir   string // content-addressed uploads
	SiteFile   string // author card, credentials, syndication targets

	JWTSecret         string        // secret used to sign access tokens
	CodeTTL           time.Duration // lifetime of an authorization code
	CodeSweepInterval time.Duration // how often expired codes are purged
	BcryptCost        int           // bcrypt cost for dwellctl passwd

	AuthDBDriver string // "sqlite3" or "mysql"
	AuthDBDSN    string // driver DSN for the codes table

	LogLevel       string
	LogFormat      string // "json" or "console"
	MetricsEnabled bool

	AMQPURL      string // empty disables the broker
	EventsQueue  string
	ReindexQueue string

	RebuildOnStart bool
}

// Load reads an optional .env file, then the environment. A missing or
// invalid required variable halts the program.
func Load() Config {
	_ = godotenv.Load() // a missing .env is not an error
	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// FromEnv builds a Config from lookup, applying defaults.
func FromEnv(lookup Lookup) (Config, error) {
	e := env{lookup: lookup}
	cfg := Config{
		Env:  e.str("APP_ENV", "dev"),
		Port: e.str("APP_PORT", "8080"),

		ContentDir: e.str("CONTENT_DIR", "content"),
		IndexDir:   e.str("INDEX_DIR", "data/index"),
		MediaDir:   e.str("MEDIA_DIR", "static/media"),
		SiteFile:   e.str("SITE_FILE", "site.yaml"),

		JWTSecret:         e.must("JWT_SECRET"),
		CodeTTL:           e.dur("CODE_TTL", 100*365*24*time.Hour),
		CodeSweepInterval: e.dur("CODE_SWEEP_INTERVAL", time.Hour),
		BcryptCost:        e.num("BCRYPT_COST", 12),

		AuthDBDriver: e.str("AUTH_DB_DRIVER", "sqlite3"),

		LogLevel:       e.str("LOG_LEVEL", "info"),
		LogFormat:      e.str("LOG_FORMAT", "json"),
		MetricsEnabled: e.flag("METRICS_ENABLED", true),

		AMQPURL:      e.str("RABBITMQ_URL", e.str("AMQP_URL", "")),
		EventsQueue:  e.str("EVENTS_QUEUE", "dwell.posts"),
		ReindexQueue: e.str("REINDEX_QUEUE", "dwell.reindex"),

		RebuildOnStart: e.flag("REBUILD_ON_START", true),
	}

	switch cfg.AuthDBDriver {
	case "sqlite3":
		cfg.AuthDBDSN = e.str("AUTH_DB_DSN", "data/indieauth.db")
	case "mysql":
		// Same variables the MySQL deployment has always used.
		cfg.AuthDBDSN = e.str("AUTH_DB_DSN", "")
		if cfg.AuthDBDSN == "" {
			cfg.AuthDBDSN = mysqlDSN(
				e.must("DB_USER"),
				e.str("DB_PASS", ""), // database password (empty allowed)
				e.str("DB_HOST", "127.0.0.1"),
				e.str("DB_PORT", "3306"),
				e.must("DB_NAME"),
			)
		}
	default:
		e.fail("AUTH_DB_DRIVER", cfg.AuthDBDriver)
	}

	if cfg.CodeTTL <= 0 {
		e.fail("CODE_TTL", cfg.CodeTTL.String())
	}
	if cfg.CodeSweepInterval <= 0 {
		e.fail("CODE_SWEEP_INTERVAL", cfg.CodeSweepInterval.String())
	}
	if e.err != nil {
		return Config{}, e.err
	}
	return cfg, nil
}

// IsProd reports whether the service runs in production mode.
func (c Config) IsProd() bool { return c.Env == "prod" || c.Env == "production" }

func mysqlDSN(user, pass, host, port, name string) string {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC", auth, host, port, name)
}
