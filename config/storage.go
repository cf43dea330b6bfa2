package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StorageBackend selects where the persisted session record lives.
type StorageBackend string

const (
	// StorageSQLite keeps the session record in a local sqlite file.
	StorageSQLite StorageBackend = "sqlite"
	// StorageRedis keeps the session record in redis (shared portal deployments).
	StorageRedis StorageBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageBackend.
func (b *StorageBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "sqlite", "redis":
		*b = StorageBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageBackend: %q (valid options: sqlite, redis)", v)
	}
}

// SessionConfig controls session persistence and role resolution.
type SessionConfig struct {
	// Storage selects the persisted session backend.
	Storage StorageBackend `env:"SESSION_STORAGE" envDefault:"sqlite"`

	// SQLitePath is the session database file. Empty means the user config dir.
	SQLitePath string `env:"SESSION_SQLITE_PATH"`

	// RedisPrefix namespaces the session keys when Storage=redis. Keep a
	// {hash tag} in it on Redis Cluster so the record's keys share one slot.
	RedisPrefix string `env:"SESSION_REDIS_PREFIX" envDefault:"{estate:session}:"`

	// RedisTTL expires the stored record when positive. Zero keeps it until sign-out.
	RedisTTL time.Duration `env:"SESSION_REDIS_TTL" envDefault:"0s"`

	// RolePath is a JMESPath expression selecting the role from the identity record.
	RolePath string `env:"SESSION_ROLE_PATH" envDefault:"role"`

	// LocalExpiryCheck rejects JWT bearer tokens whose exp has passed without a network call.
	LocalExpiryCheck bool `env:"SESSION_LOCAL_EXPIRY_CHECK" envDefault:"true"`
}

// Sanitize applies guardrails to session configuration values.
func (c *SessionConfig) Sanitize() {
	if c.Storage == "" {
		c.Storage = StorageSQLite
	}
	c.SQLitePath = strings.TrimSpace(c.SQLitePath)
	if c.SQLitePath == "" {
		c.SQLitePath = DefaultSQLitePath()
	}
	if strings.TrimSpace(c.RedisPrefix) == "" {
		c.RedisPrefix = "{estate:session}:"
	}
	if c.RedisTTL < 0 {
		c.RedisTTL = 0
	}
	if strings.TrimSpace(c.RolePath) == "" {
		c.RolePath = "role"
	}
}

// DefaultSQLitePath returns the session database location under the user config dir,
// falling back to the working directory when no config dir is available.
func DefaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "estate-session.db"
	}
	return filepath.Join(dir, "estate-portal", "session.db")
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
