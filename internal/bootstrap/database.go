package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/estate-portal/config"
	redisstore "github.com/target/estate-portal/internal/adapters/redis"
	"github.com/target/estate-portal/internal/adapters/sqlite"
	"github.com/target/estate-portal/internal/ports"
)

// StorageConfig contains configuration for the session record store.
type StorageConfig struct {
	Session config.SessionConfig
	Redis   config.RedisConfig
	Logger  *slog.Logger
}

// SessionStore is the opened session record backend.
type SessionStore struct {
	Store ports.KeyStore
	// Events is nil for backends without a local audit trail.
	Events ports.EventRecorder
	close  func() error
}

// Close releases the backend connection.
func (s *SessionStore) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// OpenSessionStore opens the configured session backend.
func OpenSessionStore(ctx context.Context, cfg StorageConfig) (*SessionStore, error) {
	switch cfg.Session.Storage {
	case config.StorageRedis:
		client, err := ConnectRedis(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		store := redisstore.NewKeyStoreWithPrefix(client, cfg.Session.RedisPrefix)
		if cfg.Session.RedisTTL > 0 {
			store = store.WithTTL(cfg.Session.RedisTTL)
		}
		return &SessionStore{Store: store, close: client.Close}, nil
	default:
		path := cfg.Session.SQLitePath
		if path == "" {
			path = config.DefaultSQLitePath()
		}
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		if cfg.Logger != nil {
			cfg.Logger.InfoContext(ctx, "session store opened", "backend", "sqlite", "path", path)
		}
		return &SessionStore{Store: store, Events: store, close: store.Close}, nil
	}
}

const redisPingTimeout = 5 * time.Second

// ConnectRedis opens the redis deployment named by cfg.Redis and pings it.
// Cluster and sentinel modes share one option set; the mode picks the client.
//
//nolint:ireturn // the concrete client depends on the configured topology.
func ConnectRedis(cfg StorageConfig) (redis.UniversalClient, error) {
	opts, mode, err := redisOptions(cfg.Redis)
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	switch mode {
	case redisModeCluster:
		client = redis.NewClusterClient(opts.Cluster())
	case redisModeSentinel:
		client = redis.NewFailoverClient(opts.Failover())
	default:
		client = redis.NewClient(opts.Simple())
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis (%s): %w", mode, pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "mode", string(mode), "addrs", strings.Join(opts.Addrs, ","))
	}
	return client, nil
}

type redisMode string

const (
	redisModeDirect   redisMode = "direct"
	redisModeCluster  redisMode = "cluster"
	redisModeSentinel redisMode = "sentinel"
)

// redisOptions folds the URI and explicit node lists into one option set.
// Credentials embedded in a redis:// URI win over the configured password.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, redisMode, error) {
	opts := &redis.UniversalOptions{Password: cfg.Password, DB: cfg.DB}
	mode := redisModeDirect
	switch {
	case cfg.UseCluster:
		mode = redisModeCluster
		opts.Addrs = trimAddrs(cfg.ClusterNodes)
	case cfg.UseSentinel:
		mode = redisModeSentinel
		opts.Addrs = trimAddrs(cfg.SentinelNodes)
		opts.MasterName = cfg.SentinelMasterName
		opts.SentinelPassword = cfg.SentinelPassword
		if len(opts.Addrs) == 0 {
			return nil, mode, errors.New("redis sentinel mode needs at least one sentinel node")
		}
		return opts, mode, nil
	}

	if len(opts.Addrs) > 0 {
		return opts, mode, nil
	}

	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, mode, fmt.Errorf("redis %s mode needs a URI or node list", mode)
	}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		opts.Addrs = []string{uri}
		return opts, mode, nil
	}

	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return nil, mode, fmt.Errorf("parse redis url: %w", err)
	}
	opts.Addrs = []string{parsed.Addr}
	opts.Username = parsed.Username
	if parsed.Password != "" {
		opts.Password = parsed.Password
	}
	if mode == redisModeDirect {
		opts.DB = parsed.DB
	}
	opts.TLSConfig = parsed.TLSConfig
	return opts, mode, nil
}

func trimAddrs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, addr := range raw {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
