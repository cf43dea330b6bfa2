// Package redis provides the Redis-backed session record store for shared
// portal deployments.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/estate-portal/internal/ports"
)

// defaultPrefix carries a hash tag so every entry of a record maps to the same
// cluster slot and MULTI/EXEC stays valid on Redis Cluster.
const defaultPrefix = "{estate:session}:"

// KeyStore keeps session entries under prefixed keys. Writes go through
// MULTI/EXEC so readers never observe a half-written record.
type KeyStore struct {
	client redis.UniversalClient
	prefix string
	// TTL, when positive, expires every entry written by Set.
	ttl time.Duration
}

var _ ports.KeyStore = (*KeyStore)(nil)

// NewKeyStore creates a Redis key store with the default prefix.
func NewKeyStore(client redis.UniversalClient) *KeyStore {
	return NewKeyStoreWithPrefix(client, defaultPrefix)
}

// NewKeyStoreWithPrefix creates a Redis key store with a custom key prefix.
func NewKeyStoreWithPrefix(client redis.UniversalClient, prefix string) *KeyStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &KeyStore{client: client, prefix: prefix}
}

// WithTTL returns a copy of the store that expires written entries after ttl.
func (s *KeyStore) WithTTL(ttl time.Duration) *KeyStore {
	cp := *s
	cp.ttl = ttl
	return &cp
}

func (s *KeyStore) key(k string) string { return s.prefix + k }

// Get returns the entries present for keys.
func (s *KeyStore) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}

	// MGET on a cluster requires one slot; fall back to a pipeline there.
	if _, isCluster := s.client.(*redis.ClusterClient); isCluster {
		return s.getPipelined(ctx, keys)
	}

	vals, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

func (s *KeyStore) getPipelined(ctx context.Context, keys []string) (map[string]string, error) {
	cmds := make([]*redis.StringCmd, len(keys))
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.Get(ctx, s.key(k))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	out := make(map[string]string, len(keys))
	for i, cmd := range cmds {
		v, cmdErr := cmd.Result()
		if errors.Is(cmdErr, redis.Nil) {
			continue
		}
		if cmdErr != nil {
			return nil, fmt.Errorf("redis get %s: %w", keys[i], cmdErr)
		}
		out[keys[i]] = v
	}
	return out, nil
}

// Set writes every entry in one MULTI/EXEC transaction.
func (s *KeyStore) Set(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range entries {
			p.Set(ctx, s.key(k), v, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes keys in one MULTI/EXEC transaction.
func (s *KeyStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Del(ctx, s.key(k))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
