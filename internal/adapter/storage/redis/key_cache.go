package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payflow-gateway/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// KeyCache implements ports.KeyCache using Redis. Entries carry the key
// row plus its merchant so hot-path authentication skips the database.
type KeyCache struct {
	client *goredis.Client
	prefix string
}

// NewKeyCache creates a new Redis-backed key cache.
func NewKeyCache(client *goredis.Client) *KeyCache {
	return &KeyCache{
		client: client,
		prefix: "apikey:",
	}
}

// cachedKeyEntry is the stored form of ports.CachedKey. domain.ApiKey
// hides its secret hash from JSON, so the hash is carried separately.
type cachedKeyEntry struct {
	ports.CachedKey
	SecretHash string `json:"secret_hash"`
}

// Get retrieves a cached key entry. Returns nil, nil on a miss.
func (c *KeyCache) Get(ctx context.Context, keyID string) (*ports.CachedKey, error) {
	val, err := c.client.Get(ctx, c.prefix+keyID).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis key cache get: %w", err)
	}

	var entry cachedKeyEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("redis key cache decode: %w", err)
	}
	entry.Key.KeySecretHash = entry.SecretHash
	return &entry.CachedKey, nil
}

// Set stores a key entry with TTL.
func (c *KeyCache) Set(ctx context.Context, keyID string, value *ports.CachedKey, ttl time.Duration) error {
	body, err := json.Marshal(cachedKeyEntry{CachedKey: *value, SecretHash: value.Key.KeySecretHash})
	if err != nil {
		return fmt.Errorf("redis key cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+keyID, body, ttl).Err(); err != nil {
		return fmt.Errorf("redis key cache set: %w", err)
	}
	return nil
}

// Delete drops a key entry so the next lookup hits the database.
func (c *KeyCache) Delete(ctx context.Context, keyID string) error {
	if err := c.client.Del(ctx, c.prefix+keyID).Err(); err != nil {
		return fmt.Errorf("redis key cache delete: %w", err)
	}
	return nil
}
