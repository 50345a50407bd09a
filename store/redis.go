package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ZaguanLabs/dyntrans"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed translation store. Records are stored as JSON
// under prefix + RecordKey, so the coordinator and the batch engine address
// the same entries from separate processes. Redis has no enumeration of
// source content, so RedisStore does not implement Enumerator.
type RedisStore struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	URL       string // Redis connection URL (e.g., "redis://localhost:6379")
	TTL       int    // TTL in seconds (0 = no expiration)
	KeyPrefix string // Prefix for all keys (default: "dyntrans:")
}

// storedRecord is the JSON wire format for one translation record.
type storedRecord struct {
	ContentType    string    `json:"content_type"`
	ContentID      string    `json:"content_id"`
	Locale         string    `json:"locale"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	SourceHash     string    `json:"source_hash"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewRedisStore creates a new Redis store with the given configuration.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, &dyntrans.StoreError{Message: "parsing redis URL", Cause: err}
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &dyntrans.StoreError{Message: "connecting to redis", Cause: err}
	}

	return NewRedisStoreFromClient(client, cfg.TTL, cfg.KeyPrefix), nil
}

// NewRedisStoreFromClient creates a RedisStore from an existing Redis client.
func NewRedisStoreFromClient(client *redis.Client, ttlSeconds int, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "dyntrans:"
	}

	ttl := time.Duration(ttlSeconds) * time.Second
	if ttlSeconds <= 0 {
		ttl = 0
	}

	return &RedisStore{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
	}
}

// GetCached fetches the records for the given items at the given locale in
// one MGET. Missing keys are misses, not errors.
func (s *RedisStore) GetCached(ctx context.Context, items []Item, locale string) ([]Record, error) {
	if len(items) == 0 {
		return nil, nil
	}

	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = s.keyPrefix + dyntrans.RecordKey(item.ContentType, item.ContentID, locale)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &dyntrans.StoreError{Message: "reading cached translations", Cause: err}
	}

	var out []Record
	for _, val := range vals {
		raw, ok := val.(string)
		if !ok {
			continue // nil = miss
		}
		var stored storedRecord
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, &dyntrans.StoreError{Message: "decoding cached translation", Cause: err}
		}
		// Keys embed the locale, but filter again in case of prefix overlap.
		if stored.Locale != locale {
			continue
		}
		out = append(out, Record(stored))
	}
	return out, nil
}

// Save upserts records with plain SETs; a SET on an existing key replaces it
// in place, which gives last-write-wins under concurrent writers.
func (s *RedisStore) Save(ctx context.Context, records []Record) error {
	for _, rec := range records {
		raw, err := json.Marshal(storedRecord(rec))
		if err != nil {
			return &dyntrans.StoreError{Message: "encoding translation record", Cause: err}
		}
		key := s.keyPrefix + dyntrans.RecordKey(rec.ContentType, rec.ContentID, rec.Locale)
		if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			return &dyntrans.StoreError{Message: "saving translation record", Cause: err}
		}
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping tests the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ Store = (*RedisStore)(nil)
