package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed BlobStore. Blobs live under
// <namespace>:blob:<ref>, their metadata under <namespace>:blobmeta:<ref>.
type RedisStore struct {
	client    *redis.Client
	namespace string
	// Expiry bounds how long uploads and derived images stick around.
	// Zero means no expiry.
	expiry time.Duration
}

func NewRedisStore(client *redis.Client, namespace string, expiry time.Duration) *RedisStore {
	return &RedisStore{client: client, namespace: namespace, expiry: expiry}
}

func (s *RedisStore) blobKey(ref string) string {
	return fmt.Sprintf("%s:blob:%s", s.namespace, ref)
}

func (s *RedisStore) metaKey(ref string) string {
	return fmt.Sprintf("%s:blobmeta:%s", s.namespace, ref)
}

func (s *RedisStore) Get(ctx context.Context, ref string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.blobKey(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob from Redis: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, data []byte, meta Meta) (string, error) {
	ref := newRef()

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode blob metadata: %w", err)
	}
	if err := s.client.Set(ctx, s.blobKey(ref), data, s.expiry).Err(); err != nil {
		return "", fmt.Errorf("failed to store blob in Redis: %w", err)
	}
	if err := s.client.Set(ctx, s.metaKey(ref), metaBytes, s.expiry).Err(); err != nil {
		// Metadata is advisory, the blob itself is already stored.
		slog.Warn("failed to store blob metadata in Redis", "ref", ref, "error", err)
	}

	slog.Debug("stored blob in Redis", "ref", ref, "kind", meta.Kind, "bytes", len(data))
	return ref, nil
}
