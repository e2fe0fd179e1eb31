// Package session stores refresh tokens in Redis, keyed by token hash.
// When Redis is not configured the API still works with access tokens only;
// refresh simply becomes unavailable.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("refresh token not found or expired")

// TokenData is what we keep per refresh token.
type TokenData struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "refresh:"}, nil
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

// Save stores a refresh token hash with its owning username, expiring at
// expiresAt.
func (s *RedisStore) Save(ctx context.Context, tokenHash, username string, expiresAt time.Time) error {
	data, err := json.Marshal(TokenData{Username: username, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	if err := s.client.Set(ctx, s.key(tokenHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// Lookup resolves a refresh token hash to the username it was issued to.
func (s *RedisStore) Lookup(ctx context.Context, tokenHash string) (string, error) {
	raw, err := s.client.Get(ctx, s.key(tokenHash)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup refresh token: %w", err)
	}

	var data TokenData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", fmt.Errorf("unmarshal token data: %w", err)
	}
	return data.Username, nil
}

// Revoke deletes a refresh token.
func (s *RedisStore) Revoke(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
