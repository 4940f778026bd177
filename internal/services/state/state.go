package state

import (
	"context"
	"fmt"
	"time"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Store keeps the conversation mode selected by each user
type Store interface {
	Get(ctx context.Context, userID int64) (models.Mode, error)
	Set(ctx context.Context, userID int64, mode models.Mode) error
	Clear(ctx context.Context, userID int64) error
	Close() error
}

// NewStore creates the mode store configured by cfg
func NewStore(cfg *config.StateConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Type {
	case "redis":
		return NewRedisStore(cfg, logger)
	case "memory", "":
		return NewMemoryStore(cfg.TTL, logger), nil
	default:
		return nil, fmt.Errorf("unsupported state type: %s", cfg.Type)
	}
}

func modeKey(userID int64) string {
	return fmt.Sprintf("user_mode:%d", userID)
}

// MemoryStore keeps modes in process memory. Modes are lost on restart.
type MemoryStore struct {
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewMemoryStore creates an in-memory store. A zero ttl keeps modes forever.
func NewMemoryStore(ttl time.Duration, logger *logrus.Logger) *MemoryStore {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl * 2
	}
	return &MemoryStore{
		cache:  cache.New(expiration, cleanup),
		logger: logger,
	}
}

func (m *MemoryStore) Get(ctx context.Context, userID int64) (models.Mode, error) {
	val, found := m.cache.Get(modeKey(userID))
	if !found {
		return models.ModeUnset, nil
	}
	return val.(models.Mode), nil
}

func (m *MemoryStore) Set(ctx context.Context, userID int64, mode models.Mode) error {
	m.cache.SetDefault(modeKey(userID), mode)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, userID int64) error {
	m.cache.Delete(modeKey(userID))
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// RedisStore keeps modes in Redis so they survive restarts and are shared
// between replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg *config.StateConfig, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("addr", cfg.Redis.Addr).Info("Mode store connected to redis")

	return &RedisStore{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func (r *RedisStore) Get(ctx context.Context, userID int64) (models.Mode, error) {
	val, err := r.client.Get(ctx, modeKey(userID)).Result()
	if err == redis.Nil {
		return models.ModeUnset, nil
	}
	if err != nil {
		return models.ModeUnset, fmt.Errorf("failed to get mode: %w", err)
	}
	return models.ParseMode(val), nil
}

func (r *RedisStore) Set(ctx context.Context, userID int64, mode models.Mode) error {
	if err := r.client.Set(ctx, modeKey(userID), string(mode), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, modeKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear mode: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
