package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/ai-assistant-tgbot-go/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Cache remembers generated media URLs per (kind, prompt)
type Cache struct {
	enabled bool
	cache   *cache.Cache
	logger  *logrus.Logger
	maxSize int
}

// NewCache creates a new cache service
func NewCache(cfg *config.CacheConfig, logger *logrus.Logger) *Cache {
	if !cfg.Enabled {
		return &Cache{enabled: false}
	}

	return &Cache{
		enabled: true,
		cache:   cache.New(cfg.TTL, cfg.TTL*2),
		logger:  logger,
		maxSize: cfg.MaxSize,
	}
}

// Get retrieves a cached media URL
func (c *Cache) Get(ctx context.Context, kind, prompt string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	key := c.generateKey(kind, prompt)
	if val, found := c.cache.Get(key); found {
		entry := val.(*models.CacheEntry)
		c.logger.WithFields(logrus.Fields{
			"kind": kind,
			"age":  time.Since(entry.CreatedAt),
		}).Debug("Cache hit")
		return entry.URL, true
	}

	return "", false
}

// Set stores a media URL in cache
func (c *Cache) Set(ctx context.Context, kind, prompt, url string) error {
	if !c.enabled {
		return nil
	}

	if c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.logger.Warn("Cache size limit reached, clearing old entries")
		c.cache.DeleteExpired()
		if c.cache.ItemCount() >= c.maxSize {
			c.cache.Flush()
		}
	}

	key := c.generateKey(kind, prompt)
	entry := &models.CacheEntry{
		URL:       url,
		CreatedAt: time.Now(),
	}

	c.cache.SetDefault(key, entry)
	c.logger.WithField("kind", kind).Debug("Media url cached")

	return nil
}

// Delete drops one entry, e.g. a URL Telegram refused to fetch
func (c *Cache) Delete(ctx context.Context, kind, prompt string) error {
	if !c.enabled {
		return nil
	}

	c.cache.Delete(c.generateKey(kind, prompt))
	c.logger.WithField("kind", kind).Debug("Media url evicted")
	return nil
}

// The prompt is keyed verbatim: generators embed it in the URL as is.
func (c *Cache) generateKey(kind, prompt string) string {
	data := fmt.Sprintf("%s:%s", kind, prompt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
