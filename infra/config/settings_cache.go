package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mstgnz/hummpay/infra/logger"
	redis "github.com/redis/go-redis/v9"
)

// SettingsStorage is the durable store behind CachedSettings.
type SettingsStorage interface {
	LoadSettings(ctx context.Context, storeID int64) (Settings, error)
	SaveSettings(ctx context.Context, settings Settings) error
	DeleteSettings(ctx context.Context, storeID int64) error
}

// CachedSettings is a read-through Redis cache in front of a SettingsStorage.
// A nil Redis client disables caching.
type CachedSettings struct {
	storage SettingsStorage
	redis   *redis.Client
	ttl     time.Duration
	prefix  string
}

// NewCachedSettings builds the settings repository used by the service.
func NewCachedSettings(storage SettingsStorage, client *redis.Client, ttl time.Duration) *CachedSettings {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedSettings{
		storage: storage,
		redis:   client,
		ttl:     ttl,
		prefix:  "humm:settings:",
	}
}

func (c *CachedSettings) key(storeID int64) string {
	return fmt.Sprintf("%s%d", c.prefix, storeID)
}

// Load returns the settings of storeID. Stores without a record get DefaultSettings.
func (c *CachedSettings) Load(ctx context.Context, storeID int64) (Settings, error) {
	if c.redis != nil {
		raw, err := c.redis.Get(ctx, c.key(storeID)).Bytes()
		if err == nil {
			var cached Settings
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		}
		// cache errors fall through to storage
	}

	settings, err := c.storage.LoadSettings(ctx, storeID)
	if errors.Is(err, ErrSettingsNotFound) {
		return DefaultSettings(storeID), nil
	}
	if err != nil {
		return Settings{}, err
	}

	if c.redis != nil {
		if raw, err := json.Marshal(settings); err == nil {
			_ = c.redis.Set(ctx, c.key(storeID), raw, c.ttl).Err()
		}
	}
	return settings, nil
}

// Save persists settings and drops the cached copy before and after the
// write. Once storage has committed, a cache failure is only logged.
func (c *CachedSettings) Save(ctx context.Context, settings Settings) error {
	c.dropCached(ctx, settings.StoreID)
	if err := c.storage.SaveSettings(ctx, settings); err != nil {
		return err
	}
	c.dropCached(ctx, settings.StoreID)
	return nil
}

// Delete removes the stored settings of storeID. A store without settings is not an error.
func (c *CachedSettings) Delete(ctx context.Context, storeID int64) error {
	err := c.storage.DeleteSettings(ctx, storeID)
	if err != nil && !errors.Is(err, ErrSettingsNotFound) {
		return err
	}
	c.dropCached(ctx, storeID)
	return nil
}

func (c *CachedSettings) dropCached(ctx context.Context, storeID int64) {
	if err := c.Invalidate(ctx, storeID); err != nil {
		logger.WithStore(storeID, "").Warn(err.Error())
	}
}

// Invalidate drops the cached settings of storeID.
func (c *CachedSettings) Invalidate(ctx context.Context, storeID int64) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, c.key(storeID)).Err(); err != nil {
		return fmt.Errorf("invalidate settings cache for store %d: %w", storeID, err)
	}
	return nil
}
