package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

var _ ViewCache = (*RedisViewCache)(nil)

const viewKeyPrefix = "itinerary:view:"

// RedisViewCache keeps assembled itinerary views for ttl.
type RedisViewCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisViewCache(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RedisViewCache {
	return &RedisViewCache{client: client, ttl: ttl, logger: logger}
}

type cachedView struct {
	OwnerID string               `json:"ownerId"`
	View    *types.ItineraryView `json:"view"`
}

func (c *RedisViewCache) Get(ctx context.Context, itineraryID string) (*types.ItineraryView, string, error) {
	raw, err := c.client.Get(ctx, viewKey(itineraryID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, "", ErrCacheMiss
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read cached view: %w", err)
	}
	var entry cachedView
	if err := json.Unmarshal(raw, &entry); err != nil || entry.View == nil {
		c.logger.WarnContext(ctx, "Discarding unreadable cached view", slog.String("itineraryID", itineraryID))
		_ = c.client.Del(ctx, viewKey(itineraryID)).Err()
		return nil, "", ErrCacheMiss
	}
	return entry.View, entry.OwnerID, nil
}

func (c *RedisViewCache) Set(ctx context.Context, ownerID string, view *types.ItineraryView) error {
	raw, err := json.Marshal(cachedView{OwnerID: ownerID, View: view})
	if err != nil {
		return fmt.Errorf("failed to encode view: %w", err)
	}
	if err := c.client.Set(ctx, viewKey(view.ItineraryID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache view: %w", err)
	}
	return nil
}

func (c *RedisViewCache) Delete(ctx context.Context, itineraryID string) error {
	if err := c.client.Del(ctx, viewKey(itineraryID)).Err(); err != nil {
		return fmt.Errorf("failed to evict cached view: %w", err)
	}
	return nil
}

func viewKey(id string) string {
	return viewKeyPrefix + id
}
