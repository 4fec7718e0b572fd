package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"marqlet-monitor/domain"
)

type publicationBackend interface {
	ListPublicationsByCase(ctx context.Context, caseID string) ([]domain.Publication, error)
	InsertPublication(ctx context.Context, pub domain.Publication) (bool, error)
	MarkPublicationRead(ctx context.Context, caseID, identityKey string) error
}

// Cache wraps a Storage instance with Redis-backed caching for per-case
// publication listings. Writes through to the backing store and evicts the
// affected case's cached list.
type Cache struct {
	*Storage
	base  publicationBackend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base publicationBackend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) ListPublicationsByCase(ctx context.Context, caseID string) ([]domain.Publication, error) {
	if pubs, ok := c.loadFromCache(ctx, caseID); ok {
		return pubs, nil
	}

	pubs, err := c.base.ListPublicationsByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, caseID, pubs)
	return pubs, nil
}

func (c *Cache) InsertPublication(ctx context.Context, pub domain.Publication) (bool, error) {
	created, err := c.base.InsertPublication(ctx, pub)
	if err != nil {
		return false, err
	}
	if created {
		c.evict(ctx, pub.CaseID)
	}
	return created, nil
}

func (c *Cache) MarkPublicationRead(ctx context.Context, caseID, identityKey string) error {
	if err := c.base.MarkPublicationRead(ctx, caseID, identityKey); err != nil {
		return err
	}
	c.evict(ctx, caseID)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, caseID string) ([]domain.Publication, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, publicationsCacheKey(caseID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, publicationsCacheKey(caseID)).Err()
		}
		return nil, false
	}
	var pubs []domain.Publication
	if err := json.Unmarshal(data, &pubs); err != nil {
		_ = c.redis.Del(ctx, publicationsCacheKey(caseID)).Err()
		return nil, false
	}
	return pubs, true
}

func (c *Cache) store(ctx context.Context, caseID string, pubs []domain.Publication) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(pubs)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, publicationsCacheKey(caseID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, caseID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, publicationsCacheKey(caseID)).Result()
}

func publicationsCacheKey(caseID string) string {
	return "pubs:case:" + caseID
}
