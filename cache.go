package starcms

import (
	"context"
	"sync"
	"time"

	"github.com/eringen/starcms/content"
)

// ContentCache is an in-memory cache of published documents per kind with
// TTL. Every admin write invalidates it.
type ContentCache struct {
	mu      sync.RWMutex
	entries map[content.Kind]cacheEntry
	ttl     time.Duration
	store   *Store
}

type cacheEntry struct {
	docs    []content.Document
	fetched time.Time
}

// NewContentCache creates a ContentCache backed by the given Store.
func NewContentCache(s *Store, ttl time.Duration) *ContentCache {
	return &ContentCache{store: s, ttl: ttl, entries: make(map[content.Kind]cacheEntry)}
}

func (c *ContentCache) valid(e cacheEntry, ok bool) bool {
	return ok && time.Since(e.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ContentCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[content.Kind]cacheEntry)
	c.mu.Unlock()
}

// Published returns the published documents of kind, newest first. It tries
// a read lock first and only takes the write lock when a reload is needed.
func (c *ContentCache) Published(ctx context.Context, kind content.Kind) ([]content.Document, error) {
	c.mu.RLock()
	e, ok := c.entries[kind]
	if c.valid(e, ok) {
		c.mu.RUnlock()
		return e.docs, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[kind]; c.valid(e, ok) {
		return e.docs, nil
	}
	docs, err := c.store.ListAll(ctx, kind, true)
	if err != nil {
		return nil, err
	}
	c.entries[kind] = cacheEntry{docs: docs, fetched: time.Now()}
	return docs, nil
}

// BySlug returns a single published document of kind from the cache.
func (c *ContentCache) BySlug(ctx context.Context, kind content.Kind, slug string) (content.Document, error) {
	docs, err := c.Published(ctx, kind)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.Base().Slug == slug {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

// Celebrities returns the published celebrity profiles.
func (c *ContentCache) Celebrities(ctx context.Context) ([]*content.Celebrity, error) {
	return typed[*content.Celebrity](c.Published(ctx, content.KindCelebrity))
}

// Movies returns the published movies.
func (c *ContentCache) Movies(ctx context.Context) ([]*content.Movie, error) {
	return typed[*content.Movie](c.Published(ctx, content.KindMovie))
}

// News returns the published news articles.
func (c *ContentCache) News(ctx context.Context) ([]*content.News, error) {
	return typed[*content.News](c.Published(ctx, content.KindNews))
}

// Outfits returns the published outfits.
func (c *ContentCache) Outfits(ctx context.Context) ([]*content.Outfit, error) {
	return typed[*content.Outfit](c.Published(ctx, content.KindOutfit))
}

func typed[P content.Document](docs []content.Document, err error) ([]P, error) {
	if err != nil {
		return nil, err
	}
	out := make([]P, 0, len(docs))
	for _, d := range docs {
		if p, ok := d.(P); ok {
			out = append(out, p)
		}
	}
	return out, nil
}
