package storage

import (
	"context"
	"io"
	"sync"
)

// Lazy defers building an ObjectStore until first use and then reuses it for
// the lifetime of the process. A failed build is not memoized, so the next
// call retries.
type Lazy struct {
	mu      sync.Mutex
	store   ObjectStore
	factory func(ctx context.Context) (ObjectStore, error)
	// keys answers KeyFromURL before the store exists.
	keys func(rawURL string) (string, bool)
}

// NewLazy wraps factory. keyFromURL must recognise the URLs the built store
// produces so ownership checks never force initialization.
func NewLazy(factory func(ctx context.Context) (ObjectStore, error), keyFromURL func(string) (string, bool)) *Lazy {
	return &Lazy{factory: factory, keys: keyFromURL}
}

// Get returns the store, building it on the first successful call.
func (l *Lazy) Get(ctx context.Context) (ObjectStore, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.store, nil
	}
	s, err := l.factory(ctx)
	if err != nil {
		return nil, err
	}
	l.store = s
	return s, nil
}

func (l *Lazy) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return "", err
	}
	return s.Put(ctx, key, body, size, contentType)
}

func (l *Lazy) Delete(ctx context.Context, key string) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.Delete(ctx, key)
}

func (l *Lazy) KeyFromURL(rawURL string) (string, bool) {
	if l.keys != nil {
		return l.keys(rawURL)
	}
	l.mu.Lock()
	s := l.store
	l.mu.Unlock()
	if s == nil {
		return "", false
	}
	return s.KeyFromURL(rawURL)
}

// LazyS3 returns a Lazy that builds an S3Store from cfg on first use.
func LazyS3(cfg S3Config) *Lazy {
	base := cfg.withDefaults().baseURL()
	return NewLazy(func(ctx context.Context) (ObjectStore, error) {
		return NewS3Store(ctx, cfg)
	}, func(rawURL string) (string, bool) {
		return keyFromURL(base, rawURL)
	})
}
