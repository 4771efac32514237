// Package storage provides the object stores uploaded media is written to.
//
// Every store publishes objects under a public base URL. KeyFromURL only
// recognises URLs carrying that exact prefix, which is how callers decide
// whether a reference belongs to a managed store or was pasted in by hand.
package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore writes and deletes objects addressed by slash separated keys.
type ObjectStore interface {
	// Put stores size bytes read from body under key and returns the
	// permanent public URL of the object.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
	// KeyFromURL maps a public URL back to its key. ok is false for URLs the
	// store did not produce.
	KeyFromURL(rawURL string) (key string, ok bool)
}

// publicURL joins base and key, escaping every key segment.
func publicURL(base, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}

// keyFromURL reverses publicURL.
func keyFromURL(base, rawURL string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if base == "" || !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	rest := rawURL[len(prefix):]
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	key, err := url.PathUnescape(rest)
	if err != nil || key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
