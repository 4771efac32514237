package form

import "strings"

// Synchronizer keeps one derived field in step with the raw fields it is
// computed from. The derived field is regenerated whenever a source changes
// and is never written by the editor directly.
type Synchronizer[T any] struct {
	Target  string
	Sources []string
	Compute func(rec T) any
}

// DependsOn reports whether a change at path affects one of the sources.
func (s Synchronizer[T]) DependsOn(path string) bool {
	for _, src := range s.Sources {
		if related(src, path) {
			return true
		}
	}
	return false
}

// Apply recomputes the target field of rec.
func (s Synchronizer[T]) Apply(rec T) (T, error) {
	return SetPath(rec, s.Target, s.Compute(rec))
}

// related is true when a and b are the same path or one contains the other.
func related(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+".") || strings.HasPrefix(b, a+".")
}
