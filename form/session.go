// Package form implements server-side editor sessions for content records.
//
// A Session owns one record for the duration of an edit: it applies path based
// field edits, keeps derived fields synchronized, tracks which tab is shown,
// places optimistic upload placeholders into the record, and hands the final
// record to a save collaborator exactly once per submit.
package form

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	ErrClosed         = errors.New("form: session is closed")
	ErrSubmitInFlight = errors.New("form: submit already in progress")
	ErrUnknownTab     = errors.New("form: unknown tab")
	ErrDerivedField   = errors.New("form: field is derived and cannot be edited")
	ErrReadOnlyField  = errors.New("form: field is read-only")
	ErrNoUploadFolder = errors.New("form: record has no upload folder")
)

// Mode tells whether a session creates a new record or edits a stored one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Tab identifies one panel of the editor.
type Tab string

// Schema describes how sessions treat one record type.
type Schema[T any] struct {
	Kind          string
	Tabs          []Tab
	NamePath      string
	SlugPath      string
	Slugify       func(string) string
	Synchronizers []Synchronizer[T]
	// New returns the defaults used in create mode.
	New func() T
	// Hydrate fills raw input proxies from derived values when a stored
	// record is opened for editing.
	Hydrate func(T) T
	// ReadOnly lists paths owned by storage, such as the record id and its
	// timestamps. Edits to them or anything below them are rejected.
	ReadOnly []string
	// Discard reports strings that must never be persisted.
	Discard func(string) bool
	// UploadFolder derives the storage folder for media of a record. It fails
	// with a user-facing error when identifying fields are missing.
	UploadFolder func(T) (string, error)
}

// Hooks connects a session to its collaborators.
type Hooks[T any] struct {
	OnSave   func(ctx context.Context, rec T) (T, error)
	OnCancel func(ctx context.Context)
	// OnOrphans receives URLs uploaded during the session that the final
	// record does not reference.
	OnOrphans func(ctx context.Context, urls []string)
}

// State is the view state of a session.
type State struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Mode           Mode   `json:"mode"`
	Tab            Tab    `json:"tab"`
	Dirty          bool   `json:"dirty"`
	Submitting     bool   `json:"submitting"`
	Closed         bool   `json:"closed"`
	PendingUploads int    `json:"pendingUploads"`
}

// Controller is the type-erased view of a Session used by registries and
// HTTP handlers.
type Controller interface {
	ID() string
	State() State
	Snapshot() any
	Touched() time.Time
	SetField(path string, value any) error
	SelectTab(tab Tab) error
	Submit(ctx context.Context) error
	Cancel(ctx context.Context) error
	UploadFolder() (string, error)
	BeginUpload(taskID, path, placeholder string, abort func()) error
	CompleteUpload(taskID, url string) bool
	FailUpload(taskID string)
	RemoveReference(path, url string) error
}

type pendingUpload struct {
	path        string
	placeholder string
	list        bool
	abort       func()
}

// Session is one edit of a record of type T.
type Session[T any] struct {
	mu         sync.Mutex
	id         string
	schema     *Schema[T]
	hooks      Hooks[T]
	record     T
	mode       Mode
	tab        Tab
	dirty      bool
	submitting bool
	closed     bool
	pending    map[string]pendingUpload
	uploaded   []string
	touched    time.Time
	now        func() time.Time
}

var _ Controller = (*Session[struct{}])(nil)

// NewSession opens a session. A nil existing record starts create mode with
// the schema defaults; otherwise the record is hydrated and edited in place.
func NewSession[T any](id string, schema *Schema[T], existing *T, hooks Hooks[T]) *Session[T] {
	s := &Session[T]{
		id:      id,
		schema:  schema,
		hooks:   hooks,
		mode:    ModeCreate,
		pending: make(map[string]pendingUpload),
		now:     time.Now,
	}
	if len(schema.Tabs) > 0 {
		s.tab = schema.Tabs[0]
	}
	switch {
	case existing != nil:
		s.mode = ModeEdit
		s.record = *existing
		if schema.Hydrate != nil {
			s.record = schema.Hydrate(s.record)
		}
	case schema.New != nil:
		s.record = schema.New()
	}
	s.touched = s.now()
	return s
}

func (s *Session[T]) ID() string { return s.id }

// Record returns the current record.
func (s *Session[T]) Record() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

func (s *Session[T]) Snapshot() any { return s.Record() }

func (s *Session[T]) Touched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

func (s *Session[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:             s.id,
		Kind:           s.schema.Kind,
		Mode:           s.mode,
		Tab:            s.tab,
		Dirty:          s.dirty,
		Submitting:     s.submitting,
		Closed:         s.closed,
		PendingUploads: len(s.pending),
	}
}

// SetField replaces the value at path, regenerates the slug in create mode
// when the name changes, and recomputes every derived field depending on path.
func (s *Session[T]) SetField(path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}
	path = strings.TrimSpace(path)
	if err := s.checkReadOnly(path); err != nil {
		return err
	}
	for _, sy := range s.schema.Synchronizers {
		if path == sy.Target || strings.HasPrefix(path, sy.Target+".") {
			return fmt.Errorf("%w: %s", ErrDerivedField, path)
		}
	}
	next, err := SetPath(s.record, path, value)
	if err != nil {
		return err
	}
	if s.mode == ModeCreate && s.schema.Slugify != nil && s.schema.SlugPath != "" && path == s.schema.NamePath {
		name, _ := GetPath(next, s.schema.NamePath)
		if next, err = SetPath(next, s.schema.SlugPath, s.schema.Slugify(fmt.Sprint(name))); err != nil {
			return err
		}
	}
	if next, err = s.synchronize(next, path); err != nil {
		return err
	}
	s.commit(next)
	return nil
}

func (s *Session[T]) synchronize(rec T, path string) (T, error) {
	var err error
	for _, sy := range s.schema.Synchronizers {
		if !sy.DependsOn(path) {
			continue
		}
		if rec, err = sy.Apply(rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func (s *Session[T]) commit(next T) {
	if !reflect.DeepEqual(next, s.record) {
		s.dirty = true
	}
	s.record = next
	s.touched = s.now()
}

// SelectTab switches the visible panel. It never touches the record.
func (s *Session[T]) SelectTab(tab Tab) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !slices.Contains(s.schema.Tabs, tab) {
		return fmt.Errorf("%w: %s", ErrUnknownTab, tab)
	}
	s.tab = tab
	s.touched = s.now()
	return nil
}

// Submit compacts the record and passes it to OnSave. Only one submit runs
// at a time; a second call while one is in flight fails with
// ErrSubmitInFlight without reaching OnSave. A failed save leaves the session
// open with the record untouched so the editor can retry.
func (s *Session[T]) Submit(ctx context.Context) error {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.hooks.OnSave == nil {
		s.mu.Unlock()
		return errors.New("form: no save handler")
	}
	s.submitting = true
	rec := Compact(s.record, s.schema.Discard)
	s.touched = s.now()
	s.mu.Unlock()

	saved, err := s.hooks.OnSave(ctx, rec)

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.closed = true
	s.record = saved
	s.dirty = false
	aborts := s.drainPending()
	orphans := unreferenced(s.uploaded, saved)
	s.uploaded = nil
	s.mu.Unlock()

	for _, abort := range aborts {
		abort()
	}
	if len(orphans) > 0 && s.hooks.OnOrphans != nil {
		s.hooks.OnOrphans(ctx, orphans)
	}
	return nil
}

// Cancel discards the record, aborts uploads still in flight, reports every
// object uploaded during the session as orphaned, and calls OnCancel.
func (s *Session[T]) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.closed = true
	var zero T
	s.record = zero
	aborts := s.drainPending()
	orphans := s.uploaded
	s.uploaded = nil
	s.mu.Unlock()

	for _, abort := range aborts {
		abort()
	}
	if len(orphans) > 0 && s.hooks.OnOrphans != nil {
		s.hooks.OnOrphans(ctx, orphans)
	}
	if s.hooks.OnCancel != nil {
		s.hooks.OnCancel(ctx)
	}
	return nil
}

// UploadFolder derives the storage folder for media of the current record.
func (s *Session[T]) UploadFolder() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema.UploadFolder == nil {
		return "", ErrNoUploadFolder
	}
	return s.schema.UploadFolder(s.record)
}

// BeginUpload registers an upload task targeting path. For list fields the
// placeholder is appended to the list so the item keeps its position while
// the transfer runs; scalar fields are only written on completion.
func (s *Session[T]) BeginUpload(taskID, path, placeholder string, abort func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}
	if err := s.checkReadOnly(strings.TrimSpace(path)); err != nil {
		return err
	}
	cur, err := GetPath(s.record, path)
	if err != nil {
		return err
	}
	p := pendingUpload{path: path, placeholder: placeholder, abort: abort}
	switch v := cur.(type) {
	case string:
	case []string:
		p.list = true
		next, err := SetPath(s.record, path, append(slices.Clone(v), placeholder))
		if err != nil {
			return err
		}
		s.commit(next)
	default:
		return fmt.Errorf("%w: %s is not an image field", ErrTypeMismatch, path)
	}
	s.pending[taskID] = p
	s.touched = s.now()
	return nil
}

// CompleteUpload writes url where the task's placeholder sits. It returns
// false when the result can no longer be used: the session is closed or the
// placeholder was removed meanwhile. The caller then owns the uploaded object.
func (s *Session[T]) CompleteUpload(taskID, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[taskID]
	if !ok || s.closed {
		return false
	}
	delete(s.pending, taskID)
	var value any = url
	if p.list {
		cur, err := GetPath(s.record, p.path)
		if err != nil {
			return false
		}
		list := slices.Clone(cur.([]string))
		i := slices.Index(list, p.placeholder)
		if i < 0 {
			return false
		}
		list[i] = url
		value = list
	}
	next, err := SetPath(s.record, p.path, value)
	if err != nil {
		return false
	}
	s.commit(next)
	s.uploaded = append(s.uploaded, url)
	return true
}

// FailUpload forgets the task and removes its placeholder.
func (s *Session[T]) FailUpload(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[taskID]
	if !ok {
		return
	}
	delete(s.pending, taskID)
	if s.closed || !p.list {
		return
	}
	cur, err := GetPath(s.record, p.path)
	if err != nil {
		return
	}
	list := slices.DeleteFunc(slices.Clone(cur.([]string)), func(v string) bool { return v == p.placeholder })
	if next, err := SetPath(s.record, p.path, list); err == nil {
		s.commit(next)
	}
}

// RemoveReference clears url from a scalar field or drops it from a list.
func (s *Session[T]) RemoveReference(path, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}
	if err := s.checkReadOnly(strings.TrimSpace(path)); err != nil {
		return err
	}
	cur, err := GetPath(s.record, path)
	if err != nil {
		return err
	}
	var value any
	switch v := cur.(type) {
	case string:
		if v != url {
			return nil
		}
		value = ""
	case []string:
		value = slices.DeleteFunc(slices.Clone(v), func(e string) bool { return e == url })
	default:
		return fmt.Errorf("%w: %s is not an image field", ErrTypeMismatch, path)
	}
	next, err := SetPath(s.record, path, value)
	if err != nil {
		return err
	}
	s.commit(next)
	return nil
}

func (s *Session[T]) checkReadOnly(path string) error {
	for _, ro := range s.schema.ReadOnly {
		if related(path, ro) {
			return fmt.Errorf("%w: %s", ErrReadOnlyField, path)
		}
	}
	return nil
}

func (s *Session[T]) writable() error {
	if s.closed {
		return ErrClosed
	}
	if s.submitting {
		return ErrSubmitInFlight
	}
	return nil
}

func (s *Session[T]) drainPending() []func() {
	var aborts []func()
	for id, p := range s.pending {
		if p.abort != nil {
			aborts = append(aborts, p.abort)
		}
		delete(s.pending, id)
	}
	return aborts
}

// unreferenced returns the urls that no string inside rec equals.
func unreferenced[T any](urls []string, rec T) []string {
	if len(urls) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	collectStrings(reflect.ValueOf(rec), seen)
	var out []string
	for _, u := range urls {
		if !seen[u] {
			out = append(out, u)
		}
	}
	return out
}

func collectStrings(v reflect.Value, seen map[string]bool) {
	switch v.Kind() {
	case reflect.String:
		seen[v.String()] = true
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if sf := v.Type().Field(i); sf.IsExported() || sf.Anonymous {
				collectStrings(v.Field(i), seen)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			collectStrings(v.Index(i), seen)
		}
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			collectStrings(v.Elem(), seen)
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			collectStrings(iter.Value(), seen)
		}
	}
}
