package upload

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// PreviewScheme prefixes transient preview handles. A handle names a pending
// task and is only resolvable while that task is pending.
const PreviewScheme = "preview:"

// PreviewHandle returns the preview handle of task id.
func PreviewHandle(id string) string { return PreviewScheme + id }

// IsPreview reports whether ref is a transient preview handle.
func IsPreview(ref string) bool { return strings.HasPrefix(ref, PreviewScheme) }

// Snapshot is a point-in-time view of a Task.
type Snapshot struct {
	ID       string `json:"id"`
	Field    string `json:"field,omitempty"`
	Key      string `json:"key"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	URL      string `json:"url,omitempty"`
	Preview  string `json:"preview,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Task is one file transfer. Progress only moves forward and reaches 100
// exactly when the task succeeds. The preview bytes belong to the task and
// are released as soon as it resolves.
type Task struct {
	ID    string
	Field string
	Key   string

	mu          sync.Mutex
	status      Status
	progress    int
	url         string
	err         error
	preview     []byte
	previewType string
	subs        map[chan Snapshot]struct{}
	onProgress  func(int)
	done        chan struct{}
	cancel      context.CancelFunc
	resolvedAt  time.Time
}

func newTask(id, field, key string, preview []byte, previewType string, onProgress func(int)) *Task {
	return &Task{
		ID:          id,
		Field:       field,
		Key:         key,
		status:      StatusPending,
		preview:     preview,
		previewType: previewType,
		subs:        make(map[chan Snapshot]struct{}),
		onProgress:  onProgress,
		done:        make(chan struct{}),
	}
}

// Snapshot returns the current state of the task.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Task) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:       t.ID,
		Field:    t.Field,
		Key:      t.Key,
		Status:   t.status,
		Progress: t.progress,
		URL:      t.url,
	}
	if t.status == StatusPending {
		s.Preview = PreviewHandle(t.ID)
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}

// Preview returns the bytes behind the preview handle while the task is
// pending.
func (t *Task) Preview() ([]byte, string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPending || t.preview == nil {
		return nil, "", false
	}
	return t.preview, t.previewType, true
}

// Done is closed once the task resolves.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task resolves or ctx ends.
func (t *Task) Wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url, t.err
}

// Abort cancels the transfer if it is still running.
func (t *Task) Abort() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Subscribe returns a channel receiving a snapshot on every change. The
// channel is closed after the terminal snapshot or when unsubscribe is called.
func (t *Task) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)
	t.mu.Lock()
	if t.status != StatusPending {
		ch <- t.snapshotLocked()
		close(ch)
		t.mu.Unlock()
		return ch, func() {}
	}
	t.subs[ch] = struct{}{}
	ch <- t.snapshotLocked()
	t.mu.Unlock()
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.subs[ch]; ok {
			delete(t.subs, ch)
			close(ch)
		}
	}
}

// report records transfer progress. Values are clamped so the sequence never
// decreases and stays below 100 until the task succeeds.
func (t *Task) report(pct int) {
	if pct > 99 {
		pct = 99
	}
	t.mu.Lock()
	if t.status != StatusPending || pct <= t.progress {
		t.mu.Unlock()
		return
	}
	t.progress = pct
	cb := t.onProgress
	t.broadcastLocked()
	t.mu.Unlock()
	if cb != nil {
		cb(pct)
	}
}

func (t *Task) succeed(url string) {
	t.mu.Lock()
	if t.status != StatusPending {
		t.mu.Unlock()
		return
	}
	t.status = StatusSucceeded
	t.progress = 100
	t.url = url
	cb := t.onProgress
	t.finishLocked()
	t.mu.Unlock()
	if cb != nil {
		cb(100)
	}
}

func (t *Task) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPending {
		return
	}
	t.status = StatusFailed
	t.progress = 0
	t.err = err
	t.finishLocked()
}

func (t *Task) finishLocked() {
	t.preview = nil
	t.previewType = ""
	t.cancel = nil
	t.resolvedAt = time.Now()
	s := t.snapshotLocked()
	for ch := range t.subs {
		// subscribers always receive the terminal snapshot, even if a
		// buffered intermediate one has to give way
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
		close(ch)
		delete(t.subs, ch)
	}
	close(t.done)
}

func (t *Task) broadcastLocked() {
	s := t.snapshotLocked()
	for ch := range t.subs {
		select {
		case ch <- s:
		default:
			// slow reader: drop the intermediate value
		}
	}
}
