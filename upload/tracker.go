package upload

import (
	"sync"
	"time"
)

// Tracker indexes tasks by id so progress can be polled or streamed
// independently of where the file sits in a record.
type Tracker struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[string]*Task)}
}

func (tr *Tracker) add(t *Task) {
	tr.mu.Lock()
	tr.tasks[t.ID] = t
	tr.mu.Unlock()
}

// Get returns the task with the given id.
func (tr *Tracker) Get(id string) (*Task, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	t, ok := tr.tasks[id]
	return t, ok
}

// Len returns the number of tracked tasks.
func (tr *Tracker) Len() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.tasks)
}

// Prune forgets tasks resolved more than retain ago and returns how many
// were dropped. Pending tasks are always kept.
func (tr *Tracker) Prune(retain time.Duration) int {
	cutoff := time.Now().Add(-retain)
	tr.mu.Lock()
	defer tr.mu.Unlock()
	n := 0
	for id, t := range tr.tasks {
		t.mu.Lock()
		stale := t.status != StatusPending && t.resolvedAt.Before(cutoff)
		t.mu.Unlock()
		if stale {
			delete(tr.tasks, id)
			n++
		}
	}
	return n
}
