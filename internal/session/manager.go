// Package session implements the fixed-capacity, priority-ranked slot table
// described in §4.8: at most C concurrently running session tasks, admitted
// by evicting whichever slot currently holds the lowest priority.
package session

import (
	"context"
	"math"
	"sync"

	"github.com/go-logr/logr"
)

// Logger is the package-wide logger, silent by default.
var Logger logr.Logger = logr.Discard()

// MaxPriority is the priority direct HTTP/2 connections are admitted at
// (§4.8: "cannot be evicted by any WebRTC peer").
const MaxPriority = math.MaxUint32

// Task is a running session's cancellation handle. Cancel must be
// cooperative: it signals the task and the caller awaits Done before the
// slot is considered free (§5 Cancellation).
type Task struct {
	Cancel context.CancelFunc
	Done   <-chan struct{}
}

// slot holds at most one running task with an associated priority. When
// both fields are absent the slot is free with effective priority 0 (§3).
type slot struct {
	task     *Task
	priority uint32
	occupied bool
}

func (s slot) effectivePriority() uint32 {
	if !s.occupied {
		return 0
	}
	return s.priority
}

// Manager is the fixed-size slot table of capacity C.
type Manager struct {
	mu    sync.Mutex
	slots []slot
}

// New returns a Manager with capacity C, typically 2-4 (§4.8).
func New(capacity int) *Manager {
	if capacity < 1 {
		capacity = 1
	}
	return &Manager{slots: make([]slot, capacity)}
}

// Capacity returns C.
func (m *Manager) Capacity() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// Running returns the number of currently occupied slots (§8 invariant 4:
// always <= C by construction, since there is one slot per running task).
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.slots {
		if s.occupied {
			n++
		}
	}
	return n
}

// LowestPriority returns the minimum of active-task priorities; free slots
// contribute 0 (§4.8).
func (m *Manager) LowestPriority() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lowestPriorityLocked()
}

func (m *Manager) lowestPriorityLocked() uint32 {
	min := uint32(math.MaxUint32)
	for _, s := range m.slots {
		p := s.effectivePriority()
		if p < min {
			min = p
		}
	}
	return min
}

// Insert locates the slot with minimum effective priority; if it is
// running, cancels it and awaits cancellation, then installs task at
// priority. Insert always succeeds and never blocks on admission beyond
// awaiting the evicted task's cooperative cancellation (§4.8, §5).
//
// It returns the index of the slot that was used, useful for tests
// asserting eviction monotonicity (§8 invariant 5).
func (m *Manager) Insert(ctx context.Context, task *Task, priority uint32) int {
	m.mu.Lock()
	idx := 0
	min := uint32(math.MaxUint32)
	for i, s := range m.slots {
		p := s.effectivePriority()
		if p < min {
			min = p
			idx = i
		}
	}
	evicted := m.slots[idx]
	m.mu.Unlock()

	if evicted.occupied && evicted.task != nil && evicted.task.Cancel != nil {
		evicted.task.Cancel()
		select {
		case <-evicted.task.Done:
		case <-ctx.Done():
			Logger.Info("context cancelled while awaiting eviction, installing anyway", "slot", idx)
		}
	}

	m.mu.Lock()
	m.slots[idx] = slot{task: task, priority: priority, occupied: true}
	m.mu.Unlock()
	return idx
}

// Drain cancels and awaits every running task, leaving the table empty.
// Used before reconfiguration, which requires quiescing the session
// manager first (§5).
func (m *Manager) Drain(ctx context.Context) {
	m.mu.Lock()
	tasks := make([]*Task, 0, len(m.slots))
	for i := range m.slots {
		if m.slots[i].occupied {
			tasks = append(tasks, m.slots[i].task)
		}
		m.slots[i] = slot{}
	}
	m.mu.Unlock()

	for _, t := range tasks {
		if t == nil || t.Cancel == nil {
			continue
		}
		t.Cancel()
		select {
		case <-t.Done:
		case <-ctx.Done():
			return
		}
	}
}
