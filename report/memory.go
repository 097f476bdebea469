package report

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryTracker stores runs in memory (test/dev only).
type MemoryTracker struct {
	mu      sync.RWMutex
	runs    map[string]Run
	counter uint64
}

// NewMemoryTracker creates an in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{runs: make(map[string]Run)}
}

// Start records a running report.
func (t *MemoryTracker) Start(ctx context.Context, run Run) (string, error) {
	_ = ctx
	if run.ID == "" {
		run.ID = fmt.Sprintf("run-%d", atomic.AddUint64(&t.counter, 1))
	}
	if run.State == "" {
		run.State = StateRunning
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	t.mu.Lock()
	t.runs[run.ID] = run
	t.mu.Unlock()
	return run.ID, nil
}

// Complete marks a run as completed.
func (t *MemoryTracker) Complete(ctx context.Context, id string, rows, bytes int64) error {
	return t.update(ctx, id, func(run *Run) {
		run.State = StateCompleted
		run.Rows = rows
		run.Bytes = bytes
		run.CompletedAt = time.Now()
	})
}

// Fail marks a run as failed.
func (t *MemoryTracker) Fail(ctx context.Context, id string, err error) error {
	return t.update(ctx, id, func(run *Run) {
		run.State = StateFailed
		if err != nil {
			run.Error = err.Error()
		}
		run.CompletedAt = time.Now()
	})
}

// List returns runs newest first.
func (t *MemoryTracker) List(ctx context.Context, filter RunFilter) ([]Run, error) {
	_ = ctx
	t.mu.RLock()
	out := make([]Run, 0, len(t.runs))
	for _, run := range t.runs {
		if matchesFilter(run, filter) {
			out = append(out, run)
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (t *MemoryTracker) update(ctx context.Context, id string, fn func(*Run)) error {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[id]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("report run %q not found", id), nil)
	}
	fn(&run)
	t.runs[id] = run
	return nil
}

func matchesFilter(run Run, filter RunFilter) bool {
	if filter.Kind != "" && run.Kind != filter.Kind {
		return false
	}
	if filter.State != "" && run.State != filter.State {
		return false
	}
	if !filter.Since.IsZero() && run.CreatedAt.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && run.CreatedAt.After(filter.Until) {
		return false
	}
	return true
}

// Prune removes runs created before the cutoff and returns how many were removed.
func (t *MemoryTracker) Prune(ctx context.Context, before time.Time) (int64, error) {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	var removed int64
	for id, run := range t.runs {
		if run.CreatedAt.Before(before) {
			delete(t.runs, id)
			removed++
		}
	}
	return removed, nil
}
