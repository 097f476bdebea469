package report

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryTracker_Lifecycle(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	first, err := tracker.Start(ctx, Run{Kind: KindStudents, Format: FormatCSV, CreatedAt: base})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := tracker.Start(ctx, Run{Kind: KindInventory, Lab: "Y8", Format: FormatPDF, CreatedAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct ids")
	}

	if err := tracker.Complete(ctx, first, 3, 120); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := tracker.Fail(ctx, second, errors.New("engine crashed")); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := tracker.Complete(ctx, "missing", 0, 0); KindFromError(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	runs, err := tracker.List(ctx, RunFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second {
		t.Fatalf("expected newest first, got %+v", runs)
	}
	if runs[0].State != StateFailed || runs[0].Error != "engine crashed" {
		t.Fatalf("unexpected failed run %+v", runs[0])
	}
	if runs[1].State != StateCompleted || runs[1].Rows != 3 || runs[1].Bytes != 120 {
		t.Fatalf("unexpected completed run %+v", runs[1])
	}

	failed, _ := tracker.List(ctx, RunFilter{State: StateFailed})
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed run, got %d", len(failed))
	}
	limited, _ := tracker.List(ctx, RunFilter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
	windowed, _ := tracker.List(ctx, RunFilter{Since: base.Add(30 * time.Minute)})
	if len(windowed) != 1 || windowed[0].ID != second {
		t.Fatalf("expected since filter to apply, got %+v", windowed)
	}

	removed, err := tracker.Prune(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned run, got %d", removed)
	}
	runs, _ = tracker.List(ctx, RunFilter{})
	if len(runs) != 1 || runs[0].ID != second {
		t.Fatalf("unexpected runs after prune %+v", runs)
	}
}
