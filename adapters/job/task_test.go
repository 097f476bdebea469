package reportjob

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-errors"
	reportcmd "github.com/goliatone/go-labreports/command"
	"github.com/goliatone/go-labreports/report"
	reportcallback "github.com/goliatone/go-labreports/sources/callback"
	job "github.com/goliatone/go-job"
)

func newBatchCommand(t *testing.T, dir string) *reportcmd.BatchCommand {
	t.Helper()
	svc, err := report.NewService(report.ServiceConfig{
		Source: reportcallback.NewSource(func(ctx context.Context, query string) (report.RowIterator, error) {
			return reportcallback.Rows(report.Row{"Ana", "Pérez", "l20120001@morelia.tecnm.mx"}), nil
		}),
		Now:         func() time.Time { return time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { return "run-1" },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return reportcmd.NewBatchCommand(svc, dir, func(ctx context.Context) ([]reportcmd.BatchRequest, error) {
		return []reportcmd.BatchRequest{{Kind: report.KindAttendants, Format: report.FormatCSV}}, nil
	})
}

func TestBatchTask_GetHandler_DispatchesBatch(t *testing.T) {
	dir := t.TempDir()
	sub := dispatcher.SubscribeCommand(newBatchCommand(t, dir))
	defer sub.Unsubscribe()

	task := NewBatchTask(TaskConfig{})
	if err := task.GetHandler()(); err != nil {
		t.Fatalf("handler: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "attendants_20240309.csv")); err != nil {
		t.Fatalf("expected report file: %v", err)
	}
	if task.GetID() != DefaultBatchTaskID || task.GetPath() != DefaultBatchTaskPath {
		t.Fatalf("unexpected task identity %s %s", task.GetID(), task.GetPath())
	}
	if task.GetEngine() != nil {
		t.Fatalf("expected code-driven task")
	}
}

func TestBatchTask_RetriesRetryableErrors(t *testing.T) {
	var attempts int
	task := NewBatchTask(TaskConfig{
		RetryPolicy: RetryPolicy{
			MaxRetries: 2,
			Backoff:    job.BackoffConfig{Strategy: job.BackoffNone},
		},
		Dispatch: func(ctx context.Context, msg reportcmd.RunBatch) error {
			attempts++
			if attempts < 3 {
				return report.AsGoError(report.NewError(report.KindInternal, "connection reset", nil))
			}
			return nil
		},
	})

	msg, err := NewMessage(DefaultBatchTaskID, DefaultBatchTaskPath, job.Config{}, Payload{})
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if err := task.Execute(context.Background(), msg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestBatchTask_DoesNotRetryValidationErrors(t *testing.T) {
	var attempts int
	task := NewBatchTask(TaskConfig{
		RetryPolicy: RetryPolicy{MaxRetries: 3},
		Dispatch: func(ctx context.Context, msg reportcmd.RunBatch) error {
			attempts++
			return errors.New("output directory is required", errors.CategoryValidation).
				WithTextCode("OUTPUT_DIR_REQUIRED")
		},
	})

	msg, _ := NewMessage(DefaultBatchTaskID, DefaultBatchTaskPath, job.Config{}, Payload{})
	if err := task.Execute(context.Background(), msg); err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestBatchTask_StopsOnCanceledContext(t *testing.T) {
	var attempts int
	task := NewBatchTask(TaskConfig{
		Dispatch: func(ctx context.Context, msg reportcmd.RunBatch) error {
			attempts++
			return nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg, _ := NewMessage(DefaultBatchTaskID, DefaultBatchTaskPath, job.Config{}, Payload{})
	if err := task.Execute(ctx, msg); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected no dispatch, got %d", attempts)
	}
}

func TestDecodePayload(t *testing.T) {
	raw, _ := json.Marshal(Payload{Dir: "/srv/reports"})
	cases := []struct {
		name  string
		value any
		want  Payload
	}{
		{name: "raw", value: json.RawMessage(raw), want: Payload{Dir: "/srv/reports"}},
		{name: "string", value: `{"from":"batch.json"}`, want: Payload{From: "batch.json"}},
		{name: "struct", value: Payload{Dir: "out"}, want: Payload{Dir: "out"}},
		{name: "map", value: map[string]any{"dir": "x"}, want: Payload{Dir: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodePayload(&job.ExecutionMessage{Parameters: map[string]any{"payload": tc.value}})
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}

	if _, err := decodePayload(&job.ExecutionMessage{Parameters: map[string]any{"payload": "{"}}); err == nil {
		t.Fatalf("expected invalid payload error")
	}
	if _, err := decodePayload(nil); err == nil {
		t.Fatalf("expected nil message error")
	}
}

func TestComputeBackoffDelay(t *testing.T) {
	cfg := job.BackoffConfig{
		Strategy:    job.BackoffExponential,
		Interval:    100 * time.Millisecond,
		MaxInterval: 300 * time.Millisecond,
	}
	if got := computeBackoffDelay(1, cfg); got != 100*time.Millisecond {
		t.Fatalf("attempt 1: got %s", got)
	}
	if got := computeBackoffDelay(2, cfg); got != 200*time.Millisecond {
		t.Fatalf("attempt 2: got %s", got)
	}
	if got := computeBackoffDelay(5, cfg); got != 300*time.Millisecond {
		t.Fatalf("attempt 5: got %s", got)
	}
	if got := computeBackoffDelay(3, job.BackoffConfig{Strategy: job.BackoffNone}); got != 0 {
		t.Fatalf("none: got %s", got)
	}
}
