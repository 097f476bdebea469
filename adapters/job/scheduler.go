package reportjob

import (
	"context"
	"sync"

	"github.com/goliatone/go-labreports/report"
	job "github.com/goliatone/go-job"
)

// Enqueuer delivers execution messages to go-job.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *job.ExecutionMessage) error
}

// EnqueuerFunc adapts a function to an Enqueuer.
type EnqueuerFunc func(ctx context.Context, msg *job.ExecutionMessage) error

func (f EnqueuerFunc) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if f == nil {
		return report.NewError(report.KindInternal, "enqueuer is nil", nil)
	}
	return f(ctx, msg)
}

// Config configures the batch scheduler.
type Config struct {
	Enqueuer Enqueuer
	TaskID   string
	TaskPath string
	Config   job.Config
	Logger   report.Logger
}

// Scheduler turns batch requests into go-job execution messages.
type Scheduler struct {
	enqueuer Enqueuer
	taskID   string
	taskPath string
	config   job.Config
	logger   report.Logger
}

func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = report.NopLogger{}
	}
	taskID := cfg.TaskID
	if taskID == "" {
		taskID = DefaultBatchTaskID
	}
	taskPath := cfg.TaskPath
	if taskPath == "" {
		taskPath = DefaultBatchTaskPath
	}
	return &Scheduler{
		enqueuer: cfg.Enqueuer,
		taskID:   taskID,
		taskPath: taskPath,
		config:   cfg.Config,
		logger:   logger,
	}
}

// RequestBatch enqueues one batch run.
func (s *Scheduler) RequestBatch(ctx context.Context, payload Payload) error {
	if s == nil {
		return report.NewError(report.KindInternal, "scheduler is nil", nil)
	}
	if s.enqueuer == nil {
		return report.NewError(report.KindNotImpl, "job enqueuer not configured", nil)
	}
	msg, err := NewMessage(s.taskID, s.taskPath, s.config, payload)
	if err != nil {
		return err
	}
	if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
		s.logger.Errorf("report batch enqueue failed: %v", err)
		return err
	}
	s.logger.Debugf("report batch enqueued as %s", s.taskID)
	return nil
}

// LocalEnqueuer runs each message on its own goroutine through a go-job task commander.
// Runs use the enqueue context, so cancelling it stops in-flight batches.
type LocalEnqueuer struct {
	task   *BatchTask
	logger report.Logger
	wg     sync.WaitGroup
}

func NewLocalEnqueuer(task *BatchTask, logger report.Logger) *LocalEnqueuer {
	if logger == nil {
		logger = report.NopLogger{}
	}
	return &LocalEnqueuer{task: task, logger: logger}
}

func (e *LocalEnqueuer) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if e == nil || e.task == nil {
		return report.NewError(report.KindInternal, "batch task not configured", nil)
	}
	if msg == nil {
		return report.NewError(report.KindValidation, "execution message is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := job.NewTaskCommander(e.task)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := cmd.Execute(ctx, msg); err != nil {
			e.logger.Errorf("report batch job failed: %v", err)
		}
	}()
	return nil
}

// Wait blocks until every enqueued run has returned.
func (e *LocalEnqueuer) Wait() {
	if e == nil {
		return
	}
	e.wg.Wait()
}
