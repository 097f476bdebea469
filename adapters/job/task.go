package reportjob

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	errorslib "github.com/goliatone/go-errors"
	reportcmd "github.com/goliatone/go-labreports/command"
	"github.com/goliatone/go-labreports/report"
	job "github.com/goliatone/go-job"
)

const (
	DefaultBatchTaskID   = "report:batch"
	DefaultBatchTaskPath = "report:batch"
)

var (
	backoffRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
	backoffRandMu sync.Mutex
)

// Payload is the batch job input. Empty fields fall back to the batch command defaults.
type Payload struct {
	From string `json:"from,omitempty"`
	Dir  string `json:"dir,omitempty"`
}

// BatchDispatch dispatches a batch run command.
type BatchDispatch func(ctx context.Context, msg reportcmd.RunBatch) error

// TaskConfig configures the batch task.
type TaskConfig struct {
	ID             string
	Path           string
	Config         job.Config
	HandlerOptions job.HandlerOptions
	RetryPolicy    RetryPolicy
	Logger         report.Logger
	Dispatch       BatchDispatch

	// Context bounds runs started through GetHandler.
	Context context.Context
}

// BatchTask runs report batches as go-job executions.
type BatchTask struct {
	id             string
	path           string
	config         job.Config
	handlerOptions job.HandlerOptions
	retryPolicy    RetryPolicy
	logger         report.Logger
	dispatch       BatchDispatch
	ctx            context.Context
}

// NewBatchTask creates a batch task. Dispatch defaults to dispatcher.Dispatch.
func NewBatchTask(cfg TaskConfig) *BatchTask {
	logger := cfg.Logger
	if logger == nil {
		logger = report.NopLogger{}
	}
	id := cfg.ID
	if id == "" {
		id = DefaultBatchTaskID
	}
	path := cfg.Path
	if path == "" {
		path = DefaultBatchTaskPath
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = func(ctx context.Context, msg reportcmd.RunBatch) error {
			return dispatcher.Dispatch(ctx, msg)
		}
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &BatchTask{
		id:             id,
		path:           path,
		config:         cfg.Config,
		handlerOptions: cfg.HandlerOptions,
		retryPolicy:    cfg.RetryPolicy,
		logger:         logger,
		dispatch:       dispatch,
		ctx:            ctx,
	}
}

func (t *BatchTask) GetID() string { return t.id }

// GetHandler runs a default batch outside of a queue.
func (t *BatchTask) GetHandler() func() error {
	return func() error {
		if t == nil {
			return report.NewError(report.KindInternal, "task is nil", nil)
		}
		msg, err := NewMessage(t.id, t.path, t.config, Payload{})
		if err != nil {
			return err
		}
		return t.Execute(t.ctx, msg)
	}
}

func (t *BatchTask) GetHandlerConfig() job.HandlerOptions { return t.handlerOptions }

func (t *BatchTask) GetConfig() job.Config { return t.config }

func (t *BatchTask) GetPath() string { return t.path }

// GetEngine returns nil; the task is code-driven.
func (t *BatchTask) GetEngine() job.Engine { return nil }

// Execute decodes the payload and dispatches the batch, retrying retryable failures.
func (t *BatchTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if t == nil {
		return report.NewError(report.KindInternal, "task is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	policy := t.retryPolicy
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var written []string
		err := t.dispatch(ctx, reportcmd.RunBatch{
			From:    payload.From,
			Dir:     payload.Dir,
			Written: &written,
		})
		if err == nil {
			t.logger.Infof("report batch wrote %d files", len(written))
			return nil
		}
		if !policy.shouldRetry(err) || attempt >= policy.MaxRetries {
			return err
		}

		attempt++
		t.logger.Errorf("report batch attempt %d failed: %v", attempt, err)
		if delay := policy.backoffDelay(attempt); delay > 0 {
			if serr := sleepWithContext(ctx, delay); serr != nil {
				return serr
			}
		}
	}
}

// NewMessage builds the execution message for a batch payload.
func NewMessage(taskID, taskPath string, cfg job.Config, payload Payload) (*job.ExecutionMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, report.NewError(report.KindValidation, "batch payload is not serializable", err)
	}
	return &job.ExecutionMessage{
		JobID:      taskID,
		ScriptPath: taskPath,
		Config:     cfg,
		Parameters: map[string]any{"payload": json.RawMessage(raw)},
	}, nil
}

func decodePayload(msg *job.ExecutionMessage) (Payload, error) {
	if msg == nil {
		return Payload{}, report.NewError(report.KindValidation, "execution message is required", nil)
	}
	raw, ok := msg.Parameters["payload"]
	if !ok || raw == nil {
		return Payload{}, nil
	}

	switch value := raw.(type) {
	case Payload:
		return value, nil
	case *Payload:
		if value == nil {
			return Payload{}, nil
		}
		return *value, nil
	case json.RawMessage:
		return unmarshalPayload(value)
	case []byte:
		return unmarshalPayload(value)
	case string:
		return unmarshalPayload([]byte(value))
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return Payload{}, report.NewError(report.KindValidation, "batch payload is invalid", err)
		}
		return unmarshalPayload(data)
	}
}

func unmarshalPayload(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, nil
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, report.NewError(report.KindValidation, "batch payload is invalid", err)
	}
	return payload, nil
}

// RetryPolicy determines retry behavior for retryable errors.
type RetryPolicy struct {
	MaxRetries int
	Backoff    job.BackoffConfig
	Retryable  func(error) bool
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if err == nil || p.MaxRetries <= 0 {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return defaultRetryable(err)
}

func (p RetryPolicy) backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return computeBackoffDelay(attempt, p.Backoff)
}

// Batch failures reach the task as go-errors from the command handler;
// bare report errors come from custom dispatchers.
func defaultRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errorslib.IsRetryableError(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var goErr *errorslib.Error
	if errors.As(err, &goErr) {
		switch {
		case goErr.Category == errorslib.CategoryInternal:
			return true
		case goErr.Category == errorslib.CategoryOperation && goErr.TextCode == "timeout":
			return true
		}
		return false
	}
	var reportErr *report.Error
	if errors.As(err, &reportErr) {
		switch reportErr.Kind {
		case report.KindTimeout, report.KindInternal:
			return true
		}
	}
	return false
}

func computeBackoffDelay(attempt int, cfg job.BackoffConfig) time.Duration {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	maxInterval := cfg.MaxInterval
	if maxInterval <= 0 {
		maxInterval = 5 * time.Second
	}

	switch cfg.Strategy {
	case job.BackoffFixed:
		return applyJitter(interval, cfg.Jitter)
	case job.BackoffExponential:
		delay := interval
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxInterval {
				delay = maxInterval
				break
			}
		}
		return applyJitter(delay, cfg.Jitter)
	default:
		return 0
	}
}

func applyJitter(delay time.Duration, jitter bool) time.Duration {
	if !jitter || delay <= 0 {
		return delay
	}
	half := float64(delay) * 0.5
	backoffRandMu.Lock()
	offset := (backoffRand.Float64()*2 - 1) * half
	backoffRandMu.Unlock()
	if jittered := float64(delay) + offset; jittered > 0 {
		return time.Duration(jittered)
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
