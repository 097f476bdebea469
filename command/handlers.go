package command

import (
	"context"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-labreports/report"
)

// GenerateReportHandler runs report generation.
type GenerateReportHandler struct {
	Service report.Service
}

func NewGenerateReportHandler(svc report.Service) *GenerateReportHandler {
	return &GenerateReportHandler{Service: svc}
}

func (h *GenerateReportHandler) Execute(ctx context.Context, msg GenerateReport) error {
	if h == nil || h.Service == nil {
		return errors.New("report service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	result, err := h.Service.Generate(ctx, report.Request{
		Kind:   msg.Kind,
		Lab:    msg.Lab,
		Format: msg.Format,
	}, msg.Output)
	if err != nil {
		return report.AsGoError(err)
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[report.Result](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

// RunPruner deletes old run records.
type RunPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// PruneRunsHandler removes old run history.
type PruneRunsHandler struct {
	Pruner    RunPruner
	Retention time.Duration
	Config    gcmd.HandlerConfig
	Clock     func() time.Time

	// BaseContext bounds scheduled runs; nil means context.Background.
	BaseContext context.Context
}

func NewPruneRunsHandler(pruner RunPruner, retention time.Duration) *PruneRunsHandler {
	return &PruneRunsHandler{
		Pruner:    pruner,
		Retention: retention,
		Config:    gcmd.HandlerConfig{Expression: "30 3 * * *"},
	}
}

func (h *PruneRunsHandler) Execute(ctx context.Context, msg PruneRuns) error {
	if h == nil || h.Pruner == nil {
		return errors.New("run pruner is required", errors.CategoryInternal).
			WithTextCode("PRUNER_REQUIRED")
	}
	before := msg.Before
	if before.IsZero() {
		if h.Retention <= 0 {
			return errors.New("retention or cutoff is required", errors.CategoryValidation).
				WithTextCode("RETENTION_REQUIRED")
		}
		now := time.Now
		if h.Clock != nil {
			now = h.Clock
		}
		before = now().Add(-h.Retention)
	}
	count, err := h.Pruner.Prune(ctx, before)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = count
	}
	if res := gcmd.ResultFromContext[int64](ctx); res != nil {
		res.Store(count)
	}
	return nil
}

func (h *PruneRunsHandler) CronHandler() func() error {
	return func() error {
		ctx := h.BaseContext
		if ctx == nil {
			ctx = context.Background()
		}
		return h.Execute(ctx, PruneRuns{})
	}
}

func (h *PruneRunsHandler) CronOptions() gcmd.HandlerConfig {
	return h.Config
}
