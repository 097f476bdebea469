// Package wiring registers the report commands and queries with go-command.
package wiring

import (
	"context"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/cron"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-errors"
	reportcmd "github.com/goliatone/go-labreports/command"
	reportqry "github.com/goliatone/go-labreports/query"
	"github.com/goliatone/go-labreports/report"
)

// Handlers holds the optional pieces beyond the service.
type Handlers struct {
	Catalog   *report.Catalog
	Pruner    reportcmd.RunPruner
	Batch     *reportcmd.BatchCommand
	Rules     reportqry.StudentRules
	Programs  []string
	Domain    string
	// Retention is how long run history is kept by the prune handler.
	Retention time.Duration
	// Context bounds scheduled prune runs.
	Context   context.Context
}

// CronRegister adapts a cron scheduler to gcmd.Registry.SetCronRegister.
// Scheduled handles are appended to handles when it is non-nil.
func CronRegister(s *cron.Scheduler, handles *[]cron.Subscription) func(gcmd.HandlerConfig, any) error {
	return func(opts gcmd.HandlerConfig, handler any) error {
		if s == nil {
			return errors.New("cron scheduler is required", errors.CategoryValidation).
				WithTextCode("SCHEDULER_REQUIRED")
		}
		handle, err := s.ScheduleCron(opts, handler)
		if err != nil {
			return err
		}
		if handles != nil {
			*handles = append(*handles, handle)
		}
		return nil
	}
}

// RegisterReportHandlers wires report commands and queries to go-command.
func RegisterReportHandlers(reg *gcmd.Registry, svc report.Service, extra Handlers) ([]dispatcher.Subscription, error) {
	if svc == nil {
		return nil, errors.New("report service is required", errors.CategoryValidation).
			WithTextCode("SERVICE_REQUIRED")
	}

	gen := reportcmd.NewGenerateReportHandler(svc)
	history := reportqry.NewReportHistoryHandler(svc)

	subscriptions := []dispatcher.Subscription{
		dispatcher.SubscribeCommand(gen),
		dispatcher.SubscribeQuery(history),
	}
	handlers := []any{gen, history}

	if extra.Catalog != nil {
		catalog := reportqry.NewReportCatalogHandler(svc, extra.Catalog)
		catalog.Programs = extra.Programs
		catalog.Domain = extra.Domain
		subscriptions = append(subscriptions, dispatcher.SubscribeQuery(catalog))
		handlers = append(handlers, catalog)
	}
	if extra.Rules != nil {
		check := reportqry.NewStudentCheckHandler(extra.Rules)
		subscriptions = append(subscriptions, dispatcher.SubscribeQuery(check))
		handlers = append(handlers, check)
	}
	if extra.Pruner != nil {
		prune := reportcmd.NewPruneRunsHandler(extra.Pruner, extra.Retention)
		prune.BaseContext = extra.Context
		subscriptions = append(subscriptions, dispatcher.SubscribeCommand(prune))
		handlers = append(handlers, prune)
	}
	if extra.Batch != nil {
		subscriptions = append(subscriptions, dispatcher.SubscribeCommand(extra.Batch))
		handlers = append(handlers, extra.Batch)
	}

	if reg != nil {
		for _, handler := range handlers {
			if err := reg.RegisterCommand(handler); err != nil {
				return subscriptions, err
			}
		}
	}

	return subscriptions, nil
}
