package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/cron"
	"github.com/goliatone/go-command/dispatcher"
	reporthttp "github.com/goliatone/go-labreports/adapters/http"
	reportjob "github.com/goliatone/go-labreports/adapters/job"
	reportmetrics "github.com/goliatone/go-labreports/adapters/metrics"
	reportpdf "github.com/goliatone/go-labreports/adapters/pdf"
	trackerbun "github.com/goliatone/go-labreports/adapters/tracker/bun"
	reportcmd "github.com/goliatone/go-labreports/command"
	"github.com/goliatone/go-labreports/config"
	"github.com/goliatone/go-labreports/report"
	reportsql "github.com/goliatone/go-labreports/sources/sql"
	"github.com/goliatone/go-labreports/wiring"
	job "github.com/goliatone/go-job"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type prunableTracker interface {
	report.Tracker
	reportcmd.RunPruner
}

type application struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	history  *bun.DB
	catalog  *report.Catalog
	tracker  prunableTracker
	service  report.Service
	registry *prometheus.Registry
	jobs     *reportjob.LocalEnqueuer
	cron     *cron.Scheduler
	subs     []dispatcher.Subscription
	closers  []func() error
}

func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger}
	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *application) init(ctx context.Context) error {
	db, err := reportsql.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN, reportsql.Options{
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	catalog, err := report.NewCatalog(a.cfg.LabTables)
	if err != nil {
		return err
	}
	a.catalog = catalog

	if err := a.initTracker(ctx); err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := report.NewService(report.ServiceConfig{
		Catalog:         catalog,
		Source:          reportsql.NewSource(db),
		Layout:          a.pdfLayout(),
		Tracker:         a.tracker,
		Metrics:         reportmetrics.NewHook(a.registry),
		Logger:          slogReportLogger{logger: a.logger},
		FilenamePattern: a.cfg.FilenamePattern,
	})
	if err != nil {
		return err
	}
	a.service = svc

	handlers := wiring.Handlers{
		Catalog:  catalog,
		Rules:    a.cfg,
		Programs: a.cfg.Programs,
		Domain:   a.cfg.InstitutionalDomain,
		Context:  ctx,
	}
	if a.cfg.Tracker.Retention > 0 {
		handlers.Pruner = a.tracker
		handlers.Retention = a.cfg.Tracker.Retention
	}
	if a.cfg.Batch.Dir != "" {
		handlers.Batch = a.batchCommand(ctx, svc)
	}

	a.cron = cron.NewScheduler(
		cron.WithLogger(a.logger),
		cron.WithErrorHandler(func(err error) {
			a.logger.Error("scheduled report job failed", slog.String("error", err.Error()))
		}),
	)
	registry := gcmd.NewRegistry().SetCronRegister(wiring.CronRegister(a.cron, nil))
	subs, err := wiring.RegisterReportHandlers(registry, svc, handlers)
	a.subs = subs
	if err != nil {
		return err
	}
	return registry.Initialize()
}

// batchCommand builds the scheduled batch. Cron ticks enqueue a go-job task
// that dispatches the batch back through the command bus.
func (a *application) batchCommand(ctx context.Context, svc report.Service) *reportcmd.BatchCommand {
	format := report.Format(a.cfg.Batch.Format)
	logger := slogReportLogger{logger: a.logger}

	task := reportjob.NewBatchTask(reportjob.TaskConfig{
		Logger:  logger,
		Context: ctx,
		RetryPolicy: reportjob.RetryPolicy{
			MaxRetries: a.cfg.Batch.MaxRetries,
			Backoff: job.BackoffConfig{
				Strategy: job.BackoffExponential,
				Interval: a.cfg.Batch.RetryInterval,
				Jitter:   true,
			},
		},
	})
	a.jobs = reportjob.NewLocalEnqueuer(task, logger)
	jobs := reportjob.NewScheduler(reportjob.Config{Enqueuer: a.jobs, Logger: logger})

	return reportcmd.NewBatchCommand(svc, a.cfg.Batch.Dir,
		func(ctx context.Context) ([]reportcmd.BatchRequest, error) {
			return reportcmd.FullBatch(a.catalog.Labs(), format), nil
		},
		reportcmd.WithBatchContext(ctx),
		reportcmd.WithBatchCronConfig(gcmd.HandlerConfig{Expression: a.cfg.Batch.Schedule}),
		reportcmd.WithBatchEnqueue(func(ctx context.Context) error {
			return jobs.RequestBatch(ctx, reportjob.Payload{})
		}),
	)
}

func (a *application) initTracker(ctx context.Context) error {
	if a.cfg.Tracker.DSN == "" {
		a.tracker = report.NewMemoryTracker()
		return nil
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, a.cfg.Tracker.DSN)
	if err != nil {
		return fmt.Errorf("open tracker db: %w", err)
	}
	a.history = bun.NewDB(sqldb, sqlitedialect.New())
	a.closers = append(a.closers, a.history.Close)

	tracker := trackerbun.NewTracker(a.history)
	if err := tracker.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("tracker schema: %w", err)
	}
	a.tracker = tracker
	return nil
}

func (a *application) pdfLayout() report.Layout {
	switch a.cfg.PDF.Engine {
	case "chromium":
		engine := &reportpdf.ChromiumEngine{
			BrowserPath: a.cfg.PDF.ChromiumPath,
			Headless:    true,
			Timeout:     a.cfg.PDF.Timeout,
		}
		a.closers = append(a.closers, engine.Close)
		return reportpdf.NewLayout(engine)
	case "wkhtmltopdf":
		return reportpdf.NewLayout(reportpdf.WKHTMLTOPDFEngine{
			Command: a.cfg.PDF.WKHTMLTOPDFPath,
			Timeout: a.cfg.PDF.Timeout,
		})
	default:
		a.logger.Warn("pdf output disabled", slog.String("engine", a.cfg.PDF.Engine))
		return nil
	}
}

func (a *application) handler() http.Handler {
	reports := reporthttp.NewHandler(reporthttp.Config{
		Service:         a.service,
		Labs:            a.cfg.Labs,
		Programs:        a.cfg.Programs,
		Domain:          a.cfg.InstitutionalDomain,
		Rules:           a.cfg,
		Logger:          slogReportLogger{logger: a.logger},
		FilenamePattern: a.cfg.FilenamePattern,
		Strict:          a.cfg.StrictKinds,
	})
	return newRouter(routerDeps{
		Reports:  reports,
		BasePath: a.cfg.Server.BasePath,
		Gatherer: a.registry,
		Health:   a.db.PingContext,
		Logger:   a.logger,
	})
}

// serve runs the HTTP server until ctx is done.
func (a *application) serve(ctx context.Context) error {
	server := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      a.handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	if err := a.cron.Start(ctx); err != nil {
		return err
	}
	defer a.stopScheduler()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", slog.String("addr", a.cfg.Server.Addr), slog.String("base_path", a.cfg.Server.BasePath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

func (a *application) stopScheduler() {
	if a.cron == nil {
		return
	}
	if err := a.cron.Stop(context.Background()); err != nil {
		a.logger.Error("stop scheduler", slog.String("error", err.Error()))
	}
	a.cron = nil
}

// Close releases resources in reverse order.
func (a *application) Close() {
	a.stopScheduler()
	if a.jobs != nil {
		a.jobs.Wait()
	}
	for _, sub := range a.subs {
		sub.Unsubscribe()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("close", slog.String("error", err.Error()))
		}
	}
}
