package trackerbun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-labreports/report"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const maxErrorLength = 1024

// Tracker stores report run history in a Bun-backed database.
type Tracker struct {
	DB          *bun.DB
	Now         func() time.Time
	IDGenerator func() string
}

var _ report.Tracker = (*Tracker)(nil)

// NewTracker creates a Bun-backed tracker.
func NewTracker(db *bun.DB) *Tracker {
	return &Tracker{DB: db, Now: time.Now, IDGenerator: uuid.NewString}
}

// EnsureSchema creates the run table when missing.
func (t *Tracker) EnsureSchema(ctx context.Context) error {
	if t == nil || t.DB == nil {
		return report.NewError(report.KindNotImpl, "tracker database not configured", nil)
	}
	_, err := t.DB.NewCreateTable().Model((*runModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Start records a running report.
func (t *Tracker) Start(ctx context.Context, run report.Run) (string, error) {
	if t == nil || t.DB == nil {
		return "", report.NewError(report.KindNotImpl, "tracker database not configured", nil)
	}
	if run.ID == "" {
		run.ID = t.nextID()
	}
	if run.State == "" {
		run.State = report.StateRunning
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = t.now()
	}

	model := modelFromRun(run)
	if _, err := t.DB.NewInsert().Model(&model).Exec(ctx); err != nil {
		return "", err
	}
	return run.ID, nil
}

// Complete marks the run as completed with its final counts.
func (t *Tracker) Complete(ctx context.Context, id string, rows, bytes int64) error {
	if t == nil || t.DB == nil {
		return report.NewError(report.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return report.NewError(report.KindValidation, "run ID is required", nil)
	}

	res, err := t.DB.NewUpdate().Model((*runModel)(nil)).
		Set("state = ?", report.StateCompleted).
		Set("rows_written = ?", rows).
		Set("bytes_written = ?", bytes).
		Set("completed_at = COALESCE(completed_at, ?)", t.now()).
		Where("id = ?", id).
		Exec(ctx)
	return checkAffected(res, err, id)
}

// Fail marks the run as failed.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) error {
	if t == nil || t.DB == nil {
		return report.NewError(report.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return report.NewError(report.KindValidation, "run ID is required", nil)
	}

	message := ""
	if cause != nil {
		message = truncateMessage(cause.Error(), maxErrorLength)
	}

	res, err := t.DB.NewUpdate().Model((*runModel)(nil)).
		Set("state = ?", report.StateFailed).
		Set("error = ?", message).
		Set("completed_at = COALESCE(completed_at, ?)", t.now()).
		Where("id = ?", id).
		Exec(ctx)
	return checkAffected(res, err, id)
}

// Status returns a run by ID.
func (t *Tracker) Status(ctx context.Context, id string) (report.Run, error) {
	if t == nil || t.DB == nil {
		return report.Run{}, report.NewError(report.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return report.Run{}, report.NewError(report.KindValidation, "run ID is required", nil)
	}

	model := new(runModel)
	err := t.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return report.Run{}, report.NewError(report.KindNotFound, fmt.Sprintf("report run %q not found", id), nil)
		}
		return report.Run{}, err
	}
	return model.toRun(), nil
}

// List returns runs matching a filter, newest first.
func (t *Tracker) List(ctx context.Context, filter report.RunFilter) ([]report.Run, error) {
	if t == nil || t.DB == nil {
		return nil, report.NewError(report.KindNotImpl, "tracker database not configured", nil)
	}

	models := make([]runModel, 0)
	query := t.DB.NewSelect().Model(&models)
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at <= ?", filter.Until)
	}
	query = query.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	runs := make([]report.Run, 0, len(models))
	for _, model := range models {
		runs = append(runs, model.toRun())
	}
	return runs, nil
}

// Prune deletes finished runs created before the cutoff.
func (t *Tracker) Prune(ctx context.Context, before time.Time) (int64, error) {
	if t == nil || t.DB == nil {
		return 0, report.NewError(report.KindNotImpl, "tracker database not configured", nil)
	}
	res, err := t.DB.NewDelete().Model((*runModel)(nil)).
		Where("created_at < ?", before).
		Where("state <> ?", report.StateRunning).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type runModel struct {
	bun.BaseModel `bun:"table:report_runs,alias:report_runs"`

	ID           string    `bun:",pk"`
	Kind         string    `bun:",notnull"`
	Lab          string    `bun:"lab"`
	Format       string    `bun:",notnull"`
	State        string    `bun:",notnull"`
	RowsWritten  int64     `bun:"rows_written"`
	BytesWritten int64     `bun:"bytes_written"`
	Error        string    `bun:"error"`
	CreatedAt    time.Time `bun:"created_at"`
	CompletedAt  time.Time `bun:"completed_at,nullzero"`
}

func modelFromRun(run report.Run) runModel {
	return runModel{
		ID:           run.ID,
		Kind:         string(run.Kind),
		Lab:          strings.TrimSpace(run.Lab),
		Format:       string(run.Format),
		State:        string(run.State),
		RowsWritten:  run.Rows,
		BytesWritten: run.Bytes,
		Error:        run.Error,
		CreatedAt:    run.CreatedAt,
		CompletedAt:  run.CompletedAt,
	}
}

func (m runModel) toRun() report.Run {
	return report.Run{
		ID:          m.ID,
		Kind:        report.Kind(m.Kind),
		Lab:         m.Lab,
		Format:      report.Format(m.Format),
		State:       report.RunState(m.State),
		Rows:        m.RowsWritten,
		Bytes:       m.BytesWritten,
		Error:       m.Error,
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
}

func checkAffected(res sql.Result, err error, id string) error {
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return report.NewError(report.KindNotFound, fmt.Sprintf("report run %q not found", id), nil)
	}
	return nil
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) nextID() string {
	if t.IDGenerator != nil {
		return t.IDGenerator()
	}
	return uuid.NewString()
}

// truncateMessage cuts s to at most limit bytes without splitting a rune.
func truncateMessage(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
