package report

import (
	"context"
	"time"
)

// Kind is the report type. It selects the query, columns and layout.
type Kind string

const (
	KindStudents     Kind = "students"
	KindTeachers     Kind = "teachers"
	KindAttendants   Kind = "attendants"
	KindInventory    Kind = "inventory"
	KindTransactions Kind = "transactions"
)

// Format is the report output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Annotation selects the synthetic rows emitted beneath each PDF data row.
type Annotation int

const (
	AnnotationNone Annotation = iota
	AnnotationSingleSpan
	AnnotationDualSpan
)

// Consumes reports how many trailing columns the strategy renders outside the table.
func (a Annotation) Consumes() int {
	switch a {
	case AnnotationSingleSpan:
		return 1
	case AnnotationDualSpan:
		return 2
	default:
		return 0
	}
}

// Column pairs a header with its PDF display width.
type Column struct {
	Name     string
	Label    string
	PDFLabel string
	Width    float64
}

// TableLabel returns the header used in PDF tables.
func (c Column) TableLabel() string {
	if c.PDFLabel != "" {
		return c.PDFLabel
	}
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// Header returns the header used in CSV and XLSX output.
func (c Column) Header() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// Spec is a resolved catalog entry ready to be executed.
type Spec struct {
	Kind       Kind
	Title      string
	Lab        string
	Query      string
	Columns    []Column
	Annotation Annotation
	Materials  bool
}

// TableColumns returns the columns rendered as PDF table cells.
func (s Spec) TableColumns() []Column {
	n := len(s.Columns) - s.Annotation.Consumes()
	if n < 0 {
		n = 0
	}
	return s.Columns[:n]
}

// Headers returns the CSV header list.
func (s Spec) Headers() []string {
	headers := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		headers[i] = col.Header()
	}
	return headers
}

// Request selects a report.
type Request struct {
	Kind   Kind
	Lab    string
	Format Format
}

// Row is a column-aligned record.
type Row []any

// Source executes SQL text and returns rows in query order.
type Source interface {
	Query(ctx context.Context, query string) (RowIterator, error)
}

// RowIterator streams rows.
type RowIterator interface {
	Next(ctx context.Context) (Row, error)
	Close() error
}

// Layout paginates a document into PDF bytes.
type Layout interface {
	Layout(ctx context.Context, doc Document) ([]byte, error)
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// RunState captures report run states.
type RunState string

const (
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
)

// Run records a single report generation.
type Run struct {
	ID          string
	Kind        Kind
	Lab         string
	Format      Format
	State       RunState
	Rows        int64
	Bytes       int64
	Error       string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// RunFilter filters tracker lists.
type RunFilter struct {
	Kind  Kind
	State RunState
	Since time.Time
	Until time.Time
	Limit int
}

// Tracker records report runs.
type Tracker interface {
	Start(ctx context.Context, run Run) (string, error)
	Complete(ctx context.Context, id string, rows, bytes int64) error
	Fail(ctx context.Context, id string, err error) error
	List(ctx context.Context, filter RunFilter) ([]Run, error)
}

// MetricsEvent describes a finished report run.
type MetricsEvent struct {
	Name      string
	RunID     string
	Kind      Kind
	Format    Format
	Rows      int64
	Bytes     int64
	Duration  time.Duration
	ErrorKind ErrorKind
	Timestamp time.Time
}

// MetricsHook emits metrics-friendly observations.
type MetricsHook interface {
	Emit(ctx context.Context, evt MetricsEvent) error
}
