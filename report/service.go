package report

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Result describes a generated report.
type Result struct {
	ID          string
	Kind        Kind
	Lab         string
	Format      Format
	Filename    string
	ContentType string
	Rows        int64
	Bytes       int64
	Duration    time.Duration
}

// Service produces reports from the catalog.
type Service interface {
	Resolve(req Request) (Spec, error)
	CSV(ctx context.Context, req Request) (*CSVLines, error)
	PDF(ctx context.Context, req Request) ([]byte, error)
	Generate(ctx context.Context, req Request, w io.Writer) (Result, error)
	History(ctx context.Context, filter RunFilter) ([]Run, error)
}

// ServiceConfig supplies dependencies for Service.
type ServiceConfig struct {
	Catalog         *Catalog
	Source          Source
	Layout          Layout
	Tracker         Tracker
	Metrics         MetricsHook
	Logger          Logger
	FilenamePattern string
	Now             func() time.Time
	IDGenerator     func() string
}

type service struct {
	catalog         *Catalog
	source          Source
	layout          Layout
	tracker         Tracker
	metrics         MetricsHook
	logger          Logger
	filenamePattern string
	now             func() time.Time
	idGenerator     func() string
}

// NewService creates a Service. A nil catalog uses the default lab tables.
func NewService(cfg ServiceConfig) (Service, error) {
	catalog := cfg.Catalog
	if catalog == nil {
		var err error
		catalog, err = NewCatalog(DefaultLabTables())
		if err != nil {
			return nil, err
		}
	}
	if cfg.Source == nil {
		return nil, NewError(KindValidation, "report source is required", nil)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = func() string { return uuid.NewString() }
	}

	return &service{
		catalog:         catalog,
		source:          cfg.Source,
		layout:          cfg.Layout,
		tracker:         cfg.Tracker,
		metrics:         cfg.Metrics,
		logger:          logger,
		filenamePattern: cfg.FilenamePattern,
		now:             nowFn,
		idGenerator:     idGen,
	}, nil
}

// Resolve maps a request onto a catalog spec. Unknown kinds fall back to the attendant report.
func (s *service) Resolve(req Request) (Spec, error) {
	if _, ok := LookupKind(string(req.Kind)); !ok {
		s.logger.Infof("unknown report kind %q, falling back to %s", req.Kind, KindAttendants)
	}
	return s.catalog.Resolve(req.Kind, req.Lab)
}

// CSV returns the lazy CSV line sequence for a request.
func (s *service) CSV(ctx context.Context, req Request) (*CSVLines, error) {
	spec, err := s.Resolve(req)
	if err != nil {
		return nil, err
	}
	return NewCSVLines(ctx, s.source, spec)
}

// PDF renders the request as a complete PDF buffer.
func (s *service) PDF(ctx context.Context, req Request) ([]byte, error) {
	spec, err := s.Resolve(req)
	if err != nil {
		return nil, err
	}
	data, _, err := s.renderPDF(ctx, spec)
	return data, err
}

// Generate writes the report in the requested format to w and records the run.
func (s *service) Generate(ctx context.Context, req Request, w io.Writer) (Result, error) {
	if w == nil {
		return Result{}, NewError(KindValidation, "output writer is required", nil)
	}
	format := req.Format
	if format == "" {
		format = FormatCSV
	}
	if _, ok := ParseFormat(string(format)); !ok {
		return Result{}, NewError(KindValidation, "unsupported report format "+string(format), nil)
	}

	spec, err := s.Resolve(req)
	if err != nil {
		return Result{}, err
	}

	started := s.now()
	filename, err := Filename(s.filenamePattern, spec, format, started)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		ID:          s.idGenerator(),
		Kind:        spec.Kind,
		Lab:         spec.Lab,
		Format:      format,
		Filename:    filename,
		ContentType: ContentType(format),
	}

	if s.tracker != nil {
		id, err := s.tracker.Start(ctx, Run{
			ID:        result.ID,
			Kind:      spec.Kind,
			Lab:       spec.Lab,
			Format:    format,
			State:     StateRunning,
			CreatedAt: started,
		})
		if err != nil {
			return Result{}, NewError(KindInternal, "report run tracking failed", err)
		}
		if id != "" {
			result.ID = id
		}
	}

	s.logger.Debugf("report %s started kind=%s lab=%s format=%s", result.ID, spec.Kind, spec.Lab, format)

	switch format {
	case FormatPDF:
		var data []byte
		data, result.Rows, err = s.renderPDF(ctx, spec)
		if err == nil {
			var n int
			n, err = w.Write(data)
			result.Bytes = int64(n)
		}
	case FormatXLSX:
		var rows RowIterator
		rows, err = s.source.Query(ctx, spec.Query)
		if err != nil {
			err = NewError(KindInternal, "report query failed", err)
			break
		}
		result.Rows, result.Bytes, err = WriteXLSX(ctx, spec, rows, w)
		if closeErr := rows.Close(); err == nil && closeErr != nil {
			err = NewError(KindInternal, "report rows close failed", closeErr)
		}
	default:
		var lines *CSVLines
		lines, err = NewCSVLines(ctx, s.source, spec)
		if err != nil {
			break
		}
		result.Bytes, err = lines.Drain(ctx, w)
		result.Rows = lines.Rows()
	}

	result.Duration = s.now().Sub(started)
	if err != nil {
		s.logger.Errorf("report %s failed: %v", result.ID, err)
		if s.tracker != nil {
			if trackErr := s.tracker.Fail(ctx, result.ID, err); trackErr != nil {
				s.logger.Errorf("report %s fail tracking: %v", result.ID, trackErr)
			}
		}
		s.emit(ctx, "report.failed", result, KindFromError(err))
		return result, err
	}

	if s.tracker != nil {
		if trackErr := s.tracker.Complete(ctx, result.ID, result.Rows, result.Bytes); trackErr != nil {
			s.logger.Errorf("report %s complete tracking: %v", result.ID, trackErr)
		}
	}
	s.emit(ctx, "report.generated", result, "")
	s.logger.Infof("report %s generated rows=%d bytes=%d", result.ID, result.Rows, result.Bytes)
	return result, nil
}

// History lists recorded runs.
func (s *service) History(ctx context.Context, filter RunFilter) ([]Run, error) {
	if s.tracker == nil {
		return nil, NewError(KindNotImpl, "report tracker not configured", nil)
	}
	return s.tracker.List(ctx, filter)
}

func (s *service) renderPDF(ctx context.Context, spec Spec) ([]byte, int64, error) {
	if s.layout == nil {
		return nil, 0, NewError(KindNotImpl, "pdf layout not configured", nil)
	}
	if len(spec.Columns) == 0 {
		return nil, 0, NewError(KindValidation, "report columns are required", nil)
	}

	rows, err := s.source.Query(ctx, spec.Query)
	if err != nil {
		return nil, 0, NewError(KindInternal, "report query failed", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	doc, count, err := BuildDocument(ctx, spec, rows, s.now())
	if err != nil {
		return nil, count, err
	}

	data, err := s.layout.Layout(ctx, doc)
	if err != nil {
		if KindFromError(err) == KindInternal {
			return nil, count, NewError(KindInternal, "pdf layout failed", err)
		}
		return nil, count, err
	}
	return data, count, nil
}

func (s *service) emit(ctx context.Context, name string, result Result, kind ErrorKind) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.Emit(ctx, MetricsEvent{
		Name:      name,
		RunID:     result.ID,
		Kind:      result.Kind,
		Format:    result.Format,
		Rows:      result.Rows,
		Bytes:     result.Bytes,
		Duration:  result.Duration,
		ErrorKind: kind,
		Timestamp: s.now(),
	}); err != nil {
		s.logger.Errorf("report %s metrics: %v", result.ID, err)
	}
}
