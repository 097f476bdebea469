package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T, source Source, layout Layout, tracker Tracker, metrics MetricsHook, logger Logger) Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Source:      source,
		Layout:      layout,
		Tracker:     tracker,
		Metrics:     metrics,
		Logger:      logger,
		Now:         func() time.Time { return fixedNow },
		IDGenerator: func() string { return "run-1" },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewService_RequiresSource(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_UnknownKindIsLogged(t *testing.T) {
	logger := &recordingLogger{}
	svc := newTestService(t, &stubSource{}, nil, nil, nil, logger)

	spec, err := svc.Resolve(Request{Kind: "payroll"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if spec.Kind != KindAttendants {
		t.Fatalf("expected attendants, got %s", spec.Kind)
	}
	if len(logger.infos) != 1 {
		t.Fatalf("expected fallback to be logged")
	}
}

func TestService_GenerateCSV(t *testing.T) {
	tracker := NewMemoryTracker()
	metrics := &recordingMetrics{}
	source := &stubSource{rows: []Row{{"1", "a@b.mx", "Sistemas", "Ana", "Pérez"}}}
	svc := newTestService(t, source, nil, tracker, metrics, nil)

	var buf bytes.Buffer
	result, err := svc.Generate(context.Background(), Request{Kind: KindStudents}, &buf)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Filename != "students_20240309.csv" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	if result.Rows != 1 || result.Bytes != int64(buf.Len()) {
		t.Fatalf("unexpected stats %+v", result)
	}
	if !strings.HasPrefix(result.ContentType, "text/csv") {
		t.Fatalf("unexpected content type %q", result.ContentType)
	}

	runs, err := svc.History(context.Background(), RunFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(runs) != 1 || runs[0].State != StateCompleted || runs[0].Rows != 1 || runs[0].ID != "run-1" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if len(metrics.events) != 1 || metrics.events[0].Name != "report.generated" {
		t.Fatalf("unexpected metrics %+v", metrics.events)
	}
}

func TestService_GeneratePDF(t *testing.T) {
	layout := &stubLayout{}
	source := &stubSource{rows: []Row{transactionRow("ok", `[["hammer", 2]]`)}}
	svc := newTestService(t, source, layout, nil, nil, nil)

	var buf bytes.Buffer
	result, err := svc.Generate(context.Background(), Request{Kind: KindTransactions, Format: FormatPDF}, &buf)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf bytes")
	}
	if result.Rows != 1 || result.Filename != "transactions_20240309.pdf" {
		t.Fatalf("unexpected result %+v", result)
	}
	if table := layout.doc.Table(); table == nil || len(table.Rows) != 2 {
		t.Fatalf("expected data and annotation rows in layout document")
	}
	if !source.last.closed {
		t.Fatalf("expected rows to be closed")
	}
}

func TestService_PDFWithoutLayout(t *testing.T) {
	svc := newTestService(t, &stubSource{}, nil, nil, nil, nil)
	_, err := svc.PDF(context.Background(), Request{Kind: KindStudents})
	if KindFromError(err) != KindNotImpl {
		t.Fatalf("expected not implemented, got %v", err)
	}
}

func TestService_LayoutFailureReturnsNoBuffer(t *testing.T) {
	svc := newTestService(t, &stubSource{}, &stubLayout{err: errBoom}, nil, nil, nil)
	data, err := svc.PDF(context.Background(), Request{Kind: KindStudents})
	if data != nil || !errors.Is(err, errBoom) {
		t.Fatalf("expected layout error without data, got %v %v", data, err)
	}
}

func TestService_GenerateFailureIsTracked(t *testing.T) {
	tracker := NewMemoryTracker()
	metrics := &recordingMetrics{}
	svc := newTestService(t, &stubSource{err: errBoom}, nil, tracker, metrics, &recordingLogger{})

	_, err := svc.Generate(context.Background(), Request{Kind: KindTeachers}, &bytes.Buffer{})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected source error, got %v", err)
	}
	runs, _ := tracker.List(context.Background(), RunFilter{State: StateFailed})
	if len(runs) != 1 || !strings.Contains(runs[0].Error, "boom") {
		t.Fatalf("expected failed run, got %+v", runs)
	}
	if len(metrics.events) != 1 || metrics.events[0].ErrorKind != KindInternal {
		t.Fatalf("unexpected metrics %+v", metrics.events)
	}
}

func TestService_InventoryFilenameAndValidation(t *testing.T) {
	svc := newTestService(t, &stubSource{}, nil, nil, nil, nil)

	var buf bytes.Buffer
	result, err := svc.Generate(context.Background(), Request{Kind: KindInventory, Lab: "Y8", Format: FormatXLSX}, &buf)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Filename != "inventory_Y8_20240309.xlsx" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}

	if _, err := svc.Generate(context.Background(), Request{Kind: KindInventory, Lab: "Z1"}, &buf); KindFromError(err) != KindNotFound {
		t.Fatalf("expected not found for unknown lab, got %v", err)
	}
	if _, err := svc.Generate(context.Background(), Request{Kind: KindStudents, Format: "docx"}, &buf); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error for format, got %v", err)
	}
}

func TestService_HistoryWithoutTracker(t *testing.T) {
	svc := newTestService(t, &stubSource{}, nil, nil, nil, nil)
	if _, err := svc.History(context.Background(), RunFilter{}); KindFromError(err) != KindNotImpl {
		t.Fatalf("expected not implemented, got %v", err)
	}
}
