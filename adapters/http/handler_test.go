package reporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-labreports/config"
	"github.com/goliatone/go-labreports/report"
	reportcallback "github.com/goliatone/go-labreports/sources/callback"
)

var testNow = time.Date(2024, time.March, 9, 15, 30, 0, 0, time.UTC)

func newTestHandler(t *testing.T, fn reportcallback.SourceFunc, tracker report.Tracker) (*Handler, report.Service) {
	t.Helper()
	svc, err := report.NewService(report.ServiceConfig{
		Source:      reportcallback.NewSource(fn),
		Tracker:     tracker,
		Now:         func() time.Time { return testNow },
		IDGenerator: func() string { return "run-1" },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	catalog, err := report.NewCatalog(report.DefaultLabTables())
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	return NewHandler(Config{
		Service: svc,
		Labs:    catalog.Labs,
		Now:     func() time.Time { return testNow },
	}), svc
}

func studentRows(ctx context.Context, query string) (report.RowIterator, error) {
	return reportcallback.Rows(
		report.Row{"20120001", "l20120001@morelia.tecnm.mx", "Sistemas", "Ana", "Pérez"},
		report.Row{"20120002", "l20120002@morelia.tecnm.mx", "Electrónica, Potencia", "Luis", "Gómez"},
	), nil
}

func serve(h *Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error
}

func TestHandler_DownloadCSV(t *testing.T) {
	h, _ := newTestHandler(t, studentRows, nil)

	rec := serve(h, "/students.csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv; charset=utf-8" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=students_20240309.csv` {
		t.Fatalf("unexpected disposition %q", got)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, report.ByteOrderMark) {
		t.Fatalf("expected byte order mark")
	}
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), body)
	}
	if !strings.Contains(lines[2], "Electrónica; Potencia") {
		t.Fatalf("expected sanitized comma, got %q", lines[2])
	}
}

func TestHandler_DownloadInventoryUsesLab(t *testing.T) {
	var seen string
	h, _ := newTestHandler(t, func(ctx context.Context, query string) (report.RowIterator, error) {
		seen = query
		return reportcallback.Rows(), nil
	}, nil)

	rec := serve(h, "/inventory.csv?lab=Y8")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(seen, "labthird") {
		t.Fatalf("expected lab table in query, got %q", seen)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "inventory_Y8_20240309.csv") {
		t.Fatalf("unexpected disposition %q", got)
	}
}

func TestHandler_DownloadErrors(t *testing.T) {
	h, _ := newTestHandler(t, studentRows, nil)

	cases := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{name: "missing format", target: "/students", status: http.StatusBadRequest, code: "validation"},
		{name: "unknown format", target: "/students.doc", status: http.StatusBadRequest, code: "validation"},
		{name: "inventory without lab", target: "/inventory.csv", status: http.StatusBadRequest, code: "validation"},
		{name: "unknown lab", target: "/inventory.csv?lab=Z9", status: http.StatusNotFound, code: "not_found"},
		{name: "pdf without layout", target: "/students.pdf", status: http.StatusNotImplemented, code: "not_implemented"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(h, tc.target)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec); got.Code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, got.Code)
			}
		})
	}
}

func TestHandler_QueryFailureBeforeWrite(t *testing.T) {
	h, _ := newTestHandler(t, func(ctx context.Context, query string) (report.RowIterator, error) {
		return nil, errors.New("connection refused")
	}, nil)

	rec := serve(h, "/teachers.csv")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Fatalf("did not expect attachment headers on failure")
	}
}

func TestHandler_UnknownKindFallsBack(t *testing.T) {
	h, _ := newTestHandler(t, func(ctx context.Context, query string) (report.RowIterator, error) {
		return reportcallback.Rows(), nil
	}, nil)

	rec := serve(h, "/payroll.csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "attendants_") {
		t.Fatalf("expected attendant report, got %q", got)
	}

	h.strict = true
	rec = serve(h, "/payroll.csv")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 in strict mode, got %d", rec.Code)
	}
}

func TestHandler_Catalog(t *testing.T) {
	h, _ := newTestHandler(t, studentRows, nil)

	rec := serve(h, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp catalogResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Kinds) != 5 || resp.Kinds[0] != "students" {
		t.Fatalf("unexpected kinds %v", resp.Kinds)
	}
	if len(resp.Labs) != 3 {
		t.Fatalf("unexpected labs %v", resp.Labs)
	}
	if len(resp.Programs) != 0 || resp.Domain != "" {
		t.Fatalf("expected no institution without config, got %v %q", resp.Programs, resp.Domain)
	}
}

func TestHandler_CatalogInstitution(t *testing.T) {
	cfg := &config.Config{
		InstitutionalDomain: "morelia.tecnm.mx",
		Programs:            []string{"Ingeniería Electrónica", "Ingeniería en Sistemas"},
	}
	h := NewHandler(Config{Programs: cfg.Programs, Domain: cfg.InstitutionalDomain, Rules: cfg})

	rec := serve(h, "/")
	var resp catalogResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Programs) != 2 || resp.Domain != "morelia.tecnm.mx" {
		t.Fatalf("unexpected institution %v %q", resp.Programs, resp.Domain)
	}

	rec = serve(h, "/students/check?id=20120001&email=l20120001@morelia.tecnm.mx&program=Arquitectura")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var check studentCheckResponse
	if err := json.NewDecoder(rec.Body).Decode(&check); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !check.EmailValid || check.ProgramAllowed {
		t.Fatalf("unexpected check %+v", check)
	}

	rec = serve(h, "/students/check?id=20120001")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without email, got %d", rec.Code)
	}

	rec = serve(NewHandler(Config{}), "/students/check?id=1&email=a@b")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without rules, got %d", rec.Code)
	}
}

func TestHandler_History(t *testing.T) {
	tracker := report.NewMemoryTracker()
	h, svc := newTestHandler(t, studentRows, tracker)

	if _, err := svc.Generate(context.Background(), report.Request{Kind: report.KindStudents}, io.Discard); err != nil {
		t.Fatalf("generate: %v", err)
	}

	rec := serve(h, "/history?kind=students&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var runs []runResponse
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].State != "completed" || runs[0].Rows != 2 {
		t.Fatalf("unexpected run %+v", runs[0])
	}

	rec = serve(h, "/history?limit=-1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestHandler_HistoryWithoutTracker(t *testing.T) {
	h, _ := newTestHandler(t, studentRows, nil)

	rec := serve(h, "/history")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}
