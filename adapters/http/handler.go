package reporthttp

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-labreports/report"
)

const timeLayout = time.RFC3339

// Config configures the HTTP adapter.
type Config struct {
	Service         report.Service
	Labs            func() []string
	Programs        []string
	Domain          string
	Rules           StudentRules
	Logger          report.Logger
	FilenamePattern string
	Now             func() time.Time
	// Strict rejects unknown report kinds instead of serving the attendant report.
	Strict bool
}

// Handler exposes report download endpoints.
type Handler struct {
	service         report.Service
	labs            func() []string
	programs        []string
	domain          string
	rules           StudentRules
	logger          report.Logger
	filenamePattern string
	now             func() time.Time
	strict          bool
}

// NewHandler creates a new HTTP handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = report.NopLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		service:         cfg.Service,
		labs:            cfg.Labs,
		programs:        cfg.Programs,
		domain:          cfg.Domain,
		rules:           cfg.Rules,
		logger:          logger,
		filenamePattern: cfg.FilenamePattern,
		now:             now,
		strict:          cfg.Strict,
	}
}

// Routes returns the report routes:
//
//	GET /                catalog of kinds, formats, labs and programs
//	GET /history         recorded runs (?kind=&state=&limit=)
//	GET /students/check  registration check (?id=&email=&program=)
//	GET /{report}        download, where report is <kind>.<format> (?lab= for inventory)
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Catalog)
	r.Get("/history", h.History)
	r.Get("/students/check", h.StudentCheck)
	r.Get("/{report}", h.Download)
	return r
}

// Catalog lists what can be requested.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	resp := catalogResponse{
		Formats:  []string{string(report.FormatCSV), string(report.FormatPDF), string(report.FormatXLSX)},
		Labs:     []string{},
		Programs: append([]string{}, h.programs...),
		Domain:   h.domain,
	}
	for _, kind := range report.Kinds() {
		resp.Kinds = append(resp.Kinds, string(kind))
	}
	if h.labs != nil {
		resp.Labs = h.labs()
	}
	writeJSON(w, http.StatusOK, resp)
}

// StudentRules decides whether a student may register.
type StudentRules interface {
	ProgramAllowed(program string) bool
	ValidInstitutionalEmail(email, id string) bool
}

// StudentCheck reports whether an e-mail is the institutional address for an
// id and whether a program is on the allow-list.
func (h *Handler) StudentCheck(w http.ResponseWriter, r *http.Request) {
	if h.rules == nil {
		WriteError(w, report.NewError(report.KindNotImpl, "student rules not configured", nil))
		return
	}
	query := r.URL.Query()
	id := strings.TrimSpace(query.Get("id"))
	email := strings.TrimSpace(query.Get("email"))
	if id == "" || email == "" {
		WriteError(w, report.NewError(report.KindValidation, "id and email are required", nil))
		return
	}
	writeJSON(w, http.StatusOK, studentCheckResponse{
		EmailValid:     h.rules.ValidInstitutionalEmail(email, id),
		ProgramAllowed: h.rules.ProgramAllowed(query.Get("program")),
	})
}

// History lists recorded report runs.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		WriteError(w, report.NewError(report.KindInternal, "report service not configured", nil))
		return
	}
	query := r.URL.Query()
	filter := report.RunFilter{
		Kind:  report.Kind(query.Get("kind")),
		State: report.RunState(query.Get("state")),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			WriteError(w, report.NewError(report.KindValidation, "limit must be a non-negative integer", err))
			return
		}
		filter.Limit = limit
	}

	runs, err := h.service.History(r.Context(), filter)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponses(runs))
}

// Download streams a report file.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	h.ServeReport(w, r, chi.URLParam(r, "report"))
}

// ServeReport streams the report named <kind>.<format>, for routers that extract the name themselves.
func (h *Handler) ServeReport(w http.ResponseWriter, r *http.Request, name string) {
	if h.service == nil {
		WriteError(w, report.NewError(report.KindInternal, "report service not configured", nil))
		return
	}

	req, err := h.parseRequest(name, r.URL.Query().Get("lab"))
	if err != nil {
		WriteError(w, err)
		return
	}

	spec, err := h.service.Resolve(req)
	if err != nil {
		WriteError(w, err)
		return
	}
	filename, err := report.Filename(h.filenamePattern, spec, req.Format, h.now())
	if err != nil {
		WriteError(w, err)
		return
	}

	out := &deferredWriter{w: w, onFirstWrite: func() {
		w.Header().Set("Content-Type", report.ContentType(req.Format))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
	}}

	result, err := h.service.Generate(r.Context(), req, out)
	if err != nil {
		if !out.started {
			WriteError(w, err)
			return
		}
		h.logger.Errorf("report download aborted after %d bytes: %v", out.written, err)
		return
	}
	if !out.started {
		// zero byte body, still send the headers
		out.start()
	}
	h.logger.Debugf("report %s served as %s", result.ID, filename)
}

func (h *Handler) parseRequest(name, lab string) (report.Request, error) {
	dot := strings.LastIndex(name, ".")
	if dot <= 0 || dot == len(name)-1 {
		return report.Request{}, report.NewError(report.KindValidation, fmt.Sprintf("report %q must be <kind>.<format>", name), nil)
	}
	format, ok := report.ParseFormat(name[dot+1:])
	if !ok {
		return report.Request{}, report.NewError(report.KindValidation, fmt.Sprintf("unsupported report format %q", name[dot+1:]), nil)
	}
	rawKind := name[:dot]
	kind, ok := report.LookupKind(rawKind)
	if !ok {
		if h.strict {
			return report.Request{}, report.NewError(report.KindNotFound, fmt.Sprintf("unknown report kind %q", rawKind), nil)
		}
		kind = report.Kind(rawKind)
	}
	return report.Request{Kind: kind, Lab: strings.TrimSpace(lab), Format: format}, nil
}

type deferredWriter struct {
	w            http.ResponseWriter
	onFirstWrite func()
	started      bool
	written      int64
}

func (d *deferredWriter) start() {
	if d.started {
		return
	}
	d.started = true
	d.onFirstWrite()
}

func (d *deferredWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	d.start()
	n, err := d.w.Write(p)
	d.written += int64(n)
	if flusher, ok := d.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return n, err
}
