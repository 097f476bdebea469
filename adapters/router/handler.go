// Package reportrouter mounts the report download routes on a go-router router.
package reportrouter

import (
	"net/http"
	"strings"

	reporthttp "github.com/goliatone/go-labreports/adapters/http"
	"github.com/goliatone/go-labreports/report"
	"github.com/goliatone/go-router"
)

const defaultBasePath = "/reports"

// Config configures the go-router adapter.
type Config struct {
	reporthttp.Config

	// BasePath prefixes every route. Defaults to /reports.
	BasePath string
}

// Handler exposes the report routes for go-router.
type Handler struct {
	reports  *reporthttp.Handler
	basePath string
}

// NewHandler creates a go-router handler.
func NewHandler(cfg Config) *Handler {
	base := strings.TrimRight(strings.TrimSpace(cfg.BasePath), "/")
	if base == "" {
		base = defaultBasePath
	}
	return &Handler{reports: reporthttp.NewHandler(cfg.Config), basePath: base}
}

// RegisterRoutes registers the report routes on a compatible go-router
// router. Other values are ignored.
func (h *Handler) RegisterRoutes(r any) {
	registrar, ok := r.(routeRegistrar)
	if !ok {
		return
	}
	registrar.Get(h.basePath, h.Catalog)
	registrar.Get(h.basePath+"/", h.Catalog)
	registrar.Get(h.basePath+"/history", h.History)
	registrar.Get(h.basePath+"/students/check", h.StudentCheck)
	registrar.Get(h.basePath+"/:report", h.Download)
}

// Catalog lists the requestable kinds, formats and labs.
func (h *Handler) Catalog(c router.Context) error {
	return h.serve(c, func(w http.ResponseWriter, r *http.Request) {
		h.reports.Catalog(w, r)
	})
}

// History lists recorded report runs.
func (h *Handler) History(c router.Context) error {
	return h.serve(c, func(w http.ResponseWriter, r *http.Request) {
		h.reports.History(w, r)
	})
}

// StudentCheck answers institutional e-mail and program checks.
func (h *Handler) StudentCheck(c router.Context) error {
	return h.serve(c, func(w http.ResponseWriter, r *http.Request) {
		h.reports.StudentCheck(w, r)
	})
}

// Download streams the report named by the :report param.
func (h *Handler) Download(c router.Context) error {
	if c == nil {
		return nil
	}
	name := c.Param("report")
	return h.serve(c, func(w http.ResponseWriter, r *http.Request) {
		h.reports.ServeReport(w, r, name)
	})
}

// serve runs fn against the native request when the context wraps net/http,
// and buffers the response otherwise.
func (h *Handler) serve(c router.Context, fn http.HandlerFunc) error {
	if c == nil {
		return nil
	}
	if h == nil || h.reports == nil {
		buf := newBufferedResponse()
		reporthttp.WriteError(buf, report.NewError(report.KindInternal, "report handler is nil", nil))
		return buf.flush(c)
	}

	if httpCtx, ok := router.AsHTTPContext(c); ok {
		req, res := httpCtx.Request(), httpCtx.Response()
		if req != nil && res != nil {
			fn(res, req)
			return nil
		}
	}

	buf := newBufferedResponse()
	req, err := requestFromContext(c)
	if err != nil {
		reporthttp.WriteError(buf, report.NewError(report.KindValidation, "invalid request url", err))
		return buf.flush(c)
	}
	fn(buf, req)
	return buf.flush(c)
}

type routeRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}
