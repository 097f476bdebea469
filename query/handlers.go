package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-labreports/report"
)

// ReportHistoryHandler returns recorded runs.
type ReportHistoryHandler struct {
	Service report.Service
}

func NewReportHistoryHandler(svc report.Service) *ReportHistoryHandler {
	return &ReportHistoryHandler{Service: svc}
}

func (h *ReportHistoryHandler) Query(ctx context.Context, msg ReportHistory) ([]report.Run, error) {
	if h == nil || h.Service == nil {
		return nil, errors.New("report service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	runs, err := h.Service.History(ctx, msg.Filter)
	if err != nil {
		return nil, report.AsGoError(err)
	}
	return runs, nil
}

// ReportCatalogHandler describes what can be generated.
type ReportCatalogHandler struct {
	Service  report.Service
	Catalog  *report.Catalog
	Programs []string
	Domain   string
}

func NewReportCatalogHandler(svc report.Service, catalog *report.Catalog) *ReportCatalogHandler {
	return &ReportCatalogHandler{Service: svc, Catalog: catalog}
}

func (h *ReportCatalogHandler) Query(ctx context.Context, msg ReportCatalog) (CatalogView, error) {
	_ = ctx
	_ = msg
	if h == nil || h.Service == nil || h.Catalog == nil {
		return CatalogView{}, errors.New("report catalog is required", errors.CategoryInternal).
			WithTextCode("CATALOG_REQUIRED")
	}
	view := CatalogView{
		Labs:     h.Catalog.Labs(),
		Programs: append([]string{}, h.Programs...),
		Domain:   h.Domain,
	}
	for _, kind := range report.Kinds() {
		entry := CatalogEntry{Kind: kind, RequiresLab: kind == report.KindInventory}
		if !entry.RequiresLab {
			spec, err := h.Service.Resolve(report.Request{Kind: kind})
			if err != nil {
				return CatalogView{}, report.AsGoError(err)
			}
			entry.Title = spec.Title
		}
		view.Reports = append(view.Reports, entry)
	}
	return view, nil
}

// StudentRules decides whether a student may register.
type StudentRules interface {
	ProgramAllowed(program string) bool
	ValidInstitutionalEmail(email, id string) bool
}

// StudentCheckHandler answers CheckStudent queries.
type StudentCheckHandler struct {
	Rules StudentRules
}

func NewStudentCheckHandler(rules StudentRules) *StudentCheckHandler {
	return &StudentCheckHandler{Rules: rules}
}

func (h *StudentCheckHandler) Query(ctx context.Context, msg CheckStudent) (StudentCheck, error) {
	_ = ctx
	if h == nil || h.Rules == nil {
		return StudentCheck{}, errors.New("student rules are required", errors.CategoryInternal).
			WithTextCode("RULES_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return StudentCheck{}, err
	}
	return StudentCheck{
		EmailValid:     h.Rules.ValidInstitutionalEmail(strings.TrimSpace(msg.Email), strings.TrimSpace(msg.ID)),
		ProgramAllowed: h.Rules.ProgramAllowed(msg.Program),
	}, nil
}
