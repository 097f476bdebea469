package query

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-labreports/report"
)

// ReportHistory requests recorded report runs.
type ReportHistory struct {
	Filter report.RunFilter
}

func (ReportHistory) Type() string { return "report:history" }

func (msg ReportHistory) Validate() error {
	if msg.Filter.Limit < 0 {
		return errors.New("limit must not be negative", errors.CategoryValidation).
			WithTextCode("LIMIT_INVALID")
	}
	if !msg.Filter.Since.IsZero() && !msg.Filter.Until.IsZero() && msg.Filter.Until.Before(msg.Filter.Since) {
		return errors.New("until must not be before since", errors.CategoryValidation).
			WithTextCode("RANGE_INVALID")
	}
	return nil
}

// ReportCatalog requests the available report kinds and labs.
type ReportCatalog struct{}

func (ReportCatalog) Type() string { return "report:catalog" }

func (ReportCatalog) Validate() error { return nil }

// CatalogEntry describes one requestable report.
type CatalogEntry struct {
	Kind        report.Kind
	Title       string
	RequiresLab bool
}

// CatalogView lists requestable reports and configured labs, along with the
// program allow-list and institutional domain students register under.
type CatalogView struct {
	Reports  []CatalogEntry
	Labs     []string
	Programs []string
	Domain   string
}

// CheckStudent asks whether a student's e-mail and program are accepted.
type CheckStudent struct {
	ID      string
	Email   string
	Program string
}

func (CheckStudent) Type() string { return "student:check" }

func (msg CheckStudent) Validate() error {
	if strings.TrimSpace(msg.ID) == "" || strings.TrimSpace(msg.Email) == "" {
		return errors.New("id and email are required", errors.CategoryValidation).
			WithTextCode("STUDENT_CHECK_INVALID")
	}
	return nil
}

// StudentCheck is the answer to CheckStudent.
type StudentCheck struct {
	EmailValid     bool
	ProgramAllowed bool
}
