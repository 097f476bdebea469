package command

import (
	"io"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-labreports/report"
)

// GenerateReport writes a single report into Output.
type GenerateReport struct {
	Kind   report.Kind
	Lab    string
	Format report.Format
	Output io.Writer
	Result *report.Result
}

func (GenerateReport) Type() string { return "report:generate" }

func (msg GenerateReport) Validate() error {
	if msg.Output == nil {
		return errors.New("output writer is required", errors.CategoryValidation).
			WithTextCode("OUTPUT_REQUIRED")
	}
	if msg.Format != "" {
		if _, ok := report.ParseFormat(string(msg.Format)); !ok {
			return errors.New("unsupported report format", errors.CategoryValidation).
				WithTextCode("FORMAT_INVALID")
		}
	}
	if msg.Kind == report.KindInventory && msg.Lab == "" {
		return errors.New("inventory report requires a lab", errors.CategoryValidation).
			WithTextCode("LAB_REQUIRED")
	}
	return nil
}

// PruneRuns removes recorded runs created before Before.
type PruneRuns struct {
	Before time.Time
	Result *int64
}

func (PruneRuns) Type() string { return "report:prune" }

func (PruneRuns) Validate() error { return nil }

// RunBatch writes a batch of reports into Dir (or the configured directory).
// A non-empty From loads the requests from a JSON file.
type RunBatch struct {
	From    string
	Dir     string
	Written *[]string
}

func (RunBatch) Type() string { return "report:batch" }

func (RunBatch) Validate() error { return nil }
