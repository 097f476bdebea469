package reporthttp

import (
	"encoding/json"
	"net/http"

	errorslib "github.com/goliatone/go-errors"
	"github.com/goliatone/go-labreports/report"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type catalogResponse struct {
	Kinds    []string `json:"kinds"`
	Formats  []string `json:"formats"`
	Labs     []string `json:"labs"`
	Programs []string `json:"programs"`
	Domain   string   `json:"institutional_domain,omitempty"`
}

type studentCheckResponse struct {
	EmailValid     bool `json:"email_valid"`
	ProgramAllowed bool `json:"program_allowed"`
}

type runResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Lab         string `json:"lab,omitempty"`
	Format      string `json:"format"`
	State       string `json:"state"`
	Rows        int64  `json:"rows"`
	Bytes       int64  `json:"bytes"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

func runResponses(runs []report.Run) []runResponse {
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp := runResponse{
			ID:        run.ID,
			Kind:      string(run.Kind),
			Lab:       run.Lab,
			Format:    string(run.Format),
			State:     string(run.State),
			Rows:      run.Rows,
			Bytes:     run.Bytes,
			Error:     run.Error,
			CreatedAt: run.CreatedAt.UTC().Format(timeLayout),
		}
		if !run.CompletedAt.IsZero() {
			resp.CompletedAt = run.CompletedAt.UTC().Format(timeLayout)
		}
		out = append(out, resp)
	}
	return out
}

// WriteError writes err as a JSON error body with a matching status.
func WriteError(w http.ResponseWriter, err error) {
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ge := report.AsGoError(err)
	writeJSON(w, statusForError(ge), errorResponse{
		Error: errorBody{
			Message: ge.Message,
			Code:    ge.TextCode,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func statusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	if err.TextCode == "not_implemented" {
		return http.StatusNotImplemented
	}
	switch err.Category {
	case errorslib.CategoryValidation:
		return http.StatusBadRequest
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	case errorslib.CategoryOperation:
		if err.TextCode == "canceled" {
			return http.StatusConflict
		}
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
