package report

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"
)

// DefaultFilenamePattern names downloads as <kind>[_<lab>]_<yyyymmdd>.
const DefaultFilenamePattern = "{{.Kind}}{{if .Lab}}_{{.Lab}}{{end}}_{{.Date}}"

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type filenameData struct {
	Kind   string
	Lab    string
	Format string
	Date   string
	Title  string
}

// Filename renders the download name for a report. An empty pattern uses DefaultFilenamePattern.
func Filename(pattern string, spec Spec, format Format, now time.Time) (string, error) {
	if pattern == "" {
		pattern = DefaultFilenamePattern
	}

	tmpl, err := template.New("filename").Parse(pattern)
	if err != nil {
		return "", NewError(KindValidation, "invalid filename pattern", err)
	}

	data := filenameData{
		Kind:   string(spec.Kind),
		Lab:    spec.Lab,
		Format: string(format),
		Date:   now.Format("20060102"),
		Title:  spec.Title,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewError(KindValidation, "filename render failed", err)
	}

	result := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(buf.String()), "_")
	result = strings.Trim(result, "_")
	if result == "" {
		return "", NewError(KindValidation, "empty filename", nil)
	}

	ext := extension(format)
	if !strings.HasSuffix(strings.ToLower(result), "."+ext) {
		result = fmt.Sprintf("%s.%s", result, ext)
	}
	return result, nil
}

// ContentType returns the MIME type for a format.
func ContentType(format Format) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// ParseFormat parses a format name.
func ParseFormat(raw string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV:
		return FormatCSV, true
	case FormatPDF:
		return FormatPDF, true
	case FormatXLSX:
		return FormatXLSX, true
	default:
		return "", false
	}
}

func extension(format Format) string {
	if format == "" {
		return string(FormatCSV)
	}
	return string(format)
}
