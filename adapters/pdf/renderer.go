package reportpdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-labreports/report"
)

// DefaultMaxHTMLBytes guards in-memory HTML buffering before PDF conversion.
const DefaultMaxHTMLBytes int64 = 32 * 1024 * 1024

// RenderRequest contains HTML input and the page setup for PDF engines.
type RenderRequest struct {
	HTML []byte
	Page report.PageSetup
}

// Engine renders HTML content into PDF bytes.
type Engine interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// EngineFunc adapts a function to an Engine.
type EngineFunc func(ctx context.Context, req RenderRequest) ([]byte, error)

func (f EngineFunc) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if f == nil {
		return nil, errors.New("pdf engine func is nil")
	}
	return f(ctx, req)
}

// Layout converts report documents into PDF bytes.
type Layout struct {
	HTML         *HTMLRenderer
	Engine       Engine
	MaxHTMLBytes int64
}

var _ report.Layout = (*Layout)(nil)

// NewLayout creates a Layout with the default template.
func NewLayout(engine Engine) *Layout {
	return &Layout{HTML: &HTMLRenderer{}, Engine: engine}
}

// Layout renders doc to HTML and converts it to PDF. No partial output is returned on failure.
func (l *Layout) Layout(ctx context.Context, doc report.Document) ([]byte, error) {
	if l == nil || l.Engine == nil {
		return nil, report.NewError(report.KindValidation, "pdf layout requires engine", nil)
	}
	htmlRenderer := l.HTML
	if htmlRenderer == nil {
		htmlRenderer = &HTMLRenderer{}
	}

	var buf bytes.Buffer
	if err := htmlRenderer.Render(doc, &buf); err != nil {
		return nil, err
	}
	maxBytes := l.MaxHTMLBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxHTMLBytes
	}
	if int64(buf.Len()) > maxBytes {
		return nil, report.NewError(report.KindValidation, "pdf layout max html bytes exceeded", nil)
	}

	pdf, err := l.Engine.Render(ctx, RenderRequest{HTML: buf.Bytes(), Page: doc.Page})
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, report.NewError(report.KindInternal, "pdf engine returned no output", nil)
	}
	return pdf, nil
}

// WKHTMLTOPDFEngine invokes wkhtmltopdf for HTML-to-PDF conversion.
type WKHTMLTOPDFEngine struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// Render executes wkhtmltopdf using stdin/stdout for HTML/PDF.
func (e WKHTMLTOPDFEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	cmdPath := strings.TrimSpace(e.Command)
	if cmdPath == "" {
		cmdPath = "wkhtmltopdf"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append(wkhtmltopdfPageArgs(req.Page), e.Args...)
	args = append(args, "-", "-")
	cmd := exec.CommandContext(cmdCtx, cmdPath, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.Stdin = bytes.NewReader(req.HTML)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := cmdCtx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "wkhtmltopdf failed"
		}
		return nil, report.NewError(report.KindInternal, message, err)
	}
	return stdout.Bytes(), nil
}

func wkhtmltopdfPageArgs(page report.PageSetup) []string {
	args := []string{"--quiet", "--encoding", "utf-8"}
	if page.Size != "" {
		args = append(args, "--page-size", page.Size)
	}
	if page.Landscape {
		args = append(args, "--orientation", "Landscape")
	}
	args = append(args,
		"--margin-top", millimeters(page.Margins.Top),
		"--margin-right", millimeters(page.Margins.Right),
		"--margin-bottom", millimeters(page.Margins.Bottom),
		"--margin-left", millimeters(page.Margins.Left),
	)
	if page.Footer.Label != "" || page.Footer.PageLabel != "" {
		size := page.Footer.FontSize
		if size <= 0 {
			size = 7
		}
		args = append(args,
			"--footer-font-name", "Helvetica",
			"--footer-font-size", strconv.FormatFloat(size, 'f', -1, 64),
			"--footer-left", page.Footer.Label,
			"--footer-right", fmt.Sprintf("%s [page]", page.Footer.PageLabel),
		)
	}
	return args
}

func millimeters(pointsValue float64) string {
	return strconv.FormatFloat(pointsValue*25.4/72.0, 'f', 2, 64) + "mm"
}
