package reportpdf

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-labreports/report"
)

const defaultPDFScale = 1.0

var pdfPageSizesInches = map[string]struct {
	width  float64
	height float64
}{
	"A3":     {width: 11.69, height: 16.54},
	"A4":     {width: 8.27, height: 11.69},
	"A5":     {width: 5.83, height: 8.27},
	"LETTER": {width: 8.5, height: 11},
	"LEGAL":  {width: 8.5, height: 14},
}

// ChromiumEngine renders PDF output using a shared headless Chromium instance.
type ChromiumEngine struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string
	Scale       float64
	// AllowExternalAssets lets the page fetch http(s) resources.
	AllowExternalAssets bool

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Render executes Chromium-based HTML-to-PDF rendering.
func (e *ChromiumEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if e == nil {
		return nil, report.NewError(report.KindInternal, "chromium engine is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	params, err := buildPrintToPDFParams(req.Page, e.Scale)
	if err != nil {
		return nil, err
	}

	if err := e.ensureBrowser(); err != nil {
		return nil, report.NewError(report.KindInternal, "chromium engine init failed", err)
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	defer cancel()

	execCtx, cancelReq := context.WithCancel(tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()
	if e.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, e.Timeout)
		defer cancelTimeout()
	}

	var pdf []byte
	actions := []chromedp.Action{}
	if !e.AllowExternalAssets {
		actions = append(actions,
			network.Enable(),
			network.SetBlockedURLs([]string{"http://*", "https://*"}),
		)
	}

	actions = append(actions,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(req.HTML)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = params.Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(execCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, report.NewError(report.KindInternal, "chromium pdf render failed", err)
	}
	return pdf, nil
}

// Close releases Chromium resources if they have been initialized.
func (e *ChromiumEngine) Close() error {
	if e == nil {
		return nil
	}
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func (e *ChromiumEngine) ensureBrowser() error {
	e.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if e.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(e.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", e.Headless))
		options = append(options, allocatorOptionsFromArgs(e.Args)...)

		e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx)
	})
	if e.allocCtx == nil || e.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

func buildPrintToPDFParams(setup report.PageSetup, scale float64) (*page.PrintToPDFParams, error) {
	params := page.PrintToPDF().WithPrintBackground(true)

	if scale == 0 {
		scale = defaultPDFScale
	}
	if scale < 0.1 || scale > 2.0 {
		return nil, report.NewError(report.KindValidation, "pdf scale must be between 0.1 and 2.0", nil)
	}
	params = params.WithScale(scale).WithLandscape(setup.Landscape)

	if setup.Size != "" {
		size, ok := pdfPageSizesInches[strings.ToUpper(setup.Size)]
		if !ok {
			return nil, report.NewError(report.KindValidation, fmt.Sprintf("unsupported pdf page size: %s", setup.Size), nil)
		}
		params = params.WithPaperWidth(size.width).WithPaperHeight(size.height)
	} else {
		params = params.WithPreferCSSPageSize(true)
	}

	params = params.
		WithMarginTop(setup.Margins.Top / 72.0).
		WithMarginBottom(setup.Margins.Bottom / 72.0).
		WithMarginLeft(setup.Margins.Left / 72.0).
		WithMarginRight(setup.Margins.Right / 72.0)

	if setup.Footer.Label != "" || setup.Footer.PageLabel != "" {
		params = params.
			WithDisplayHeaderFooter(true).
			WithHeaderTemplate("<span></span>").
			WithFooterTemplate(footerTemplate(setup))
	}

	return params, nil
}

// Chromium fills spans with class pageNumber at print time.
func footerTemplate(setup report.PageSetup) string {
	footer := setup.Footer
	size := footer.FontSize
	if size <= 0 {
		size = 7
	}
	color := footer.Color
	if color == "" {
		color = "#000000"
	}
	return fmt.Sprintf(
		`<div style="font-family: Helvetica, Arial, sans-serif; font-size: %spt; color: %s; width: 100%%; margin: 0 %spt 0 %spt; display: flex; justify-content: space-between;">`+
			`<span>%s</span><span>%s <span class="pageNumber"></span></span></div>`,
		strconv.FormatFloat(size, 'f', -1, 64),
		html.EscapeString(color),
		strconv.FormatFloat(setup.Margins.Right, 'f', -1, 64),
		strconv.FormatFloat(setup.Margins.Left, 'f', -1, 64),
		html.EscapeString(footer.Label),
		html.EscapeString(footer.PageLabel),
	)
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}
