package reportpdf

import (
	"bytes"
	"strconv"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/goliatone/go-labreports/report"
)

// HTMLRenderer renders documents to HTML with a pongo2 template.
type HTMLRenderer struct {
	// Template overrides DefaultTemplate.
	Template string

	once     sync.Once
	compiled *pongo2.Template
	err      error
}

type pageView struct {
	Size      string
	Landscape bool
	Top       string
	Right     string
	Bottom    string
	Left      string
}

type styleView struct {
	HeaderBackground string
	HeaderText       string
	GridColor        string
	GridWidth        string
	HeaderFontSize   string
	BodyFontSize     string
	Leading          string
}

type blockView struct {
	Kind   string
	Text   string
	Height string
	Table  *tableView
}

type tableView struct {
	Columns []columnView
	Rows    []rowView
}

type columnView struct {
	Label string
	Width string
}

type rowView struct {
	Class      string
	Annotation bool
	Cells      []cellView
}

type cellView struct {
	Span  int
	Label string
	Break bool
	Text  string
	Lines []string
}

// Render writes the document as HTML into buf.
func (r *HTMLRenderer) Render(doc report.Document, buf *bytes.Buffer) error {
	tpl, err := r.template()
	if err != nil {
		return report.NewError(report.KindInternal, "pdf template compile failed", err)
	}

	style := report.DefaultTableStyle()
	if table := doc.Table(); table != nil {
		style = table.Style
	}

	ctx := pongo2.Context{
		"title": doc.Title,
		"page": pageView{
			Size:      doc.Page.Size,
			Landscape: doc.Page.Landscape,
			Top:       points(doc.Page.Margins.Top),
			Right:     points(doc.Page.Margins.Right),
			Bottom:    points(doc.Page.Margins.Bottom),
			Left:      points(doc.Page.Margins.Left),
		},
		"style": styleView{
			HeaderBackground: style.HeaderBackground,
			HeaderText:       style.HeaderText,
			GridColor:        style.GridColor,
			GridWidth:        points(style.GridWidth),
			HeaderFontSize:   points(style.HeaderFontSize),
			BodyFontSize:     points(style.BodyFontSize),
			Leading:          points(style.Leading),
		},
		"blocks": blockViews(doc.Blocks),
	}

	if err := tpl.ExecuteWriter(ctx, buf); err != nil {
		return report.NewError(report.KindInternal, "pdf template render failed", err)
	}
	return nil
}

func (r *HTMLRenderer) template() (*pongo2.Template, error) {
	r.once.Do(func() {
		source := r.Template
		if source == "" {
			source = DefaultTemplate
		}
		r.compiled, r.err = pongo2.FromString(source)
	})
	return r.compiled, r.err
}

func blockViews(blocks []report.Block) []blockView {
	views := make([]blockView, 0, len(blocks))
	for _, block := range blocks {
		switch block.Kind {
		case report.BlockTitle:
			views = append(views, blockView{Kind: "title", Text: block.Text})
		case report.BlockParagraph:
			views = append(views, blockView{Kind: "paragraph", Text: block.Text})
		case report.BlockSpacer:
			views = append(views, blockView{Kind: "spacer", Height: points(block.Height)})
		case report.BlockTable:
			if block.Table == nil {
				continue
			}
			views = append(views, blockView{Kind: "table", Table: tableViewOf(block.Table)})
		}
	}
	return views
}

func tableViewOf(table *report.Table) *tableView {
	view := &tableView{
		Columns: make([]columnView, len(table.Columns)),
		Rows:    make([]rowView, len(table.Rows)),
	}
	for i, col := range table.Columns {
		width := ""
		if col.Width > 0 {
			width = points(col.Width)
		}
		view.Columns[i] = columnView{Label: col.Label, Width: width}
	}
	for i, row := range table.Rows {
		rv := rowView{Cells: make([]cellView, len(row.Cells))}
		switch row.Kind {
		case report.RowSingleSpan:
			rv.Class, rv.Annotation = "single-span", true
		case report.RowDualSpan:
			rv.Class, rv.Annotation = "dual-span", true
		default:
			rv.Class = "data"
		}
		for j, cell := range row.Cells {
			rv.Cells[j] = cellView{
				Span:  cell.Span,
				Label: cell.Label,
				Break: cell.LabelBreak,
				Text:  cell.Text,
				Lines: cell.Lines,
			}
		}
		view.Rows[i] = rv
	}
	return view
}

func points(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
