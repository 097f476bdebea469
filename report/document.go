package report

import (
	"context"
	"io"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	generatedLayout = "02/01/2006"
	footerLabel     = "Sistema de Control de Laboratorios"
	pageLabel       = "Página"
	titleSpacer     = 12
)

// BlockKind identifies a flowable block.
type BlockKind int

const (
	BlockTitle BlockKind = iota
	BlockParagraph
	BlockSpacer
	BlockTable
)

// Block is a layout primitive composed into a paginated document.
type Block struct {
	Kind   BlockKind
	Text   string
	Height float64
	Table  *Table
}

// RowKind tags table rows so the layout engine knows how cells merge.
type RowKind int

const (
	RowData RowKind = iota
	RowSingleSpan
	RowDualSpan
)

// Cell is a table cell. Span is the number of table columns it covers.
// Label renders bold; LabelBreak puts the body on the next line.
type Cell struct {
	Span       int
	Label      string
	LabelBreak bool
	Text       string
	Lines      []string
}

// TableRow is a tagged table row.
type TableRow struct {
	Kind  RowKind
	Cells []Cell
}

// TableColumn is a header cell plus its width in points.
type TableColumn struct {
	Label string
	Width float64
}

// TableStyle holds table colors and font sizes in points.
type TableStyle struct {
	HeaderBackground string
	HeaderText       string
	GridColor        string
	GridWidth        float64
	HeaderFontSize   float64
	BodyFontSize     float64
	Leading          float64
}

// Table is the report body.
type Table struct {
	Columns []TableColumn
	Rows    []TableRow
	Style   TableStyle
}

// Margins are page margins in points.
type Margins struct {
	Left   float64
	Right  float64
	Top    float64
	Bottom float64
}

// Footer is drawn on every page.
type Footer struct {
	Label     string
	PageLabel string
	Color     string
	FontSize  float64
}

// PageSetup describes the page geometry.
type PageSetup struct {
	Size      string
	Landscape bool
	Margins   Margins
	Footer    Footer
}

// Document is a tree of flowable blocks.
type Document struct {
	Title  string
	Page   PageSetup
	Blocks []Block
}

// Table returns the first table block, if any.
func (d Document) Table() *Table {
	for _, block := range d.Blocks {
		if block.Kind == BlockTable && block.Table != nil {
			return block.Table
		}
	}
	return nil
}

// DefaultPageSetup is A4 landscape with 30/30/60/40 point margins.
func DefaultPageSetup() PageSetup {
	return PageSetup{
		Size:      "A4",
		Landscape: true,
		Margins:   Margins{Left: 30, Right: 30, Top: 60, Bottom: 40},
		Footer: Footer{
			Label:     footerLabel,
			PageLabel: pageLabel,
			Color:     "#4F81BD",
			FontSize:  7,
		},
	}
}

// DefaultTableStyle matches the institutional report palette.
func DefaultTableStyle() TableStyle {
	return TableStyle{
		HeaderBackground: "#1c336c",
		HeaderText:       "#ffffff",
		GridColor:        "#D3D3D3",
		GridWidth:        0.5,
		HeaderFontSize:   3,
		BodyFontSize:     5,
		Leading:          10,
	}
}

// DocumentBuilder accumulates rows into a document.
type DocumentBuilder struct {
	spec  Spec
	doc   Document
	table *Table
	rows  int64
}

// NewDocumentBuilder starts a document for spec generated at now.
func NewDocumentBuilder(spec Spec, now time.Time) *DocumentBuilder {
	upper := cases.Upper(language.Spanish)
	columns := spec.TableColumns()
	table := &Table{
		Columns: make([]TableColumn, len(columns)),
		Style:   DefaultTableStyle(),
	}
	for i, col := range columns {
		table.Columns[i] = TableColumn{Label: upper.String(col.TableLabel()), Width: col.Width}
	}

	return &DocumentBuilder{
		spec:  spec,
		table: table,
		doc: Document{
			Title: spec.Title,
			Page:  DefaultPageSetup(),
			Blocks: []Block{
				{Kind: BlockTitle, Text: spec.Title},
				{Kind: BlockParagraph, Text: "Generado el: " + now.Format(generatedLayout)},
				{Kind: BlockSpacer, Height: titleSpacer},
				{Kind: BlockTable, Table: table},
			},
		},
	}
}

// Add appends a data row and, depending on the annotation strategy, its annotation row.
func (b *DocumentBuilder) Add(row Row) {
	consumed := b.spec.Annotation.Consumes()
	dataLen := len(row) - consumed
	if dataLen < 0 {
		dataLen = 0
	}

	data := TableRow{Kind: RowData, Cells: make([]Cell, dataLen)}
	for i := 0; i < dataLen; i++ {
		data.Cells[i] = Cell{Span: 1, Text: Stringify(row[i])}
	}
	b.table.Rows = append(b.table.Rows, data)
	b.rows++

	width := len(b.table.Columns)
	switch b.spec.Annotation {
	case AnnotationSingleSpan:
		b.table.Rows = append(b.table.Rows, TableRow{
			Kind: RowSingleSpan,
			Cells: []Cell{{
				Span:  width,
				Label: "OBSERVACIONES",
				Text:  Stringify(valueFromEnd(row, 1)),
			}},
		})
	case AnnotationDualSpan:
		half := width / 2
		materials := DecodeMaterials(valueFromEnd(row, 1))
		b.table.Rows = append(b.table.Rows, TableRow{
			Kind: RowDualSpan,
			Cells: []Cell{
				{
					Span:       half,
					Label:      "REPORTE",
					LabelBreak: true,
					Text:       Stringify(valueFromEnd(row, 2)),
				},
				{
					Span:       width - half,
					Label:      "MATERIAL",
					LabelBreak: true,
					Lines:      materials.Lines(),
				},
			},
		})
	}
}

// Rows reports how many data rows were added.
func (b *DocumentBuilder) Rows() int64 {
	return b.rows
}

// Document returns the assembled document.
func (b *DocumentBuilder) Document() Document {
	return b.doc
}

// BuildDocument drains rows into a document.
func BuildDocument(ctx context.Context, spec Spec, rows RowIterator, now time.Time) (Document, int64, error) {
	builder := NewDocumentBuilder(spec, now)
	for {
		if err := ctx.Err(); err != nil {
			return Document{}, builder.Rows(), err
		}
		row, err := rows.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return Document{}, builder.Rows(), NewError(KindInternal, "report row read failed", err)
		}
		builder.Add(row)
	}
	return builder.Document(), builder.Rows(), nil
}

func valueFromEnd(row Row, offset int) any {
	idx := len(row) - offset
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}
