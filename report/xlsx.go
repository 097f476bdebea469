package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	excelMaxRows      = 1048576
	defaultDateFormat = "yyyy-mm-dd"
	defaultDateTime   = "yyyy-mm-dd hh:mm:ss"
)

// WriteXLSX streams rows into a single sheet workbook named after the report.
func WriteXLSX(ctx context.Context, spec Spec, rows RowIterator, w io.Writer) (int64, int64, error) {
	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	sheet := sheetName(spec)
	if current := file.GetSheetName(0); current != sheet {
		if err := file.SetSheetName(current, sheet); err != nil {
			return 0, 0, NewError(KindInternal, "xlsx sheet setup failed", err)
		}
	}

	stream, err := file.NewStreamWriter(sheet)
	if err != nil {
		return 0, 0, NewError(KindInternal, "xlsx stream setup failed", err)
	}

	style := DefaultTableStyle()
	headerID, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: style.HeaderText},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{style.HeaderBackground}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
		},
	})
	if err != nil {
		return 0, 0, NewError(KindInternal, "xlsx style setup failed", err)
	}
	dateFmt := defaultDateFormat
	dateID, err := file.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return 0, 0, NewError(KindInternal, "xlsx style setup failed", err)
	}
	dateTimeFmt := defaultDateTime
	dateTimeID, err := file.NewStyle(&excelize.Style{CustomNumFmt: &dateTimeFmt})
	if err != nil {
		return 0, 0, NewError(KindInternal, "xlsx style setup failed", err)
	}

	for i, col := range spec.Columns {
		if col.Width <= 0 {
			continue
		}
		// points to character units, roughly
		if err := stream.SetColWidth(i+1, i+1, col.Width/5); err != nil {
			return 0, 0, NewError(KindInternal, "xlsx column setup failed", err)
		}
	}

	headers := make([]any, len(spec.Columns))
	for i, col := range spec.Columns {
		headers[i] = excelize.Cell{StyleID: headerID, Value: col.Header()}
	}
	if err := stream.SetRow("A1", headers); err != nil {
		return 0, 0, NewError(KindInternal, "xlsx header write failed", err)
	}

	var count int64
	rowIndex := 2
	for {
		if err := ctx.Err(); err != nil {
			return count, 0, err
		}
		row, err := rows.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return count, 0, NewError(KindInternal, "report row read failed", err)
		}
		if rowIndex > excelMaxRows {
			return count, 0, NewError(KindValidation, "xlsx row limit exceeded", nil)
		}

		cells := make([]any, len(row))
		last := len(row) - 1
		for i, value := range row {
			if spec.Materials && i == last {
				cells[i] = excelize.Cell{Value: DecodeMaterials(value).CSVText()}
				continue
			}
			cells[i] = xlsxCell(value, dateID, dateTimeID)
		}
		if err := stream.SetRow(fmt.Sprintf("A%d", rowIndex), cells); err != nil {
			return count, 0, NewError(KindInternal, "xlsx row write failed", err)
		}
		rowIndex++
		count++
	}

	if err := stream.Flush(); err != nil {
		return count, 0, NewError(KindInternal, "xlsx flush failed", err)
	}

	cw := &countingWriter{w: w}
	if _, err := file.WriteTo(cw); err != nil {
		return count, cw.count, err
	}
	return count, cw.count, nil
}

func xlsxCell(value any, dateID, dateTimeID int) excelize.Cell {
	switch v := value.(type) {
	case nil:
		return excelize.Cell{Value: ""}
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return excelize.Cell{Value: v, StyleID: dateID}
		}
		return excelize.Cell{Value: v, StyleID: dateTimeID}
	case bool, int, int32, int64, float32, float64, string:
		return excelize.Cell{Value: v}
	default:
		return excelize.Cell{Value: Stringify(value)}
	}
}

// Sheet names are capped at 31 characters and exclude a few symbols.
func sheetName(spec Spec) string {
	name := []rune(spec.Title)
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	if len(out) == 0 {
		return "Sheet1"
	}
	return string(out)
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
