package report

import (
	"context"
	"io"
	"strings"
)

// ByteOrderMark prefixes the header line so spreadsheets read the file as UTF-8.
const ByteOrderMark = "\ufeff"

// CSVLines yields CSV text lines one row at a time. It is single pass and
// must be driven by one consumer.
type CSVLines struct {
	spec    Spec
	rows    RowIterator
	header  bool
	done    bool
	emitted int64
}

// NewCSVLines runs the spec query and returns a lazy line sequence.
func NewCSVLines(ctx context.Context, source Source, spec Spec) (*CSVLines, error) {
	if source == nil {
		return nil, NewError(KindValidation, "report source is required", nil)
	}
	if len(spec.Columns) == 0 {
		return nil, NewError(KindValidation, "report columns are required", nil)
	}
	rows, err := source.Query(ctx, spec.Query)
	if err != nil {
		return nil, NewError(KindInternal, "report query failed", err)
	}
	return &CSVLines{spec: spec, rows: rows}, nil
}

// Next returns the next line, including its terminator, or io.EOF.
func (l *CSVLines) Next(ctx context.Context) (string, error) {
	if l == nil || l.done {
		return "", io.EOF
	}
	if !l.header {
		l.header = true
		return ByteOrderMark + strings.Join(l.spec.Headers(), ",") + "\n", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	row, err := l.rows.Next(ctx)
	if err != nil {
		l.finish()
		if err == io.EOF {
			return "", io.EOF
		}
		return "", NewError(KindInternal, "report row read failed", err)
	}
	l.emitted++
	return FormatCSVRow(l.spec, row), nil
}

// Rows reports how many data lines were produced so far.
func (l *CSVLines) Rows() int64 {
	if l == nil {
		return 0
	}
	return l.emitted
}

// Close releases the underlying row iterator.
func (l *CSVLines) Close() error {
	if l == nil || l.done {
		return nil
	}
	return l.finish()
}

// Drain writes the remaining lines into w.
func (l *CSVLines) Drain(ctx context.Context, w io.Writer) (int64, error) {
	var written int64
	for {
		line, err := l.Next(ctx)
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			_ = l.Close()
			return written, err
		}
		n, err := io.WriteString(w, line)
		written += int64(n)
		if err != nil {
			_ = l.Close()
			return written, err
		}
	}
}

func (l *CSVLines) finish() error {
	l.done = true
	if l.rows == nil {
		return nil
	}
	return l.rows.Close()
}

// FormatCSVRow renders one row as a CSV line with its terminator.
func FormatCSVRow(spec Spec, row Row) string {
	cells := make([]string, len(row))
	last := len(row) - 1
	for i, value := range row {
		var text string
		if spec.Materials && i == last {
			text = DecodeMaterials(value).CSVText()
		} else {
			text = Stringify(value)
		}
		cells[i] = SanitizeCell(text)
	}
	return strings.Join(cells, ",") + "\n"
}
