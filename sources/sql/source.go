package reportsql

import (
	"context"
	"database/sql"
	"io"

	"github.com/goliatone/go-labreports/report"
)

// Querier runs SQL text. *sql.DB, *sql.Conn, *sql.Tx and *bun.DB satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Source executes report queries against a database handle.
type Source struct {
	DB Querier
}

var _ report.Source = (*Source)(nil)

// NewSource creates a SQL backed report source.
func NewSource(db Querier) *Source {
	return &Source{DB: db}
}

// Query runs query and returns a lazy row iterator in database order.
func (s *Source) Query(ctx context.Context, query string) (report.RowIterator, error) {
	if s == nil || s.DB == nil {
		return nil, report.NewError(report.KindValidation, "sql source requires a database", nil)
	}
	if query == "" {
		return nil, report.NewError(report.KindValidation, "sql query is required", nil)
	}

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	return &rowIterator{rows: rows, width: len(columns)}, nil
}

type rowIterator struct {
	rows   *sql.Rows
	width  int
	closed bool
}

func (it *rowIterator) Next(ctx context.Context) (report.Row, error) {
	if it.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return nil, err
		}
		_ = it.Close()
		return nil, io.EOF
	}

	values := make([]any, it.width)
	targets := make([]any, it.width)
	for i := range values {
		targets[i] = &values[i]
	}
	if err := it.rows.Scan(targets...); err != nil {
		return nil, err
	}

	row := make(report.Row, it.width)
	for i, value := range values {
		// drivers reuse byte buffers between rows
		if b, ok := value.([]byte); ok {
			row[i] = string(b)
			continue
		}
		row[i] = value
	}
	return row, nil
}

func (it *rowIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.rows.Close()
}
