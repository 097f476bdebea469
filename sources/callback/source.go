package reportcallback

import (
	"context"
	"fmt"
	"io"

	"github.com/goliatone/go-labreports/report"
)

// SourceFunc builds a RowIterator for a query.
type SourceFunc func(ctx context.Context, query string) (report.RowIterator, error)

// Source wraps a callback function as a report.Source.
type Source struct {
	fn SourceFunc
}

var _ report.Source = (*Source)(nil)

// NewSource creates a callback-based Source.
func NewSource(fn SourceFunc) *Source {
	return &Source{fn: fn}
}

// Query delegates to the configured callback.
func (s *Source) Query(ctx context.Context, query string) (report.RowIterator, error) {
	if s == nil || s.fn == nil {
		return nil, report.NewError(report.KindValidation, "callback source requires a function", nil)
	}
	return s.fn(ctx, query)
}

// Fixed serves canned rows keyed by exact query text.
func Fixed(results map[string][]report.Row) *Source {
	return NewSource(func(ctx context.Context, query string) (report.RowIterator, error) {
		_ = ctx
		rows, ok := results[query]
		if !ok {
			return nil, report.NewError(report.KindNotFound, fmt.Sprintf("no rows registered for query %q", query), nil)
		}
		return Rows(rows...), nil
	})
}

// IteratorFunc yields a row or io.EOF.
type IteratorFunc func(ctx context.Context) (report.Row, error)

// FuncIterator wraps a function into a RowIterator.
type FuncIterator struct {
	NextFunc  IteratorFunc
	CloseFunc func() error
}

func (it *FuncIterator) Next(ctx context.Context) (report.Row, error) {
	if it == nil || it.NextFunc == nil {
		return nil, report.NewError(report.KindValidation, "iterator requires NextFunc", nil)
	}
	return it.NextFunc(ctx)
}

func (it *FuncIterator) Close() error {
	if it == nil || it.CloseFunc == nil {
		return nil
	}
	return it.CloseFunc()
}

// Rows iterates over an in-memory slice.
func Rows(rows ...report.Row) *FuncIterator {
	idx := 0
	return &FuncIterator{
		NextFunc: func(ctx context.Context) (report.Row, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if idx >= len(rows) {
				return nil, io.EOF
			}
			row := rows[idx]
			idx++
			return row, nil
		},
	}
}
