package reportmetrics

import (
	"context"
	"io"

	"github.com/goliatone/go-labreports/report"
)

type emptySource struct{}

func (emptySource) Query(ctx context.Context, query string) (report.RowIterator, error) {
	return emptyRows{}, nil
}

type emptyRows struct{}

func (emptyRows) Next(ctx context.Context) (report.Row, error) {
	return nil, io.EOF
}

func (emptyRows) Close() error {
	return nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) {
	return len(p), nil
}
