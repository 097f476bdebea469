package report

import (
	"context"
	"errors"
	"io"
)

type stubIterator struct {
	rows   []Row
	index  int
	closed bool
	err    error
}

func (it *stubIterator) Next(ctx context.Context) (Row, error) {
	_ = ctx
	if it.index >= len(it.rows) {
		if it.err != nil {
			return nil, it.err
		}
		return nil, io.EOF
	}
	row := it.rows[it.index]
	it.index++
	return row, nil
}

func (it *stubIterator) Close() error {
	it.closed = true
	return nil
}

type stubSource struct {
	rows    []Row
	err     error
	rowErr  error
	queries []string
	last    *stubIterator
}

func (s *stubSource) Query(ctx context.Context, query string) (RowIterator, error) {
	_ = ctx
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	s.last = &stubIterator{rows: s.rows, err: s.rowErr}
	return s.last, nil
}

type stubLayout struct {
	doc Document
	err error
}

func (l *stubLayout) Layout(ctx context.Context, doc Document) ([]byte, error) {
	_ = ctx
	l.doc = doc
	if l.err != nil {
		return nil, l.err
	}
	return []byte("%PDF-1.4 stub"), nil
}

type recordingLogger struct {
	infos  []string
	errors []string
}

func (l *recordingLogger) Debugf(string, ...any) {}
func (l *recordingLogger) Infof(format string, args ...any) {
	l.infos = append(l.infos, format)
}
func (l *recordingLogger) Errorf(format string, args ...any) {
	l.errors = append(l.errors, format)
}

type recordingMetrics struct {
	events []MetricsEvent
}

func (m *recordingMetrics) Emit(ctx context.Context, evt MetricsEvent) error {
	_ = ctx
	m.events = append(m.events, evt)
	return nil
}

var errBoom = errors.New("boom")

func transactionRow(reporte, materials any) Row {
	return Row{
		"20120001", "10:00", "2024-03-01", "12:00", "2024-03-01",
		"Ana", "Pérez", "Dr. Ruiz", "Luis", "Circuitos", "A", int64(3),
		"Y8", "práctica", reporte, materials,
	}
}
