package reportmetrics

import (
	"context"

	"github.com/goliatone/go-labreports/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "labreports"

// Hook records report events as Prometheus metrics.
type Hook struct {
	generated *prometheus.CounterVec
	failed    *prometheus.CounterVec
	rows      *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

var _ report.MetricsHook = (*Hook)(nil)

// NewHook registers the report collectors on reg. A nil reg uses the default registerer.
func NewHook(reg prometheus.Registerer) *Hook {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Hook{
		generated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_generated_total",
				Help:      "Reports generated successfully",
			},
			[]string{"kind", "format"},
		),
		failed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_failed_total",
				Help:      "Reports that failed, by error kind",
			},
			[]string{"kind", "format", "error"},
		),
		rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_rows_total",
				Help:      "Data rows written into reports",
			},
			[]string{"kind", "format"},
		),
		bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_bytes_total",
				Help:      "Bytes written into reports",
			},
			[]string{"kind", "format"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_duration_seconds",
				Help:      "Report generation time",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind", "format"},
		),
	}
}

// Emit implements report.MetricsHook.
func (h *Hook) Emit(ctx context.Context, evt report.MetricsEvent) error {
	_ = ctx
	kind, format := string(evt.Kind), string(evt.Format)
	switch evt.Name {
	case "report.generated":
		h.generated.WithLabelValues(kind, format).Inc()
		h.rows.WithLabelValues(kind, format).Add(float64(evt.Rows))
		h.bytes.WithLabelValues(kind, format).Add(float64(evt.Bytes))
	case "report.failed":
		errKind := string(evt.ErrorKind)
		if errKind == "" {
			errKind = string(report.KindInternal)
		}
		h.failed.WithLabelValues(kind, format, errKind).Inc()
	default:
		return nil
	}
	h.duration.WithLabelValues(kind, format).Observe(evt.Duration.Seconds())
	return nil
}
