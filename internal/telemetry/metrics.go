package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// Metric names, service_prefix + subject + unit suffix.
const (
	MetricTicksTotal        = "hedgegrid_ticks_total"
	MetricActionsTotal      = "hedgegrid_actions_total"
	MetricHedgeTriggerTotal = "hedgegrid_hedge_triggers_total"
	MetricTPCloseTotal      = "hedgegrid_tp_closes_total"
	MetricTickLatency       = "hedgegrid_tick_latency_seconds"
)

// MetricsHolder holds the initialized instruments the engine writes to on
// every tick. One process-wide holder.
type MetricsHolder struct {
	TicksTotal        metric.Int64Counter
	ActionsTotal      metric.Int64Counter
	HedgeTriggerTotal metric.Int64Counter
	TPCloseTotal      metric.Int64Counter
	TickLatency       metric.Float64Histogram
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// InitMetrics builds every instrument on the given meter and installs the
// result as the process-wide holder. Safe to call more than once; only the
// first call takes effect.
func InitMetrics(meter metric.Meter) (*MetricsHolder, error) {
	var initErr error
	initOnce.Do(func() {
		h := &MetricsHolder{}

		h.TicksTotal, initErr = meter.Int64Counter(MetricTicksTotal,
			metric.WithDescription("ticks processed by the decision engine"))
		if initErr != nil {
			return
		}
		h.ActionsTotal, initErr = meter.Int64Counter(MetricActionsTotal,
			metric.WithDescription("decisions emitted, by action"))
		if initErr != nil {
			return
		}
		h.HedgeTriggerTotal, initErr = meter.Int64Counter(MetricHedgeTriggerTotal,
			metric.WithDescription("hedge-lock activations, by triggering side"))
		if initErr != nil {
			return
		}
		h.TPCloseTotal, initErr = meter.Int64Counter(MetricTPCloseTotal,
			metric.WithDescription("take-profit closes, by side"))
		if initErr != nil {
			return
		}
		h.TickLatency, initErr = meter.Float64Histogram(MetricTickLatency,
			metric.WithDescription("wall-clock time spent processing one tick"),
			metric.WithUnit("s"))
		if initErr != nil {
			return
		}

		globalMetrics = h
	})
	if initErr != nil {
		return nil, initErr
	}
	return globalMetrics, nil
}

// GetGlobalMetrics returns the process-wide holder, or nil if InitMetrics
// has not run yet.
func GetGlobalMetrics() *MetricsHolder {
	return globalMetrics
}
