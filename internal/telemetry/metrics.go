package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

// Metrics holds the heavy analysis metric instruments.
type Metrics struct {
	AnalysesStarted   metric.Int64Counter
	AnalysesDegraded  metric.Int64Counter
	AgentResults      metric.Int64Counter
	BatchTimeouts     metric.Int64Counter
	AgentDuration     metric.Float64Histogram
	AnalysisDuration  metric.Float64Histogram
	OverallConfidence metric.Float64Histogram
}

// NewMetrics creates all instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider())
}

// NewMetricsWithProvider creates all instruments on the given provider.
func NewMetricsWithProvider(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	m.AnalysesStarted, err = meter.Int64Counter("heavysql.analyses.started",
		metric.WithDescription("Number of heavy analyses started"))
	if err != nil {
		return nil, err
	}

	m.AnalysesDegraded, err = meter.Int64Counter("heavysql.analyses.degraded",
		metric.WithDescription("Number of heavy analyses where some agents did not succeed"))
	if err != nil {
		return nil, err
	}

	m.AgentResults, err = meter.Int64Counter("heavysql.agent.results",
		metric.WithDescription("Agent results by role and status"))
	if err != nil {
		return nil, err
	}

	m.BatchTimeouts, err = meter.Int64Counter("heavysql.batch.timeouts",
		metric.WithDescription("Number of dispatches that hit the batch deadline"))
	if err != nil {
		return nil, err
	}

	m.AgentDuration, err = meter.Float64Histogram("heavysql.agent.duration_seconds",
		metric.WithDescription("Agent call duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.AnalysisDuration, err = meter.Float64Histogram("heavysql.analysis.duration_seconds",
		metric.WithDescription("Heavy analysis duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.OverallConfidence, err = meter.Float64Histogram("heavysql.report.confidence",
		metric.WithDescription("Overall confidence of synthesis reports"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordAgent records one agent result. Safe on a nil receiver.
func (m *Metrics) RecordAgent(ctx context.Context, r models.AgentResult) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("role", r.Role.String()),
		attribute.String("status", string(r.Status)),
	)
	m.AgentResults.Add(ctx, 1, attrs)
	m.AgentDuration.Record(ctx, r.Duration.Seconds(), attrs)
}

// RecordAnalysis records a finished analysis. Safe on a nil receiver.
func (m *Metrics) RecordAnalysis(ctx context.Context, a *models.HeavyAnalysis) {
	if m == nil || a == nil {
		return
	}
	m.AnalysisDuration.Record(ctx, a.Duration.Seconds())
	m.OverallConfidence.Record(ctx, a.Report.OverallConfidence)
	if a.Report.Degraded() {
		m.AnalysesDegraded.Add(ctx, 1)
	}
	if a.BatchTimedOut {
		m.BatchTimeouts.Add(ctx, 1)
	}
}

// RecordStart counts a started analysis. Safe on a nil receiver.
func (m *Metrics) RecordStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.AnalysesStarted.Add(ctx, 1)
}
