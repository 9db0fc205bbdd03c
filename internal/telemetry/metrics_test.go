package telemetry

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation is %T, want Sum[int64]", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewMetricsWithProvider(mp)
	if err != nil {
		t.Fatalf("NewMetricsWithProvider: %v", err)
	}

	ctx := context.Background()
	m.RecordStart(ctx)
	m.RecordAgent(ctx, models.AgentResult{Role: models.RoleSyntax, Status: models.AgentStatusSuccess, Duration: time.Second})
	m.RecordAgent(ctx, models.AgentResult{Role: models.RoleDataLogic, Status: models.AgentStatusTimeout, Duration: 2 * time.Second})
	m.RecordAnalysis(ctx, &models.HeavyAnalysis{
		Report:        models.SynthesisReport{OverallConfidence: 0.8, ValidAnalyses: 1, TotalAgents: 2},
		BatchTimedOut: true,
		Duration:      3 * time.Second,
	})

	got := collect(t, reader)

	tests := []struct {
		name string
		want int64
	}{
		{"heavysql.analyses.started", 1},
		{"heavysql.agent.results", 2},
		{"heavysql.analyses.degraded", 1},
		{"heavysql.batch.timeouts", 1},
	}
	for _, tt := range tests {
		data, ok := got[tt.name]
		if !ok {
			t.Errorf("metric %s not recorded", tt.name)
			continue
		}
		if v := sumOf(t, data); v != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, v, tt.want)
		}
	}

	if _, ok := got["heavysql.report.confidence"]; !ok {
		t.Error("confidence histogram not recorded")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordStart(ctx)
	m.RecordAgent(ctx, models.AgentResult{})
	m.RecordAnalysis(ctx, &models.HeavyAnalysis{})
}

func TestNewMetrics_Global(t *testing.T) {
	if _, err := NewMetrics(); err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
}
