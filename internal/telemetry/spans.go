// Package telemetry provides OpenTelemetry spans and metric instruments for
// heavy analyses. With no SDK installed the global providers are no-ops.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

const instrumentationName = "heavysql"

// StartAnalysisSpan starts the root span of one heavy analysis.
func StartAnalysisSpan(ctx context.Context, runID, question string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "heavy.analyze",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("question.length", len(question)),
		),
	)
}

// StartExpansionSpan starts a span for the question expansion call.
func StartExpansionSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "heavy.expand")
}

// StartAgentSpan starts a span for one worker agent call.
func StartAgentSpan(ctx context.Context, agentID int, role models.AgentRole) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "heavy.agent",
		trace.WithAttributes(
			attribute.Int("agent.id", agentID),
			attribute.String("agent.role", role.String()),
		),
	)
}

// StartSynthesisSpan starts a span for report synthesis.
func StartSynthesisSpan(ctx context.Context, valid, total int) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "heavy.synthesize",
		trace.WithAttributes(
			attribute.Int("analyses.valid", valid),
			attribute.Int("analyses.total", total),
		),
	)
}

// EndAgentSpan records the result status on span and ends it.
func EndAgentSpan(span trace.Span, r models.AgentResult) {
	span.SetAttributes(attribute.String("agent.status", string(r.Status)))
	if r.Confidence != nil {
		span.SetAttributes(attribute.Float64("agent.confidence", *r.Confidence))
	}
	if !r.Succeeded() {
		span.SetStatus(codes.Error, r.Error)
	}
	span.End()
}
