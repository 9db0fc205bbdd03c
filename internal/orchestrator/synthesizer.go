package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ShayCichocki/heavysql/internal/agent"
	"github.com/ShayCichocki/heavysql/internal/api"
	"github.com/ShayCichocki/heavysql/internal/telemetry"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

const synthesisInstructions = `As the synthesis agent, merge the findings above into one answer for the user's question.

Structure your response as:
- **Query Assessment**: combined evaluation of the current SQL
- **Agent Consensus**: where the analysts agree and disagree
- **Final Answer**: the best answer to the question

If the analysts identified a missing condition or an obvious error, add one line
IMPROVED_SQL: <the corrected query on a single line>
Otherwise write IMPROVED_SQL: none

Guidelines for a corrected query:
1. Keep the same selected column and table.
2. Use exact matches with = rather than LIKE.
3. Do not add LOWER(), UPPER() or other functions.
4. Only plain SELECT / FROM / WHERE / AND.`

// SynthesisInput is everything the synthesizer needs for one request.
type SynthesisInput struct {
	Question string
	DraftSQL string
	// Results holds every agent slot, successful or not.
	Results []models.AgentResult
}

// SynthesizerConfig configures a Synthesizer.
type SynthesizerConfig struct {
	// Aggregator computes overall confidence. Nil uses MeanAggregator.
	Aggregator Aggregator
	// LLMSummary enables the model-written summary.
	LLMSummary bool
	// Timeout bounds the summary call, like a worker agent call.
	Timeout   time.Duration
	Model     string
	MaxTokens int64
}

// Synthesizer merges agent results into a report.
type Synthesizer struct {
	client api.Completer
	cfg    SynthesizerConfig
	logger *DebugLogger
}

// NewSynthesizer creates a Synthesizer. A nil client disables the model-written summary.
func NewSynthesizer(client api.Completer, cfg SynthesizerConfig, logger *DebugLogger) *Synthesizer {
	if cfg.Aggregator == nil {
		cfg.Aggregator = MeanAggregator{}
	}
	return &Synthesizer{client: client, cfg: cfg, logger: logger}
}

// Synthesize builds the report. Only SUCCESS results contribute to
// confidence and recommendations. It never fails: a failed summary call
// falls back to a templated summary.
func (s *Synthesizer) Synthesize(ctx context.Context, in SynthesisInput) models.SynthesisReport {
	valid := successful(in.Results)

	report := models.SynthesisReport{
		FinalRecommendations: []string{},
		ValidAnalyses:        len(valid),
		TotalAgents:          len(in.Results),
		Strategy:             s.cfg.Aggregator.Name(),
	}

	ctx, span := telemetry.StartSynthesisSpan(ctx, report.ValidAnalyses, report.TotalAgents)
	defer span.End()

	if len(valid) == 0 {
		report.Summary = models.NoValidAnalysesSummary
		s.logger.Log("synthesis: no valid analyses out of %d", report.TotalAgents)
		return report
	}

	report.OverallConfidence = s.cfg.Aggregator.Aggregate(valid)
	report.FinalRecommendations = DedupRecommendations(valid)
	report.Summary = templatedSummary(report)

	if s.cfg.LLMSummary && s.client != nil {
		resp, err := completeWithin(ctx, s.client, api.CompletionRequest{
			Prompt:    synthesisPrompt(in, valid),
			Model:     s.cfg.Model,
			MaxTokens: s.cfg.MaxTokens,
		}, s.cfg.Timeout)
		resp = strings.TrimSpace(resp)
		switch {
		case err != nil:
			log.Printf("[synthesizer] summary call failed, using template: %v", err)
		case resp == "":
			log.Printf("[synthesizer] empty summary response, using template")
		default:
			report.Summary = resp
			report.LLMSummary = true
			report.ImprovedSQL = agent.ExtractImprovedSQL(resp, in.DraftSQL)
		}
	}

	s.logger.Log("synthesis: %d/%d valid, confidence %.3f (%s), %d recommendations, improved=%t",
		report.ValidAnalyses, report.TotalAgents, report.OverallConfidence, report.Strategy,
		len(report.FinalRecommendations), report.ImprovedSQL != "")
	return report
}

func successful(results []models.AgentResult) []models.AgentResult {
	var valid []models.AgentResult
	for _, r := range results {
		if r.Succeeded() {
			valid = append(valid, r)
		}
	}
	return valid
}

// templatedSummary is the summary used when no model-written one is available.
func templatedSummary(r models.SynthesisReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d agents produced a valid analysis; overall confidence %.2f (%s).",
		r.ValidAnalyses, r.TotalAgents, r.OverallConfidence, r.Strategy)
	if len(r.FinalRecommendations) == 0 {
		sb.WriteString(" No changes recommended.")
		return sb.String()
	}
	sb.WriteString("\nRecommendations:")
	for _, rec := range r.FinalRecommendations {
		sb.WriteString("\n- ")
		sb.WriteString(rec)
	}
	return sb.String()
}

func synthesisPrompt(in SynthesisInput, valid []models.AgentResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User question: %s\nCurrent SQL: %s\n\n", in.Question, in.DraftSQL)
	fmt.Fprintf(&sb, "Analyses from %d of %d agents:\n", len(valid), len(in.Results))
	for _, r := range valid {
		fmt.Fprintf(&sb, "\n%s\nQuestion: %s\nConfidence: %.2f\nAnalysis:\n%s\n---\n",
			r.Role.Title(), r.Question, r.ConfidenceValue(), r.Analysis)
	}
	sb.WriteString("\n")
	sb.WriteString(synthesisInstructions)
	return sb.String()
}
