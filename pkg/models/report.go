package models

import "time"

// NoValidAnalysesSummary is the summary of a report built from zero successful agents.
const NoValidAnalysesSummary = "no valid analyses"

// SynthesisReport merges the successful agent results of one heavy analysis.
type SynthesisReport struct {
	// OverallConfidence is the aggregated confidence over successful agents, in [0,1].
	OverallConfidence float64 `json:"overall_confidence" yaml:"overall_confidence"`
	// FinalRecommendations are the de-duplicated recommendations in agent-id order.
	FinalRecommendations []string `json:"final_recommendations" yaml:"final_recommendations"`
	// Summary is a short narrative of the findings.
	Summary string `json:"summary" yaml:"summary"`
	// ValidAnalyses counts the agents that finished with SUCCESS.
	ValidAnalyses int `json:"valid_analyses" yaml:"valid_analyses"`
	// TotalAgents is the number of agent slots in the batch.
	TotalAgents int `json:"total_agents" yaml:"total_agents"`
	// ImprovedSQL is set only when the synthesis model proposed a replacement query.
	ImprovedSQL string `json:"improved_sql,omitempty" yaml:"improved_sql,omitempty"`
	// Strategy names the aggregation strategy that produced OverallConfidence.
	Strategy string `json:"strategy" yaml:"strategy"`
	// LLMSummary is true when Summary came from the synthesis model rather than the template.
	LLMSummary bool `json:"llm_summary" yaml:"llm_summary"`
}

// Degraded reports whether fewer than all agents contributed.
func (r SynthesisReport) Degraded() bool {
	return r.ValidAnalyses < r.TotalAgents
}

// HeavyAnalysis is the full outcome of one heavy-mode request.
type HeavyAnalysis struct {
	// RunID uniquely identifies the request.
	RunID string `json:"run_id" yaml:"run_id"`
	// Question is the original question.
	Question string `json:"question" yaml:"question"`
	// DraftSQL is the query under analysis.
	DraftSQL string `json:"draft_sql" yaml:"draft_sql"`
	// Variants are the question variants handed to the agents.
	Variants []Variant `json:"variants" yaml:"variants"`
	// Results holds one entry per agent slot, in agent-id order.
	Results []AgentResult `json:"results" yaml:"results"`
	// Report is the synthesized outcome.
	Report SynthesisReport `json:"report" yaml:"report"`
	// ExpansionDegraded is true when expansion fell back to the original question.
	ExpansionDegraded bool `json:"expansion_degraded" yaml:"expansion_degraded"`
	// BatchTimedOut is true when the global batch deadline expired.
	BatchTimedOut bool `json:"batch_timed_out" yaml:"batch_timed_out"`
	// StartedAt is when the request began.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	// Duration is the total wall-clock time of the request.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// FinalSQL returns the improved query when one was proposed, else the draft.
func (h *HeavyAnalysis) FinalSQL() string {
	if h.Report.ImprovedSQL != "" {
		return h.Report.ImprovedSQL
	}
	return h.DraftSQL
}
