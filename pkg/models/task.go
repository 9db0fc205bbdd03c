package models

// NumAgents is the number of worker agents in a heavy analysis batch.
const NumAgents = 4

// VariantTag labels how a question variant was derived from the original.
type VariantTag string

const (
	// VariantOriginal is the unmodified user question.
	VariantOriginal VariantTag = "ORIGINAL"
	// VariantSpecific is a more detailed rewording focused on conditions and context.
	VariantSpecific VariantTag = "SPECIFIC"
	// VariantAlternative rephrases the question with different terminology.
	VariantAlternative VariantTag = "ALTERNATIVE"
	// VariantVerification asks what would confirm a correct answer.
	VariantVerification VariantTag = "VERIFICATION"
)

// VariantTags lists the tags in slot order. Slot 0 is always the original.
var VariantTags = [NumAgents]VariantTag{
	VariantOriginal,
	VariantSpecific,
	VariantAlternative,
	VariantVerification,
}

// Valid returns true if the tag is a known value.
func (t VariantTag) Valid() bool {
	switch t {
	case VariantOriginal, VariantSpecific, VariantAlternative, VariantVerification:
		return true
	default:
		return false
	}
}

// Variant is one natural-language rephrasing of the user's question.
type Variant struct {
	// Index is the slot position, 0 through NumAgents-1.
	Index int `json:"index" yaml:"index"`
	// Tag describes how the variant was derived.
	Tag VariantTag `json:"tag" yaml:"tag"`
	// Text is the question text handed to the agent.
	Text string `json:"text" yaml:"text"`
}

// Variants is the fixed-size batch produced by question expansion.
type Variants [NumAgents]Variant

// Slice returns the variants as a slice, in slot order.
func (v Variants) Slice() []Variant {
	out := make([]Variant, len(v))
	copy(out, v[:])
	return out
}

// TaskContext is the context shared by every agent in one request.
type TaskContext struct {
	// OriginalQuestion is the question as the user asked it.
	OriginalQuestion string `json:"original_question"`
	// DraftSQL is the query produced by the standard single-model path.
	DraftSQL string `json:"draft_sql"`
	// SchemaSummary describes the table the question is asked against.
	SchemaSummary string `json:"schema_summary"`
}

// AgentTask is the unit of work handed to one worker agent.
type AgentTask struct {
	// AgentID is the slot position of the agent, 0 through NumAgents-1.
	AgentID int `json:"agent_id"`
	// Role is the specialist role the agent plays.
	Role AgentRole `json:"role"`
	// Variant is the question variant this agent answers.
	Variant Variant `json:"variant"`
	// Context is shared across all tasks of the request.
	Context TaskContext `json:"context"`
}
