package orchestrator

import (
	"time"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

// EventType represents the type of heavy analysis event.
type EventType string

const (
	// EventExpansionDone indicates the question variants are ready.
	EventExpansionDone EventType = "expansion_done"
	// EventAgentStarted indicates an agent call was launched.
	EventAgentStarted EventType = "agent_started"
	// EventAgentFinished indicates an agent slot resolved, including placeholders.
	EventAgentFinished EventType = "agent_finished"
	// EventSynthesisDone indicates the report is complete.
	EventSynthesisDone EventType = "synthesis_done"
)

// Event is emitted while a heavy analysis runs. Events feed the TUI.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the analysis the event belongs to.
	RunID string
	// AgentID is the agent slot for agent events.
	AgentID int
	// Role is the agent role for agent events.
	Role models.AgentRole
	// Question is the variant text handed to the agent.
	Question string
	// Status is the final agent status for agent_finished.
	Status models.AgentStatus
	// Confidence is set for successful agent_finished events.
	Confidence *float64
	// Message provides additional context about the event.
	Message string
	// Variants is set for expansion_done.
	Variants []models.Variant
	// Degraded is set on expansion_done when the fallback was used.
	Degraded bool
	// Report is set for synthesis_done.
	Report *models.SynthesisReport
	// Duration is the elapsed time of the finished step.
	Duration time.Duration
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
