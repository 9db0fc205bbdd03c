package models

import (
	"encoding/json"
	"fmt"
	"time"

	"go.yaml.in/yaml/v3"
)

// AgentRole identifies one of the fixed specialist roles of a heavy analysis.
// The set is closed: every valid role has an index in [0, NumAgents).
type AgentRole int

const (
	// RoleSyntax checks that the SQL is syntactically and structurally correct.
	RoleSyntax AgentRole = iota
	// RoleDataLogic checks that filters, columns and aggregates match the question.
	RoleDataLogic
	// RolePerformance looks for simpler or cheaper equivalent queries.
	RolePerformance
	// RoleVerification reasons about what the query returns and whether it answers the question.
	RoleVerification
)

// Roles lists every role in agent-id order.
var Roles = [NumAgents]AgentRole{RoleSyntax, RoleDataLogic, RolePerformance, RoleVerification}

// Valid returns true if the role is a known value.
func (r AgentRole) Valid() bool {
	return r >= RoleSyntax && r <= RoleVerification
}

// String returns the role label.
func (r AgentRole) String() string {
	switch r {
	case RoleSyntax:
		return "syntax"
	case RoleDataLogic:
		return "data_logic"
	case RolePerformance:
		return "performance"
	case RoleVerification:
		return "verification"
	default:
		return "unknown"
	}
}

// Title returns a human-readable role name.
func (r AgentRole) Title() string {
	switch r {
	case RoleSyntax:
		return "SQL Syntax Agent"
	case RoleDataLogic:
		return "Data Logic Agent"
	case RolePerformance:
		return "Performance Agent"
	case RoleVerification:
		return "Result Verification Agent"
	default:
		return "Unknown Agent"
	}
}

// ParseAgentRole converts a role label back to an AgentRole.
func ParseAgentRole(s string) (AgentRole, error) {
	for _, r := range Roles {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown agent role %q", s)
}

// MarshalJSON encodes the role as its label.
func (r AgentRole) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a role label.
func (r *AgentRole) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role, err := ParseAgentRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// MarshalYAML encodes the role as its label.
func (r AgentRole) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// UnmarshalYAML decodes a role label.
func (r *AgentRole) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	role, err := ParseAgentRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// AgentStatus is the outcome of one worker agent invocation.
type AgentStatus string

const (
	// AgentStatusSuccess indicates the agent returned a usable analysis.
	AgentStatusSuccess AgentStatus = "SUCCESS"
	// AgentStatusFailure indicates the model errored or returned nothing usable.
	AgentStatusFailure AgentStatus = "FAILURE"
	// AgentStatusTimeout indicates the agent did not answer before its deadline.
	AgentStatusTimeout AgentStatus = "TIMEOUT"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusSuccess, AgentStatusFailure, AgentStatusTimeout:
		return true
	default:
		return false
	}
}

// AgentResult is the structured outcome of one worker agent.
type AgentResult struct {
	// AgentID is the slot position of the agent.
	AgentID int `json:"agent_id" yaml:"agent_id"`
	// Role is the specialist role the agent played.
	Role AgentRole `json:"role" yaml:"role"`
	// Question is the variant text the agent answered.
	Question string `json:"question,omitempty" yaml:"question,omitempty"`
	// Analysis is the free-text analysis returned by the model.
	Analysis string `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	// Confidence is the parsed confidence in [0,1], nil when the agent did not succeed.
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	// Recommendations are the suggestions extracted from the analysis, in order.
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
	// Status is the outcome of the invocation.
	Status AgentStatus `json:"status" yaml:"status"`
	// Error describes the failure, if any.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// Duration is how long the agent ran.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Succeeded reports whether the result can be used for synthesis.
func (r AgentResult) Succeeded() bool {
	return r.Status == AgentStatusSuccess
}

// ConfidenceValue returns the confidence, or 0 when absent.
func (r AgentResult) ConfidenceValue() float64 {
	if r.Confidence == nil {
		return 0
	}
	return *r.Confidence
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
