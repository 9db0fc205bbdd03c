package models

import (
	"encoding/json"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"
)

func TestAgentStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status AgentStatus
		want   bool
	}{
		{"success is valid", AgentStatusSuccess, true},
		{"failure is valid", AgentStatusFailure, true},
		{"timeout is valid", AgentStatusTimeout, true},
		{"empty string is invalid", AgentStatus(""), false},
		{"lowercase is invalid", AgentStatus("success"), false},
		{"unknown status is invalid", AgentStatus("running"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("AgentStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestAgentRole_Closed(t *testing.T) {
	if len(Roles) != NumAgents {
		t.Fatalf("expected %d roles, got %d", NumAgents, len(Roles))
	}
	for i, r := range Roles {
		if int(r) != i {
			t.Errorf("Roles[%d] = %d, want %d", i, r, i)
		}
		if !r.Valid() {
			t.Errorf("Roles[%d] should be valid", i)
		}
	}
	if AgentRole(-1).Valid() || AgentRole(NumAgents).Valid() {
		t.Error("out of range roles should be invalid")
	}
}

func TestParseAgentRole(t *testing.T) {
	for _, r := range Roles {
		got, err := ParseAgentRole(r.String())
		if err != nil {
			t.Fatalf("ParseAgentRole(%q) error: %v", r.String(), err)
		}
		if got != r {
			t.Errorf("ParseAgentRole(%q) = %v, want %v", r.String(), got, r)
		}
	}

	if _, err := ParseAgentRole("janitor"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestAgentRole_JSON(t *testing.T) {
	data, err := json.Marshal(RoleDataLogic)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"data_logic"` {
		t.Errorf("marshal = %s, want \"data_logic\"", data)
	}

	var r AgentRole
	if err := json.Unmarshal([]byte(`"verification"`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r != RoleVerification {
		t.Errorf("unmarshal = %v, want verification", r)
	}

	if err := json.Unmarshal([]byte(`"nope"`), &r); err == nil {
		t.Error("expected error for unknown role label")
	}
}

func TestAgentRole_YAML(t *testing.T) {
	in := AgentResult{AgentID: 2, Role: RolePerformance, Status: AgentStatusSuccess, Recommendations: []string{}}
	data, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), "role: performance") {
		t.Errorf("marshal = %s, want role: performance", data)
	}

	var out AgentResult
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Role != RolePerformance || out.AgentID != 2 {
		t.Errorf("round trip = %+v, want agent 2 performance", out)
	}

	var r AgentRole
	if err := yaml.Unmarshal([]byte("janitor"), &r); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestAgentResult_ConfidenceValue(t *testing.T) {
	r := AgentResult{}
	if r.ConfidenceValue() != 0 {
		t.Errorf("absent confidence should read as 0, got %v", r.ConfidenceValue())
	}

	r.Confidence = Float64(0.42)
	if r.ConfidenceValue() != 0.42 {
		t.Errorf("ConfidenceValue() = %v, want 0.42", r.ConfidenceValue())
	}
}

func TestAgentResult_Succeeded(t *testing.T) {
	tests := []struct {
		status AgentStatus
		want   bool
	}{
		{AgentStatusSuccess, true},
		{AgentStatusFailure, false},
		{AgentStatusTimeout, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			r := AgentResult{Status: tt.status}
			if got := r.Succeeded(); got != tt.want {
				t.Errorf("Succeeded() = %v, want %v", got, tt.want)
			}
		})
	}
}
