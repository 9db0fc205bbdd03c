package agent

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

func TestRolePrompt(t *testing.T) {
	seen := map[string]bool{}
	for _, role := range models.Roles {
		p := RolePrompt(role)
		if p == "" {
			t.Errorf("RolePrompt(%s) is empty", role)
		}
		if seen[p] {
			t.Errorf("RolePrompt(%s) duplicates another role", role)
		}
		seen[p] = true
	}

	if got := RolePrompt(models.AgentRole(99)); got != "" {
		t.Errorf("RolePrompt(invalid) = %q, want empty", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	task := models.AgentTask{
		AgentID: 2,
		Role:    models.RolePerformance,
		Variant: models.Variant{Index: 2, Tag: models.VariantAlternative, Text: "Which school did number 21 attend?"},
		Context: models.TaskContext{
			OriginalQuestion: "What school did player number 21 play for?",
			DraftSQL:         "SELECT col5 FROM table_1 WHERE col1 = 21;",
			SchemaSummary:    "table_1: col0 Player, col1 No., col5 School",
		},
	}

	prompt := BuildPrompt(task)

	required := []string{
		task.Context.OriginalQuestion,
		task.Variant.Text,
		task.Context.DraftSQL,
		task.Context.SchemaSummary,
		"alternative",
		"RECOMMENDATIONS:",
		"CONFIDENCE:",
	}
	for _, phrase := range required {
		if !strings.Contains(prompt, phrase) {
			t.Errorf("BuildPrompt missing %q", phrase)
		}
	}
}

func TestBuildPrompt_NoSchema(t *testing.T) {
	prompt := BuildPrompt(models.AgentTask{
		Role:    models.RoleSyntax,
		Variant: models.Variant{Tag: models.VariantOriginal, Text: "q"},
		Context: models.TaskContext{OriginalQuestion: "q", DraftSQL: "SELECT 1;"},
	})
	if strings.Contains(prompt, "Table:") {
		t.Error("prompt should omit the table section when no schema is given")
	}
}
