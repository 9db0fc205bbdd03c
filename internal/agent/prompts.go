// Package agent implements the worker agents of a heavy analysis: one
// specialist LLM call per task, parsed into a structured result.
package agent

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

// responseFormat is appended to every role prompt so the parser can find
// the recommendation list and the confidence score.
const responseFormat = `Respond in exactly this structure:

ANALYSIS:
<your step-by-step analysis of the SQL for this question>

RECOMMENDATIONS:
- <one concrete recommendation per line, or "- none">

CONFIDENCE: <a number between 0 and 1 for how confident you are that the SQL answers the question>

Only recommend SQL changes for clear missing conditions or obvious errors.
Keep suggested SQL simple: plain SELECT / FROM / WHERE / AND, exact matches with =,
no LIKE, LOWER() or UPPER() unless strictly required.`

// rolePrompts holds the fixed instruction text for each role.
var rolePrompts = [models.NumAgents]string{
	models.RoleSyntax: `You are the SQL Syntax Agent.
Check that the query is valid SQLite, references only columns that exist in the table,
uses the table name exactly as given, and that the aggregate (COUNT, MIN, MAX, SUM, AVG)
matches what the question asks for.`,

	models.RoleDataLogic: `You are the Data Logic Agent.
Check that every condition stated in the question appears in the WHERE clause, that the
selected column is the one the question asks about, and that literal values match the
data samples (spelling, case, units). Multi-condition questions need every condition.`,

	models.RolePerformance: `You are the Performance Agent.
Look for a simpler equivalent query: redundant conditions, unnecessary functions,
needless subqueries or sorting. Never trade correctness for brevity.`,

	models.RoleVerification: `You are the Result Verification Agent.
Reason about the rows the query would return against the sample data and decide whether
that result actually answers the question. Flag empty or ambiguous results.`,
}

// RolePrompt returns the fixed instruction text for a role.
func RolePrompt(role models.AgentRole) string {
	if !role.Valid() {
		return ""
	}
	return rolePrompts[role]
}

// BuildPrompt renders the user prompt for a task.
func BuildPrompt(task models.AgentTask) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Your goal is to help answer the user's question correctly: %q\n\n", task.Context.OriginalQuestion)
	fmt.Fprintf(&sb, "Question to focus on (%s): %s\n\n", strings.ToLower(string(task.Variant.Tag)), task.Variant.Text)
	fmt.Fprintf(&sb, "Current SQL:\n%s\n\n", task.Context.DraftSQL)
	if task.Context.SchemaSummary != "" {
		fmt.Fprintf(&sb, "Table:\n%s\n\n", task.Context.SchemaSummary)
	}
	sb.WriteString(responseFormat)

	return sb.String()
}
