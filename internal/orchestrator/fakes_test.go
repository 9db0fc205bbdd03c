package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/heavysql/internal/api"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

var errFake = errors.New("fake client failure")

// fakeCompleter records requests and answers through respond.
type fakeCompleter struct {
	mu       sync.Mutex
	requests []api.CompletionRequest
	respond  func(ctx context.Context, req api.CompletionRequest) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req api.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(ctx, req)
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func staticCompleter(text string, err error) *fakeCompleter {
	return &fakeCompleter{respond: func(context.Context, api.CompletionRequest) (string, error) {
		return text, err
	}}
}

func isExpansion(req api.CompletionRequest) bool {
	return strings.Contains(req.Prompt, "Rewrite the question")
}

func isSynthesis(req api.CompletionRequest) bool {
	return strings.Contains(req.Prompt, "As the synthesis agent")
}

// runnerFunc adapts a function to Runner.
type runnerFunc func(ctx context.Context, task models.AgentTask, timeout time.Duration) models.AgentResult

func (f runnerFunc) Run(ctx context.Context, task models.AgentTask, timeout time.Duration) models.AgentResult {
	return f(ctx, task, timeout)
}

func succeed(task models.AgentTask, confidence float64, recs ...string) models.AgentResult {
	if recs == nil {
		recs = []string{}
	}
	return models.AgentResult{
		AgentID:         task.AgentID,
		Role:            task.Role,
		Question:        task.Variant.Text,
		Analysis:        "analysis",
		Confidence:      models.Float64(confidence),
		Recommendations: recs,
		Status:          models.AgentStatusSuccess,
	}
}

func fail(task models.AgentTask, status models.AgentStatus) models.AgentResult {
	return models.AgentResult{
		AgentID:         task.AgentID,
		Role:            task.Role,
		Recommendations: []string{},
		Status:          status,
		Error:           "failed",
	}
}

func testTasks(n int) []models.AgentTask {
	return BuildTasks(Unexpanded("What school did player number 21 play for?"), n, models.TaskContext{
		OriginalQuestion: "What school did player number 21 play for?",
		DraftSQL:         "SELECT col5 FROM table_1 WHERE col1 = 21;",
	})
}

func resultWith(id int, status models.AgentStatus, confidence float64, recs ...string) models.AgentResult {
	r := models.AgentResult{
		AgentID:         id,
		Role:            models.Roles[id],
		Status:          status,
		Recommendations: recs,
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
	if status == models.AgentStatusSuccess {
		r.Confidence = models.Float64(confidence)
	}
	return r
}
