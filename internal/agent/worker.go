package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ShayCichocki/heavysql/internal/api"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

// ErrUnparsableResponse is recorded when the model answered with nothing usable.
var ErrUnparsableResponse = errors.New("unparsable agent response")

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	// Model overrides the client default model.
	Model string
	// MaxTokens caps each agent response.
	MaxTokens int64
	// Temperature is passed through to the model when set.
	Temperature *float64
}

// Worker runs one agent task against the LLM client. A Worker holds no
// per-request state and can run many tasks concurrently.
type Worker struct {
	client api.Completer
	cfg    WorkerConfig
}

// NewWorker creates a Worker backed by the given client.
func NewWorker(client api.Completer, cfg WorkerConfig) *Worker {
	return &Worker{client: client, cfg: cfg}
}

// Run executes a task with exactly one model call and never returns an error:
// every outcome is captured in the result status. A timeout of zero means no
// per-agent deadline beyond ctx.
func (w *Worker) Run(ctx context.Context, task models.AgentTask, timeout time.Duration) models.AgentResult {
	start := time.Now()
	result := models.AgentResult{
		AgentID:         task.AgentID,
		Role:            task.Role,
		Question:        task.Variant.Text,
		Recommendations: []string{},
	}

	if !task.Role.Valid() {
		return failed(result, start, fmt.Errorf("invalid role %d", task.Role))
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Buffered so an abandoned call never blocks its goroutine.
	replyCh := make(chan reply, 1)
	go func() {
		text, err := w.client.Complete(runCtx, api.CompletionRequest{
			System:      RolePrompt(task.Role),
			Prompt:      BuildPrompt(task),
			Model:       w.cfg.Model,
			MaxTokens:   w.cfg.MaxTokens,
			Temperature: w.cfg.Temperature,
		})
		replyCh <- reply{text: text, err: err}
	}()

	r := awaitReply(runCtx, replyCh)

	if errors.Is(r.err, context.DeadlineExceeded) {
		result.Status = models.AgentStatusTimeout
		result.Error = fmt.Sprintf("no response within %s", timeout)
		result.Duration = time.Since(start)
		log.Printf("[agent %d/%s] timed out after %s", task.AgentID, task.Role, result.Duration.Round(time.Millisecond))
		return result
	}
	if r.err != nil {
		return failed(result, start, r.err)
	}
	if strings.TrimSpace(r.text) == "" {
		return failed(result, start, ErrUnparsableResponse)
	}

	parsed := ParseResponse(r.text)
	if !parsed.ConfidenceFound {
		log.Printf("[agent %d/%s] no parsable confidence in response, using 0.0", task.AgentID, task.Role)
	}

	result.Status = models.AgentStatusSuccess
	result.Analysis = parsed.Analysis
	result.Confidence = models.Float64(parsed.Confidence)
	result.Recommendations = parsed.Recommendations
	result.Duration = time.Since(start)
	return result
}

func failed(result models.AgentResult, start time.Time, err error) models.AgentResult {
	result.Status = models.AgentStatusFailure
	result.Error = err.Error()
	result.Duration = time.Since(start)
	log.Printf("[agent %d/%s] failed: %v", result.AgentID, result.Role, err)
	return result
}

// reply is the outcome of one model call.
type reply struct {
	text string
	err  error
}

// awaitReply waits for the call or for ctx. A reply that is already waiting
// when ctx ends still counts, so the caller classifies by r.err alone.
func awaitReply(ctx context.Context, replyCh <-chan reply) reply {
	select {
	case r := <-replyCh:
		return r
	case <-ctx.Done():
		select {
		case r := <-replyCh:
			return r
		default:
			return reply{err: ctx.Err()}
		}
	}
}
