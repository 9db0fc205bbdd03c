package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/heavysql/internal/telemetry"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

// DefaultBatchTimeoutFactor scales the per-agent timeout into the batch deadline.
const DefaultBatchTimeoutFactor = 1.5

// Runner executes one agent task. agent.Worker is the production Runner.
// Run must not panic and should return promptly once ctx is done.
type Runner interface {
	Run(ctx context.Context, task models.AgentTask, timeout time.Duration) models.AgentResult
}

// Batch is the outcome of one dispatch.
type Batch struct {
	// Results holds exactly one result per task, in agent-id order.
	Results []models.AgentResult
	// TimedOut is true when the batch deadline expired before every slot resolved.
	TimedOut bool
	// Cancelled is true when the caller's context ended before every slot resolved.
	Cancelled bool
}

// observer receives dispatch progress. Calls happen on the dispatching goroutine.
type observer interface {
	agentStarted(task models.AgentTask)
	agentFinished(result models.AgentResult)
}

// Dispatcher runs a batch of agent tasks concurrently. It holds no
// per-request state and may serve many requests at once.
type Dispatcher struct {
	runner      Runner
	batchFactor float64
	metrics     *telemetry.Metrics
}

// NewDispatcher creates a Dispatcher. A factor below 1 uses DefaultBatchTimeoutFactor.
func NewDispatcher(runner Runner, batchFactor float64, metrics *telemetry.Metrics) *Dispatcher {
	if batchFactor < 1 {
		batchFactor = DefaultBatchTimeoutFactor
	}
	return &Dispatcher{runner: runner, batchFactor: batchFactor, metrics: metrics}
}

// BatchTimeout returns the global deadline for a batch with the given per-agent timeout.
func (d *Dispatcher) BatchTimeout(perAgentTimeout time.Duration) time.Duration {
	return time.Duration(float64(perAgentTimeout) * d.batchFactor)
}

// Dispatch runs every task and returns exactly len(tasks) results in
// agent-id order. It never fails: failures, timeouts and cancellation are
// recorded in each result's status.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []models.AgentTask, perAgentTimeout time.Duration) []models.AgentResult {
	return d.dispatch(ctx, tasks, perAgentTimeout, nil).Results
}

// DispatchBatch is Dispatch with batch-level outcome flags.
func (d *Dispatcher) DispatchBatch(ctx context.Context, tasks []models.AgentTask, perAgentTimeout time.Duration) Batch {
	return d.dispatch(ctx, tasks, perAgentTimeout, nil)
}

type slotResult struct {
	slot   int
	result models.AgentResult
}

func (d *Dispatcher) dispatch(ctx context.Context, tasks []models.AgentTask, perAgentTimeout time.Duration, obs observer) Batch {
	start := time.Now()
	results := make([]models.AgentResult, len(tasks))
	if len(tasks) == 0 {
		return Batch{Results: results}
	}

	// Cancelling batchCtx abandons every call still in flight.
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var deadline <-chan time.Time
	if perAgentTimeout > 0 {
		timer := time.NewTimer(d.BatchTimeout(perAgentTimeout))
		defer timer.Stop()
		deadline = timer.C
	}

	// Buffered to len(tasks) so abandoned goroutines can always deliver and exit.
	done := make(chan slotResult, len(tasks))

	// Goroutines never return an error, so one agent never cancels its siblings.
	var g errgroup.Group
	for i, task := range tasks {
		if obs != nil {
			obs.agentStarted(task)
		}
		g.Go(func() error {
			done <- slotResult{slot: i, result: d.runOne(batchCtx, task, perAgentTimeout)}
			return nil
		})
	}

	resolved := make([]bool, len(tasks))
	pending := len(tasks)
	var batch Batch

collect:
	for pending > 0 {
		select {
		case sr := <-done:
			results[sr.slot] = sr.result
			resolved[sr.slot] = true
			pending--
			d.finish(ctx, sr.result, obs)
		case <-deadline:
			batch.TimedOut = true
			break collect
		case <-ctx.Done():
			batch.Cancelled = true
			break collect
		}
	}

	if pending == 0 {
		g.Wait()
	} else {
		cancel()
		d.fillUnresolved(ctx, tasks, results, resolved, batch.TimedOut, time.Since(start), obs)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].AgentID < results[j].AgentID
	})
	batch.Results = results
	return batch
}

// runOne runs a single task and pins the result to the task's identity.
// A panicking runner yields a FAILURE result instead of taking down the batch.
func (d *Dispatcher) runOne(ctx context.Context, task models.AgentTask, timeout time.Duration) (result models.AgentResult) {
	start := time.Now()
	spanCtx, span := telemetry.StartAgentSpan(ctx, task.AgentID, task.Role)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[dispatch] agent %d panicked: %v", task.AgentID, r)
			result = placeholder(task, models.AgentStatusFailure, fmt.Sprintf("agent panicked: %v", r))
			result.Duration = time.Since(start)
		}
		telemetry.EndAgentSpan(span, result)
	}()

	result = d.runner.Run(spanCtx, task, timeout)
	result.AgentID = task.AgentID
	result.Role = task.Role
	if !result.Status.Valid() {
		result.Status = models.AgentStatusFailure
		if result.Error == "" {
			result.Error = "agent returned no status"
		}
	}
	if result.Recommendations == nil {
		result.Recommendations = []string{}
	}
	return result
}

// fillUnresolved writes placeholders into slots that never reported.
// Results still in flight are abandoned and never read.
func (d *Dispatcher) fillUnresolved(ctx context.Context, tasks []models.AgentTask, results []models.AgentResult, resolved []bool, timedOut bool, elapsed time.Duration, obs observer) {
	status, reason := models.AgentStatusFailure, "dispatch cancelled"
	if timedOut {
		status, reason = models.AgentStatusTimeout, "batch deadline exceeded"
	} else if err := ctx.Err(); err != nil {
		reason = fmt.Sprintf("dispatch cancelled: %v", err)
	}

	for i, task := range tasks {
		if resolved[i] {
			continue
		}
		results[i] = placeholder(task, status, reason)
		results[i].Duration = elapsed
		log.Printf("[dispatch] agent %d/%s unresolved: %s", task.AgentID, task.Role, reason)
		d.finish(ctx, results[i], obs)
	}
}

func (d *Dispatcher) finish(ctx context.Context, r models.AgentResult, obs observer) {
	d.metrics.RecordAgent(context.WithoutCancel(ctx), r)
	if obs != nil {
		obs.agentFinished(r)
	}
}

func placeholder(task models.AgentTask, status models.AgentStatus, reason string) models.AgentResult {
	return models.AgentResult{
		AgentID:         task.AgentID,
		Role:            task.Role,
		Question:        task.Variant.Text,
		Recommendations: []string{},
		Status:          status,
		Error:           reason,
	}
}
