package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/heavysql/internal/agent"
	"github.com/ShayCichocki/heavysql/internal/telemetry"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

var (
	// ErrNoAgents is returned when the agent count is outside 1..4.
	ErrNoAgents = errors.New("heavy analysis needs between 1 and 4 agents")
	// ErrNoClient is returned when no LLM client is configured.
	ErrNoClient = errors.New("heavy analysis needs an LLM client")
)

// Store persists finished analyses. state.DB is the production Store.
type Store interface {
	SaveAnalysis(ctx context.Context, a *models.HeavyAnalysis) error
}

// Request is one heavy analysis request.
type Request struct {
	Question      string `json:"question" yaml:"question"`
	DraftSQL      string `json:"draft_sql" yaml:"draft_sql"`
	SchemaSummary string `json:"schema_summary,omitempty" yaml:"schema_summary,omitempty"`
}

// Heavy runs heavy analyses. It is safe for concurrent use; every call to
// Analyze owns its own variants, tasks and results.
type Heavy struct {
	opts        heavyOptions
	expander    *Expander
	dispatcher  *Dispatcher
	synthesizer *Synthesizer
}

// New creates a Heavy.
func New(req RequiredConfig, opts ...Option) (*Heavy, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.agents < 1 || o.agents > models.NumAgents {
		return nil, fmt.Errorf("%w: got %d", ErrNoAgents, o.agents)
	}
	if req.Client == nil {
		return nil, ErrNoClient
	}
	if o.perAgentTimeout <= 0 {
		o.perAgentTimeout = DefaultPerAgentTimeout
	}
	if o.aggregator == nil {
		o.aggregator = MeanAggregator{}
	}

	runner := o.runner
	if runner == nil {
		runner = agent.NewWorker(req.Client, agent.WorkerConfig{
			Model:       o.model,
			MaxTokens:   o.maxTokens,
			Temperature: o.temperature,
		})
	}

	return &Heavy{
		opts: o,
		expander: NewExpander(req.Client, ExpanderConfig{
			Model:     o.model,
			MaxTokens: o.maxTokens,
			Timeout:   o.perAgentTimeout,
		}, o.logger),
		dispatcher: NewDispatcher(runner, o.batchFactor, o.metrics),
		synthesizer: NewSynthesizer(req.Client, SynthesizerConfig{
			Aggregator: o.aggregator,
			LLMSummary: o.llmSynthesis,
			Timeout:    o.perAgentTimeout,
			Model:      o.model,
			MaxTokens:  o.maxTokens,
		}, o.logger),
	}, nil
}

// Agents returns the number of agent slots per request.
func (h *Heavy) Agents() int { return h.opts.agents }

// PerAgentTimeout returns the per-agent deadline.
func (h *Heavy) PerAgentTimeout() time.Duration { return h.opts.perAgentTimeout }

// Analyze expands the question, dispatches the agents and synthesizes
// their results. Expected failures are recorded in the analysis rather than
// returned; persistence errors are logged.
func (h *Heavy) Analyze(ctx context.Context, req Request) (*models.HeavyAnalysis, error) {
	if h == nil || h.opts.agents < 1 || h.opts.agents > models.NumAgents {
		return nil, ErrNoAgents
	}

	start := time.Now()
	runID := uuid.New().String()

	ctx, span := telemetry.StartAnalysisSpan(ctx, runID, req.Question)
	defer span.End()
	h.opts.metrics.RecordStart(ctx)

	h.opts.logger.Log("run %s: question=%q agents=%d timeout=%s", runID, req.Question, h.opts.agents, h.opts.perAgentTimeout)

	variants, degraded := h.expand(ctx, req.Question)
	h.opts.events.Emit(Event{
		Type:      EventExpansionDone,
		RunID:     runID,
		Variants:  variants.Slice()[:h.opts.agents],
		Degraded:  degraded,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})

	tasks := BuildTasks(variants, h.opts.agents, models.TaskContext{
		OriginalQuestion: req.Question,
		DraftSQL:         req.DraftSQL,
		SchemaSummary:    req.SchemaSummary,
	})

	batch := h.dispatcher.dispatch(ctx, tasks, h.opts.perAgentTimeout, &runObserver{runID: runID, events: h.opts.events})
	if batch.TimedOut {
		log.Printf("[heavy] run %s: batch deadline %s exceeded", runID, h.dispatcher.BatchTimeout(h.opts.perAgentTimeout))
	}

	synthStart := time.Now()
	report := h.synthesizer.Synthesize(ctx, SynthesisInput{
		Question: req.Question,
		DraftSQL: req.DraftSQL,
		Results:  batch.Results,
	})
	h.opts.events.Emit(Event{
		Type:      EventSynthesisDone,
		RunID:     runID,
		Report:    &report,
		Duration:  time.Since(synthStart),
		Timestamp: time.Now(),
	})

	analysis := &models.HeavyAnalysis{
		RunID:             runID,
		Question:          req.Question,
		DraftSQL:          req.DraftSQL,
		Variants:          variants.Slice()[:h.opts.agents],
		Results:           batch.Results,
		Report:            report,
		ExpansionDegraded: degraded,
		BatchTimedOut:     batch.TimedOut,
		StartedAt:         start,
		Duration:          time.Since(start),
	}

	h.opts.metrics.RecordAnalysis(ctx, analysis)
	h.opts.logger.Log("run %s: done in %s, %d/%d valid, confidence %.3f",
		runID, analysis.Duration.Round(time.Millisecond), report.ValidAnalyses, report.TotalAgents, report.OverallConfidence)

	if h.opts.store != nil {
		// The caller may have gone away; the record is still worth keeping.
		if err := h.opts.store.SaveAnalysis(context.WithoutCancel(ctx), analysis); err != nil {
			log.Printf("[heavy] run %s: failed to persist analysis: %v", runID, err)
		}
	}

	return analysis, nil
}

func (h *Heavy) expand(ctx context.Context, question string) (models.Variants, bool) {
	if !h.opts.expand {
		return Unexpanded(question), false
	}
	ctx, span := telemetry.StartExpansionSpan(ctx)
	defer span.End()
	return h.expander.Expand(ctx, question)
}

// BuildTasks pairs agent i with role i and variant i for the first n slots.
func BuildTasks(variants models.Variants, n int, taskCtx models.TaskContext) []models.AgentTask {
	if n > models.NumAgents {
		n = models.NumAgents
	}
	tasks := make([]models.AgentTask, 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, models.AgentTask{
			AgentID: i,
			Role:    models.Roles[i],
			Variant: variants[i],
			Context: taskCtx,
		})
	}
	return tasks
}

// runObserver turns dispatch progress into events for one run.
type runObserver struct {
	runID  string
	events *EventEmitter
}

func (o *runObserver) agentStarted(task models.AgentTask) {
	o.events.Emit(Event{
		Type:      EventAgentStarted,
		RunID:     o.runID,
		AgentID:   task.AgentID,
		Role:      task.Role,
		Question:  task.Variant.Text,
		Timestamp: time.Now(),
	})
}

func (o *runObserver) agentFinished(r models.AgentResult) {
	o.events.Emit(Event{
		Type:       EventAgentFinished,
		RunID:      o.runID,
		AgentID:    r.AgentID,
		Role:       r.Role,
		Question:   r.Question,
		Status:     r.Status,
		Confidence: r.Confidence,
		Message:    r.Error,
		Duration:   r.Duration,
		Timestamp:  time.Now(),
	})
}
