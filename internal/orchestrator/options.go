package orchestrator

import (
	"time"

	"github.com/ShayCichocki/heavysql/internal/api"
	"github.com/ShayCichocki/heavysql/internal/telemetry"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

// DefaultPerAgentTimeout bounds each agent call when no timeout is configured.
const DefaultPerAgentTimeout = 120 * time.Second

// RequiredConfig contains the minimal required configuration for a Heavy.
type RequiredConfig struct {
	// Client is the LLM used by the expander, the agents and the synthesizer.
	Client api.Completer
}

// Option configures a Heavy. Use With* functions to create Options.
type Option func(*heavyOptions)

// heavyOptions holds all optional configuration.
type heavyOptions struct {
	agents          int
	perAgentTimeout time.Duration
	batchFactor     float64
	aggregator      Aggregator
	expand          bool
	llmSynthesis    bool
	model           string
	maxTokens       int64
	temperature     *float64
	logger          *DebugLogger
	events          *EventEmitter
	metrics         *telemetry.Metrics
	store           Store

	// Injectable dependencies for testing
	runner Runner
}

func defaultOptions() heavyOptions {
	return heavyOptions{
		agents:          models.NumAgents,
		perAgentTimeout: DefaultPerAgentTimeout,
		batchFactor:     DefaultBatchTimeoutFactor,
		aggregator:      MeanAggregator{},
		expand:          true,
		llmSynthesis:    true,
	}
}

// WithAgents sets how many agent slots run per request, 1 to 4.
func WithAgents(n int) Option {
	return func(o *heavyOptions) { o.agents = n }
}

// WithPerAgentTimeout sets the per-agent deadline.
func WithPerAgentTimeout(d time.Duration) Option {
	return func(o *heavyOptions) { o.perAgentTimeout = d }
}

// WithBatchTimeoutFactor sets the multiple of the per-agent timeout used as the batch deadline.
func WithBatchTimeoutFactor(f float64) Option {
	return func(o *heavyOptions) { o.batchFactor = f }
}

// WithAggregator sets the confidence aggregation strategy.
func WithAggregator(a Aggregator) Option {
	return func(o *heavyOptions) { o.aggregator = a }
}

// WithExpansion enables or disables question expansion.
// Disabled, every agent receives the original question.
func WithExpansion(enabled bool) Option {
	return func(o *heavyOptions) { o.expand = enabled }
}

// WithLLMSynthesis enables or disables the model-written summary.
func WithLLMSynthesis(enabled bool) Option {
	return func(o *heavyOptions) { o.llmSynthesis = enabled }
}

// WithModel overrides the client default model for every call.
func WithModel(model string) Option {
	return func(o *heavyOptions) { o.model = model }
}

// WithMaxTokens caps each response.
func WithMaxTokens(n int64) Option {
	return func(o *heavyOptions) { o.maxTokens = n }
}

// WithTemperature sets the agent sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *heavyOptions) { o.temperature = &t }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *heavyOptions) { o.logger = l }
}

// WithEvents sets the event sink.
func WithEvents(e *EventEmitter) Option {
	return func(o *heavyOptions) { o.events = e }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *heavyOptions) { o.metrics = m }
}

// WithStore persists every finished analysis.
func WithStore(s Store) Option {
	return func(o *heavyOptions) { o.store = s }
}

// WithRunner replaces the agent runner (for testing).
func WithRunner(r Runner) Option {
	return func(o *heavyOptions) { o.runner = r }
}
