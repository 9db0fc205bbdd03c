package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/heavysql/internal/api"
	"github.com/ShayCichocki/heavysql/internal/config"
	"github.com/ShayCichocki/heavysql/internal/orchestrator"
	stopsig "github.com/ShayCichocki/heavysql/internal/signal"
	"github.com/ShayCichocki/heavysql/internal/standard"
	"github.com/ShayCichocki/heavysql/internal/state"
	"github.com/ShayCichocki/heavysql/internal/tabledb"
	"github.com/ShayCichocki/heavysql/internal/telemetry"
	"github.com/ShayCichocki/heavysql/internal/version"
)

// heavyFlags are the analysis overrides shared by ask, query, validate and serve.
type heavyFlags struct {
	agents       int
	timeout      time.Duration
	factor       float64
	aggregation  string
	noExpand     bool
	noLLMSummary bool
	model        string
	noPersist    bool
}

func (f *heavyFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.agents, "agents", 0, "Number of agents, 1-4 (default from config)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-agent timeout (default from config)")
	cmd.Flags().Float64Var(&f.factor, "batch-factor", 0, "Batch deadline as a multiple of the per-agent timeout")
	cmd.Flags().StringVar(&f.aggregation, "aggregation", "", "Confidence aggregation: "+strings.Join(orchestrator.AggregationNames(), ", "))
	cmd.Flags().BoolVar(&f.noExpand, "no-expand", false, "Give every agent the original question")
	cmd.Flags().BoolVar(&f.noLLMSummary, "no-llm-summary", false, "Use the templated summary instead of a synthesis call")
	cmd.Flags().StringVar(&f.model, "model", "", "Model override")
	cmd.Flags().BoolVar(&f.noPersist, "no-persist", false, "Do not record runs in the history database")
}

// apply copies set flags over cfg.
func (f *heavyFlags) apply(cfg *config.Config) {
	if f.agents != 0 {
		cfg.Heavy.Agents = f.agents
	}
	if f.timeout != 0 {
		cfg.Heavy.PerAgentTimeout = f.timeout
	}
	if f.factor != 0 {
		cfg.Heavy.BatchTimeoutFactor = f.factor
	}
	if f.aggregation != "" {
		cfg.Heavy.Aggregation = f.aggregation
	}
	if f.noExpand {
		cfg.Heavy.Expand = false
	}
	if f.noLLMSummary {
		cfg.Heavy.LLMSynthesis = false
	}
	if f.model != "" {
		cfg.Anthropic.Model = f.model
	}
	if f.noPersist {
		cfg.Storage.Persist = false
	}
}

// loadConfig reads --config or the default locations and validates the result.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if debugLog {
		cfg.Logging.Debug = true
	}
	return cfg, nil
}

// env holds the collaborators one command needs. Close releases them.
type env struct {
	cfg       *config.Config
	client    *api.Client
	heavy     *orchestrator.Heavy
	generator *standard.Generator
	store     *state.DB
	tables    *tabledb.DB
	logger    *orchestrator.DebugLogger
	events    *orchestrator.EventEmitter
	stop      *stopsig.Watcher
	shutdown  telemetry.ShutdownFunc
}

type envOptions struct {
	events     bool
	tablesFile string
}

func newEnv(ctx context.Context, cfg *config.Config, opts envOptions) (*env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &env{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	shutdown, err := telemetry.Setup(ctx, "heavysql", version.Get())
	if err != nil {
		return nil, err
	}
	e.shutdown = shutdown

	e.client, err = createClient(cfg)
	if err != nil {
		return nil, err
	}

	e.logger = orchestrator.NopLogger()
	if cfg.Logging.Debug {
		path := cfg.Logging.DebugLog
		if path == "" {
			path = orchestrator.DefaultDebugLogPath()
		}
		if e.logger, err = orchestrator.NewDebugLogger(path); err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
	}

	aggregator, err := orchestrator.NewAggregator(cfg.Heavy.Aggregation, cfg.Heavy.RoleWeights)
	if err != nil {
		return nil, err
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	heavyOpts := []orchestrator.Option{
		orchestrator.WithAgents(cfg.Heavy.Agents),
		orchestrator.WithPerAgentTimeout(cfg.Heavy.PerAgentTimeout),
		orchestrator.WithBatchTimeoutFactor(cfg.Heavy.BatchTimeoutFactor),
		orchestrator.WithAggregator(aggregator),
		orchestrator.WithExpansion(cfg.Heavy.Expand),
		orchestrator.WithLLMSynthesis(cfg.Heavy.LLMSynthesis),
		orchestrator.WithModel(cfg.Anthropic.Model),
		orchestrator.WithMaxTokens(cfg.Anthropic.MaxTokens),
		orchestrator.WithLogger(e.logger),
		orchestrator.WithMetrics(metrics),
	}

	if cfg.Storage.Persist {
		path := cfg.Storage.StateDB
		if path == "" {
			path = state.DefaultDBPath()
		}
		if e.store, err = state.OpenAndMigrate(path); err != nil {
			return nil, fmt.Errorf("open run history: %w", err)
		}
		heavyOpts = append(heavyOpts, orchestrator.WithStore(e.store))
	}

	if opts.events {
		e.events = orchestrator.NewEventEmitter(64)
		heavyOpts = append(heavyOpts, orchestrator.WithEvents(e.events))
	}

	e.heavy, err = orchestrator.New(orchestrator.RequiredConfig{Client: e.client}, heavyOpts...)
	if err != nil {
		return nil, err
	}

	e.generator = standard.NewGenerator(e.client, standard.Config{
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		Timeout:   cfg.Heavy.PerAgentTimeout,
	})

	if opts.tablesFile != "" {
		if e.tables, err = openTables(ctx, opts.tablesFile); err != nil {
			return nil, err
		}
	}

	if e.stop, err = stopsig.NewWatcher(stopsig.DefaultDir()); err != nil {
		log.Printf("[cli] stop signal unavailable: %v", err)
	} else {
		e.stop.Clear()
	}

	ok = true
	return e, nil
}

// withStop wraps ctx so `heavysql stop` cancels it.
func (e *env) withStop(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.stop == nil {
		return context.WithCancel(ctx)
	}
	return e.stop.WithStop(ctx)
}

// Close releases everything newEnv opened.
func (e *env) Close() {
	if e.stop != nil {
		e.stop.Close()
	}
	if e.tables != nil {
		e.tables.Close()
	}
	if e.store != nil {
		e.store.Close()
	}
	if e.logger != nil {
		e.logger.Close()
	}
	if e.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.shutdown(ctx); err != nil {
			log.Printf("[cli] telemetry shutdown: %v", err)
		}
	}
	if e.client != nil && e.cfg.Logging.Debug {
		in, out := e.client.Tracker().Total()
		log.Printf("[cli] %d model calls, %d input / %d output tokens, ~$%.4f",
			e.client.Tracker().Calls(), in, out, e.client.Tracker().Cost())
	}
}

func openTables(ctx context.Context, path string) (*tabledb.DB, error) {
	tables, err := tabledb.ReadTables(path)
	if err != nil {
		return nil, err
	}
	db, err := tabledb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	if err := db.LoadAll(ctx, tables); err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("[cli] loaded %d tables from %s", len(tables), path)
	return db, nil
}

// readTextArg returns s, or the contents of the file when s is "@path".
func readTextArg(s string) (string, error) {
	if !strings.HasPrefix(s, "@") {
		return s, nil
	}
	data, err := os.ReadFile(filepath.Clean(strings.TrimPrefix(s, "@")))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// resolveSchema picks the schema summary: a loaded table wins over --schema.
func resolveSchema(tables *tabledb.DB, tableID, schemaArg string) (string, error) {
	if tableID != "" {
		if tables == nil {
			return "", fmt.Errorf("--table needs --tables")
		}
		return tables.Schema(tableID)
	}
	return readTextArg(schemaArg)
}
