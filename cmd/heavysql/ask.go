package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/heavysql/internal/orchestrator"
	"github.com/ShayCichocki/heavysql/internal/tabledb"
	"github.com/ShayCichocki/heavysql/internal/tui"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

var (
	askDraftSQL   string
	askSchema     string
	askTablesFile string
	askTableID    string
	askTUI        bool
	askOutput     string
	askExecute    bool
	askHeavy      heavyFlags
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Review a draft SQL query with four parallel agents",
	Long: `Run a heavy analysis of a draft SQL query.

The question is expanded into four variants and handed to four agents
(syntax, data logic, performance, verification) running in parallel. Their
findings are merged into one report with an overall confidence and, when the
agents found problems, an improved query.

Without --sql the draft is generated first by the standard single-model path.

--sql and --schema accept literal text or @file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askDraftSQL, "sql", "", "Draft SQL to review (text or @file)")
	askCmd.Flags().StringVar(&askSchema, "schema", "", "Schema summary (text or @file)")
	askCmd.Flags().StringVar(&askTablesFile, "tables", "", "JSON or YAML file of tables to load")
	askCmd.Flags().StringVar(&askTableID, "table", "", "Table id from --tables; its schema is used")
	askCmd.Flags().BoolVar(&askTUI, "tui", false, "Show live agent progress")
	askCmd.Flags().StringVarP(&askOutput, "output", "o", "text", "Output format: text, json or yaml")
	askCmd.Flags().BoolVar(&askExecute, "execute", false, "Execute the final SQL against --table")
	askHeavy.register(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	format, err := parseOutputFormat(askOutput)
	if err != nil {
		return err
	}
	if askTUI && format != formatText {
		return errors.New("--tui cannot be combined with structured output")
	}
	if askExecute && askTableID == "" {
		return errors.New("--execute needs --table")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	askHeavy.apply(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := newEnv(ctx, cfg, envOptions{events: askTUI, tablesFile: askTablesFile})
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := e.withStop(ctx)
	defer cancel()

	schema, err := resolveSchema(e.tables, askTableID, askSchema)
	if err != nil {
		return err
	}
	draft, err := readTextArg(askDraftSQL)
	if err != nil {
		return err
	}
	if draft == "" {
		if draft, err = e.generator.Generate(ctx, question, schema); err != nil {
			return err
		}
		if format == formatText {
			printStatus("→", "Draft SQL: "+draft, color.FgCyan)
		}
	}

	req := orchestrator.Request{Question: question, DraftSQL: draft, SchemaSummary: schema}
	analyze := func(ctx context.Context) (*models.HeavyAnalysis, error) {
		if e.events != nil {
			defer e.events.Close()
		}
		return e.heavy.Analyze(ctx, req)
	}

	var analysis *models.HeavyAnalysis
	if askTUI {
		analysis, err = tui.Run(ctx, question, e.events.Events(), analyze)
	} else {
		analysis, err = analyze(ctx)
	}
	if err != nil {
		return err
	}

	var result any = analysis
	if askExecute {
		rows, execErr := e.tables.Execute(ctx, analysis.FinalSQL())
		out := executedAnalysis{Analysis: analysis, Rows: rows}
		if execErr != nil {
			out.ExecError = execErr.Error()
		}
		result = out
		if format == formatText {
			writeAnalysis(os.Stdout, analysis)
			fmt.Println()
			if execErr != nil {
				printStatus("✗", "Execution failed: "+execErr.Error(), color.FgRed)
			} else {
				writeRows(os.Stdout, rows)
			}
			return nil
		}
	}

	if format != formatText {
		return writeStructured(os.Stdout, format, result)
	}
	writeAnalysis(os.Stdout, analysis)
	return nil
}

// executedAnalysis is a heavy analysis plus the result of running its final SQL.
type executedAnalysis struct {
	Analysis  *models.HeavyAnalysis `json:"analysis" yaml:"analysis"`
	Rows      tabledb.Rows          `json:"rows" yaml:"rows"`
	ExecError string                `json:"exec_error,omitempty" yaml:"exec_error,omitempty"`
}
