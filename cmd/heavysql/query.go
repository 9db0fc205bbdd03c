package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/heavysql/internal/orchestrator"
	"github.com/ShayCichocki/heavysql/internal/standard"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

var (
	querySchema     string
	queryTablesFile string
	queryTableID    string
	queryHeavyMode  bool
	queryOutput     string
	queryHeavy      heavyFlags
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Generate SQL with a single model call and run it",
	Long: `Generate SQL for a question with the standard single-model path.

With --table the query is executed against the loaded table. With --heavy
the generated SQL is then reviewed by the four agents and the final SQL
(improved when one was proposed) is executed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&querySchema, "schema", "", "Schema summary (text or @file)")
	queryCmd.Flags().StringVar(&queryTablesFile, "tables", "", "JSON or YAML file of tables to load")
	queryCmd.Flags().StringVar(&queryTableID, "table", "", "Table id from --tables to query")
	queryCmd.Flags().BoolVar(&queryHeavyMode, "heavy", false, "Review the generated SQL with heavy analysis")
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "text", "Output format: text, json or yaml")
	queryHeavy.register(queryCmd)
}

// queryResult is the structured output of the query command.
type queryResult struct {
	Question  string                `json:"question" yaml:"question"`
	SQL       string                `json:"sql" yaml:"sql"`
	FinalSQL  string                `json:"final_sql" yaml:"final_sql"`
	Rows      [][]any               `json:"rows,omitempty" yaml:"rows,omitempty"`
	ExecError string                `json:"exec_error,omitempty" yaml:"exec_error,omitempty"`
	Analysis  *models.HeavyAnalysis `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	format, err := parseOutputFormat(queryOutput)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	queryHeavy.apply(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := newEnv(ctx, cfg, envOptions{tablesFile: queryTablesFile})
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := e.withStop(ctx)
	defer cancel()

	schema, err := resolveSchema(e.tables, queryTableID, querySchema)
	if err != nil {
		return err
	}

	sql, err := e.generator.Generate(ctx, question, schema)
	if err != nil {
		return err
	}
	res := queryResult{Question: question, SQL: sql, FinalSQL: sql}

	if queryHeavyMode {
		analysis, err := e.heavy.Analyze(ctx, orchestrator.Request{
			Question:      question,
			DraftSQL:      sql,
			SchemaSummary: schema,
		})
		if err != nil {
			return err
		}
		res.Analysis = analysis
		res.FinalSQL = analysis.FinalSQL()
	}

	if queryTableID != "" {
		rows, err := e.tables.Execute(ctx, res.FinalSQL)
		if err != nil {
			res.ExecError = err.Error()
		} else {
			res.Rows = rows
		}
	}

	if format != formatText {
		return writeStructured(os.Stdout, format, res)
	}
	printQueryResult(res, queryTableID != "")
	return nil
}

func printQueryResult(res queryResult, executed bool) {
	printStatus("→", "SQL: "+res.SQL, color.FgCyan)
	if res.Analysis != nil {
		fmt.Println()
		writeAnalysis(os.Stdout, res.Analysis)
		fmt.Println()
	}
	if !executed {
		return
	}
	if res.ExecError != "" {
		printStatus("✗", "Execution failed: "+res.ExecError, color.FgRed)
		return
	}
	fmt.Println(standard.FormatRows(res.Rows))
}
