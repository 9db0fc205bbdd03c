package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/heavysql/internal/orchestrator"
	"github.com/ShayCichocki/heavysql/internal/validation"
)

var (
	validateCases    string
	validateTables   string
	validateLimit    int
	validateParallel int
	validateOutput   string
	validateHeavy    heavyFlags
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Measure execution accuracy of draft and reviewed SQL",
	Long: `Run a batch of question cases through the pipeline and compare results.

For each case the draft SQL (given, or generated by the standard path) is
reviewed by heavy analysis. The draft and the final SQL are both executed and
compared against the gold query's result. The summary reports the pass rate of
each and how many cases heavy analysis fixed or broke.

Cases file (JSON or YAML): a list of {id, table_id, question, gold_sql, draft_sql}.
Tables file (JSON or YAML): a list of {id, header, types, rows}.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateCases, "cases", "", "Question cases file (required)")
	validateCmd.Flags().StringVar(&validateTables, "tables", "", "Tables file (required)")
	validateCmd.Flags().IntVar(&validateLimit, "limit", 0, "Only run the first N cases")
	validateCmd.Flags().IntVar(&validateParallel, "parallel", 1, "Cases analyzed at once")
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "text", "Output format: text, json or yaml")
	_ = validateCmd.MarkFlagRequired("cases")
	_ = validateCmd.MarkFlagRequired("tables")
	validateHeavy.register(validateCmd)
}

// caseOutcome is the result of one validated case.
type caseOutcome struct {
	ID         string             `json:"id" yaml:"id"`
	Question   string             `json:"question" yaml:"question"`
	DraftSQL   string             `json:"draft_sql" yaml:"draft_sql"`
	FinalSQL   string             `json:"final_sql" yaml:"final_sql"`
	Confidence float64            `json:"confidence" yaml:"confidence"`
	RunID      string             `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Draft      validation.Verdict `json:"draft" yaml:"draft"`
	Final      validation.Verdict `json:"final" yaml:"final"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// validateReport is the structured output of the validate command.
type validateReport struct {
	Cases         []caseOutcome    `json:"cases" yaml:"cases"`
	Tally         validation.Tally `json:"tally" yaml:"tally"`
	Errors        int              `json:"errors" yaml:"errors"`
	DraftAccuracy float64          `json:"draft_accuracy" yaml:"draft_accuracy"`
	FinalAccuracy float64          `json:"final_accuracy" yaml:"final_accuracy"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, err := parseOutputFormat(validateOutput)
	if err != nil {
		return err
	}
	if validateParallel < 1 {
		return errors.New("--parallel must be at least 1")
	}

	cases, err := validation.ReadCases(validateCases)
	if err != nil {
		return err
	}
	if validateLimit > 0 && validateLimit < len(cases) {
		cases = cases[:validateLimit]
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	validateHeavy.apply(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := newEnv(ctx, cfg, envOptions{tablesFile: validateTables})
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := e.withStop(ctx)
	defer cancel()

	validator := validation.NewValidator(e.tables)
	outcomes := make([]caseOutcome, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(validateParallel)
	for i, c := range cases {
		g.Go(func() error {
			outcomes[i] = runCase(gctx, e, validator, c)
			if format == formatText {
				printOutcome(i+1, len(cases), outcomes[i])
			}
			// Stop or interrupt ends the batch; per-case errors do not.
			return context.Cause(gctx)
		})
	}
	batchErr := g.Wait()

	report := validateReport{Cases: outcomes}
	for _, o := range outcomes {
		if o.Error != "" || o.ID == "" {
			report.Errors++
			continue
		}
		report.Tally.Add(o.Draft, o.Final)
	}
	report.DraftAccuracy = report.Tally.DraftAccuracy()
	report.FinalAccuracy = report.Tally.FinalAccuracy()

	if format != formatText {
		if err := writeStructured(os.Stdout, format, report); err != nil {
			return err
		}
	} else {
		printTally(report)
	}
	if batchErr != nil {
		return fmt.Errorf("validation interrupted: %w", batchErr)
	}
	return nil
}

// runCase generates a draft if needed, reviews it and validates both queries.
func runCase(ctx context.Context, e *env, validator *validation.Validator, c validation.QuestionCase) caseOutcome {
	out := caseOutcome{ID: c.ID, Question: c.Question, DraftSQL: c.DraftSQL}

	schema, err := e.tables.Schema(c.TableID)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if out.DraftSQL == "" {
		if out.DraftSQL, err = e.generator.Generate(ctx, c.Question, schema); err != nil {
			out.Error = err.Error()
			return out
		}
	}

	analysis, err := e.heavy.Analyze(ctx, orchestrator.Request{
		Question:      c.Question,
		DraftSQL:      out.DraftSQL,
		SchemaSummary: schema,
	})
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.RunID = analysis.RunID
	out.FinalSQL = analysis.FinalSQL()
	out.Confidence = analysis.Report.OverallConfidence

	out.Draft = validator.Validate(ctx, validation.Case{TableID: c.TableID, PredictedSQL: out.DraftSQL, GoldSQL: c.GoldSQL}, nil)
	out.Final = validator.Validate(ctx, validation.Case{TableID: c.TableID, PredictedSQL: out.FinalSQL, GoldSQL: c.GoldSQL}, &analysis.Report)
	return out
}

func printOutcome(n, total int, o caseOutcome) {
	prefix := fmt.Sprintf("[%d/%d] case %s", n, total, o.ID)
	switch {
	case o.Error != "":
		printStatus("✗", prefix+": "+o.Error, color.FgRed)
	case o.Final.GoldFailed:
		printStatus("⚠", prefix+": gold query failed, skipped", color.FgYellow)
	case o.Final.Pass:
		printStatus("✓", fmt.Sprintf("%s: pass (confidence %.2f)", prefix, o.Confidence), color.FgGreen)
	default:
		printStatus("✗", fmt.Sprintf("%s: %s (confidence %.2f)", prefix, o.Final.Reason, o.Confidence), color.FgRed)
	}
	if o.Error == "" && o.Draft.Pass != o.Final.Pass {
		log.Printf("[validate] case %s draft=%v final=%v", o.ID, o.Draft.Pass, o.Final.Pass)
	}
}

func printTally(r validateReport) {
	t := r.Tally
	fmt.Println()
	fmt.Printf("Cases:    %d counted, %d skipped, %d errors\n", t.Total, t.Skipped, r.Errors)
	fmt.Printf("Draft:    %d/%d (%.1f%%)\n", t.DraftPassed, t.Total, 100*r.DraftAccuracy)
	fmt.Printf("Final:    %d/%d (%.1f%%)\n", t.FinalPassed, t.Total, 100*r.FinalAccuracy)
	fmt.Printf("Improved: %s  Regressed: %s\n",
		color.GreenString("%d", t.Improved), color.RedString("%d", t.Regressed))
}
