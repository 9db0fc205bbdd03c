package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/heavysql/internal/state"
)

var (
	runsLimit  int
	runsPurge  time.Duration
	runsOutput string
)

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List or show recorded analyses",
	Long: `Show the run history.

Without arguments, lists the most recent runs. With a run id, prints the full
analysis of that run. --purge-older-than deletes runs older than the given age.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to list (0 for all)")
	runsCmd.Flags().DurationVar(&runsPurge, "purge-older-than", 0, "Delete runs older than this age, e.g. 720h")
	runsCmd.Flags().StringVarP(&runsOutput, "output", "o", "text", "Output format: text, json or yaml")
}

func runRuns(cmd *cobra.Command, args []string) error {
	format, err := parseOutputFormat(runsOutput)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	path := cfg.Storage.StateDB
	if path == "" {
		path = state.DefaultDBPath()
	}
	db, err := state.OpenAndMigrate(path)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer db.Close()

	var store state.RunStore = db
	ctx := cmd.Context()

	if runsPurge > 0 {
		n, err := store.PurgeOldRuns(ctx, runsPurge)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Deleted %d runs older than %s", n, runsPurge), color.FgGreen)
		return nil
	}

	if len(args) == 1 {
		analysis, err := store.GetRun(ctx, args[0])
		if errors.Is(err, state.ErrRunNotFound) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if err != nil {
			return err
		}
		if format != formatText {
			return writeStructured(os.Stdout, format, analysis)
		}
		writeAnalysis(os.Stdout, analysis)
		return nil
	}

	runs, err := store.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	if format != formatText {
		return writeStructured(os.Stdout, format, runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	for _, r := range runs {
		mark := " "
		if r.Improved {
			mark = color.CyanString("*")
		}
		conf := color.New(confidenceColor(r.OverallConfidence)).Sprintf("%.2f", r.OverallConfidence)
		fmt.Printf("%s %s  %s  %s  %d/%d  %s  %s\n",
			mark, r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), conf,
			r.ValidAnalyses, r.TotalAgents, formatDuration(r.Duration), truncate(r.Question, 60))
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
