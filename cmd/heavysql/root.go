package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debugLog   bool
)

var rootCmd = &cobra.Command{
	Use:   "heavysql",
	Short: "Natural-language to SQL with multi-agent review",
	Long: `heavysql turns natural-language questions into SQL and reviews the query
with four role-specialized agents (syntax, data logic, performance,
verification) running in parallel. Their findings are synthesized into one
report with an overall confidence and, when warranted, an improved query.

Modes:
  ask       heavy analysis of a draft query
  query     standard single-model generation, optionally followed by heavy review
  validate  batch execution-accuracy check of draft vs reviewed queries
  serve     HTTP API`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.config/heavysql/config.yaml plus .heavysql.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Write a debug log of every analysis")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
