package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	stopsig "github.com/ShayCichocki/heavysql/internal/signal"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Cancel running analyses",
	Long: `Signal every running heavysql process to cancel its analyses.

Agents still running are recorded as failed; the report is built from the
agents that already finished. A running server shuts down.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := stopsig.DefaultDir()
		if err := stopsig.SendStop(dir); err != nil {
			return fmt.Errorf("send stop signal: %w", err)
		}
		printStatus("✓", "Stop signal sent", color.FgGreen)
		return nil
	},
}
