package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/heavysql/internal/standard"
	"github.com/ShayCichocki/heavysql/internal/tabledb"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

// outputFormat selects how results are printed.
type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case "", formatText:
		return formatText, nil
	case formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format outputFormat, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func statusColor(s models.AgentStatus) color.Attribute {
	switch s {
	case models.AgentStatusSuccess:
		return color.FgGreen
	case models.AgentStatusTimeout:
		return color.FgYellow
	default:
		return color.FgRed
	}
}

func confidenceColor(c float64) color.Attribute {
	switch {
	case c >= 0.8:
		return color.FgGreen
	case c >= 0.5:
		return color.FgYellow
	default:
		return color.FgRed
	}
}

// writeAnalysis renders a heavy analysis for the terminal.
func writeAnalysis(w io.Writer, a *models.HeavyAnalysis) {
	bold := color.New(color.Bold)

	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Run"), a.RunID)
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Question:"), a.Question)
	if a.DraftSQL != "" {
		fmt.Fprintf(w, "%s %s\n", bold.Sprint("Draft SQL:"), a.DraftSQL)
	}
	if a.ExpansionDegraded {
		fmt.Fprintln(w, color.YellowString("! question expansion failed, agents used the original question"))
	}
	if a.BatchTimedOut {
		fmt.Fprintln(w, color.YellowString("! batch deadline expired before every agent finished"))
	}
	fmt.Fprintln(w)

	for _, r := range a.Results {
		status := color.New(statusColor(r.Status)).Sprint(string(r.Status))
		fmt.Fprintf(w, "[%d] %s  %s  %s\n", r.AgentID, bold.Sprint(r.Role.Title()), status, formatDuration(r.Duration))
		if r.Succeeded() {
			fmt.Fprintf(w, "    confidence %.2f\n", r.ConfidenceValue())
			if r.Analysis != "" {
				fmt.Fprintf(w, "    %s\n", indent(r.Analysis, "    "))
			}
		} else if r.Error != "" {
			fmt.Fprintf(w, "    %s\n", r.Error)
		}
	}
	fmt.Fprintln(w)

	rep := a.Report
	conf := color.New(confidenceColor(rep.OverallConfidence)).Sprintf("%.2f", rep.OverallConfidence)
	fmt.Fprintf(w, "%s %s (%s), %d/%d agents valid\n", bold.Sprint("Confidence"), conf, rep.Strategy, rep.ValidAnalyses, rep.TotalAgents)
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Summary:"), rep.Summary)
	if len(rep.FinalRecommendations) > 0 {
		fmt.Fprintln(w, bold.Sprint("Recommendations:"))
		for _, rec := range rep.FinalRecommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
	if rep.ImprovedSQL != "" {
		fmt.Fprintf(w, "%s %s\n", bold.Sprint("Improved SQL:"), color.CyanString(rep.ImprovedSQL))
	}
	fmt.Fprintf(w, "%s\n", color.New(color.Faint).Sprintf("took %s", formatDuration(a.Duration)))
}

// writeRows renders query results with a trailing row count.
func writeRows(w io.Writer, rows tabledb.Rows) {
	fmt.Fprintln(w, standard.FormatRows(rows))
	if len(rows) > 1 {
		fmt.Fprintln(w, color.New(color.Faint).Sprintf("(%d rows)", len(rows)))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n"+prefix)
}
