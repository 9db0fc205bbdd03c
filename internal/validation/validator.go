package validation

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ShayCichocki/heavysql/internal/tabledb"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

// Tables is the table database a Validator executes queries on.
type Tables interface {
	Table(id string) (tabledb.Table, bool)
	Execute(ctx context.Context, query string) (tabledb.Rows, error)
}

// Case is one query to check.
type Case struct {
	TableID      string
	PredictedSQL string
	GoldSQL      string
}

// Verdict is the outcome of checking one Case.
type Verdict struct {
	Pass bool `json:"pass" yaml:"pass"`
	// Reason explains a failure. Empty on pass.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	// GoldFailed is set when the ground-truth query itself could not run.
	GoldFailed    bool         `json:"gold_failed,omitempty" yaml:"gold_failed,omitempty"`
	PredictedRows tabledb.Rows `json:"predicted_rows" yaml:"predicted_rows"`
	GoldRows      tabledb.Rows `json:"gold_rows" yaml:"gold_rows"`
}

// Validator compares predicted and gold queries by execution.
type Validator struct {
	tables Tables
}

// NewValidator creates a validator over tables.
func NewValidator(tables Tables) *Validator {
	return &Validator{tables: tables}
}

// Validate executes both queries of c and compares their results.
// report is used only for logging and may be nil.
func (v *Validator) Validate(ctx context.Context, c Case, report *models.SynthesisReport) Verdict {
	verdict := v.validate(ctx, c)

	if report != nil {
		log.Printf("[validation] table=%s pass=%v confidence=%.2f valid=%d/%d reason=%q",
			c.TableID, verdict.Pass, report.OverallConfidence, report.ValidAnalyses, report.TotalAgents, verdict.Reason)
	} else {
		log.Printf("[validation] table=%s pass=%v reason=%q", c.TableID, verdict.Pass, verdict.Reason)
	}
	return verdict
}

func (v *Validator) validate(ctx context.Context, c Case) Verdict {
	if _, ok := v.tables.Table(c.TableID); !ok {
		return Verdict{Reason: fmt.Sprintf("%v: %s", tabledb.ErrUnknownTable, c.TableID), GoldFailed: true}
	}

	gold, err := v.tables.Execute(ctx, c.GoldSQL)
	if err != nil {
		return Verdict{Reason: fmt.Sprintf("gold query failed: %v", err), GoldFailed: true}
	}

	if strings.TrimSpace(c.PredictedSQL) == "" {
		return Verdict{Reason: "no predicted query", GoldRows: gold}
	}
	pred, err := v.tables.Execute(ctx, c.PredictedSQL)
	if err != nil {
		return Verdict{Reason: fmt.Sprintf("predicted query failed: %v", err), GoldRows: gold}
	}

	verdict := Verdict{PredictedRows: pred, GoldRows: gold}
	if reason := compareRows(pred, gold); reason != "" {
		verdict.Reason = reason
		return verdict
	}
	verdict.Pass = true
	return verdict
}

// compareRows returns "" when pred and gold hold the same rows in any order.
func compareRows(pred, gold tabledb.Rows) string {
	if len(pred) != len(gold) {
		return fmt.Sprintf("row count mismatch: got %d, want %d", len(pred), len(gold))
	}
	p := rowKeys(pred)
	g := rowKeys(gold)
	for i := range p {
		if p[i] != g[i] {
			return fmt.Sprintf("result mismatch: got %s, want %s", p[i], g[i])
		}
	}
	return ""
}

func rowKeys(rows tabledb.Rows) []string {
	keys := make([]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = normalizeCell(c)
		}
		keys[i] = "(" + strings.Join(cells, ", ") + ")"
	}
	sort.Strings(keys)
	return keys
}

// normalizeCell renders a cell so equal values compare equal: numbers in
// shortest form (rounded to 6 decimals), strings trimmed and lower-cased.
func normalizeCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return formatNumber(float64(x))
	case int:
		return formatNumber(float64(x))
	case float64:
		return formatNumber(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case []byte:
		return normalizeString(string(x))
	case string:
		return normalizeString(x)
	default:
		return normalizeString(fmt.Sprint(x))
	}
}

func normalizeString(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return formatNumber(f)
	}
	return strings.ToLower(s)
}

func formatNumber(f float64) string {
	r := math.Round(f*1e6) / 1e6
	if r == 0 {
		r = 0 // folds -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
