package validation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShayCichocki/heavysql/internal/tabledb"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

func setupTables(t *testing.T) *tabledb.DB {
	t.Helper()
	db, err := tabledb.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Load(context.Background(), tabledb.Table{
		ID:     "t1",
		Header: []string{"Player", "No.", "School", "Points"},
		Types:  []string{"text", "text", "text", "real"},
		Rows: [][]any{
			{"Antonio Lang", "21", "Duke", 10.0},
			{"Voshon Lenard", "2", "Minnesota", 12.5},
			{"Brad Lohaus", "33", "Iowa", 3.0},
			{"John Long", "25", "Detroit", 3.0},
		},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return db
}

func TestValidate(t *testing.T) {
	v := NewValidator(setupTables(t))
	ctx := context.Background()

	tests := []struct {
		name      string
		c         Case
		wantPass  bool
		wantGold  bool
		reasonHas string
	}{
		{
			name:     "identical",
			c:        Case{TableID: "t1", PredictedSQL: "SELECT col2 FROM table_t1 WHERE col1 = 21", GoldSQL: "SELECT col2 FROM table_t1 WHERE col1 = 21"},
			wantPass: true,
		},
		{
			name:     "case and whitespace differ",
			c:        Case{TableID: "t1", PredictedSQL: "SELECT UPPER(col2) FROM table_t1 WHERE col0 = 'Antonio Lang';", GoldSQL: "SELECT col2 FROM table_t1 WHERE col1 = 21"},
			wantPass: true,
		},
		{
			name:     "order insensitive",
			c:        Case{TableID: "t1", PredictedSQL: "SELECT col0 FROM table_t1 WHERE col3 = 3 ORDER BY col0 DESC", GoldSQL: "SELECT col0 FROM table_t1 WHERE col3 = 3 ORDER BY col0"},
			wantPass: true,
		},
		{
			name:     "numeric normalization",
			c:        Case{TableID: "t1", PredictedSQL: "SELECT SUM(col3) FROM table_t1 WHERE col3 < 5", GoldSQL: "SELECT 6"},
			wantPass: true,
		},
		{
			name:      "multiset counts duplicates",
			c:         Case{TableID: "t1", PredictedSQL: "SELECT DISTINCT col3 FROM table_t1 WHERE col3 = 3", GoldSQL: "SELECT col3 FROM table_t1 WHERE col3 = 3"},
			reasonHas: "row count mismatch",
		},
		{
			name:      "different values",
			c:         Case{TableID: "t1", PredictedSQL: "SELECT col2 FROM table_t1 WHERE col1 = 2", GoldSQL: "SELECT col2 FROM table_t1 WHERE col1 = 21"},
			reasonHas: "result mismatch",
		},
		{
			name:      "predicted fails",
			c:         Case{TableID: "t1", PredictedSQL: "SELECT col9 FROM table_t1", GoldSQL: "SELECT col2 FROM table_t1"},
			reasonHas: "predicted query failed",
		},
		{
			name:      "predicted empty",
			c:         Case{TableID: "t1", GoldSQL: "SELECT col2 FROM table_t1"},
			reasonHas: "no predicted query",
		},
		{
			name:      "gold fails",
			c:         Case{TableID: "t1", PredictedSQL: "SELECT col2 FROM table_t1", GoldSQL: "DELETE FROM table_t1"},
			wantGold:  true,
			reasonHas: "gold query failed",
		},
		{
			name:      "unknown table",
			c:         Case{TableID: "nope", PredictedSQL: "SELECT 1", GoldSQL: "SELECT 1"},
			wantGold:  true,
			reasonHas: "unknown table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(ctx, tt.c, nil)
			if got.Pass != tt.wantPass {
				t.Errorf("Pass = %v, want %v (reason %q)", got.Pass, tt.wantPass, got.Reason)
			}
			if got.GoldFailed != tt.wantGold {
				t.Errorf("GoldFailed = %v, want %v", got.GoldFailed, tt.wantGold)
			}
			if tt.reasonHas != "" && !strings.Contains(got.Reason, tt.reasonHas) {
				t.Errorf("Reason = %q, want it to contain %q", got.Reason, tt.reasonHas)
			}
			if tt.wantPass && got.Reason != "" {
				t.Errorf("passing verdict has reason %q", got.Reason)
			}
		})
	}
}

func TestValidate_WithReport(t *testing.T) {
	v := NewValidator(setupTables(t))
	report := &models.SynthesisReport{OverallConfidence: 0.75, ValidAnalyses: 4, TotalAgents: 4}

	got := v.Validate(context.Background(), Case{
		TableID:      "t1",
		PredictedSQL: "SELECT COUNT(*) FROM table_t1",
		GoldSQL:      "SELECT 4",
	}, report)
	if !got.Pass {
		t.Fatalf("expected pass, got %q", got.Reason)
	}
	if len(got.PredictedRows) != 1 || len(got.GoldRows) != 1 {
		t.Errorf("rows not carried: %v / %v", got.PredictedRows, got.GoldRows)
	}
}

func TestNormalizeCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{int64(3), "3"},
		{3.0, "3"},
		{"3.0", "3"},
		{" Duke ", "duke"},
		{0.1 + 0.2, "0.3"},
		{[]byte("ABC"), "abc"},
		{true, "1"},
	}
	for _, tt := range tests {
		if got := normalizeCell(tt.in); got != tt.want {
			t.Errorf("normalizeCell(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadCases(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "cases.yaml")
	yamlData := `- table_id: t1
  question: What school did player number 21 play for?
  gold_sql: SELECT col2 FROM table_t1 WHERE col1 = 21
- id: second
  table_id: t1
  question: How many players?
  gold_sql: SELECT COUNT(*) FROM table_t1
  draft_sql: SELECT COUNT(col0) FROM table_t1
`
	if err := os.WriteFile(yamlPath, []byte(yamlData), 0644); err != nil {
		t.Fatal(err)
	}

	cases, err := ReadCases(yamlPath)
	if err != nil {
		t.Fatalf("ReadCases: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("got %d cases, want 2", len(cases))
	}
	if cases[0].ID != "1" {
		t.Errorf("default id = %q, want 1", cases[0].ID)
	}
	if cases[1].ID != "second" || cases[1].DraftSQL == "" {
		t.Errorf("second case = %+v", cases[1])
	}

	jsonPath := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(jsonPath, []byte(`[{"table_id": "t1", "question": "q"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadCases(jsonPath); err == nil || !strings.Contains(err.Error(), "gold_sql") {
		t.Errorf("expected missing gold_sql error, got %v", err)
	}
}

func TestTally(t *testing.T) {
	pass := Verdict{Pass: true}
	fail := Verdict{Reason: "x"}
	broken := Verdict{GoldFailed: true}

	var tally Tally
	tally.Add(pass, pass)
	tally.Add(fail, pass)
	tally.Add(pass, fail)
	tally.Add(fail, fail)
	tally.Add(broken, broken)

	if tally.Total != 4 || tally.Skipped != 1 {
		t.Errorf("Total/Skipped = %d/%d, want 4/1", tally.Total, tally.Skipped)
	}
	if tally.Improved != 1 || tally.Regressed != 1 {
		t.Errorf("Improved/Regressed = %d/%d, want 1/1", tally.Improved, tally.Regressed)
	}
	if tally.DraftAccuracy() != 0.5 || tally.FinalAccuracy() != 0.5 {
		t.Errorf("accuracy = %v/%v, want 0.5/0.5", tally.DraftAccuracy(), tally.FinalAccuracy())
	}

	var empty Tally
	if empty.FinalAccuracy() != 0 {
		t.Error("empty tally accuracy should be 0")
	}
}
