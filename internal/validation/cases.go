package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// QuestionCase is one entry of a cases file: a question about a table with
// its ground-truth query. DraftSQL is optional; when empty the standard path
// generates one.
type QuestionCase struct {
	ID       string `json:"id" yaml:"id"`
	TableID  string `json:"table_id" yaml:"table_id"`
	Question string `json:"question" yaml:"question"`
	GoldSQL  string `json:"gold_sql" yaml:"gold_sql"`
	DraftSQL string `json:"draft_sql,omitempty" yaml:"draft_sql,omitempty"`
}

// ReadCases reads question cases from a .json, .yaml or .yml file.
// Cases without an ID get their 1-based position.
func ReadCases(path string) ([]QuestionCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases file: %w", err)
	}

	var cases []QuestionCase
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cases)
	default:
		err = json.Unmarshal(data, &cases)
	}
	if err != nil {
		return nil, fmt.Errorf("parse cases file %s: %w", path, err)
	}

	for i := range cases {
		c := &cases[i]
		if c.ID == "" {
			c.ID = fmt.Sprintf("%d", i+1)
		}
		if strings.TrimSpace(c.TableID) == "" {
			return nil, fmt.Errorf("case %s: missing table_id", c.ID)
		}
		if strings.TrimSpace(c.Question) == "" {
			return nil, fmt.Errorf("case %s: missing question", c.ID)
		}
		if strings.TrimSpace(c.GoldSQL) == "" {
			return nil, fmt.Errorf("case %s: missing gold_sql", c.ID)
		}
	}
	return cases, nil
}

// Tally accumulates pass rates over a batch, for the draft and the final query.
type Tally struct {
	Total       int `json:"total" yaml:"total"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	DraftPassed int `json:"draft_passed" yaml:"draft_passed"`
	FinalPassed int `json:"final_passed" yaml:"final_passed"`
	// Improved counts cases where the draft failed and the final query passed.
	Improved int `json:"improved" yaml:"improved"`
	// Regressed counts cases where the draft passed and the final query failed.
	Regressed int `json:"regressed" yaml:"regressed"`
}

// Add records the verdicts for one case. Cases whose gold query failed are skipped.
func (t *Tally) Add(draft, final Verdict) {
	if draft.GoldFailed || final.GoldFailed {
		t.Skipped++
		return
	}
	t.Total++
	if draft.Pass {
		t.DraftPassed++
	}
	if final.Pass {
		t.FinalPassed++
	}
	switch {
	case !draft.Pass && final.Pass:
		t.Improved++
	case draft.Pass && !final.Pass:
		t.Regressed++
	}
}

// DraftAccuracy is the fraction of counted cases whose draft passed.
func (t Tally) DraftAccuracy() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.DraftPassed) / float64(t.Total)
}

// FinalAccuracy is the fraction of counted cases whose final query passed.
func (t Tally) FinalAccuracy() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.FinalPassed) / float64(t.Total)
}
