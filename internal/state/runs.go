package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one row of the run history listing.
type RunSummary struct {
	ID                string        `json:"id" yaml:"id"`
	Question          string        `json:"question" yaml:"question"`
	OverallConfidence float64       `json:"overall_confidence" yaml:"overall_confidence"`
	ValidAnalyses     int           `json:"valid_analyses" yaml:"valid_analyses"`
	TotalAgents       int           `json:"total_agents" yaml:"total_agents"`
	Improved          bool          `json:"improved" yaml:"improved"`
	StartedAt         time.Time     `json:"started_at" yaml:"started_at"`
	Duration          time.Duration `json:"duration" yaml:"duration"`
}

// SaveAnalysis stores a finished analysis and its per-agent results.
// Saving the same run ID twice replaces the earlier record.
func (db *DB) SaveAnalysis(ctx context.Context, a *models.HeavyAnalysis) error {
	if a == nil || a.RunID == "" {
		return errors.New("save analysis: missing run id")
	}

	recs, err := json.Marshal(nonNil(a.Report.FinalRecommendations))
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	variants, err := json.Marshal(a.Variants)
	if err != nil {
		return fmt.Errorf("encode variants: %w", err)
	}

	err = db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM agent_results WHERE run_id = ?", a.RunID); err != nil {
			return fmt.Errorf("replace agent results: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", a.RunID); err != nil {
			return fmt.Errorf("replace run: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, question, draft_sql, improved_sql, overall_confidence, valid_analyses,
				total_agents, strategy, summary, llm_summary, recommendations, variants,
				expansion_degraded, batch_timed_out, started_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.RunID, a.Question, a.DraftSQL, a.Report.ImprovedSQL, a.Report.OverallConfidence,
			a.Report.ValidAnalyses, a.Report.TotalAgents, a.Report.Strategy, a.Report.Summary,
			a.Report.LLMSummary, string(recs), string(variants), a.ExpansionDegraded, a.BatchTimedOut,
			formatTime(a.StartedAt), a.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, r := range a.Results {
			recs, err := json.Marshal(nonNil(r.Recommendations))
			if err != nil {
				return fmt.Errorf("encode agent %d recommendations: %w", r.AgentID, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO agent_results (run_id, agent_id, role, question, status, confidence,
					analysis, recommendations, error, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, a.RunID, r.AgentID, r.Role.String(), r.Question, string(r.Status), r.Confidence,
				r.Analysis, string(recs), r.Error, r.Duration.Milliseconds())
			if err != nil {
				return fmt.Errorf("insert agent %d result: %w", r.AgentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", a.RunID, err)
	}
	return nil
}

// GetRun loads a stored analysis with its agent results in agent-id order.
func (db *DB) GetRun(ctx context.Context, id string) (*models.HeavyAnalysis, error) {
	row := db.QueryRow(ctx, `
		SELECT id, question, draft_sql, improved_sql, overall_confidence, valid_analyses, total_agents,
			strategy, summary, llm_summary, recommendations, variants, expansion_degraded,
			batch_timed_out, started_at, duration_ms
		FROM runs WHERE id = ?
	`, id)

	var a models.HeavyAnalysis
	var recs, variants, startedAt string
	var durationMS int64
	err := row.Scan(&a.RunID, &a.Question, &a.DraftSQL, &a.Report.ImprovedSQL, &a.Report.OverallConfidence,
		&a.Report.ValidAnalyses, &a.Report.TotalAgents, &a.Report.Strategy, &a.Report.Summary,
		&a.Report.LLMSummary, &recs, &variants, &a.ExpansionDegraded, &a.BatchTimedOut, &startedAt, &durationMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	if err := json.Unmarshal([]byte(recs), &a.Report.FinalRecommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	if err := json.Unmarshal([]byte(variants), &a.Variants); err != nil {
		return nil, fmt.Errorf("decode variants: %w", err)
	}
	a.StartedAt, _ = parseTime(startedAt)
	a.Duration = time.Duration(durationMS) * time.Millisecond

	results, err := db.agentResults(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Results = results
	return &a, nil
}

func (db *DB) agentResults(ctx context.Context, runID string) ([]models.AgentResult, error) {
	rows, err := db.Query(ctx, `
		SELECT agent_id, role, question, status, confidence, analysis, recommendations, error, duration_ms
		FROM agent_results WHERE run_id = ? ORDER BY agent_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list agent results: %w", err)
	}
	defer rows.Close()

	results := []models.AgentResult{}
	for rows.Next() {
		var r models.AgentResult
		var role, recs string
		var confidence sql.NullFloat64
		var durationMS int64
		if err := rows.Scan(&r.AgentID, &role, &r.Question, &r.Status, &confidence, &r.Analysis,
			&recs, &r.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("scan agent result: %w", err)
		}
		if r.Role, err = models.ParseAgentRole(role); err != nil {
			return nil, fmt.Errorf("agent %d: %w", r.AgentID, err)
		}
		if confidence.Valid {
			r.Confidence = models.Float64(confidence.Float64)
		}
		if err := json.Unmarshal([]byte(recs), &r.Recommendations); err != nil {
			return nil, fmt.Errorf("decode agent %d recommendations: %w", r.AgentID, err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListRuns returns the most recent runs first. A limit of zero or less returns all runs.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(ctx, `
		SELECT id, question, overall_confidence, valid_analyses, total_agents, improved_sql, started_at, duration_ms
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var improved, startedAt string
		var durationMS int64
		if err := rows.Scan(&s.ID, &s.Question, &s.OverallConfidence, &s.ValidAnalyses, &s.TotalAgents,
			&improved, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.Improved = improved != ""
		s.StartedAt, _ = parseTime(startedAt)
		s.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// PurgeOldRuns deletes runs started before now minus olderThan.
// Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var count int64
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM agent_results WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)
		`, cutoff); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff)
		if err != nil {
			return err
		}
		count, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}

	return count, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
