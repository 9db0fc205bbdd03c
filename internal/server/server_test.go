package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ShayCichocki/heavysql/internal/orchestrator"
	"github.com/ShayCichocki/heavysql/internal/state"
	"github.com/ShayCichocki/heavysql/internal/tabledb"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

type fakeAnalyzer struct {
	improved string
	err      error
	got      []orchestrator.Request
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req orchestrator.Request) (*models.HeavyAnalysis, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.HeavyAnalysis{
		RunID:    "run-1",
		Question: req.Question,
		DraftSQL: req.DraftSQL,
		Report: models.SynthesisReport{
			OverallConfidence: 0.75,
			ValidAnalyses:     4,
			TotalAgents:       4,
			ImprovedSQL:       f.improved,
		},
	}, nil
}

type fakeGenerator struct {
	sql string
	err error
}

func (f fakeGenerator) Generate(ctx context.Context, question, schema string) (string, error) {
	return f.sql, f.err
}

type fakeRuns struct {
	runs map[string]*models.HeavyAnalysis
}

func (f fakeRuns) GetRun(ctx context.Context, id string) (*models.HeavyAnalysis, error) {
	if r, ok := f.runs[id]; ok {
		return r, nil
	}
	return nil, state.ErrRunNotFound
}

func (f fakeRuns) ListRuns(ctx context.Context, limit int) ([]state.RunSummary, error) {
	var out []state.RunSummary
	for id, r := range f.runs {
		out = append(out, state.RunSummary{ID: id, Question: r.Question})
	}
	return out, nil
}

func setupTables(t *testing.T) *tabledb.DB {
	t.Helper()
	db, err := tabledb.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Load(context.Background(), tabledb.Table{
		ID:     "1",
		Header: []string{"Player", "No."},
		Rows:   [][]any{{"Antonio Lang", "21"}, {"John Long", "25"}},
	}); err != nil {
		t.Fatal(err)
	}
	return db
}

func newTestServer(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	s, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresAnalyzer(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("expected error without analyzer")
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, Deps{Analyzer: &fakeAnalyzer{}})
	rec := do(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAnalyze(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	h := newTestServer(t, Deps{Analyzer: analyzer, Tables: setupTables(t)})

	rec := do(t, h, http.MethodPost, "/v1/analyze", AnalyzeRequest{
		Question: "Who wears 21?",
		DraftSQL: "SELECT col0 FROM table_1 WHERE col1 = 21;",
		TableID:  "1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var got models.HeavyAnalysis
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-1" || got.Report.OverallConfidence != 0.75 {
		t.Errorf("analysis = %+v", got)
	}
	if len(analyzer.got) != 1 || !strings.Contains(analyzer.got[0].SchemaSummary, "Table name: table_1") {
		t.Errorf("schema summary not resolved from table: %+v", analyzer.got)
	}
}

func TestAnalyze_GeneratesDraft(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	h := newTestServer(t, Deps{Analyzer: analyzer, Generator: fakeGenerator{sql: "SELECT 1;"}})

	rec := do(t, h, http.MethodPost, "/v1/analyze", AnalyzeRequest{Question: "q"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if analyzer.got[0].DraftSQL != "SELECT 1;" {
		t.Errorf("draft = %q, want generated SQL", analyzer.got[0].DraftSQL)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		body any
		want int
	}{
		{"bad json", Deps{Analyzer: &fakeAnalyzer{}}, "{", http.StatusBadRequest},
		{"missing question", Deps{Analyzer: &fakeAnalyzer{}}, AnalyzeRequest{DraftSQL: "SELECT 1"}, http.StatusBadRequest},
		{"missing draft without generator", Deps{Analyzer: &fakeAnalyzer{}}, AnalyzeRequest{Question: "q"}, http.StatusBadRequest},
		{"generator fails", Deps{Analyzer: &fakeAnalyzer{}, Generator: fakeGenerator{err: errors.New("down")}}, AnalyzeRequest{Question: "q"}, http.StatusBadGateway},
		{"table without db", Deps{Analyzer: &fakeAnalyzer{}}, AnalyzeRequest{Question: "q", DraftSQL: "SELECT 1", TableID: "1"}, http.StatusBadRequest},
		{"analyzer fails", Deps{Analyzer: &fakeAnalyzer{err: orchestrator.ErrNoAgents}}, AnalyzeRequest{Question: "q", DraftSQL: "SELECT 1"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(t, tt.deps), http.MethodPost, "/v1/analyze", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAnalyze_UnknownTable(t *testing.T) {
	h := newTestServer(t, Deps{Analyzer: &fakeAnalyzer{}, Tables: setupTables(t)})
	rec := do(t, h, http.MethodPost, "/v1/analyze", AnalyzeRequest{Question: "q", DraftSQL: "SELECT 1", TableID: "zzz"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestQuery(t *testing.T) {
	tables := setupTables(t)

	t.Run("standard only", func(t *testing.T) {
		analyzer := &fakeAnalyzer{}
		h := newTestServer(t, Deps{
			Analyzer:  analyzer,
			Generator: fakeGenerator{sql: "SELECT col0 FROM table_1 WHERE col1 = 21;"},
			Tables:    tables,
		})
		rec := do(t, h, http.MethodPost, "/v1/query", QueryRequest{Question: "Who wears 21?", TableID: "1"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var got QueryResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got.Analysis != nil || len(analyzer.got) != 0 {
			t.Error("heavy analysis should not run")
		}
		if len(got.Rows) != 1 || got.Rows[0][0] != "Antonio Lang" {
			t.Errorf("rows = %v", got.Rows)
		}
	})

	t.Run("heavy uses improved sql", func(t *testing.T) {
		analyzer := &fakeAnalyzer{improved: "SELECT col0 FROM table_1 WHERE col1 = 25;"}
		h := newTestServer(t, Deps{
			Analyzer:  analyzer,
			Generator: fakeGenerator{sql: "SELECT col0 FROM table_1 WHERE col1 = 21;"},
			Tables:    tables,
		})
		rec := do(t, h, http.MethodPost, "/v1/query", QueryRequest{Question: "q", TableID: "1", Heavy: true})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var got QueryResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got.Analysis == nil || got.FinalSQL != analyzer.improved {
			t.Errorf("final sql = %q", got.FinalSQL)
		}
		if len(got.Rows) != 1 || got.Rows[0][0] != "John Long" {
			t.Errorf("rows = %v", got.Rows)
		}
	})

	t.Run("execution error reported", func(t *testing.T) {
		h := newTestServer(t, Deps{
			Analyzer:  &fakeAnalyzer{},
			Generator: fakeGenerator{sql: "SELECT col9 FROM table_1;"},
			Tables:    tables,
		})
		rec := do(t, h, http.MethodPost, "/v1/query", QueryRequest{Question: "q", TableID: "1"})
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "exec_error") {
			t.Errorf("status = %d body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("no generator", func(t *testing.T) {
		h := newTestServer(t, Deps{Analyzer: &fakeAnalyzer{}})
		rec := do(t, h, http.MethodPost, "/v1/query", QueryRequest{Question: "q"})
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("status = %d, want 501", rec.Code)
		}
	})
}

func TestRuns(t *testing.T) {
	runs := fakeRuns{runs: map[string]*models.HeavyAnalysis{
		"abc": {RunID: "abc", Question: "q"},
	}}
	h := newTestServer(t, Deps{Analyzer: &fakeAnalyzer{}, Runs: runs})

	rec := do(t, h, http.MethodGet, "/v1/runs/abc", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"run_id":"abc"`) {
		t.Errorf("get run = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/v1/runs/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/v1/runs?limit=5", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"abc"`) {
		t.Errorf("list runs = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/v1/runs?limit=x", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	h = newTestServer(t, Deps{Analyzer: &fakeAnalyzer{}})
	if rec := do(t, h, http.MethodGet, "/v1/runs", nil); rec.Code != http.StatusNotImplemented {
		t.Errorf("runs without store = %d, want 501", rec.Code)
	}
}

func TestStopWrapsRequestContext(t *testing.T) {
	analyzer := &ctxAnalyzer{}
	h := newTestServer(t, Deps{
		Analyzer: analyzer,
		Stop: func(parent context.Context) (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(parent)
			cancel()
			return ctx, cancel
		},
	})

	do(t, h, http.MethodPost, "/v1/analyze", AnalyzeRequest{Question: "q", DraftSQL: "SELECT 1"})
	if !errors.Is(analyzer.err, context.Canceled) {
		t.Errorf("analyzer ctx err = %v, want canceled", analyzer.err)
	}
}

type ctxAnalyzer struct {
	err error
}

func (c *ctxAnalyzer) Analyze(ctx context.Context, req orchestrator.Request) (*models.HeavyAnalysis, error) {
	c.err = ctx.Err()
	return &models.HeavyAnalysis{RunID: "x"}, nil
}
