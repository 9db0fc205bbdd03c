package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ShayCichocki/heavysql/internal/orchestrator"
	"github.com/ShayCichocki/heavysql/internal/state"
	"github.com/ShayCichocki/heavysql/internal/tabledb"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

// AnalyzeRequest is the body of POST /v1/analyze. TableID, when set and a
// table database is configured, supplies the schema summary. An empty
// DraftSQL is generated on the standard path when a generator is configured.
type AnalyzeRequest struct {
	Question      string `json:"question"`
	DraftSQL      string `json:"draft_sql"`
	SchemaSummary string `json:"schema_summary,omitempty"`
	TableID       string `json:"table_id,omitempty"`
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Question      string `json:"question"`
	SchemaSummary string `json:"schema_summary,omitempty"`
	TableID       string `json:"table_id,omitempty"`
	// Heavy runs a heavy analysis on the generated SQL.
	Heavy bool `json:"heavy,omitempty"`
}

// QueryResponse is the body returned by POST /v1/query. Rows are the results
// of FinalSQL when a table database is configured.
type QueryResponse struct {
	SQL       string                `json:"sql"`
	FinalSQL  string                `json:"final_sql"`
	Rows      tabledb.Rows          `json:"rows,omitempty"`
	ExecError string                `json:"exec_error,omitempty"`
	Analysis  *models.HeavyAnalysis `json:"analysis,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[AnalyzeRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, strings.TrimSpace(req.Question), "question") {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	schema, ok := s.resolveSchema(w, req.TableID, req.SchemaSummary)
	if !ok {
		return
	}

	draft := req.DraftSQL
	if strings.TrimSpace(draft) == "" {
		if s.deps.Generator == nil {
			writeError(w, http.StatusBadRequest, "draft_sql is required")
			return
		}
		var err error
		draft, err = s.deps.Generator.Generate(ctx, req.Question, schema)
		if err != nil {
			writeError(w, http.StatusBadGateway, "generate draft sql: "+err.Error())
			return
		}
	}

	analysis, err := s.deps.Analyzer.Analyze(ctx, orchestrator.Request{
		Question:      req.Question,
		DraftSQL:      draft,
		SchemaSummary: schema,
	})
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[QueryRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, strings.TrimSpace(req.Question), "question") {
		return
	}
	if s.deps.Generator == nil {
		writeError(w, http.StatusNotImplemented, "standard path is not configured")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	schema, ok := s.resolveSchema(w, req.TableID, req.SchemaSummary)
	if !ok {
		return
	}

	sql, err := s.deps.Generator.Generate(ctx, req.Question, schema)
	if err != nil {
		writeError(w, http.StatusBadGateway, "generate sql: "+err.Error())
		return
	}
	resp := QueryResponse{SQL: sql, FinalSQL: sql}

	if req.Heavy {
		analysis, err := s.deps.Analyzer.Analyze(ctx, orchestrator.Request{
			Question:      req.Question,
			DraftSQL:      sql,
			SchemaSummary: schema,
		})
		if err != nil {
			writeInternalError(w, err)
			return
		}
		resp.Analysis = analysis
		resp.FinalSQL = analysis.FinalSQL()
	}

	if s.deps.Tables != nil && req.TableID != "" {
		rows, err := s.deps.Tables.Execute(ctx, resp.FinalSQL)
		if err != nil {
			resp.ExecError = err.Error()
		} else {
			resp.Rows = rows
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusNotImplemented, "run history is not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.deps.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if runs == nil {
		runs = []state.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusNotImplemented, "run history is not configured")
		return
	}
	run, err := s.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, state.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// resolveSchema returns the schema summary for a request. A table ID takes
// precedence over an inline summary.
func (s *Server) resolveSchema(w http.ResponseWriter, tableID, inline string) (string, bool) {
	if tableID == "" {
		return inline, true
	}
	if s.deps.Tables == nil {
		writeError(w, http.StatusBadRequest, "table_id given but no tables are loaded")
		return "", false
	}
	schema, err := s.deps.Tables.Schema(tableID)
	if errors.Is(err, tabledb.ErrUnknownTable) {
		writeError(w, http.StatusNotFound, "unknown table "+tableID)
		return "", false
	}
	if err != nil {
		writeInternalError(w, err)
		return "", false
	}
	return schema, true
}

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// requireField writes a 400 error and returns false when value is empty.
func requireField(w http.ResponseWriter, value, name string) bool {
	if value == "" {
		writeError(w, http.StatusBadRequest, name+" is required")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[server] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeInternalError logs the error and returns a generic message.
func writeInternalError(w http.ResponseWriter, err error) {
	log.Printf("[server] request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
