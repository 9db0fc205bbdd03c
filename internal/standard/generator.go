// Package standard implements the single-model query path: one model call
// turns a question and a schema summary into a draft SQL query.
package standard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ShayCichocki/heavysql/internal/agent"
	"github.com/ShayCichocki/heavysql/internal/api"
	"github.com/ShayCichocki/heavysql/internal/tabledb"
)

var (
	// ErrEmptyQuestion is returned when there is nothing to translate.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrNoSQL is returned when the model response holds no query.
	ErrNoSQL = errors.New("model returned no SQL")
)

const systemPrompt = "You are an expert in translating natural language questions into SQLite queries."

// Config tunes the generator.
type Config struct {
	// Model overrides the client's default model.
	Model string
	// MaxTokens caps the response. Zero uses the client default.
	MaxTokens int64
	// Timeout bounds the model call. Zero means only ctx applies.
	Timeout time.Duration
}

// Generator produces draft SQL with one model call.
type Generator struct {
	client api.Completer
	cfg    Config
}

// NewGenerator creates a generator.
func NewGenerator(client api.Completer, cfg Config) *Generator {
	return &Generator{client: client, cfg: cfg}
}

// Generate returns a cleaned SQL query for question. The result has no
// markdown fences and ends with a semicolon.
func (g *Generator) Generate(ctx context.Context, question, schemaSummary string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}
	if g.client == nil {
		return "", errors.New("no LLM client configured")
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.client.Complete(ctx, api.CompletionRequest{
		Prompt:    BuildPrompt(question, schemaSummary),
		System:    systemPrompt,
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	sql := agent.CleanSQL(resp)
	if sql == "" {
		return "", ErrNoSQL
	}
	log.Printf("[standard] generated sql in %v: %s", time.Since(start).Round(time.Millisecond), sql)
	return sql, nil
}

// BuildPrompt renders the generation prompt.
func BuildPrompt(question, schemaSummary string) string {
	var sb strings.Builder
	sb.WriteString("Translate the question into one SQLite query.\n\n")
	if s := strings.TrimSpace(schemaSummary); s != "" {
		sb.WriteString("Table information:\n")
		sb.WriteString(s)
		sb.WriteString("\n\n")
	}
	sb.WriteString(`Rules:
1. Refer to columns as col0, col1, col2, ... exactly as listed.
2. Use the exact table name given.
3. Return only the SQL statement, with no explanation.
4. Use standard SQLite syntax.
5. Use an aggregate only when the question clearly asks for one.
6. Add only the WHERE conditions the question states.

Aggregates:
- "how many" / "count" -> COUNT()
- "minimum" / "smallest" -> MIN()
- "maximum" / "largest" -> MAX()
- "sum" / "total" -> SUM()
- "average" -> AVG()

`)
	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n")
	return sb.String()
}

// Executor runs SQL against loaded tables.
type Executor interface {
	Execute(ctx context.Context, query string) (tabledb.Rows, error)
}

// Answer is the result of the standard path run end to end.
type Answer struct {
	SQL  string       `json:"sql" yaml:"sql"`
	Rows tabledb.Rows `json:"rows" yaml:"rows"`
	// Error holds the execution error, if any. The SQL is still returned.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Query generates SQL for question and executes it on db. Generation errors
// are returned; execution errors are reported in Answer.Error.
func (g *Generator) Query(ctx context.Context, db Executor, question, schemaSummary string) (*Answer, error) {
	sql, err := g.Generate(ctx, question, schemaSummary)
	if err != nil {
		return nil, err
	}
	rows, err := db.Execute(ctx, sql)
	if err != nil {
		log.Printf("[standard] execution failed: %v", err)
		return &Answer{SQL: sql, Error: err.Error()}, nil
	}
	return &Answer{SQL: sql, Rows: rows}, nil
}

// FormatRows renders rows for display: a single value bare, otherwise one
// row per line. An empty result reads "no rows".
func FormatRows(rows tabledb.Rows) string {
	if len(rows) == 0 {
		return "no rows"
	}
	if len(rows) == 1 && len(rows[0]) == 1 {
		return fmt.Sprint(rows[0][0])
	}
	lines := make([]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, c := range row {
			if c == nil {
				cells[j] = "NULL"
				continue
			}
			cells[j] = fmt.Sprint(c)
		}
		lines[i] = strings.Join(cells, " | ")
	}
	return strings.Join(lines, "\n")
}
