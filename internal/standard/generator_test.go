package standard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/heavysql/internal/api"
	"github.com/ShayCichocki/heavysql/internal/tabledb"
)

func completer(resp string, err error, seen *api.CompletionRequest) api.Completer {
	return api.CompleterFunc(func(ctx context.Context, req api.CompletionRequest) (string, error) {
		if seen != nil {
			*seen = req
		}
		return resp, err
	})
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		err     error
		want    string
		wantErr error
	}{
		{
			name: "fenced",
			resp: "```sql\nSELECT col5 FROM table_1 WHERE col1 = 21\n```",
			want: "SELECT col5 FROM table_1 WHERE col1 = 21;",
		},
		{
			name: "bare with semicolon",
			resp: "  SELECT COUNT(col0) FROM table_1;  ",
			want: "SELECT COUNT(col0) FROM table_1;",
		},
		{
			name:    "empty response",
			resp:    "   ",
			wantErr: ErrNoSQL,
		},
		{
			name:    "client error",
			err:     errors.New("rate limited"),
			wantErr: errors.New("rate limited"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen api.CompletionRequest
			g := NewGenerator(completer(tt.resp, tt.err, &seen), Config{Model: "m", MaxTokens: 256})

			got, err := g.Generate(context.Background(), "What school is number 21 from?", "Table name: table_1")
			if tt.wantErr != nil {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr.Error()) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Generate = %q, want %q", got, tt.want)
			}
			if seen.Model != "m" || seen.MaxTokens != 256 {
				t.Errorf("request model/tokens = %s/%d", seen.Model, seen.MaxTokens)
			}
			if !strings.Contains(seen.Prompt, "Table name: table_1") {
				t.Error("prompt should include the schema summary")
			}
		})
	}
}

func TestGenerate_EmptyQuestion(t *testing.T) {
	called := false
	g := NewGenerator(api.CompleterFunc(func(ctx context.Context, req api.CompletionRequest) (string, error) {
		called = true
		return "SELECT 1", nil
	}), Config{})

	if _, err := g.Generate(context.Background(), "  ", ""); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("error = %v, want ErrEmptyQuestion", err)
	}
	if called {
		t.Error("model should not be called for an empty question")
	}
}

func TestGenerate_Timeout(t *testing.T) {
	g := NewGenerator(api.CompleterFunc(func(ctx context.Context, req api.CompletionRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), Config{Timeout: 20 * time.Millisecond})

	_, err := g.Generate(context.Background(), "q", "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(" How many players? ", "")
	if strings.Contains(p, "Table information") {
		t.Error("no table section expected without a schema")
	}
	if !strings.HasSuffix(p, "Question: How many players?\n") {
		t.Errorf("prompt should end with the trimmed question:\n%s", p)
	}
}

func TestQuery(t *testing.T) {
	db, err := tabledb.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	if _, err := db.Load(ctx, tabledb.Table{
		ID:     "1",
		Header: []string{"Player", "No."},
		Rows:   [][]any{{"Antonio Lang", "21"}, {"John Long", "25"}},
	}); err != nil {
		t.Fatal(err)
	}

	g := NewGenerator(completer("SELECT col0 FROM table_1 WHERE col1 = 21", nil, nil), Config{})
	ans, err := g.Query(ctx, db, "Who wears 21?", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if ans.Error != "" || FormatRows(ans.Rows) != "Antonio Lang" {
		t.Errorf("answer = %+v", ans)
	}

	bad := NewGenerator(completer("SELECT col7 FROM table_1", nil, nil), Config{})
	ans, err = bad.Query(ctx, db, "Who?", "")
	if err != nil {
		t.Fatalf("execution errors should not be returned: %v", err)
	}
	if ans.Error == "" || ans.SQL != "SELECT col7 FROM table_1;" {
		t.Errorf("answer = %+v", ans)
	}
}

func TestFormatRows(t *testing.T) {
	if got := FormatRows(nil); got != "no rows" {
		t.Errorf("empty = %q", got)
	}
	got := FormatRows(tabledb.Rows{{"a", int64(1)}, {nil, 2.5}})
	if got != "a | 1\nNULL | 2.5" {
		t.Errorf("rows = %q", got)
	}
}
