package tabledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// ErrUnknownTable is returned for a table ID that was never loaded.
var ErrUnknownTable = errors.New("unknown table")

// SampleRows is the number of rows shown in a schema summary.
const SampleRows = 5

// Rows is a query result: one slice of cell values per row.
type Rows [][]any

// DB holds loaded tables in SQLite.
type DB struct {
	conn   *sql.DB
	mu     sync.RWMutex
	tables map[string]Table
}

// Open opens a table database at path. ":memory:" keeps everything in process.
func Open(path string) (*DB, error) {
	if path == "" {
		path = ":memory:"
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open table database: %w", err)
	}
	// Every pooled connection to :memory: would be a separate database.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open table database: %w", err)
	}
	return &DB{conn: conn, tables: make(map[string]Table)}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Load creates (or replaces) the SQL table for t and inserts its rows.
// It returns the SQL table name.
func (db *DB) Load(ctx context.Context, t Table) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	name := TableName(t.ID)

	cols := make([]string, len(t.Header))
	placeholders := make([]string, len(t.Header))
	for i := range t.Header {
		cols[i] = fmt.Sprintf("%q %s", Column(i), columnType(t, i))
		placeholders[i] = "?"
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", name)); err != nil {
		return "", fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %q (%s)", name, strings.Join(cols, ", "))); err != nil {
		return "", fmt.Errorf("create table %s: %w", name, err)
	}

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %q VALUES (%s)", name, strings.Join(placeholders, ", ")))
	if err != nil {
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	for i, row := range t.Rows {
		args := make([]any, len(t.Header))
		for j := range args {
			if j < len(row) {
				args[j] = cellValue(row[j])
			}
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return "", fmt.Errorf("insert row %d into %s: %w", i, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit load: %w", err)
	}
	db.tables[t.ID] = t
	return name, nil
}

// LoadAll loads every table.
func (db *DB) LoadAll(ctx context.Context, tables []Table) error {
	for _, t := range tables {
		if _, err := db.Load(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Table returns a loaded table by ID.
func (db *DB) Table(id string) (Table, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tables[id]
	return t, ok
}

// Schema returns the schema summary handed to models: SQL table name,
// description, one line per column and the first SampleRows rows.
func (db *DB) Schema(id string) (string, error) {
	t, ok := db.Table(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, id)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Table name: %s\n", TableName(t.ID))
	if t.Name != "" {
		fmt.Fprintf(&sb, "Description: %s\n", t.Name)
	}
	sb.WriteString("Columns:\n")
	for i, header := range t.Header {
		declared := "text"
		if i < len(t.Types) && t.Types[i] != "" {
			declared = t.Types[i]
		}
		fmt.Fprintf(&sb, "  %s: %s (%s)\n", Column(i), header, declared)
	}

	n := min(SampleRows, len(t.Rows))
	if n > 0 {
		fmt.Fprintf(&sb, "Sample rows (first %d):\n", n)
		for i, row := range t.Rows[:n] {
			cells := make([]string, len(row))
			for j, c := range row {
				cells[j] = cellString(c)
			}
			fmt.Fprintf(&sb, "  row %d: [%s]\n", i+1, strings.Join(cells, " | "))
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// Execute runs a read-only query and returns all rows.
func (db *DB) Execute(ctx context.Context, query string) (Rows, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty query")
	}
	if !isReadOnly(query) {
		return nil, fmt.Errorf("only SELECT statements may be executed: %q", query)
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := Rows{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return out, nil
}

func isReadOnly(query string) bool {
	first := strings.ToUpper(strings.Fields(query)[0])
	if first != "SELECT" && first != "WITH" {
		return false
	}
	// A single statement only; a trailing semicolon is fine.
	return !strings.Contains(strings.TrimRight(query, "; \t\n"), ";")
}

// cellValue maps a decoded cell to the value stored in SQLite. Empty strings become NULL.
func cellValue(v any) any {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		return x
	case nil, float64, int, int64, bool:
		return x
	default:
		return cellString(x)
	}
}
