// Package tabledb loads question tables into an in-process SQLite database
// so generated SQL can be executed and checked.
package tabledb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Table is one source table. Columns are addressed as col0..colN in SQL.
type Table struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	Header []string `json:"header" yaml:"header"`
	// Types holds declared column types: "text", "real" or "number".
	Types []string `json:"types,omitempty" yaml:"types,omitempty"`
	Rows  [][]any  `json:"rows" yaml:"rows"`
}

// Validate checks the table is loadable.
func (t Table) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("table has no id")
	}
	if len(t.Header) == 0 {
		return fmt.Errorf("table %s has no columns", t.ID)
	}
	for i, row := range t.Rows {
		if len(row) > len(t.Header) {
			return fmt.Errorf("table %s row %d has %d cells, header has %d", t.ID, i, len(row), len(t.Header))
		}
	}
	return nil
}

// Column returns the SQL name of column i.
func Column(i int) string {
	return "col" + strconv.Itoa(i)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// TableName returns the SQL table name for a table ID: "table_" plus the ID
// with every character outside [A-Za-z0-9_] replaced by "_".
func TableName(id string) string {
	clean := unsafeChars.ReplaceAllString(id, "_")
	if clean == "" {
		clean = "unknown"
	}
	if strings.HasPrefix(clean, "table_") {
		return clean
	}
	return "table_" + clean
}

// ReadTables reads a list of tables from a .json, .yaml or .yml file.
func ReadTables(path string) ([]Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}

	var tables []Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &tables)
	default:
		err = json.Unmarshal(data, &tables)
	}
	if err != nil {
		return nil, fmt.Errorf("parse tables file %s: %w", path, err)
	}

	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("tables file %s: %w", path, err)
		}
	}
	return tables, nil
}

// columnType picks the SQLite type for column i: REAL when declared real,
// otherwise INTEGER or REAL when more than 80% of non-empty cells are numeric.
func columnType(t Table, i int) string {
	if i < len(t.Types) && strings.EqualFold(t.Types[i], "real") {
		return "REAL"
	}

	var total, ints, floats int
	for _, row := range t.Rows {
		if i >= len(row) {
			continue
		}
		total++
		s := strings.TrimSpace(cellString(row[i]))
		if s == "" {
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			ints++
			continue
		}
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			floats++
		}
	}

	if total == 0 || float64(ints+floats) <= 0.8*float64(total) {
		return "TEXT"
	}
	if floats > 0 {
		return "REAL"
	}
	return "INTEGER"
}

// cellString renders a decoded JSON or YAML cell as text.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
