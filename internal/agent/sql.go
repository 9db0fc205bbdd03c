package agent

import (
	"regexp"
	"strings"
)

var (
	// sqlSyntaxPatterns detect SQL written into what should be a natural-language question.
	sqlSyntaxPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)\bselect\b.+\bfrom\b`),
		regexp.MustCompile(`(?i)\bwhere\s+[\w."]+\s*(?:=|<>|!=|<|>|\blike\b|\bin\s*\()`),
		regexp.MustCompile(`(?i)\b(?:group|order)\s+by\b`),
		regexp.MustCompile(`(?i)\binsert\s+into\b`),
		regexp.MustCompile(`(?i)\bupdate\s+\w+\s+set\b`),
		regexp.MustCompile(`(?i)\bdelete\s+from\b`),
		regexp.MustCompile(`(?i)\b(?:inner|left|right|outer)?\s*join\s+\w+\s+on\b`),
		regexp.MustCompile(`(?i)\b(?:count|sum|avg|min|max)\s*\(\s*[\w*]`),
		regexp.MustCompile(`\bcol\d+\b`),
		regexp.MustCompile("```"),
		regexp.MustCompile(`;\s*$`),
	}

	fencedSQL     = regexp.MustCompile("(?is)```(?:sql|sqlite)?\\s*\\n?(.*?)```")
	improvedLine  = regexp.MustCompile(`(?im)^[\s\-*]*(?:\*\*)?improved[\s_]sql(?:\*\*)?\s*[:：]\s*(.*)$`)
	selectStmt    = regexp.MustCompile(`(?is)^\s*select\b.+\bfrom\b`)
	selectList    = regexp.MustCompile(`(?is)^\s*select\s+(.*?)\s+from\s`)
	whereClause   = regexp.MustCompile(`(?is)\bwhere\s+(.+?)(?:\s+order\s+by|\s+group\s+by|\s+limit|;|$)`)
	andKeyword    = regexp.MustCompile(`(?i)\band\b`)
	complexTokens = []string{"LIKE", "LOWER(", "UPPER(", "CROSS APPLY", "STRING_SPLIT", "%"}
)

// ContainsSQL reports whether text contains SQL syntax rather than plain language.
func ContainsSQL(text string) bool {
	for _, p := range sqlSyntaxPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// CleanSQL strips markdown fences and surrounding prose markers, collapses
// whitespace and ensures a trailing semicolon. Empty input stays empty.
func CleanSQL(sql string) string {
	if m := fencedSQL.FindStringSubmatch(sql); m != nil {
		sql = m[1]
	}
	sql = strings.ReplaceAll(sql, "```sql", "")
	sql = strings.ReplaceAll(sql, "```", "")
	sql = NormalizeSQL(sql)
	if sql == "" {
		return ""
	}
	if !strings.HasSuffix(sql, ";") {
		sql += ";"
	}
	return sql
}

// NormalizeSQL collapses all whitespace runs to single spaces.
func NormalizeSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// sameSQL compares two queries ignoring whitespace, case and trailing semicolons.
func sameSQL(a, b string) bool {
	norm := func(s string) string {
		return strings.ToLower(strings.TrimRight(NormalizeSQL(s), "; "))
	}
	return norm(a) == norm(b)
}

// ExtractImprovedSQL returns a replacement query explicitly proposed in a
// synthesis response, or "" when there is none. A proposal must appear on an
// "IMPROVED_SQL:" line or in a fenced sql block, must be a SELECT statement,
// must differ from draft and must pass IsPlausibleRevision.
func ExtractImprovedSQL(response, draft string) string {
	var candidates []string

	if m := improvedLine.FindStringSubmatch(response); m != nil {
		candidates = append(candidates, m[1])
	}
	for _, m := range fencedSQL.FindAllStringSubmatch(response, -1) {
		candidates = append(candidates, m[1])
	}

	for _, c := range candidates {
		c = CleanSQL(c)
		if c == "" || !selectStmt.MatchString(c) {
			continue
		}
		if strings.EqualFold(strings.TrimRight(c, ";"), "none") || sameSQL(c, draft) {
			continue
		}
		if IsPlausibleRevision(c, draft) {
			return c
		}
	}
	return ""
}

// IsPlausibleRevision reports whether revised is an acceptable replacement
// for draft: it must add WHERE conditions, keep the selected columns and not
// add pattern matching or case-folding functions the draft did not have.
func IsPlausibleRevision(revised, draft string) bool {
	if draft == "" {
		return true
	}

	if ConditionCount(revised) <= ConditionCount(draft) {
		return false
	}

	if a, b := selectList.FindStringSubmatch(draft), selectList.FindStringSubmatch(revised); a != nil && b != nil {
		if !strings.EqualFold(NormalizeSQL(a[1]), NormalizeSQL(b[1])) {
			return false
		}
	}

	return complexity(revised) <= complexity(draft)
}

// ConditionCount returns the number of AND-joined conditions in the WHERE clause.
func ConditionCount(sql string) int {
	m := whereClause.FindStringSubmatch(sql)
	if m == nil {
		return 0
	}
	return len(andKeyword.FindAllString(m[1], -1)) + 1
}

func complexity(sql string) int {
	upper := strings.ToUpper(sql)
	n := 0
	for _, tok := range complexTokens {
		n += strings.Count(upper, tok)
	}
	return n
}
