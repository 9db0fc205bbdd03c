package agent

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// confidencePattern matches "CONFIDENCE: 0.8", "**Confidence**: 85%", "Confidence score: .7".
	confidencePattern = regexp.MustCompile(`(?im)^[\s\-*]*(?:\*\*)?(?:overall\s+)?confidence(?:\s+score)?(?:\*\*)?\s*[:：]\s*(?:\*\*)?\s*([0-9]*\.?[0-9]+)\s*(%|/\s*1\b|/\s*10\b|/\s*100\b)?`)
	// recommendationsHeader matches the line that opens the recommendation list.
	recommendationsHeader = regexp.MustCompile(`(?i)^[\s\-*]*(?:\*\*)?recommendations?(?:\*\*)?\s*[:：]\s*(.*)$`)
	// sectionHeader matches any other "NAME:" or "**Name**:" section opener.
	sectionHeader = regexp.MustCompile(`^(?:\*\*[^*]+\*\*|[A-Z][A-Z _]+)\s*[:：]`)
	// bulletPattern matches "- item", "* item", "• item", "1. item", "2) item".
	bulletPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
)

// Parsed is the structured form of an agent response.
type Parsed struct {
	Analysis        string
	Confidence      float64
	ConfidenceFound bool
	Recommendations []string
}

// ParseResponse extracts analysis text, confidence and recommendations from a
// model response. Missing pieces get zero values; ConfidenceFound reports
// whether a usable confidence was present.
func ParseResponse(response string) Parsed {
	p := Parsed{
		Analysis:        strings.TrimSpace(response),
		Recommendations: []string{},
	}
	p.Confidence, p.ConfidenceFound = ParseConfidence(response)
	p.Recommendations = ParseRecommendations(response)
	return p
}

// ParseConfidence returns the first confidence value in text, normalized to
// [0,1]. Percentages and "/10" or "/100" scales are converted, and a bare
// value above 1 is read as a percentage; anything still outside [0,1] is
// rejected.
func ParseConfidence(text string) (float64, bool) {
	for _, m := range confidencePattern.FindAllStringSubmatch(text, -1) {
		val, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}

		scale := strings.ReplaceAll(m[2], " ", "")
		switch scale {
		case "%", "/100":
			val /= 100
		case "/10":
			val /= 10
		case "":
			if val > 1 {
				val /= 100
			}
		}

		if val >= 0 && val <= 1 {
			return val, true
		}
	}
	return 0, false
}

// ParseRecommendations returns the bullet items of the recommendations
// section, in order. Placeholder items such as "none" are dropped.
func ParseRecommendations(text string) []string {
	recs := []string{}
	inSection := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if m := recommendationsHeader.FindStringSubmatch(trimmed); m != nil {
			inSection = true
			if inline := cleanItem(m[1]); inline != "" {
				recs = append(recs, inline)
			}
			continue
		}
		if !inSection {
			continue
		}

		if trimmed == "" {
			if len(recs) > 0 {
				inSection = false
			}
			continue
		}
		if _, ok := ParseConfidence(trimmed); ok || sectionHeader.MatchString(trimmed) {
			inSection = false
			continue
		}

		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			if item := cleanItem(m[1]); item != "" {
				recs = append(recs, item)
			}
		}
	}

	return recs
}

// cleanItem trims markdown emphasis and drops placeholder entries.
func cleanItem(s string) string {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_"))
	switch strings.ToLower(strings.TrimRight(s, ".")) {
	case "", "none", "n/a", "na", "no changes", "no recommendations", "-":
		return ""
	}
	return s
}
