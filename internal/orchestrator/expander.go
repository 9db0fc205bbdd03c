package orchestrator

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/ShayCichocki/heavysql/internal/agent"
	"github.com/ShayCichocki/heavysql/internal/api"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

// variantLine matches "SPECIFIC: ...", "**Alternative**: ...", "3. VERIFICATION: ...".
var variantLine = regexp.MustCompile(`(?i)^[\s\-*]*(?:\d+[.)]\s*)?(?:\*\*)?(original|specific|alternative|verification)(?:\*\*)?\s*[:：]\s*(.*)$`)

const expansionPrompt = `Rewrite the question below from different angles so that several analysts can
check the same SQL query independently.

Original question: %s

Requirements:
1. Keep the ORIGINAL line exactly as given.
2. SPECIFIC, ALTERNATIVE and VERIFICATION must ask for the same fact, answerable from the same table.
3. Plain English questions only. Never write SQL, column ids or code.

Example:
ORIGINAL: What school did player number 21 play for?
SPECIFIC: Which educational institution was attended by the athlete wearing jersey number 21?
ALTERNATIVE: What is the college background of the player identified as number 21?
VERIFICATION: Can you confirm the college or university associated with player 21?

Output exactly four lines:
ORIGINAL: <original question>
SPECIFIC: <more specific version focusing on details and context>
ALTERNATIVE: <alternative phrasing with different terminology>
VERIFICATION: <version asking to confirm the answer>`

// ExpanderConfig configures an Expander.
type ExpanderConfig struct {
	Model     string
	MaxTokens int64
	// Timeout bounds the expansion call. Zero means no deadline beyond ctx.
	Timeout time.Duration
}

// Expander turns one question into exactly four variants.
type Expander struct {
	client api.Completer
	cfg    ExpanderConfig
	logger *DebugLogger
}

// NewExpander creates an Expander. A nil client makes every expansion fall back.
func NewExpander(client api.Completer, cfg ExpanderConfig, logger *DebugLogger) *Expander {
	return &Expander{client: client, cfg: cfg, logger: logger}
}

// Expand returns four variants of question. Variant 0 is always question
// verbatim. When the model call fails or its output is unusable, every slot
// holds the original text and degraded is true. Expand never fails.
func (e *Expander) Expand(ctx context.Context, question string) (variants models.Variants, degraded bool) {
	if strings.TrimSpace(question) == "" {
		return e.fallback(question, "empty question"), true
	}
	if e.client == nil {
		return e.fallback(question, "no client"), true
	}

	resp, err := completeWithin(ctx, e.client, api.CompletionRequest{
		Prompt:    fmt.Sprintf(expansionPrompt, question),
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
	}, e.cfg.Timeout)
	if err != nil {
		return e.fallback(question, err.Error()), true
	}

	derived, err := parseVariants(resp)
	if err != nil {
		return e.fallback(question, err.Error()), true
	}

	variants = Unexpanded(question)
	for i := 1; i < models.NumAgents; i++ {
		variants[i].Text = derived[models.VariantTags[i]]
	}
	e.logger.Log("expanded %q into %d variants", question, models.NumAgents)
	return variants, false
}

// Unexpanded returns four variants that all carry question unchanged.
func Unexpanded(question string) models.Variants {
	var v models.Variants
	for i := range v {
		v[i] = models.Variant{Index: i, Tag: models.VariantTags[i], Text: question}
	}
	return v
}

func (e *Expander) fallback(question, reason string) models.Variants {
	log.Printf("[expander] expansion degraded, using original question in all slots: %s", reason)
	e.logger.Log("expansion degraded for %q: %s", question, reason)
	return Unexpanded(question)
}

// parseVariants extracts the three derived variants from a model response.
// The first line for each tag wins; the ORIGINAL line is ignored.
func parseVariants(resp string) (map[models.VariantTag]string, error) {
	derived := make(map[models.VariantTag]string, models.NumAgents-1)

	for _, line := range strings.Split(resp, "\n") {
		m := variantLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		tag := models.VariantTag(strings.ToUpper(m[1]))
		if tag == models.VariantOriginal {
			continue
		}
		if _, seen := derived[tag]; seen {
			continue
		}
		text := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[2]), "*"))
		if text == "" {
			continue
		}
		if agent.ContainsSQL(text) {
			return nil, fmt.Errorf("%s variant contains SQL: %q", tag, text)
		}
		derived[tag] = text
	}

	if len(derived) < models.NumAgents-1 {
		return nil, fmt.Errorf("parsed %d of %d derived variants", len(derived), models.NumAgents-1)
	}
	return derived, nil
}
