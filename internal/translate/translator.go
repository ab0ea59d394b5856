// Package translate renders one segment of text into the target language,
// pinning glossary terms and preserving inline markup-free plain text.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/versobook/verso/internal/glossary"
	"github.com/versobook/verso/internal/providers"
)

// Translator translates individual text segments through a backend client.
// Transport retry and backoff live in the client; the translator adds prompt
// construction, glossary pinning, and a bounded per-call timeout.
type Translator struct {
	client  providers.ChatClient
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// Config holds translator settings.
type Config struct {
	Model   string
	Timeout time.Duration // per-segment call timeout (default: 90s)
	Logger  *slog.Logger
}

// NewTranslator creates a segment translator.
func NewTranslator(client providers.ChatClient, cfg Config) *Translator {
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Translator{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Request is one segment translation.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
	Glossary   map[string]string
	Context    string // optional surrounding text for continuity
}

// Translate renders the segment into the target language. Exhausted client
// retries surface as an error; the caller decides whether that is fatal.
func (t *Translator) Translate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}

	system := fmt.Sprintf(
		"You are a professional literary translator. Translate from %s to %s. "+
			"Output only the translation, with no notes, labels, or quotation wrapping.",
		req.SourceLang, req.TargetLang)

	var prompt strings.Builder
	if pinned := pinnedTerms(req.Text, req.Glossary); len(pinned) > 0 {
		prompt.WriteString("You must use these exact translations for the following terms:\n")
		for _, p := range pinned {
			fmt.Fprintf(&prompt, "- %s => %s\n", p.source, p.target)
		}
		prompt.WriteString("\n")
	}
	if req.Context != "" {
		fmt.Fprintf(&prompt, "Surrounding context (do not translate):\n%s\n\n", req.Context)
	}
	fmt.Fprintf(&prompt, "Translate this text:\n%s", req.Text)

	result, err := t.client.Chat(ctx, &providers.ChatRequest{
		Model: t.model,
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt.String()},
		},
		Temperature: 0.3,
		Timeout:     t.timeout,
	})
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}

	return stripWrappers(result.Content), nil
}

type pinnedTerm struct {
	source string
	target string
}

// pinnedTerms returns the glossary entries whose keys occur in text,
// case-insensitively, longest key first so overlapping terms resolve to
// their most specific entry.
func pinnedTerms(text string, gloss map[string]string) []pinnedTerm {
	if len(gloss) == 0 {
		return nil
	}

	lower := strings.ToLower(text)
	matched := make([]pinnedTerm, 0, len(gloss))
	for source, target := range gloss {
		if source == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(source)) {
			matched = append(matched, pinnedTerm{source: source, target: target})
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if len(matched[i].source) != len(matched[j].source) {
			return len(matched[i].source) > len(matched[j].source)
		}
		return matched[i].source < matched[j].source
	})
	return matched
}

// stripWrappers removes wrapping the backend may echo back: code fences and
// a single pair of enclosing quotes.
func stripWrappers(s string) string {
	s = glossary.StripCodeFence(s)
	s = strings.TrimSpace(s)

	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}, {"«", "»"}} {
		if len(s) > 1 && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			inner := strings.TrimSuffix(strings.TrimPrefix(s, pair[0]), pair[1])
			// Only unwrap when the quotes enclose the whole text.
			if !strings.Contains(inner, pair[0]) && !strings.Contains(inner, pair[1]) {
				s = strings.TrimSpace(inner)
			}
			break
		}
	}
	return s
}
