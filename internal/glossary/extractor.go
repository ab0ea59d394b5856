// Package glossary extracts a proper-noun translation mapping for a document.
//
// Glossary consistency is an enhancement, not a correctness requirement: any
// backend or parse failure yields an empty mapping and the job proceeds.
package glossary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/versobook/verso/internal/providers"
)

// Default sampling windows: the opening of the document carries most name
// introductions, the middle and tail catch late arrivals.
const (
	DefaultHeadSegments = 20
	DefaultMidSegments  = 10
	DefaultTailSegments = 10
)

// mappingSchema accepts only a flat object of string-to-string pairs, which
// guards against backends returning nested or annotated structures.
var mappingSchema = jsonschema.MustCompileString("glossary.json", `{
	"type": "object",
	"additionalProperties": {"type": "string"}
}`)

// Extractor asks the translation backend for a document-wide glossary.
type Extractor struct {
	client providers.ChatClient
	model  string
	logger *slog.Logger

	headSegments int
	midSegments  int
	tailSegments int
}

// Config holds extractor settings.
type Config struct {
	Model        string
	HeadSegments int
	MidSegments  int
	TailSegments int
	Logger       *slog.Logger
}

// NewExtractor creates a glossary extractor.
func NewExtractor(client providers.ChatClient, cfg Config) *Extractor {
	if cfg.HeadSegments <= 0 {
		cfg.HeadSegments = DefaultHeadSegments
	}
	if cfg.MidSegments <= 0 {
		cfg.MidSegments = DefaultMidSegments
	}
	if cfg.TailSegments <= 0 {
		cfg.TailSegments = DefaultTailSegments
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Extractor{
		client:       client,
		model:        cfg.Model,
		logger:       cfg.Logger,
		headSegments: cfg.HeadSegments,
		midSegments:  cfg.MidSegments,
		tailSegments: cfg.TailSegments,
	}
}

// Extract samples the document and returns a proper-noun mapping. It never
// fails: on any backend or parse error it returns an empty mapping.
func (e *Extractor) Extract(ctx context.Context, texts []string, sourceLang, targetLang string) map[string]string {
	sample := e.sample(texts)
	if sample == "" {
		return map[string]string{}
	}

	prompt := fmt.Sprintf(
		"Below are excerpts from a book written in %s. Identify every proper noun "+
			"(personal names, place names, organizations, titles) and produce a single %s rendering "+
			"for each, to be used consistently throughout the whole book.\n\n"+
			"Respond with only a JSON object mapping each %s term to its %s translation. "+
			"No commentary.\n\nExcerpts:\n\n%s",
		sourceLang, targetLang, sourceLang, targetLang, sample)

	result, err := e.client.Chat(ctx, &providers.ChatRequest{
		Model: e.model,
		Messages: []providers.Message{
			{Role: "system", Content: "You are a literary translation assistant that builds terminology glossaries."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		e.logger.Warn("glossary extraction failed, proceeding without glossary", "error", err)
		return map[string]string{}
	}

	mapping := parseMapping(result.Content)
	if mapping == nil {
		e.logger.Warn("glossary response unparseable, proceeding without glossary")
		return map[string]string{}
	}

	e.logger.Info("glossary extracted", "terms", len(mapping))
	return mapping
}

// sample concatenates the head, middle, and tail windows of the document's
// segment texts with paragraph breaks, skipping the full document for cost.
func (e *Extractor) sample(texts []string) string {
	var parts []string

	head := e.headSegments
	if head > len(texts) {
		head = len(texts)
	}
	parts = append(parts, texts[:head]...)

	if len(texts) > head {
		midStart := len(texts)/2 - e.midSegments/2
		if midStart < head {
			midStart = head
		}
		midEnd := midStart + e.midSegments
		if midEnd > len(texts) {
			midEnd = len(texts)
		}
		parts = append(parts, texts[midStart:midEnd]...)

		tailStart := len(texts) - e.tailSegments
		if tailStart < midEnd {
			tailStart = midEnd
		}
		parts = append(parts, texts[tailStart:]...)
	}

	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// parseMapping decodes the backend's response into a string mapping. Returns
// nil when the content is not a valid flat mapping.
func parseMapping(content string) map[string]string {
	content = StripCodeFence(content)
	if content == "" {
		return nil
	}

	var raw any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil
	}
	if err := mappingSchema.Validate(raw); err != nil {
		return nil
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	mapping := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := v.(string); ok && k != "" {
			mapping[k] = s
		}
	}
	return mapping
}

// StripCodeFence removes a wrapping markdown code fence, with or without a
// language tag, that backends commonly echo around JSON.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// Drop a language tag like "json" on the fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
