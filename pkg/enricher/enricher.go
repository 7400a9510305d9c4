// Package enricher turns one item into a structured enrichment, or a set of items into a
// free-form analysis, by calling an LLM.
package enricher

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrEmptyResponse is returned when the LLM answers with no text
	ErrEmptyResponse = goerr.New("empty response from llm")
)

//go:embed prompt/enrich.md
var enrichPromptRaw string

//go:embed prompt/analyze.md
var analyzePromptRaw string

var (
	enrichPromptTmpl  = template.Must(template.New("enrich").Parse(enrichPromptRaw))
	analyzePromptTmpl = template.Must(template.New("analyze").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(analyzePromptRaw))
)

// Analyzer is the enrichment service
type Analyzer interface {
	// Analyze produces the enrichment of one item. Output that cannot be parsed is returned as a
	// degraded enrichment carrying the raw text, without error.
	Analyze(ctx context.Context, item *model.Item) (*model.Enrichment, error)

	// Summarize runs instruction over items and returns the free-form result
	Summarize(ctx context.Context, items []*model.Item, instruction string) (string, error)

	ModelName() string
}

// Generator sends one prompt to an LLM. When schema is not nil the answer must be a JSON
// object following it.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error)
	ModelName() string
}

// Enricher implements Analyzer over a Generator
type Enricher struct {
	gen        Generator
	now        func() time.Time
	maxBodyLen int
}

var _ Analyzer = (*Enricher)(nil)

type Option func(*Enricher)

// WithClock replaces the clock used for EnrichedAt
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		e.now = now
	}
}

// WithMaxBodyLength truncates item bodies in prompts to n runes
func WithMaxBodyLength(n int) Option {
	return func(e *Enricher) {
		e.maxBodyLen = n
	}
}

func New(gen Generator, opts ...Option) *Enricher {
	e := &Enricher{
		gen:        gen,
		now:        time.Now,
		maxBodyLen: 4000,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Enricher) ModelName() string {
	return e.gen.ModelName()
}

func (e *Enricher) Analyze(ctx context.Context, item *model.Item) (*model.Enrichment, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := enrichPromptTmpl.Execute(&buf, e.promptItem(item)); err != nil {
		return nil, goerr.Wrap(err, "failed to execute enrich prompt template")
	}

	text, err := e.gen.Generate(ctx, buf.String(), enrichmentSchema())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate enrichment", goerr.V("item_id", item.ID))
	}
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(ErrEmptyResponse, "no enrichment text", goerr.V("item_id", item.ID))
	}

	enrichment, err := parseEnrichment(text)
	if err != nil {
		logging.From(ctx).Warn("unparseable enrichment response",
			"item_id", item.ID,
			"error", err)
		enrichment = model.NewDegradedEnrichment("unparseable response: "+err.Error(), text)
	}

	enrichment.Model = e.gen.ModelName()
	enrichment.EnrichedAt = e.now().UTC()
	return enrichment, nil
}

func (e *Enricher) Summarize(ctx context.Context, items []*model.Item, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", goerr.Wrap(model.ErrInvalidInput, "instruction is required")
	}
	if len(items) == 0 {
		return "", goerr.Wrap(model.ErrInvalidInput, "no items to analyze")
	}

	promptItems := make([]*model.Item, 0, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return "", err
		}
		promptItems = append(promptItems, e.promptItem(item))
	}

	var buf bytes.Buffer
	if err := analyzePromptTmpl.Execute(&buf, map[string]any{
		"Instruction": instruction,
		"Items":       promptItems,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute analyze prompt template")
	}

	text, err := e.gen.Generate(ctx, buf.String(), nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate analysis", goerr.V("items", len(items)))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", goerr.Wrap(ErrEmptyResponse, "no analysis text")
	}

	return text, nil
}

// promptItem returns a copy of item with its body truncated for the prompt
func (e *Enricher) promptItem(item *model.Item) *model.Item {
	copied := *item
	if e.maxBodyLen > 0 && utf8.RuneCountInString(copied.Body) > e.maxBodyLen {
		copied.Body = string([]rune(copied.Body)[:e.maxBodyLen]) + "..."
	}
	return &copied
}
