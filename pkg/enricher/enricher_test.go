package enricher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/gleaner/pkg/adapter"
	"github.com/m-mizutani/gleaner/pkg/enricher"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockGenerator struct {
	generateFunc func(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
	return m.generateFunc(ctx, prompt, schema)
}

func (m *mockGenerator) ModelName() string { return "mock-model" }

const enrichmentJSON = `{"analysis":"a","sentiment":"neutral","credibility":"high","key_points":["k"],"relevance":5,"market_context":"m","risk_assessment":"r"}`

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	var gotPrompt string
	var gotSchema *jsonschema.Schema

	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
			gotPrompt = prompt
			gotSchema = schema
			return enrichmentJSON, nil
		},
	}
	e := enricher.New(gen, enricher.WithClock(func() time.Time { return fixedNow }))

	item := &model.Item{ID: "p1", Title: "Halving in sight", Category: "Bitcoin", Body: "long body"}
	enrichment, err := e.Analyze(ctx, item)
	gt.NoError(t, err)
	gt.Equal(t, enrichment.Credibility, model.CredibilityHigh)
	gt.Equal(t, enrichment.Model, "mock-model")
	gt.True(t, enrichment.EnrichedAt.Equal(fixedNow))
	gt.False(t, enrichment.Degraded)

	gt.S(t, gotPrompt).Contains("Halving in sight")
	gt.S(t, gotPrompt).Contains("Bitcoin")
	gt.V(t, gotSchema).NotNil()
}

func TestAnalyzeUnparseableIsDegraded(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
			return "Sorry, I can't help with that.", nil
		},
	}
	e := enricher.New(gen)

	enrichment, err := e.Analyze(context.Background(), &model.Item{ID: "p1"})
	gt.NoError(t, err)
	gt.True(t, enrichment.Degraded)
	gt.Equal(t, enrichment.Raw, "Sorry, I can't help with that.")
	gt.Equal(t, enrichment.Sentiment, model.SentimentNeutral)
	gt.Equal(t, enrichment.Credibility, model.CredibilityLow)
	gt.Equal(t, enrichment.Relevance, 1)
	gt.S(t, enrichment.Note).Contains("unparseable")
}

func TestAnalyzeErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("generator failure", func(t *testing.T) {
		e := enricher.New(&mockGenerator{
			generateFunc: func(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
				return "", errors.New("quota exceeded")
			},
		})
		_, err := e.Analyze(ctx, &model.Item{ID: "p1"})
		gt.Error(t, err)
	})

	t.Run("empty response", func(t *testing.T) {
		e := enricher.New(&mockGenerator{
			generateFunc: func(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
				return "  ", nil
			},
		})
		_, err := e.Analyze(ctx, &model.Item{ID: "p1"})
		gt.True(t, errors.Is(err, enricher.ErrEmptyResponse))
	})

	t.Run("invalid item", func(t *testing.T) {
		e := enricher.New(&mockGenerator{})
		_, err := e.Analyze(ctx, &model.Item{})
		gt.True(t, errors.Is(err, model.ErrInvalidInput))
	})
}

func TestAnalyzeTruncatesBody(t *testing.T) {
	var gotPrompt string
	e := enricher.New(&mockGenerator{
		generateFunc: func(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
			gotPrompt = prompt
			return enrichmentJSON, nil
		},
	}, enricher.WithMaxBodyLength(5))

	item := &model.Item{ID: "p1", Body: "0123456789"}
	_, err := e.Analyze(context.Background(), item)
	gt.NoError(t, err)
	gt.S(t, gotPrompt).Contains("01234...")
	gt.S(t, gotPrompt).NotContains("56789")
	// caller's item is untouched
	gt.Equal(t, item.Body, "0123456789")
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	var gotPrompt string
	var gotSchema *jsonschema.Schema
	e := enricher.New(&mockGenerator{
		generateFunc: func(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
			gotPrompt = prompt
			gotSchema = schema
			return "\n  three pain points  \n", nil
		},
	})

	items := []*model.Item{
		{ID: "a", Title: "Fees too high"},
		{ID: "b", Title: "Exchange froze withdrawals"},
	}
	result, err := e.Summarize(ctx, items, "Extract pain points")
	gt.NoError(t, err)
	gt.Equal(t, result, "three pain points")
	gt.V(t, gotSchema).Nil()
	gt.S(t, gotPrompt).Contains("Extract pain points")
	gt.S(t, gotPrompt).Contains("Post 1")
	gt.S(t, gotPrompt).Contains("Post 2")
	gt.S(t, gotPrompt).Contains("Exchange froze withdrawals")

	_, err = e.Summarize(ctx, items, " ")
	gt.True(t, errors.Is(err, model.ErrInvalidInput))

	_, err = e.Summarize(ctx, nil, "x")
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
}

type mockGemini struct {
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.generateFunc(ctx, contents, config)
}

func (m *mockGemini) ModelName() string { return "gemini-test" }

var _ adapter.Gemini = (*mockGemini)(nil)

func TestGeminiGenerator(t *testing.T) {
	var gotConfig *genai.GenerateContentConfig
	gen := enricher.NewGemini(&mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotConfig = config
			return &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{
						Content: &genai.Content{
							Role:  genai.RoleModel,
							Parts: []*genai.Part{{Text: enrichmentJSON}},
						},
					},
				},
			}, nil
		},
	})

	e := enricher.New(gen)
	enrichment, err := e.Analyze(context.Background(), &model.Item{ID: "p1"})
	gt.NoError(t, err)
	gt.Equal(t, enrichment.Model, "gemini-test")
	gt.Equal(t, enrichment.Relevance, 5)

	gt.Equal(t, gotConfig.ResponseMIMEType, "application/json")
	gt.V(t, gotConfig.ResponseSchema).NotNil()
	gt.Equal(t, gotConfig.ResponseSchema.Type, genai.TypeObject)
}

func TestGeminiGeneratorNoCandidates(t *testing.T) {
	gen := enricher.NewGemini(&mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{}, nil
		},
	})

	_, err := gen.Generate(context.Background(), "hello", nil)
	gt.True(t, errors.Is(err, enricher.ErrEmptyResponse))
}

type mockClaude struct {
	chatFunc func(ctx context.Context, system string, messages []anthropic.MessageParam) (*anthropic.Message, error)
}

func (m *mockClaude) Chat(ctx context.Context, system string, messages []anthropic.MessageParam) (*anthropic.Message, error) {
	return m.chatFunc(ctx, system, messages)
}

func (m *mockClaude) ModelName() string { return "claude-test" }

var _ adapter.Claude = (*mockClaude)(nil)

func TestClaudeGenerator(t *testing.T) {
	var gotSystem string
	gen := enricher.NewClaude(&mockClaude{
		chatFunc: func(ctx context.Context, system string, messages []anthropic.MessageParam) (*anthropic.Message, error) {
			gotSystem = system
			gt.A(t, messages).Length(1)
			return &anthropic.Message{
				Content: []anthropic.ContentBlockUnion{
					{Type: "text", Text: "```json\n" + enrichmentJSON + "\n```"},
				},
			}, nil
		},
	})

	e := enricher.New(gen)
	enrichment, err := e.Analyze(context.Background(), &model.Item{ID: "p1"})
	gt.NoError(t, err)
	gt.False(t, enrichment.Degraded)
	gt.Equal(t, enrichment.Model, "claude-test")
	gt.S(t, gotSystem).Contains("JSON")

	_, err = e.Summarize(context.Background(), []*model.Item{{ID: "p1"}}, "summarize")
	gt.NoError(t, err)
	gt.Equal(t, gotSystem, "")
}
