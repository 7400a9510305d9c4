package adapter

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
)

// Claude is the interface for Claude API client
type Claude interface {
	// Chat sends messages to Claude and returns response
	Chat(ctx context.Context, system string, messages []anthropic.MessageParam) (*anthropic.Message, error)
	ModelName() string
}

// claudeClient implements Claude interface
type claudeClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	reqOpts   []option.RequestOption
}

type ClaudeOption func(*claudeClient)

func WithClaudeModel(model string) ClaudeOption {
	return func(c *claudeClient) {
		if model != "" {
			c.model = model
		}
	}
}

func WithClaudeMaxTokens(n int64) ClaudeOption {
	return func(c *claudeClient) {
		c.maxTokens = n
	}
}

// WithClaudeBaseURL points the client to another endpoint, e.g. a proxy
func WithClaudeBaseURL(url string) ClaudeOption {
	return func(c *claudeClient) {
		c.reqOpts = append(c.reqOpts, option.WithBaseURL(url))
	}
}

// NewClaude creates a new Claude API client
func NewClaude(apiKey string, opts ...ClaudeOption) (Claude, error) {
	if apiKey == "" {
		return nil, goerr.New("anthropic api key is required")
	}

	c := &claudeClient{
		model:     "claude-sonnet-4-5",
		maxTokens: 2048,
		reqOpts:   []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	for _, opt := range opts {
		opt(c)
	}

	client := anthropic.NewClient(c.reqOpts...)
	c.client = &client

	return c, nil
}

func (c *claudeClient) ModelName() string {
	return c.model
}

func (c *claudeClient) Chat(ctx context.Context, system string, messages []anthropic.MessageParam) (*anthropic.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call claude", goerr.V("model", c.model))
	}
	return msg, nil
}
