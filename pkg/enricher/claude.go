package enricher

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/gleaner/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
)

const claudeJSONSystem = "You are a market analyst. Respond only with valid JSON, no additional text."

type claudeGenerator struct {
	client adapter.Claude
}

// NewClaude returns a Generator using Claude. Claude has no schema-constrained decoding here,
// so the schema is enforced by the prompt and by the parser.
func NewClaude(client adapter.Claude) Generator {
	return &claudeGenerator{client: client}
}

func (c *claudeGenerator) ModelName() string {
	return c.client.ModelName()
}

func (c *claudeGenerator) Generate(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error) {
	system := ""
	if schema != nil {
		system = claudeJSONSystem
	}

	msg, err := c.client.Chat(ctx, system, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to chat with claude")
	}
	if msg == nil {
		return "", goerr.Wrap(ErrEmptyResponse, "no message from claude")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return text.String(), nil
}
