package enricher

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

func ptr[T any](v T) *T { return &v }

// enrichmentSchema describes the JSON object the analysis service must return
func enrichmentSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"analysis": {
				Type:        "string",
				Description: "Analysis of the content, its context and implications (2-3 sentences)",
			},
			"sentiment": {
				Type:        "string",
				Description: "Market sentiment of the post",
				Enum: []any{
					string(model.SentimentBullish),
					string(model.SentimentBearish),
					string(model.SentimentNeutral),
				},
			},
			"credibility": {
				Type:        "string",
				Description: "Credibility of the source and content",
				Enum: []any{
					string(model.CredibilityHigh),
					string(model.CredibilityMedium),
					string(model.CredibilityLow),
				},
			},
			"key_points": {
				Type:        "array",
				Description: "Key actionable points",
				Items:       &jsonschema.Schema{Type: "string"},
			},
			"relevance": {
				Type:        "integer",
				Description: "Relevance to trading decisions from 1 to 10",
				Minimum:     ptr(float64(model.MinRelevance)),
				Maximum:     ptr(float64(model.MaxRelevance)),
			},
			"market_context": {
				Type:        "string",
				Description: "Market conditions related to the post",
			},
			"risk_assessment": {
				Type:        "string",
				Description: "Risks or considerations for traders",
			},
		},
		Required: []string{
			"analysis",
			"sentiment",
			"credibility",
			"key_points",
			"relevance",
			"market_context",
			"risk_assessment",
		},
	}
}

var resolvedEnrichmentSchema = func() *jsonschema.Resolved {
	resolved, err := enrichmentSchema().Resolve(nil)
	if err != nil {
		panic("invalid enrichment schema: " + err.Error())
	}
	return resolved
}()

// convertJSONSchemaToGenai converts JSON Schema to Gemini genai.Schema
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	genaiSchema := &genai.Schema{
		Description: schema.Description,
		Required:    schema.Required,
		Minimum:     schema.Minimum,
		Maximum:     schema.Maximum,
	}

	switch schema.Type {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	default:
		if schema.Type != "" {
			return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
		}
	}

	if len(schema.Enum) > 0 {
		genaiSchema.Enum = make([]string, 0, len(schema.Enum))
		for _, v := range schema.Enum {
			if s, ok := v.(string); ok {
				genaiSchema.Enum = append(genaiSchema.Enum, s)
			}
		}
	}

	if len(schema.Properties) > 0 {
		genaiSchema.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, propSchema := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema",
					goerr.V("property", name))
			}
			genaiSchema.Properties[name] = converted
		}
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		genaiSchema.Items = converted
	}

	return genaiSchema, nil
}
