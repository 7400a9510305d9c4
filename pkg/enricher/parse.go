package enricher

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// extractJSON strips markdown code fences and surrounding prose, returning the outermost object
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", goerr.New("no json object in response")
	}
	return text[start : end+1], nil
}

// normalize fixes the common deviations of LLM output in place: the legacy trading_relevance
// key, relevance given as a string and upper-case enum values.
func normalize(obj map[string]any) {
	if _, ok := obj["relevance"]; !ok {
		if v, ok := obj["trading_relevance"]; ok {
			obj["relevance"] = v
		}
	}
	delete(obj, "trading_relevance")

	if s, ok := obj["relevance"].(string); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			obj["relevance"] = float64(n)
		}
	}

	for _, key := range []string{"sentiment", "credibility"} {
		if s, ok := obj[key].(string); ok {
			obj[key] = strings.ToLower(strings.TrimSpace(s))
		}
	}
}

func parseEnrichment(text string) (*model.Enrichment, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal enrichment json")
	}
	normalize(obj)

	if err := resolvedEnrichmentSchema.Validate(obj); err != nil {
		return nil, goerr.Wrap(err, "enrichment does not match schema")
	}

	normalized, err := json.Marshal(obj)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal normalized enrichment")
	}

	var enrichment model.Enrichment
	if err := json.Unmarshal(normalized, &enrichment); err != nil {
		return nil, goerr.Wrap(err, "failed to decode enrichment")
	}
	enrichment.Degraded = false
	enrichment.Note = ""
	enrichment.Raw = ""

	return &enrichment, nil
}
