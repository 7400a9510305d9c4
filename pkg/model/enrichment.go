package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidSentiment   = goerr.New("invalid sentiment")
	ErrInvalidCredibility = goerr.New("invalid credibility")
)

type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Validate checks if the sentiment is valid
func (s Sentiment) Validate() error {
	switch s {
	case SentimentBullish, SentimentBearish, SentimentNeutral:
		return nil
	default:
		return goerr.Wrap(ErrInvalidSentiment, "unknown sentiment", goerr.V("sentiment", s))
	}
}

type Credibility string

const (
	CredibilityHigh   Credibility = "high"
	CredibilityMedium Credibility = "medium"
	CredibilityLow    Credibility = "low"
)

// Validate checks if the credibility tier is valid
func (c Credibility) Validate() error {
	switch c {
	case CredibilityHigh, CredibilityMedium, CredibilityLow:
		return nil
	default:
		return goerr.Wrap(ErrInvalidCredibility, "unknown credibility", goerr.V("credibility", c))
	}
}

const (
	MinRelevance = 1
	MaxRelevance = 10
)

// Enrichment is the structured payload produced by the analysis service for one item.
// Degraded enrichments carry placeholder values and, when available, the raw service output.
type Enrichment struct {
	Analysis       string      `json:"analysis"`
	Sentiment      Sentiment   `json:"sentiment"`
	Credibility    Credibility `json:"credibility"`
	KeyPoints      []string    `json:"key_points"`
	Relevance      int         `json:"relevance"`
	MarketContext  string      `json:"market_context"`
	RiskAssessment string      `json:"risk_assessment"`

	Model      string    `json:"model,omitempty"`
	EnrichedAt time.Time `json:"enriched_at"`

	Degraded bool   `json:"degraded"`
	Note     string `json:"note,omitempty"`
	Raw      string `json:"raw,omitempty"`
}

// NewDegradedEnrichment builds the placeholder enrichment used when the analysis call fails
// or its output cannot be parsed. raw may be empty.
func NewDegradedEnrichment(note, raw string) *Enrichment {
	return &Enrichment{
		Analysis:       "Analysis unavailable",
		Sentiment:      SentimentNeutral,
		Credibility:    CredibilityLow,
		KeyPoints:      []string{"Analysis failed"},
		Relevance:      MinRelevance,
		MarketContext:  "Analysis unavailable",
		RiskAssessment: "Unknown: enrichment did not complete",
		Degraded:       true,
		Note:           note,
		Raw:            raw,
	}
}

// EnrichmentRecord is the cached enrichment of one item. At most one exists per ItemID.
type EnrichmentRecord struct {
	ItemID     ItemID      `json:"item_id"`
	Item       *Item       `json:"item"`
	Enrichment *Enrichment `json:"enrichment"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Degraded reports whether the record holds a placeholder enrichment
func (x *EnrichmentRecord) Degraded() bool {
	return x != nil && x.Enrichment != nil && x.Enrichment.Degraded
}
