package model

import (
	"time"

	"github.com/google/uuid"
)

type AnalysisID string

// NewAnalysisID generates a new time-ordered AnalysisID
func NewAnalysisID() AnalysisID {
	return AnalysisID("analysis_" + uuid.Must(uuid.NewV7()).String())
}

func (id AnalysisID) String() string { return string(id) }

const DefaultPromptType = "general"

// AnalysisRecord is the append-only result of a free-form analysis over a bounded item list
type AnalysisRecord struct {
	ID          AnalysisID `json:"id"`
	Instruction string     `json:"instruction"`
	PromptType  string     `json:"prompt_type"`
	Result      string     `json:"result"`
	ItemCount   int        `json:"item_count"`
	Items       []ItemRef  `json:"items"`
	Model       string     `json:"model,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
