package backend

import "github.com/shopspring/decimal"

// Capabilities are the feature flags the downstream catalog exposes per model.
type Capabilities struct {
	SupportsTools     bool `json:"supports_tools"`
	SupportsVision    bool `json:"supports_vision"`
	SupportsReasoning bool `json:"supports_reasoning"`
	SupportsWebSearch bool `json:"supports_web_search"`
	SupportsAudio     bool `json:"supports_audio"`
	SupportsVideo     bool `json:"supports_video"`
	SupportsThinking  bool `json:"supports_thinking,omitempty"`
}

// Metadata is the free-form block attached to a downstream record.
type Metadata struct {
	Tier          Tier     `json:"tier"`
	Series        string   `json:"series,omitempty"`
	Provider      string   `json:"provider"`
	HuggingFaceID string   `json:"hugging_face_id,omitempty"`
	Source        string   `json:"source"`
	Description   string   `json:"description,omitempty"`
	BatchUSD      *float64 `json:"batch_usd_per_million,omitempty"`
}

// Record is one staged model ready to publish to the downstream catalog.
// It lives for a single collection run and is discarded after finalize.
type Record struct {
	Slug            string
	DisplayName     string
	Provider        string
	Category        string
	ContextWindow   *int
	MaxOutputTokens *int

	CostPerMillionInput  *decimal.Decimal
	CostPerMillionOutput *decimal.Decimal

	IsActive        bool
	IsDefault       bool
	IsThinkingModel bool
	SortOrder       int
	SortCost        decimal.Decimal

	Capabilities Capabilities
	Metadata     Metadata
}
