package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Source kinds for pricing snapshots.
const (
	SourceBaselineCatalog = "baseline_catalog"
	SourceProviderSite    = "provider_site"
	SourceWebFallback     = "web_fallback"
)

// ProviderRow is a provider record in the primary store.
type ProviderRow struct {
	ID          uuid.UUID
	Slug        string
	DisplayName string
	HomepageURL *string
	PricingURL  *string
}

// ModelRow is a model record in the primary store. Architecture and
// SupportedParameters are stored as JSONB and updated on every discovery
// pass; the slug is the immutable identity.
type ModelRow struct {
	ID                  uuid.UUID
	Slug                string
	CanonicalSlug       *string
	DisplayName         *string
	ContextLength       *int
	Architecture        []byte
	SupportedParameters []byte
}

// ModelProviderLink joins a model to a provider it is served by.
type ModelProviderLink struct {
	ModelID       uuid.UUID
	ProviderID    uuid.UUID
	ProviderSlug  string
	IsTopProvider bool
	Metadata      []byte
}

// Snapshot is one dated, source-attributed pricing record. A nil ProviderID
// marks aggregate baseline pricing not attributed to a specific upstream.
type Snapshot struct {
	ModelID    uuid.UUID
	ProviderID *uuid.UUID
	Date       time.Time
	SourceKind string
	SourceURL  *string

	Prompt            *decimal.Decimal
	Completion        *decimal.Decimal
	Request           *decimal.Decimal
	Image             *decimal.Decimal
	WebSearch         *decimal.Decimal
	InternalReasoning *decimal.Decimal
	InputCacheRead    *decimal.Decimal
	InputCacheWrite   *decimal.Decimal
	Batch             *decimal.Decimal

	Currency string
	Notes    *string
}

// Verification is one stored usage spot-check.
type Verification struct {
	ModelID          uuid.UUID
	ProviderID       *uuid.UUID
	PromptTokens     int
	CompletionTokens int
	AggregateCostUSD float64
	UpstreamCostUSD  float64
	OK               bool
	RawUsage         []byte
}
