package validate

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/af-corp/pricewatch/internal/catalog"
	"github.com/af-corp/pricewatch/internal/pricing"
	"github.com/af-corp/pricewatch/internal/store"
)

// SnapshotSource looks up the most recent stored snapshot for a key.
type SnapshotSource interface {
	LatestPricing(ctx context.Context, modelID uuid.UUID, providerID *uuid.UUID, sourceKind string) (*store.Snapshot, error)
}

// Validator sanity-checks candidate prices and flags anomalous changes
// against the most recent stored snapshot.
type Validator struct {
	snapshots        SnapshotSource
	maxChangePercent decimal.Decimal
	minPrice         decimal.Decimal
	maxPrice         decimal.Decimal
}

func NewValidator(snapshots SnapshotSource, maxChangePercent float64) *Validator {
	return &Validator{
		snapshots:        snapshots,
		maxChangePercent: decimal.NewFromFloat(maxChangePercent),
		minPrice:         decimal.Zero,
		maxPrice:         decimal.NewFromInt(1000),
	}
}

// WithBounds overrides the reasonable-price window (per 1M tokens).
func (v *Validator) WithBounds(min, max decimal.Decimal) *Validator {
	v.minPrice = min
	v.maxPrice = max
	return v
}

// ValidatePricing bounds-checks prompt and completion prices. Warnings make
// the observation invalid (it is logged and discarded, the run continues).
// A completion price below the prompt price is unusual but valid; it is only
// noted, and not even that for image-priced models where near-zero
// completion is the convention.
func (v *Validator) ValidatePricing(prompt, completion *decimal.Decimal, modelSlug string, hasImagePricing bool) (bool, []string) {
	var warnings []string

	check := func(name string, p *decimal.Decimal) {
		if p == nil {
			return
		}
		if p.LessThan(v.minPrice) || p.GreaterThan(v.maxPrice) {
			warnings = append(warnings, fmt.Sprintf(
				"%s price %s outside reasonable range [%s, %s]", name, p, v.minPrice, v.maxPrice))
		}
	}
	check("prompt", prompt)
	check("completion", completion)

	if prompt != nil && completion != nil && completion.LessThan(*prompt) && !hasImagePricing {
		slog.Debug("completion price below prompt price",
			"model", modelSlug, "prompt", prompt, "completion", completion)
	}

	if len(warnings) > 0 {
		slog.Warn("pricing validation warnings",
			"model", modelSlug, "prompt", prompt, "completion", completion, "warnings", warnings)
		return false, warnings
	}
	return true, nil
}

// ChangeReport describes the comparison against the prior snapshot.
type ChangeReport struct {
	Reason              string
	PromptChangePct     *decimal.Decimal
	CompletionChangePct *decimal.Decimal
	PromptAlert         bool
	CompletionAlert     bool
}

// CheckPriceChange compares new prices against the latest stored snapshot
// for the same (model, provider) key and flags changes beyond the threshold.
// No prior snapshot means no alert; a zero prior price makes the percentage
// undefined and is skipped for that dimension.
func (v *Validator) CheckPriceChange(ctx context.Context, modelID uuid.UUID, providerID *uuid.UUID, sourceKind string, newPrompt, newCompletion *decimal.Decimal) (bool, ChangeReport, error) {
	latest, err := v.snapshots.LatestPricing(ctx, modelID, providerID, sourceKind)
	if err != nil {
		return false, ChangeReport{}, fmt.Errorf("load latest snapshot: %w", err)
	}
	if latest == nil {
		return false, ChangeReport{Reason: "no baseline"}, nil
	}

	var report ChangeReport
	alert := false

	if latest.Prompt != nil && newPrompt != nil {
		if pct, ok := pricing.ChangePercent(*latest.Prompt, *newPrompt); ok {
			report.PromptChangePct = &pct
			if pct.Abs().GreaterThan(v.maxChangePercent) {
				report.PromptAlert = true
				alert = true
			}
		}
	}
	if latest.Completion != nil && newCompletion != nil {
		if pct, ok := pricing.ChangePercent(*latest.Completion, *newCompletion); ok {
			report.CompletionChangePct = &pct
			if pct.Abs().GreaterThan(v.maxChangePercent) {
				report.CompletionAlert = true
				alert = true
			}
		}
	}

	if alert {
		slog.Warn("significant price change detected",
			"model_id", modelID, "provider_id", providerID,
			"old_prompt", latest.Prompt, "new_prompt", newPrompt,
			"old_completion", latest.Completion, "new_completion", newCompletion)
	}
	return alert, report, nil
}

// ValidateVerification cross-checks a usage report from a BYOK spot-check.
// The first million requests each month are expected free; beyond that the
// aggregate cost should track ~5% of the upstream-billed cost.
func ValidateVerification(usage catalog.UsageReport, isBYOK bool, monthlyRequests int) (bool, []string) {
	var warnings []string

	if isBYOK {
		if monthlyRequests < 1_000_000 {
			if usage.Cost != 0 {
				warnings = append(warnings, fmt.Sprintf(
					"expected free request #%d, but cost=%v", monthlyRequests, usage.Cost))
			}
		} else {
			expected := usage.CostDetails.UpstreamInferenceCost * 0.05
			if math.Abs(usage.Cost-expected) > 0.01 {
				warnings = append(warnings, fmt.Sprintf(
					"cost mismatch: expected ~%.4f (5%% of %v), got %v",
					expected, usage.CostDetails.UpstreamInferenceCost, usage.Cost))
			}
		}
	}

	if len(warnings) > 0 {
		slog.Warn("verification warnings", "warnings", warnings)
		return false, warnings
	}
	return true, nil
}
