package pricing

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

var (
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1_000)
)

// ToDecimal safely parses a raw numeric string. Malformed input is reported
// as unknown with a diagnostic; it never propagates an error to the caller.
func ToDecimal(raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		slog.Warn("decimal conversion failed", "value", raw, "error", err)
		return nil
	}
	return &d
}

// PerTokenToPerMillion converts a per-token price to USD per 1M tokens.
// Negative values are a sentinel for dynamic or unavailable pricing and
// normalize to unknown. Zero is a real "free" price and is preserved.
func PerTokenToPerMillion(raw string) *decimal.Decimal {
	d := ToDecimal(raw)
	if d == nil {
		return nil
	}
	if d.IsNegative() {
		slog.Debug("sentinel pricing value", "value", raw)
		return nil
	}
	return Ptr(d.Mul(million))
}

// Per1KToPerMillion converts a per-1K-tokens price to USD per 1M tokens.
// The same negative-sentinel rule as PerTokenToPerMillion applies.
func Per1KToPerMillion(raw string) *decimal.Decimal {
	d := ToDecimal(raw)
	if d == nil {
		return nil
	}
	if d.IsNegative() {
		slog.Debug("sentinel pricing value", "value", raw)
		return nil
	}
	return Ptr(d.Mul(thousand))
}

// PerMillionPassthrough parses a value already denominated per 1M tokens.
func PerMillionPassthrough(raw string) *decimal.Decimal {
	d := ToDecimal(raw)
	if d == nil {
		return nil
	}
	if d.IsNegative() {
		slog.Debug("sentinel pricing value", "value", raw)
		return nil
	}
	return d
}

// CatalogPricing is the raw pricing blob from the upstream catalog API.
// All token fields are USD per token; request/image/web_search are absolute.
type CatalogPricing struct {
	Prompt            string `json:"prompt"`
	Completion        string `json:"completion"`
	InternalReasoning string `json:"internal_reasoning"`
	InputCacheRead    string `json:"input_cache_read"`
	InputCacheWrite   string `json:"input_cache_write"`
	Request           string `json:"request"`
	Image             string `json:"image"`
	WebSearch         string `json:"web_search"`
}

// NormalizeCatalogPricing converts a catalog pricing blob to per-1M USD.
// Per-call dimensions pass through unscaled.
func NormalizeCatalogPricing(raw CatalogPricing) Observation {
	return Observation{
		Prompt:            PerTokenToPerMillion(raw.Prompt),
		Completion:        PerTokenToPerMillion(raw.Completion),
		InternalReasoning: PerTokenToPerMillion(raw.InternalReasoning),
		InputCacheRead:    PerTokenToPerMillion(raw.InputCacheRead),
		InputCacheWrite:   PerTokenToPerMillion(raw.InputCacheWrite),
		Request:           ToDecimal(raw.Request),
		Image:             ToDecimal(raw.Image),
		WebSearch:         ToDecimal(raw.WebSearch),
	}
}

// ChangePercent returns (new-old)/old*100. The second return is false when
// the change is undefined (zero baseline).
func ChangePercent(old, new decimal.Decimal) (decimal.Decimal, bool) {
	if old.IsZero() {
		return decimal.Zero, false
	}
	return new.Sub(old).Div(old).Mul(decimal.NewFromInt(100)), true
}
