package pricing

import "github.com/shopspring/decimal"

// Observation is a pricing record normalized to USD per million units.
// Token-denominated dimensions (Prompt, Completion, InternalReasoning,
// InputCacheRead, InputCacheWrite, Batch) are per 1M tokens; Request, Image
// and WebSearch are absolute per-call amounts. A nil field means the source
// did not publish that dimension or marked it unavailable — never zero, which
// is a real "free" price.
type Observation struct {
	Prompt            *decimal.Decimal
	Completion        *decimal.Decimal
	InternalReasoning *decimal.Decimal
	InputCacheRead    *decimal.Decimal
	InputCacheWrite   *decimal.Decimal
	Request           *decimal.Decimal
	Image             *decimal.Decimal
	WebSearch         *decimal.Decimal
	Batch             *decimal.Decimal

	SourceURL string
	Notes     string
}

// Empty reports whether no dimension is set at all.
func (o Observation) Empty() bool {
	for _, d := range o.dimensions() {
		if d != nil {
			return false
		}
	}
	return true
}

func (o Observation) dimensions() []*decimal.Decimal {
	return []*decimal.Decimal{
		o.Prompt, o.Completion, o.InternalReasoning,
		o.InputCacheRead, o.InputCacheWrite,
		o.Request, o.Image, o.WebSearch, o.Batch,
	}
}

// HasPaidDimension reports whether at least one billable dimension is
// strictly positive. A record with only zero or absent dimensions is a free
// model. Batch pricing is a discount channel, not a billable dimension, and
// does not count.
func (o Observation) HasPaidDimension() bool {
	paid := []*decimal.Decimal{
		o.Prompt, o.Completion, o.Request, o.Image, o.WebSearch,
		o.InternalReasoning, o.InputCacheRead, o.InputCacheWrite,
	}
	for _, d := range paid {
		if d != nil && d.IsPositive() {
			return true
		}
	}
	return false
}

// Ptr returns a pointer to d. Convenience for building observations.
func Ptr(d decimal.Decimal) *decimal.Decimal { return &d }
