package pricing

import "github.com/shopspring/decimal"

// MergeMax combines several observations of the same logical price into one
// by taking, independently per dimension, the maximum of the non-nil values.
// When sources disagree we report the worst case a caller might be billed.
// A dimension absent from every input stays absent.
func MergeMax(options []Observation) Observation {
	var out Observation
	for _, opt := range options {
		out.Prompt = maxDim(out.Prompt, opt.Prompt)
		out.Completion = maxDim(out.Completion, opt.Completion)
		out.InternalReasoning = maxDim(out.InternalReasoning, opt.InternalReasoning)
		out.InputCacheRead = maxDim(out.InputCacheRead, opt.InputCacheRead)
		out.InputCacheWrite = maxDim(out.InputCacheWrite, opt.InputCacheWrite)
		out.Request = maxDim(out.Request, opt.Request)
		out.Image = maxDim(out.Image, opt.Image)
		out.WebSearch = maxDim(out.WebSearch, opt.WebSearch)
		out.Batch = maxDim(out.Batch, opt.Batch)
	}
	return out
}

func maxDim(a, b *decimal.Decimal) *decimal.Decimal {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.GreaterThan(*a) {
		return b
	}
	return a
}
