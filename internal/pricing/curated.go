package pricing

import "github.com/shopspring/decimal"

// curatedOverrides holds hand-verified published pricing for models whose
// catalog numbers are wrong or missing. Applied after normalization.
var curatedOverrides = map[string]Observation{
	"openai/text-embedding-3-large": {
		Prompt: Ptr(decimal.RequireFromString("0.13")),
		Batch:  Ptr(decimal.RequireFromString("0.065")),
		Notes:  "OpenAI published pricing",
	},
}

// ApplyCuratedOverride replaces the token dimensions of the observation for
// slugs with curated pricing. Prompt, Completion, Batch and Notes come from
// the curated entry (including unset ones); per-call dimensions are kept.
func ApplyCuratedOverride(slug string, obs Observation) Observation {
	override, ok := curatedOverrides[slug]
	if !ok {
		return obs
	}
	obs.Prompt = override.Prompt
	obs.Completion = override.Completion
	obs.Batch = override.Batch
	obs.Notes = override.Notes
	return obs
}
