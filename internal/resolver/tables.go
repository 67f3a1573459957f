package resolver

import "github.com/af-corp/pricewatch/internal/search"

// providerResolvers builds the resolver for every provider we track
// specifically. Providers without a vendor name or table fall straight
// through to "no result" and the baseline catalog price stands alone.
func providerResolvers(searcher search.Searcher) []Resolver {
	return []Resolver{
		&ProviderResolver{
			slug:       "openai",
			vendor:     "OpenAI",
			pricingURL: "https://platform.openai.com/docs/pricing",
			searcher:   searcher,
			// Order is load-bearing: containment matching takes the first hit.
			table: []KnownPrice{
				{Model: "gpt-4o", Input: 2.50, Output: 10.00},
				{Model: "gpt-4o-mini", Input: 0.15, Output: 0.60},
				{Model: "gpt-4-turbo", Input: 10.00, Output: 30.00},
				{Model: "gpt-4", Input: 30.00, Output: 60.00},
				{Model: "gpt-3.5-turbo", Input: 0.50, Output: 1.50},
				{Model: "o1", Input: 15.00, Output: 60.00},
				{Model: "o1-mini", Input: 3.00, Output: 12.00},
				{Model: "o1-pro", Input: 150.00, Output: 600.00},
			},
		},
		&ProviderResolver{
			slug:       "anthropic",
			vendor:     "Anthropic",
			pricingURL: "https://www.anthropic.com/pricing",
			searcher:   searcher,
			table: []KnownPrice{
				{Model: "claude-4.1-sonnet", Input: 5.00, Output: 25.00},
				{Model: "claude-4-sonnet", Input: 3.00, Output: 15.00},
				{Model: "claude-4.5-sonnet", Input: 3.00, Output: 15.00},
				{Model: "claude-sonnet-4.5", Input: 3.00, Output: 15.00},
				{Model: "claude-3.5-sonnet", Input: 3.00, Output: 15.00},
				{Model: "claude-3-opus", Input: 15.00, Output: 75.00},
				{Model: "claude-4-opus", Input: 15.00, Output: 75.00},
				{Model: "claude-4.1-opus", Input: 15.00, Output: 75.00},
				{Model: "claude-3-sonnet", Input: 3.00, Output: 15.00},
				{Model: "claude-3-haiku", Input: 0.25, Output: 1.25},
				{Model: "claude-3.5-haiku", Input: 0.80, Output: 4.00},
			},
		},
		&ProviderResolver{slug: "google", pricingURL: "https://ai.google.dev/pricing", searcher: searcher},
		&ProviderResolver{slug: "cohere", pricingURL: "https://cohere.com/pricing", searcher: searcher},
		&ProviderResolver{slug: "mistral", pricingURL: "https://mistral.ai/technology/#pricing", searcher: searcher},
		&ProviderResolver{slug: "deepseek", pricingURL: "https://chat.deepseek.com/pricing", searcher: searcher},
		&ProviderResolver{slug: "groq", pricingURL: "https://groq.com/pricing/", searcher: searcher},
		&ProviderResolver{slug: "together", pricingURL: "https://www.together.ai/pricing", searcher: searcher},
		&ProviderResolver{slug: "fireworks", pricingURL: "https://fireworks.ai/pricing", searcher: searcher},
		&ProviderResolver{slug: "deepinfra", pricingURL: "https://deepinfra.com/pricing", searcher: searcher},
	}
}
