package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/af-corp/pricewatch/internal/pricing"
	"github.com/af-corp/pricewatch/internal/search"
)

// trustedHosts is the allow-list of domains whose snippets may contribute
// pricing. Anything else is ignored regardless of how well it matches.
var trustedHosts = []string{
	"openai.com",
	"anthropic.com",
	"cohere.com",
	"ai.google.dev",
	"docs.mistral.ai",
	"mistral.ai",
	"groq.com",
	"together.ai",
	"fireworks.ai",
	"deepinfra.com",
	"replicate.com",
	"perplexity.ai",
	"openrouter.ai",
	"huggingface.co",
	"meta.com",
	"deepseek.com",
	"google.com",
	"microsoft.com",
	"azure.microsoft.com",
	"aws.amazon.com",
	"cloudzero.com",
	"metacto.com",
	"finout.io",
}

// extraction is one (input, output) pair pulled from a snippet.
type extraction struct {
	input     float64
	output    float64
	sourceURL string
}

// GenericResolver finds pricing through web search when no provider-specific
// resolver exists. It issues up to two queries, scans trusted-host snippets
// with the ordered price patterns, and reports the highest input and output
// found across all plausible extractions — the conservative worst case.
type GenericResolver struct {
	searcher search.Searcher
}

func NewGenericResolver(searcher search.Searcher) *GenericResolver {
	return &GenericResolver{searcher: searcher}
}

func (g *GenericResolver) Slug() string { return "_generic" }

func (g *GenericResolver) Resolve(ctx context.Context, modelName, modelSlug string) (*pricing.Observation, error) {
	if g.searcher == nil {
		return nil, nil
	}

	provider, shortModel := splitSlug(modelSlug, modelName)

	queries := []string{
		fmt.Sprintf("%s API pricing per million tokens 2025", modelName),
		fmt.Sprintf("%s pricing per million tokens", modelSlug),
	}
	if provider != "" {
		queries = append([]string{fmt.Sprintf("%s %s API pricing 2025", provider, shortModel)}, queries...)
	}

	var all []extraction
	for _, query := range queries[:2] {
		results, err := g.searcher.Search(ctx, query, 5)
		if err != nil {
			// Search failures degrade to "no result for this query"
			slog.Error("generic search failed", "query", query, "error", err)
			continue
		}
		all = append(all, extractAll(results)...)
		if len(all) >= 3 {
			break
		}
	}

	if len(all) == 0 {
		slog.Warn("no pricing found via web search", "model", modelName)
		return nil, nil
	}

	options := make([]pricing.Observation, len(all))
	best := all[0]
	for i, e := range all {
		options[i] = pricing.Observation{
			Prompt:     pricing.Ptr(decimal.NewFromFloat(e.input)),
			Completion: pricing.Ptr(decimal.NewFromFloat(e.output)),
		}
		if e.input+e.output > best.input+best.output {
			best = e
		}
	}
	merged := pricing.MergeMax(options)
	merged.SourceURL = best.sourceURL

	slog.Info("generic pricing found",
		"model", modelName, "max_input", merged.Prompt, "max_output", merged.Completion,
		"source", best.sourceURL, "total_found", len(all))

	return &merged, nil
}

// extractAll scans trusted results with every price pattern and keeps the
// plausible pairs: both sides in [0.01, 1000] and output at least half the
// input (output below that is almost always a mismatched pair).
func extractAll(results []search.Result) []extraction {
	var out []extraction
	for _, r := range results {
		if !isTrusted(r.URL) {
			continue
		}
		text := r.Title + " " + r.Description
		for _, pat := range pricePatterns {
			for _, m := range pat.FindAllStringSubmatch(text, -1) {
				input, err1 := strconv.ParseFloat(m[1], 64)
				output, err2 := strconv.ParseFloat(m[2], 64)
				if err1 != nil || err2 != nil {
					continue
				}
				if input < 0.01 || input > 1000 || output < 0.01 || output > 1000 {
					continue
				}
				if output < input*0.5 {
					continue
				}
				out = append(out, extraction{input: input, output: output, sourceURL: r.URL})
			}
		}
	}
	return out
}

func isTrusted(url string) bool {
	lower := strings.ToLower(url)
	for _, host := range trustedHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

func splitSlug(modelSlug, modelName string) (provider, shortModel string) {
	if before, after, ok := strings.Cut(modelSlug, "/"); ok {
		return before, after
	}
	return "", modelName
}
