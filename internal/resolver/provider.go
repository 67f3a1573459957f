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

// KnownPrice is one hard-coded (model, input, output) row of a provider's
// published price sheet, used when live search yields nothing.
type KnownPrice struct {
	Model  string
	Input  float64
	Output float64
}

// ProviderResolver resolves pricing for one specific provider: a live
// search-backed extraction first, then the known-price table matched by exact
// name and then substring containment. Table order is significant — the first
// containment match wins.
type ProviderResolver struct {
	slug       string
	vendor     string // vendor name used in search queries, e.g. "OpenAI"
	pricingURL string // fallback source attribution for table hits
	table      []KnownPrice
	searcher   search.Searcher
}

func (p *ProviderResolver) Slug() string { return p.slug }

func (p *ProviderResolver) Resolve(ctx context.Context, modelName, modelSlug string) (*pricing.Observation, error) {
	name := shortName(modelSlug, modelName)

	if p.searcher != nil && p.vendor != "" {
		if obs := p.searchPricing(ctx, name, modelName); obs != nil {
			return obs, nil
		}
	}

	if obs := p.knownPricing(name); obs != nil {
		slog.Info("using known provider pricing", "provider", p.slug, "model", name)
		return obs, nil
	}

	slog.Warn("provider pricing not found", "provider", p.slug, "model", name)
	return nil, nil
}

func (p *ProviderResolver) searchPricing(ctx context.Context, name, displayName string) *pricing.Observation {
	query := fmt.Sprintf("%s %s API pricing per million tokens 2025", p.vendor, displayName)
	results, err := p.searcher.Search(ctx, query, 5)
	if err != nil {
		slog.Error("provider search failed", "provider", p.slug, "model", name, "error", err)
		return nil
	}

	for _, r := range results {
		text := r.Title + " " + r.Description
		for _, pat := range pricePatterns {
			m := pat.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			input, err1 := strconv.ParseFloat(m[1], 64)
			output, err2 := strconv.ParseFloat(m[2], 64)
			if err1 != nil || err2 != nil {
				continue
			}
			sourceURL := r.URL
			if sourceURL == "" {
				sourceURL = p.pricingURL
			}
			slog.Info("extracted provider pricing from search",
				"provider", p.slug, "input", input, "output", output, "source", sourceURL)
			return &pricing.Observation{
				Prompt:     pricing.Ptr(decimal.NewFromFloat(input)),
				Completion: pricing.Ptr(decimal.NewFromFloat(output)),
				SourceURL:  sourceURL,
			}
		}
	}
	return nil
}

func (p *ProviderResolver) knownPricing(name string) *pricing.Observation {
	normalized := normalizeModelName(name)

	for _, row := range p.table {
		if row.Model == normalized {
			return p.tableObservation(row)
		}
	}
	for _, row := range p.table {
		if strings.Contains(normalized, row.Model) || strings.Contains(row.Model, normalized) {
			return p.tableObservation(row)
		}
	}
	return nil
}

func (p *ProviderResolver) tableObservation(row KnownPrice) *pricing.Observation {
	return &pricing.Observation{
		Prompt:     pricing.Ptr(decimal.NewFromFloat(row.Input)),
		Completion: pricing.Ptr(decimal.NewFromFloat(row.Output)),
		SourceURL:  p.pricingURL,
	}
}

func shortName(modelSlug, modelName string) string {
	if _, after, ok := strings.Cut(modelSlug, "/"); ok {
		return after
	}
	return strings.ToLower(modelName)
}

func normalizeModelName(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return strings.TrimSpace(s)
}
