package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/af-corp/pricewatch/internal/catalog"
	"github.com/af-corp/pricewatch/internal/store"
)

// CatalogAPI is the slice of the upstream catalog client discovery needs.
type CatalogAPI interface {
	ListModels(ctx context.Context, f catalog.Filters) ([]catalog.Model, error)
	ListProviders(ctx context.Context) ([]catalog.Provider, error)
	ModelPageHTML(ctx context.Context, slug string) (string, error)
}

// Repository is the slice of the primary store discovery writes through.
type Repository interface {
	UpsertProvider(ctx context.Context, p store.ProviderRow) (store.ProviderRow, error)
	ProviderBySlug(ctx context.Context, slug string) (*store.ProviderRow, error)
	UpsertModel(ctx context.Context, m store.ModelRow) (store.ModelRow, error)
	ModelBySlug(ctx context.Context, slug string) (*store.ModelRow, error)
	AllModelSlugs(ctx context.Context) ([]string, error)
	LinkModelProvider(ctx context.Context, link store.ModelProviderLink) error
}

// Discovery keeps the primary store's provider and model tables in step with
// the upstream catalog.
type Discovery struct {
	api     CatalogAPI
	repo    Repository
	filters catalog.Filters
}

func New(api CatalogAPI, repo Repository, filters catalog.Filters) *Discovery {
	return &Discovery{api: api, repo: repo, filters: filters}
}

// DiscoverProviders syncs the upstream provider listing into the primary
// store. Individual provider failures are logged and skipped; the pass keeps
// going. Returns the number of providers upserted.
func (d *Discovery) DiscoverProviders(ctx context.Context) (int, error) {
	providers, err := d.api.ListProviders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list providers: %w", err)
	}

	upserted := 0
	for _, p := range providers {
		if p.Slug == "" {
			slog.Warn("provider without slug skipped", "name", p.Name)
			continue
		}
		name := p.Name
		if name == "" {
			name = p.Slug
		}

		homepage := deriveHomepageURL(p)
		row := store.ProviderRow{
			Slug:        p.Slug,
			DisplayName: name,
			HomepageURL: homepage,
			PricingURL:  derivePricingURL(p.Slug, homepage),
		}
		if _, err := d.repo.UpsertProvider(ctx, row); err != nil {
			slog.Error("provider upsert failed", "provider", p.Slug, "error", err)
			continue
		}
		upserted++
	}

	slog.Info("providers synced", "upserted", upserted)
	return upserted, nil
}

// DiscoverModels fetches the filtered model listing and reports which slugs
// the store has never seen.
func (d *Discovery) DiscoverModels(ctx context.Context) ([]catalog.Model, []string, error) {
	models, err := d.api.ListModels(ctx, d.filters)
	if err != nil {
		return nil, nil, fmt.Errorf("list models: %w", err)
	}

	known, err := d.repo.AllModelSlugs(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load known model slugs: %w", err)
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, s := range known {
		knownSet[s] = struct{}{}
	}

	var newSlugs []string
	for _, m := range models {
		if _, ok := knownSet[m.Slug]; !ok && m.Slug != "" {
			newSlugs = append(newSlugs, m.Slug)
		}
	}

	slog.Info("models discovered",
		"total", len(models), "existing", len(known), "new", len(newSlugs))
	return models, newSlugs, nil
}

// SyncModels upserts every model into the catalog table and links it to the
// provider its slug names. Per-model failures are logged and skipped.
func (d *Discovery) SyncModels(ctx context.Context, models []catalog.Model) (int, error) {
	upserted, linked := 0, 0

	for _, m := range models {
		row, err := modelRow(m)
		if err != nil {
			slog.Error("model row encoding failed", "model", m.Slug, "error", err)
			continue
		}
		stored, err := d.repo.UpsertModel(ctx, row)
		if err != nil {
			slog.Error("model upsert failed", "model", m.Slug, "error", err)
			continue
		}
		upserted++

		providerSlug, _, ok := strings.Cut(m.Slug, "/")
		if !ok {
			continue
		}
		provider, err := d.repo.ProviderBySlug(ctx, providerSlug)
		if err != nil {
			slog.Error("provider lookup failed", "provider", providerSlug, "error", err)
			continue
		}
		if provider == nil {
			slog.Debug("provider not found for model",
				"model", m.Slug, "provider", providerSlug)
			continue
		}

		meta, err := json.Marshal(m.TopProvider)
		if err != nil {
			meta = []byte(`{}`)
		}
		link := store.ModelProviderLink{
			ModelID:       stored.ID,
			ProviderID:    provider.ID,
			IsTopProvider: true,
			Metadata:      meta,
		}
		if err := d.repo.LinkModelProvider(ctx, link); err != nil {
			slog.Error("model-provider link failed",
				"model", m.Slug, "provider", providerSlug, "error", err)
			continue
		}
		linked++
	}

	slog.Info("models synced", "upserted", upserted, "linked", linked)
	return upserted, nil
}

// LinkProviders links a model to the named provider slugs, creating minimal
// provider rows where none exist yet. Returns the number of links written.
func (d *Discovery) LinkProviders(ctx context.Context, modelSlug string, providerSlugs []string) (int, error) {
	model, err := d.repo.ModelBySlug(ctx, modelSlug)
	if err != nil {
		return 0, fmt.Errorf("lookup model %s: %w", modelSlug, err)
	}
	if model == nil {
		slog.Warn("model not found for provider linking", "model", modelSlug)
		return 0, nil
	}

	linked := 0
	for _, slug := range providerSlugs {
		provider, err := d.repo.ProviderBySlug(ctx, slug)
		if err != nil {
			slog.Error("provider lookup failed", "provider", slug, "error", err)
			continue
		}
		if provider == nil {
			row, err := d.repo.UpsertProvider(ctx, store.ProviderRow{
				Slug:        slug,
				DisplayName: titleCase(slug),
			})
			if err != nil {
				slog.Error("provider create failed", "provider", slug, "error", err)
				continue
			}
			provider = &row
		}

		err = d.repo.LinkModelProvider(ctx, store.ModelProviderLink{
			ModelID:    model.ID,
			ProviderID: provider.ID,
		})
		if err != nil {
			slog.Error("model-provider link failed",
				"model", modelSlug, "provider", slug, "error", err)
			continue
		}
		linked++
	}
	return linked, nil
}

func modelRow(m catalog.Model) (store.ModelRow, error) {
	arch, err := json.Marshal(m.Architecture)
	if err != nil {
		return store.ModelRow{}, fmt.Errorf("marshal architecture: %w", err)
	}
	params, err := json.Marshal(m.SupportedParameters)
	if err != nil {
		return store.ModelRow{}, fmt.Errorf("marshal supported parameters: %w", err)
	}

	row := store.ModelRow{
		Slug:                m.Slug,
		Architecture:        arch,
		SupportedParameters: params,
	}
	if m.CanonicalSlug != "" {
		row.CanonicalSlug = &m.CanonicalSlug
	}
	if m.Name != "" {
		row.DisplayName = &m.Name
	}
	if m.ContextLength > 0 {
		cl := m.ContextLength
		row.ContextLength = &cl
	}
	return row, nil
}

// deriveHomepageURL extracts scheme://host from the first policy URL the
// provider publishes. Providers rarely publish a homepage directly.
func deriveHomepageURL(p catalog.Provider) *string {
	for _, raw := range []string{p.PrivacyPolicyURL, p.TermsOfServiceURL, p.StatusPageURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		homepage := u.Scheme + "://" + u.Host
		return &homepage
	}
	return nil
}

// Known pricing-page locations keyed by provider slug. Providers without an
// entry fall back to homepage + /pricing, which most use.
var pricingPages = map[string]string{
	"openai":     "https://openai.com/api/pricing/",
	"anthropic":  "https://www.anthropic.com/pricing",
	"cohere":     "https://cohere.com/pricing",
	"google":     "https://ai.google.dev/pricing",
	"mistral":    "https://mistral.ai/technology/#pricing",
	"groq":       "https://groq.com/pricing/",
	"together":   "https://www.together.ai/pricing",
	"fireworks":  "https://fireworks.ai/pricing",
	"deepinfra":  "https://deepinfra.com/pricing",
	"replicate":  "https://replicate.com/pricing",
	"perplexity": "https://www.perplexity.ai/hub/pricing",
	"cerebras":   "https://www.cerebras.ai/pricing",
}

func derivePricingURL(slug string, homepage *string) *string {
	if known, ok := pricingPages[slug]; ok {
		return &known
	}
	if homepage == nil {
		return nil
	}
	u := strings.TrimRight(*homepage, "/") + "/pricing"
	return &u
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
