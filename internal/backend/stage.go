package backend

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/af-corp/pricewatch/internal/catalog"
	"github.com/af-corp/pricewatch/internal/pricing"
)

// Store is the downstream catalog table the stager publishes to.
type Store interface {
	UpsertRecords(ctx context.Context, records []*Record) error
	AllSlugs(ctx context.Context) ([]string, error)
	Deactivate(ctx context.Context, slugs []string) error
}

// protectedSlugs are manually curated rows that must never be deactivated,
// even when a run does not stage them.
var protectedSlugs = map[string]struct{}{
	"openai/text-embedding-3-large": {},
}

// Stager accumulates admitted models over a collection run and publishes
// them to the downstream catalog in one finalize step. A nil store disables
// staging entirely: every method becomes a no-op.
type Stager struct {
	store          Store
	forcedDefaults map[string]string // category -> slug
	records        map[string]*Record
}

func NewStager(store Store, forcedDefaults map[string]string) *Stager {
	return &Stager{
		store:          store,
		forcedDefaults: forcedDefaults,
		records:        make(map[string]*Record),
	}
}

// Enabled reports whether a downstream store is configured.
func (s *Stager) Enabled() bool { return s != nil && s.store != nil }

// Staged returns the number of records currently staged.
func (s *Stager) Staged() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// StageModel admits a model into the staging set. Only pure text-to-text
// models with at least one paid pricing dimension are admitted; everything
// else is skipped with a log line. Restaging the same slug overwrites the
// earlier record.
func (s *Stager) StageModel(model catalog.Model, obs *pricing.Observation) {
	if !s.Enabled() {
		return
	}
	if model.Slug == "" {
		slog.Warn("staging skipped: model without slug", "name", model.Name)
		return
	}

	in := model.Architecture.InputModalities
	out := model.Architecture.OutputModalities
	if !slices.Equal(in, []string{"text"}) || !slices.Equal(out, []string{"text"}) {
		slog.Debug("staging skipped: non-text model",
			"model", model.Slug, "input_modalities", in, "output_modalities", out)
		return
	}

	if obs == nil || obs.Empty() {
		slog.Debug("staging skipped: no pricing", "model", model.Slug)
		return
	}
	if !obs.HasPaidDimension() {
		slog.Info("staging skipped: free model", "model", model.Slug)
		return
	}

	displayName := model.Name
	if displayName == "" {
		displayName = model.Slug
	}
	provider := providerFromSlug(model.Slug)

	params := make(map[string]struct{}, len(model.SupportedParameters))
	for _, p := range model.SupportedParameters {
		params[p] = struct{}{}
	}
	hasParam := func(name string) bool {
		_, ok := params[name]
		return ok
	}

	supportsVision := slices.Contains(in, "image") || slices.Contains(out, "image")
	supportsAudio := slices.Contains(in, "audio") || slices.Contains(out, "audio")
	supportsVideo := slices.Contains(in, "video") || slices.Contains(out, "video")
	supportsReasoning := obs.InternalReasoning != nil ||
		hasParam("reasoning") || hasParam("include_reasoning")

	caps := Capabilities{
		SupportsTools:     hasParam("tools") || hasParam("tool_choice"),
		SupportsVision:    supportsVision,
		SupportsReasoning: supportsReasoning,
		SupportsWebSearch: obs.WebSearch != nil,
		SupportsAudio:     supportsAudio,
		SupportsVideo:     supportsVideo,
		SupportsThinking:  supportsReasoning,
	}

	category := ClassifyCategory(model.Slug, displayName)

	meta := Metadata{
		Tier:          ClassifyTier(obs.Prompt),
		Series:        DeriveSeries(model.Slug),
		Provider:      provider,
		HuggingFaceID: model.HuggingFaceID,
		Source:        "openrouter",
		Description:   SummarizeDescription(model.Description),
	}
	if obs.Batch != nil {
		b, _ := obs.Batch.Float64()
		meta.BatchUSD = &b
	}

	var ctxWindow *int
	if model.ContextLength > 0 {
		cl := model.ContextLength
		ctxWindow = &cl
	}

	s.records[model.Slug] = &Record{
		Slug:                 model.Slug,
		DisplayName:          displayName,
		Provider:             provider,
		Category:             category,
		ContextWindow:        ctxWindow,
		MaxOutputTokens:      model.TopProvider.MaxCompletionTokens,
		CostPerMillionInput:  obs.Prompt,
		CostPerMillionOutput: obs.Completion,
		IsActive:             true,
		IsThinkingModel:      supportsReasoning,
		SortCost:             sortCost(obs.Prompt, obs.Completion),
		Capabilities:         caps,
		Metadata:             meta,
	}
}

// Finalize ranks the staged records, assigns per-category defaults, upserts
// everything to the downstream table and deactivates rows the run did not
// stage. Protected slugs are exempt from deactivation. Safe to call when
// disabled or empty.
func (s *Stager) Finalize(ctx context.Context) error {
	if !s.Enabled() || len(s.records) == 0 {
		return nil
	}

	sorted := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		sorted = append(sorted, r)
	}
	slices.SortStableFunc(sorted, func(a, b *Record) int {
		if c := b.SortCost.Cmp(a.SortCost); c != 0 {
			return c
		}
		return strings.Compare(a.Slug, b.Slug)
	})

	for i, r := range sorted {
		r.SortOrder = max(0, 100-i*5)
		r.IsDefault = false
	}

	defaults := make(map[string]*Record)
	for _, r := range sorted {
		if !r.IsActive {
			continue
		}
		cur := defaults[r.Category]
		if cur == nil || r.SortOrder > cur.SortOrder {
			defaults[r.Category] = r
		}
	}

	for category, slug := range s.forcedDefaults {
		r, ok := s.records[slug]
		if !ok {
			slog.Warn("forced default not staged this run",
				"category", category, "model", slug)
			continue
		}
		if !r.IsActive {
			slog.Warn("forced default is inactive",
				"category", category, "model", slug)
		}
		defaults[category] = r
	}
	for _, r := range defaults {
		r.IsDefault = true
	}

	slog.Info("publishing staged models", "count", len(sorted))
	if err := s.store.UpsertRecords(ctx, sorted); err != nil {
		return fmt.Errorf("upsert staged models: %w", err)
	}

	existing, err := s.store.AllSlugs(ctx)
	if err != nil {
		return fmt.Errorf("list downstream models: %w", err)
	}

	var missing []string
	for _, slug := range existing {
		if _, staged := s.records[slug]; staged {
			continue
		}
		if _, protected := protectedSlugs[slug]; protected {
			slog.Info("skipping deactivation for protected model", "model", slug)
			continue
		}
		missing = append(missing, slug)
	}

	if len(missing) > 0 {
		slog.Info("deactivating models missing from run", "count", len(missing))
		if err := s.store.Deactivate(ctx, missing); err != nil {
			return fmt.Errorf("deactivate missing models: %w", err)
		}
	}
	return nil
}

// sortCost is the ranking key: the larger of prompt and completion price,
// zero when neither is known.
func sortCost(prompt, completion *decimal.Decimal) decimal.Decimal {
	cost := decimal.Zero
	if prompt != nil && prompt.GreaterThan(cost) {
		cost = *prompt
	}
	if completion != nil && completion.GreaterThan(cost) {
		cost = *completion
	}
	return cost
}

func providerFromSlug(slug string) string {
	if p, _, ok := strings.Cut(slug, "/"); ok {
		return p
	}
	return "openrouter"
}
