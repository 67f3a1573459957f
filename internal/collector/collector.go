package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/af-corp/pricewatch/internal/backend"
	"github.com/af-corp/pricewatch/internal/catalog"
	"github.com/af-corp/pricewatch/internal/pricing"
	"github.com/af-corp/pricewatch/internal/resolver"
	"github.com/af-corp/pricewatch/internal/store"
	"github.com/af-corp/pricewatch/internal/telemetry"
	"github.com/af-corp/pricewatch/internal/validate"
)

const verificationSampleSize = 5

// byokMonthlyRequests is the monthly request count assumed for spot checks.
// The checks run on a dedicated BYOK key that only ever issues these few
// 1-token calls, so the count stays far below the free allowance and the
// free-tier expectation applies.
const byokMonthlyRequests = 0

// catalogBaselineURL is the source attribution for catalog baseline snapshots.
const catalogBaselineURL = "https://openrouter.ai/api/v1/models"

// Verifier is the slice of the catalog client used for usage spot checks.
type Verifier interface {
	VerifyUsage(ctx context.Context, slug string) (*catalog.UsageReport, error)
}

// Repository is the slice of the primary store the collector writes through.
type Repository interface {
	ModelBySlug(ctx context.Context, slug string) (*store.ModelRow, error)
	ModelProviders(ctx context.Context, modelID uuid.UUID) ([]store.ModelProviderLink, error)
	InsertPricingSnapshot(ctx context.Context, s store.Snapshot) error
	InsertVerification(ctx context.Context, v store.Verification) error
}

// Discoverer syncs providers and models from the upstream catalog.
type Discoverer interface {
	DiscoverProviders(ctx context.Context) (int, error)
	DiscoverModels(ctx context.Context) ([]catalog.Model, []string, error)
	SyncModels(ctx context.Context, models []catalog.Model) (int, error)
}

// Options tune a collector run.
type Options struct {
	Concurrency     int64
	ProviderScrape  bool
	Blocklist       []string
	VerifySpotCheck bool
}

// Collector orchestrates one full collection run: discovery, per-model
// pricing collection with bounded concurrency, usage spot checks, and the
// downstream staging finalize.
type Collector struct {
	verifier  Verifier
	repo      Repository
	disc      Discoverer
	validator *validate.Validator
	registry  *resolver.Registry
	stager    *backend.Stager
	metrics   *telemetry.Metrics

	concurrency int64
	scrape      bool
	verify      bool
	blocklist   map[string]struct{}
}

func New(
	verifier Verifier,
	repo Repository,
	disc Discoverer,
	validator *validate.Validator,
	registry *resolver.Registry,
	stager *backend.Stager,
	metrics *telemetry.Metrics,
	opts Options,
) *Collector {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	blocked := make(map[string]struct{}, len(opts.Blocklist))
	for _, slug := range opts.Blocklist {
		blocked[slug] = struct{}{}
	}
	return &Collector{
		verifier:    verifier,
		repo:        repo,
		disc:        disc,
		validator:   validator,
		registry:    registry,
		stager:      stager,
		metrics:     metrics,
		concurrency: opts.Concurrency,
		scrape:      opts.ProviderScrape,
		verify:      opts.VerifySpotCheck,
		blocklist:   blocked,
	}
}

// Run executes one full collection pass. The staging finalize always runs,
// even when an earlier phase failed; its error is reported alongside the
// run's own.
func (c *Collector) Run(ctx context.Context) (err error) {
	start := time.Now()
	slog.Info("collection run starting")

	defer func() {
		if ferr := c.stager.Finalize(ctx); ferr != nil {
			slog.Error("staging finalize failed", "error", ferr)
			err = errors.Join(err, fmt.Errorf("staging finalize: %w", ferr))
		}
		c.metrics.StagedModels.Set(float64(c.stager.Staged()))
		c.metrics.RunDurationSeconds.Observe(time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.metrics.RunTotal.WithLabelValues(status).Inc()
		slog.Info("collection run finished", "status", status, "duration", time.Since(start))
	}()

	if _, err := c.disc.DiscoverProviders(ctx); err != nil {
		return fmt.Errorf("discover providers: %w", err)
	}

	models, newSlugs, err := c.disc.DiscoverModels(ctx)
	if err != nil {
		return fmt.Errorf("discover models: %w", err)
	}
	c.metrics.ModelsDiscovered.Set(float64(len(models)))
	if len(newSlugs) > 0 {
		slog.Info("new models detected", "count", len(newSlugs), "slugs", newSlugs)
		c.metrics.NewModelsTotal.Add(float64(len(newSlugs)))
	}
	if _, err := c.disc.SyncModels(ctx, models); err != nil {
		return fmt.Errorf("sync models: %w", err)
	}

	c.collectAll(ctx, models)

	if c.verify {
		c.runSpotChecks(ctx, models)
	}
	return nil
}

// collectAll fans out over the model list with bounded concurrency. A
// failure for one model never aborts the others.
func (c *Collector) collectAll(ctx context.Context, models []catalog.Model) {
	today := store.Today()
	sem := semaphore.NewWeighted(c.concurrency)
	var wg sync.WaitGroup

	for _, m := range models {
		if _, blocked := c.blocklist[m.Slug]; blocked {
			slog.Debug("model blocklisted", "model", m.Slug)
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			slog.Warn("collection fan-out interrupted", "error", err)
			break
		}
		wg.Add(1)
		go func(m catalog.Model) {
			defer wg.Done()
			defer sem.Release(1)
			if err := c.collectModel(ctx, m, today); err != nil {
				slog.Error("model collection failed", "model", m.Slug, "error", err)
			}
		}(m)
	}
	wg.Wait()
}

// collectModel runs the source chain for one model: catalog baseline first,
// then per-provider resolvers when scraping is enabled, then staging.
func (c *Collector) collectModel(ctx context.Context, m catalog.Model, today time.Time) error {
	row, err := c.repo.ModelBySlug(ctx, m.Slug)
	if err != nil {
		return fmt.Errorf("lookup model: %w", err)
	}
	if row == nil {
		return fmt.Errorf("model %s not in store", m.Slug)
	}

	var baseline *pricing.Observation
	if m.Pricing != nil {
		baseline = c.storeBaseline(ctx, row.ID, m, today)
	}

	if c.scrape {
		links, err := c.repo.ModelProviders(ctx, row.ID)
		if err != nil {
			slog.Error("provider link lookup failed", "model", m.Slug, "error", err)
		}
		for _, link := range links {
			c.collectProviderPricing(ctx, row.ID, link, m, today)
		}
	}

	c.stager.StageModel(m, baseline)
	return nil
}

// storeBaseline normalizes, validates and stores the catalog pricing blob.
// Returns the stored observation, or nil when nothing usable was present.
func (c *Collector) storeBaseline(ctx context.Context, modelID uuid.UUID, m catalog.Model, today time.Time) *pricing.Observation {
	obs := pricing.NormalizeCatalogPricing(*m.Pricing)
	obs = pricing.ApplyCuratedOverride(m.Slug, obs)

	if obs.Prompt == nil && obs.Completion == nil {
		slog.Debug("no usable baseline pricing", "model", m.Slug)
		return nil
	}

	hasImagePricing := m.Pricing.Image != ""
	valid, _ := c.validator.ValidatePricing(obs.Prompt, obs.Completion, m.Slug, hasImagePricing)
	if !valid {
		c.metrics.ValidationFailTotal.Inc()
		return nil
	}

	alert, _, err := c.validator.CheckPriceChange(
		ctx, modelID, nil, store.SourceBaselineCatalog, obs.Prompt, obs.Completion)
	if err != nil {
		slog.Error("price change check failed", "model", m.Slug, "error", err)
	}
	if alert {
		c.metrics.PriceAlertTotal.Inc()
	}

	snap := snapshotFromObservation(modelID, nil, today, store.SourceBaselineCatalog, obs)
	url := catalogBaselineURL
	snap.SourceURL = &url

	if err := c.repo.InsertPricingSnapshot(ctx, snap); err != nil {
		slog.Error("baseline snapshot insert failed", "model", m.Slug, "error", err)
		return nil
	}
	c.metrics.SnapshotsTotal.WithLabelValues(store.SourceBaselineCatalog).Inc()
	return &obs
}

// collectProviderPricing resolves pricing for one (model, provider) pair and
// stores a snapshot when the resolver finds something. Failures are isolated
// to the pair.
func (c *Collector) collectProviderPricing(ctx context.Context, modelID uuid.UUID, link store.ModelProviderLink, m catalog.Model, today time.Time) {
	res := c.registry.Get(link.ProviderSlug)
	sourceKind := store.SourceWebFallback
	if c.registry.Specific(link.ProviderSlug) {
		sourceKind = store.SourceProviderSite
	}

	obs, err := res.Resolve(ctx, m.Name, m.Slug)
	if err != nil {
		slog.Error("provider pricing resolution failed",
			"model", m.Slug, "provider", link.ProviderSlug, "error", err)
		c.metrics.ResolveFailTotal.WithLabelValues(link.ProviderSlug).Inc()
		return
	}
	if obs == nil {
		slog.Info("provider pricing not found",
			"model", m.Slug, "provider", link.ProviderSlug)
		return
	}

	valid, _ := c.validator.ValidatePricing(obs.Prompt, obs.Completion, m.Slug, false)
	if !valid {
		c.metrics.ValidationFailTotal.Inc()
		return
	}

	providerID := link.ProviderID
	alert, _, err := c.validator.CheckPriceChange(
		ctx, modelID, &providerID, sourceKind, obs.Prompt, obs.Completion)
	if err != nil {
		slog.Error("price change check failed",
			"model", m.Slug, "provider", link.ProviderSlug, "error", err)
	}
	if alert {
		c.metrics.PriceAlertTotal.Inc()
	}

	snap := snapshotFromObservation(modelID, &providerID, today, sourceKind, *obs)
	if err := c.repo.InsertPricingSnapshot(ctx, snap); err != nil {
		slog.Error("provider snapshot insert failed",
			"model", m.Slug, "provider", link.ProviderSlug, "error", err)
		return
	}
	c.metrics.SnapshotsTotal.WithLabelValues(sourceKind).Inc()
	slog.Info("provider pricing stored", "model", m.Slug, "provider", link.ProviderSlug)
}

// runSpotChecks samples models with real pricing and cross-checks billed
// usage against collected numbers. Failures are logged per model.
func (c *Collector) runSpotChecks(ctx context.Context, models []catalog.Model) {
	sample := verificationSample(models, verificationSampleSize)
	slog.Info("running usage spot checks", "count", len(sample))

	for _, m := range sample {
		if err := c.spotCheck(ctx, m); err != nil {
			c.metrics.VerificationsTotal.WithLabelValues("error").Inc()
			slog.Error("usage spot check failed", "model", m.Slug, "error", err)
		}
	}
}

func (c *Collector) spotCheck(ctx context.Context, m catalog.Model) error {
	usage, err := c.verifier.VerifyUsage(ctx, m.Slug)
	if err != nil {
		return fmt.Errorf("verification call: %w", err)
	}
	if usage == nil {
		slog.Warn("verification returned no usage data", "model", m.Slug)
		return nil
	}

	row, err := c.repo.ModelBySlug(ctx, m.Slug)
	if err != nil || row == nil {
		return fmt.Errorf("lookup model for verification: %w", err)
	}

	ok, warnings := validate.ValidateVerification(*usage, true, byokMonthlyRequests)
	result := "ok"
	if !ok {
		result = "mismatch"
		slog.Warn("verification mismatch", "model", m.Slug, "warnings", warnings)
	}
	c.metrics.VerificationsTotal.WithLabelValues(result).Inc()

	raw, err := json.Marshal(usage)
	if err != nil {
		raw = []byte(`{}`)
	}
	v := store.Verification{
		ModelID:          row.ID,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		AggregateCostUSD: usage.Cost,
		UpstreamCostUSD:  usage.CostDetails.UpstreamInferenceCost,
		OK:               ok,
		RawUsage:         raw,
	}
	if err := c.repo.InsertVerification(ctx, v); err != nil {
		return fmt.Errorf("store verification: %w", err)
	}

	slog.Info("usage spot check stored",
		"model", m.Slug, "cost", usage.Cost,
		"upstream_cost", usage.CostDetails.UpstreamInferenceCost)
	return nil
}

// verificationSample takes the first n models whose raw catalog pricing is
// not a known sentinel. Models priced entirely with "", "0" or "-1" are
// free, deprecated or dynamically routed; spending a paid call on them tells
// us nothing.
func verificationSample(models []catalog.Model, n int) []catalog.Model {
	var out []catalog.Model
	for _, m := range models {
		if m.Pricing == nil {
			continue
		}
		if sentinelPrice(m.Pricing.Prompt) && sentinelPrice(m.Pricing.Completion) {
			continue
		}
		out = append(out, m)
		if len(out) == n {
			break
		}
	}
	return out
}

func sentinelPrice(raw string) bool {
	switch raw {
	case "", "0", "-1":
		return true
	}
	return false
}

func snapshotFromObservation(modelID uuid.UUID, providerID *uuid.UUID, date time.Time, sourceKind string, obs pricing.Observation) store.Snapshot {
	s := store.Snapshot{
		ModelID:           modelID,
		ProviderID:        providerID,
		Date:              date,
		SourceKind:        sourceKind,
		Prompt:            obs.Prompt,
		Completion:        obs.Completion,
		Request:           obs.Request,
		Image:             obs.Image,
		WebSearch:         obs.WebSearch,
		InternalReasoning: obs.InternalReasoning,
		InputCacheRead:    obs.InputCacheRead,
		InputCacheWrite:   obs.InputCacheWrite,
		Batch:             obs.Batch,
		Currency:          "USD",
	}
	if obs.SourceURL != "" {
		s.SourceURL = &obs.SourceURL
	}
	if obs.Notes != "" {
		s.Notes = &obs.Notes
	}
	return s
}
