package collector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"github.com/af-corp/pricewatch/internal/backend"
	"github.com/af-corp/pricewatch/internal/catalog"
	"github.com/af-corp/pricewatch/internal/pricing"
	"github.com/af-corp/pricewatch/internal/resolver"
	"github.com/af-corp/pricewatch/internal/store"
	"github.com/af-corp/pricewatch/internal/telemetry"
	"github.com/af-corp/pricewatch/internal/validate"
)

// Metrics register against the global prometheus registry; create them once
// for the whole test binary. Tests assert deltas, not absolute counts.
var testMetrics = telemetry.NewMetrics()

func counterValue(t *testing.T, vec *prometheus.CounterVec, label string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(label)
	if err != nil {
		t.Fatal(err)
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

type fakeRepo struct {
	mu            sync.Mutex
	models        map[string]uuid.UUID
	snapshots     []store.Snapshot
	verifications []store.Verification
}

func newFakeRepo(slugs ...string) *fakeRepo {
	f := &fakeRepo{models: make(map[string]uuid.UUID)}
	for _, s := range slugs {
		f.models[s] = uuid.New()
	}
	return f
}

func (f *fakeRepo) ModelBySlug(ctx context.Context, slug string) (*store.ModelRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.models[slug]
	if !ok {
		return nil, nil
	}
	return &store.ModelRow{ID: id, Slug: slug}, nil
}

func (f *fakeRepo) ModelProviders(ctx context.Context, modelID uuid.UUID) ([]store.ModelProviderLink, error) {
	return nil, nil
}

func (f *fakeRepo) InsertPricingSnapshot(ctx context.Context, s store.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
	return nil
}

func (f *fakeRepo) InsertVerification(ctx context.Context, v store.Verification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifications = append(f.verifications, v)
	return nil
}

// LatestPricing makes fakeRepo usable as the validator's snapshot source.
func (f *fakeRepo) LatestPricing(ctx context.Context, modelID uuid.UUID, providerID *uuid.UUID, sourceKind string) (*store.Snapshot, error) {
	return nil, nil
}

type fakeDisc struct {
	models       []catalog.Model
	newSlugs     []string
	providersErr error
}

func (f *fakeDisc) DiscoverProviders(ctx context.Context) (int, error) {
	if f.providersErr != nil {
		return 0, f.providersErr
	}
	return 1, nil
}

func (f *fakeDisc) DiscoverModels(ctx context.Context) ([]catalog.Model, []string, error) {
	return f.models, f.newSlugs, nil
}

func (f *fakeDisc) SyncModels(ctx context.Context, models []catalog.Model) (int, error) {
	return len(models), nil
}

type fakeVerifier struct {
	usage *catalog.UsageReport
	calls []string
}

func (f *fakeVerifier) VerifyUsage(ctx context.Context, slug string) (*catalog.UsageReport, error) {
	f.calls = append(f.calls, slug)
	return f.usage, nil
}

type fakeBackendStore struct {
	upserted []*backend.Record
}

func (f *fakeBackendStore) UpsertRecords(ctx context.Context, records []*backend.Record) error {
	f.upserted = records
	return nil
}

func (f *fakeBackendStore) AllSlugs(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeBackendStore) Deactivate(ctx context.Context, slugs []string) error {
	return nil
}

func textModel(slug string, prompt, completion string) catalog.Model {
	return catalog.Model{
		Slug: slug,
		Name: slug,
		Architecture: catalog.Architecture{
			InputModalities:  []string{"text"},
			OutputModalities: []string{"text"},
		},
		Pricing: &pricing.CatalogPricing{Prompt: prompt, Completion: completion},
	}
}

func newCollector(repo *fakeRepo, disc *fakeDisc, verifier Verifier, bstore backend.Store, opts Options) *Collector {
	validator := validate.NewValidator(repo, 30)
	registry := resolver.NewRegistry(nil)
	stager := backend.NewStager(bstore, nil)
	return New(verifier, repo, disc, validator, registry, stager, testMetrics, opts)
}

func TestRunStoresBaselineSnapshots(t *testing.T) {
	repo := newFakeRepo("acme/foo")
	disc := &fakeDisc{models: []catalog.Model{
		textModel("acme/foo", "0.000003", "0.000015"),
	}}
	bstore := &fakeBackendStore{}
	c := newCollector(repo, disc, &fakeVerifier{}, bstore, Options{Concurrency: 2})

	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(repo.snapshots) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(repo.snapshots))
	}
	snap := repo.snapshots[0]
	if snap.ProviderID != nil {
		t.Error("baseline snapshot should have nil provider")
	}
	if snap.SourceKind != store.SourceBaselineCatalog {
		t.Errorf("source = %s, want %s", snap.SourceKind, store.SourceBaselineCatalog)
	}
	if !snap.Prompt.Equal(decimal.RequireFromString("3")) {
		t.Errorf("prompt = %s, want 3 per million", snap.Prompt)
	}
	if !snap.Completion.Equal(decimal.RequireFromString("15")) {
		t.Errorf("completion = %s, want 15 per million", snap.Completion)
	}

	// The run should have staged and published the model downstream.
	if len(bstore.upserted) != 1 || bstore.upserted[0].Slug != "acme/foo" {
		t.Errorf("staged records = %v", bstore.upserted)
	}
}

func TestRunIsolatesPerModelFailures(t *testing.T) {
	// acme/ghost is not in the store; its failure must not stop acme/foo.
	repo := newFakeRepo("acme/foo")
	disc := &fakeDisc{models: []catalog.Model{
		textModel("acme/ghost", "0.000001", "0.000002"),
		textModel("acme/foo", "0.000003", "0.000015"),
	}}
	c := newCollector(repo, disc, &fakeVerifier{}, nil, Options{Concurrency: 1})

	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.snapshots) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(repo.snapshots))
	}
}

func TestRunBlocklist(t *testing.T) {
	repo := newFakeRepo("acme/foo", "acme/blocked")
	disc := &fakeDisc{models: []catalog.Model{
		textModel("acme/blocked", "0.000001", "0.000002"),
		textModel("acme/foo", "0.000003", "0.000015"),
	}}
	c := newCollector(repo, disc, &fakeVerifier{}, nil, Options{
		Concurrency: 1,
		Blocklist:   []string{"acme/blocked"},
	})

	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, s := range repo.snapshots {
		if id := repo.models["acme/blocked"]; s.ModelID == id {
			t.Error("blocklisted model should not be collected")
		}
	}
	if len(repo.snapshots) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(repo.snapshots))
	}
}

func TestRunDiscoverFailure(t *testing.T) {
	repo := newFakeRepo()
	disc := &fakeDisc{providersErr: errors.New("api down")}
	c := newCollector(repo, disc, &fakeVerifier{}, nil, Options{Concurrency: 1})

	if err := c.Run(context.Background()); err == nil {
		t.Fatal("discovery failure should fail the run")
	}
}

func TestRunSpotChecks(t *testing.T) {
	repo := newFakeRepo("acme/paid", "acme/free")
	free := textModel("acme/free", "0", "0")
	disc := &fakeDisc{models: []catalog.Model{
		free,
		textModel("acme/paid", "0.000003", "0.000015"),
	}}
	verifier := &fakeVerifier{usage: &catalog.UsageReport{
		PromptTokens:     3,
		CompletionTokens: 1,
		Cost:             0,
	}}
	c := newCollector(repo, disc, verifier, nil, Options{
		Concurrency:     1,
		VerifySpotCheck: true,
	})

	okBefore := counterValue(t, testMetrics.VerificationsTotal, "ok")
	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Sentinel-priced models are excluded from the verification sample.
	if len(verifier.calls) != 1 || verifier.calls[0] != "acme/paid" {
		t.Errorf("verified %v, want [acme/paid]", verifier.calls)
	}
	if len(repo.verifications) != 1 {
		t.Fatalf("got %d verifications, want 1", len(repo.verifications))
	}
	if got := counterValue(t, testMetrics.VerificationsTotal, "ok") - okBefore; got != 1 {
		t.Errorf("ok verification count delta = %v, want 1", got)
	}
}

func TestRunSpotCheckCountsMismatch(t *testing.T) {
	repo := newFakeRepo("acme/paid")
	disc := &fakeDisc{models: []catalog.Model{
		textModel("acme/paid", "0.000003", "0.000015"),
	}}
	// Non-zero cost on a request inside the free allowance is a mismatch.
	verifier := &fakeVerifier{usage: &catalog.UsageReport{
		PromptTokens:     3,
		CompletionTokens: 1,
		Cost:             0.5,
	}}
	c := newCollector(repo, disc, verifier, nil, Options{
		Concurrency:     1,
		VerifySpotCheck: true,
	})

	before := counterValue(t, testMetrics.VerificationsTotal, "mismatch")
	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := counterValue(t, testMetrics.VerificationsTotal, "mismatch") - before; got != 1 {
		t.Errorf("mismatch verification count delta = %v, want 1", got)
	}
	if len(repo.verifications) != 1 || repo.verifications[0].OK {
		t.Errorf("verification row should be stored with ok=false: %+v", repo.verifications)
	}
}

func TestVerificationSample(t *testing.T) {
	models := []catalog.Model{
		{Slug: "a", Pricing: &pricing.CatalogPricing{Prompt: "-1", Completion: "-1"}},
		{Slug: "b"}, // no pricing blob at all
		{Slug: "c", Pricing: &pricing.CatalogPricing{Prompt: "0.000003", Completion: "0"}},
		{Slug: "d", Pricing: &pricing.CatalogPricing{Prompt: "0", Completion: "0.000015"}},
	}
	sample := verificationSample(models, 5)
	if len(sample) != 2 {
		t.Fatalf("sample size = %d, want 2", len(sample))
	}
	if sample[0].Slug != "c" || sample[1].Slug != "d" {
		t.Errorf("sample = [%s %s], want [c d]", sample[0].Slug, sample[1].Slug)
	}
}
