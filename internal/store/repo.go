package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// nilProviderSentinel stands in for NULL provider_id inside the snapshot
// uniqueness expression so one ON CONFLICT target covers both cases.
const nilProviderSentinel = "00000000-0000-0000-0000-000000000000"

// Repo is the primary-store repository over PostgreSQL.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// ---------- providers ----------

func (r *Repo) UpsertProvider(ctx context.Context, p ProviderRow) (ProviderRow, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO providers (provider_id, slug, display_name, homepage_url, pricing_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			homepage_url = EXCLUDED.homepage_url,
			pricing_url  = EXCLUDED.pricing_url,
			updated_at   = NOW()
		RETURNING provider_id
	`, uuid.New(), p.Slug, p.DisplayName, p.HomepageURL, p.PricingURL).Scan(&p.ID)
	if err != nil {
		return ProviderRow{}, fmt.Errorf("upsert provider %s: %w", p.Slug, err)
	}
	return p, nil
}

func (r *Repo) ProviderBySlug(ctx context.Context, slug string) (*ProviderRow, error) {
	var p ProviderRow
	err := r.db.QueryRow(ctx, `
		SELECT provider_id, slug, display_name, homepage_url, pricing_url
		FROM providers WHERE slug = $1
	`, slug).Scan(&p.ID, &p.Slug, &p.DisplayName, &p.HomepageURL, &p.PricingURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select provider %s: %w", slug, err)
	}
	return &p, nil
}

// ---------- models ----------

func (r *Repo) UpsertModel(ctx context.Context, m ModelRow) (ModelRow, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO models_catalog
			(model_id, model_slug, canonical_slug, display_name, context_length, architecture, supported_parameters)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (model_slug) DO UPDATE SET
			canonical_slug       = EXCLUDED.canonical_slug,
			display_name         = EXCLUDED.display_name,
			context_length       = EXCLUDED.context_length,
			architecture         = EXCLUDED.architecture,
			supported_parameters = EXCLUDED.supported_parameters,
			updated_at           = NOW()
		RETURNING model_id
	`, uuid.New(), m.Slug, m.CanonicalSlug, m.DisplayName, m.ContextLength, m.Architecture, m.SupportedParameters).Scan(&m.ID)
	if err != nil {
		return ModelRow{}, fmt.Errorf("upsert model %s: %w", m.Slug, err)
	}
	return m, nil
}

func (r *Repo) ModelBySlug(ctx context.Context, slug string) (*ModelRow, error) {
	var m ModelRow
	err := r.db.QueryRow(ctx, `
		SELECT model_id, model_slug, canonical_slug, display_name, context_length, architecture, supported_parameters
		FROM models_catalog WHERE model_slug = $1
	`, slug).Scan(&m.ID, &m.Slug, &m.CanonicalSlug, &m.DisplayName, &m.ContextLength, &m.Architecture, &m.SupportedParameters)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select model %s: %w", slug, err)
	}
	return &m, nil
}

// AllModelSlugs returns every slug known to the catalog table.
func (r *Repo) AllModelSlugs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT model_slug FROM models_catalog`)
	if err != nil {
		return nil, fmt.Errorf("select model slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan model slug: %w", err)
		}
		slugs = append(slugs, s)
	}
	return slugs, rows.Err()
}

// ---------- model-provider links ----------

func (r *Repo) LinkModelProvider(ctx context.Context, link ModelProviderLink) error {
	meta := link.Metadata
	if meta == nil {
		meta = []byte(`{}`)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO model_providers (model_id, provider_id, is_top_provider, provider_metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (model_id, provider_id) DO UPDATE SET
			is_top_provider   = EXCLUDED.is_top_provider,
			provider_metadata = EXCLUDED.provider_metadata
	`, link.ModelID, link.ProviderID, link.IsTopProvider, meta)
	if err != nil {
		return fmt.Errorf("link model %s to provider %s: %w", link.ModelID, link.ProviderID, err)
	}
	return nil
}

// ModelProviders returns all provider links for a model, with provider slugs.
func (r *Repo) ModelProviders(ctx context.Context, modelID uuid.UUID) ([]ModelProviderLink, error) {
	rows, err := r.db.Query(ctx, `
		SELECT mp.model_id, mp.provider_id, p.slug, mp.is_top_provider, mp.provider_metadata
		FROM model_providers mp
		JOIN providers p ON p.provider_id = mp.provider_id
		WHERE mp.model_id = $1
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("select model providers: %w", err)
	}
	defer rows.Close()

	var links []ModelProviderLink
	for rows.Next() {
		var l ModelProviderLink
		if err := rows.Scan(&l.ModelID, &l.ProviderID, &l.ProviderSlug, &l.IsTopProvider, &l.Metadata); err != nil {
			return nil, fmt.Errorf("scan model provider link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ---------- pricing snapshots ----------

// InsertPricingSnapshot writes a snapshot, atomically replacing any prior
// record for the same (model, provider-or-null, date, source) key. One upsert
// instead of delete-then-insert: the key is never momentarily absent.
func (r *Repo) InsertPricingSnapshot(ctx context.Context, s Snapshot) error {
	if s.Currency == "" {
		s.Currency = "USD"
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO model_pricing_daily
			(model_id, provider_id, snapshot_date, source_type, source_url,
			 prompt_usd_per_million, completion_usd_per_million, request_usd, image_usd,
			 web_search_usd, internal_reasoning_usd_per_million,
			 input_cache_read_usd_per_million, input_cache_write_usd_per_million,
			 batch_usd_per_million, currency, notes, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		ON CONFLICT (model_id, (COALESCE(provider_id, '`+nilProviderSentinel+`'::uuid)), snapshot_date, source_type)
		DO UPDATE SET
			source_url                          = EXCLUDED.source_url,
			prompt_usd_per_million              = EXCLUDED.prompt_usd_per_million,
			completion_usd_per_million          = EXCLUDED.completion_usd_per_million,
			request_usd                         = EXCLUDED.request_usd,
			image_usd                           = EXCLUDED.image_usd,
			web_search_usd                      = EXCLUDED.web_search_usd,
			internal_reasoning_usd_per_million  = EXCLUDED.internal_reasoning_usd_per_million,
			input_cache_read_usd_per_million    = EXCLUDED.input_cache_read_usd_per_million,
			input_cache_write_usd_per_million   = EXCLUDED.input_cache_write_usd_per_million,
			batch_usd_per_million               = EXCLUDED.batch_usd_per_million,
			currency                            = EXCLUDED.currency,
			notes                               = EXCLUDED.notes,
			collected_at                        = NOW()
	`, s.ModelID, s.ProviderID, s.Date, s.SourceKind, s.SourceURL,
		decStr(s.Prompt), decStr(s.Completion), decStr(s.Request), decStr(s.Image),
		decStr(s.WebSearch), decStr(s.InternalReasoning),
		decStr(s.InputCacheRead), decStr(s.InputCacheWrite),
		decStr(s.Batch), s.Currency, s.Notes)
	if err != nil {
		return fmt.Errorf("insert pricing snapshot for model %s: %w", s.ModelID, err)
	}
	return nil
}

// LatestPricing returns the most recent snapshot for the key, or nil.
// Snapshots are compared only within one source kind; mixing sources would
// make every change-detection run noisy.
func (r *Repo) LatestPricing(ctx context.Context, modelID uuid.UUID, providerID *uuid.UUID, sourceKind string) (*Snapshot, error) {
	query := `
		SELECT model_id, provider_id, snapshot_date, source_type, source_url,
		       prompt_usd_per_million, completion_usd_per_million, notes
		FROM model_pricing_daily
		WHERE model_id = $1 AND source_type = $2 AND `
	args := []any{modelID, sourceKind}
	if providerID == nil {
		query += `provider_id IS NULL`
	} else {
		query += `provider_id = $3`
		args = append(args, *providerID)
	}
	query += ` ORDER BY snapshot_date DESC, collected_at DESC LIMIT 1`

	var s Snapshot
	var promptStr, completionStr *string
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&s.ModelID, &s.ProviderID, &s.Date, &s.SourceKind, &s.SourceURL,
		&promptStr, &completionStr, &s.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select latest pricing for model %s: %w", modelID, err)
	}
	s.Prompt = parseDec(promptStr)
	s.Completion = parseDec(completionStr)
	return &s, nil
}

// PricingHistory returns up to `days` most recent snapshots for a model.
func (r *Repo) PricingHistory(ctx context.Context, modelID uuid.UUID, days int) ([]Snapshot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT model_id, provider_id, snapshot_date, source_type, source_url,
		       prompt_usd_per_million, completion_usd_per_million, notes
		FROM model_pricing_daily
		WHERE model_id = $1
		ORDER BY snapshot_date DESC
		LIMIT $2
	`, modelID, days)
	if err != nil {
		return nil, fmt.Errorf("select pricing history: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var promptStr, completionStr *string
		if err := rows.Scan(&s.ModelID, &s.ProviderID, &s.Date, &s.SourceKind, &s.SourceURL,
			&promptStr, &completionStr, &s.Notes); err != nil {
			return nil, fmt.Errorf("scan pricing history: %w", err)
		}
		s.Prompt = parseDec(promptStr)
		s.Completion = parseDec(completionStr)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---------- verifications ----------

func (r *Repo) InsertVerification(ctx context.Context, v Verification) error {
	raw := v.RawUsage
	if raw == nil {
		raw = []byte(`{}`)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO byok_verifications
			(model_id, provider_id, prompt_tokens, completion_tokens,
			 aggregate_cost_usd, upstream_cost_usd, ok, raw_usage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, v.ModelID, v.ProviderID, v.PromptTokens, v.CompletionTokens,
		v.AggregateCostUSD, v.UpstreamCostUSD, v.OK, raw)
	if err != nil {
		return fmt.Errorf("insert verification for model %s: %w", v.ModelID, err)
	}
	return nil
}

// decStr renders a decimal for a NUMERIC column, keeping NULL for unknown.
func decStr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDec(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}

// Today returns the UTC snapshot date for the current run.
func Today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
