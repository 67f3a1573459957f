package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGStore publishes staged records to the downstream llm_models table.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const upsertModelSQL = `
INSERT INTO llm_models (
    model_id, display_name, provider, model_type,
    context_window, max_output_tokens,
    cost_per_million_input, cost_per_million_output,
    is_active, is_default, sort_order,
    capabilities, metadata, is_thinking_model, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (model_id) DO UPDATE SET
    display_name = EXCLUDED.display_name,
    provider = EXCLUDED.provider,
    model_type = EXCLUDED.model_type,
    context_window = EXCLUDED.context_window,
    max_output_tokens = EXCLUDED.max_output_tokens,
    cost_per_million_input = EXCLUDED.cost_per_million_input,
    cost_per_million_output = EXCLUDED.cost_per_million_output,
    is_active = EXCLUDED.is_active,
    is_default = EXCLUDED.is_default,
    sort_order = EXCLUDED.sort_order,
    capabilities = EXCLUDED.capabilities,
    metadata = EXCLUDED.metadata,
    is_thinking_model = EXCLUDED.is_thinking_model,
    updated_at = EXCLUDED.updated_at`

// UpsertRecords writes all records in one batch, keyed by model_id.
func (s *PGStore) UpsertRecords(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, r := range records {
		caps, err := json.Marshal(r.Capabilities)
		if err != nil {
			return fmt.Errorf("marshal capabilities for %s: %w", r.Slug, err)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.Slug, err)
		}
		batch.Queue(upsertModelSQL,
			r.Slug, r.DisplayName, r.Provider, r.Category,
			r.ContextWindow, r.MaxOutputTokens,
			costStr(r.CostPerMillionInput), costStr(r.CostPerMillionOutput),
			r.IsActive, r.IsDefault, r.SortOrder,
			caps, meta, r.IsThinkingModel, now)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()
	for _, r := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert %s: %w", r.Slug, err)
		}
	}
	return nil
}

// AllSlugs returns every model_id currently present downstream.
func (s *PGStore) AllSlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT model_id FROM llm_models`)
	if err != nil {
		return nil, fmt.Errorf("list llm_models: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// Deactivate flags the given models inactive and clears their default bit.
func (s *PGStore) Deactivate(ctx context.Context, slugs []string) error {
	if len(slugs) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE llm_models
		SET is_active = FALSE, is_default = FALSE, updated_at = $2
		WHERE model_id = ANY($1)`,
		slugs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate llm_models: %w", err)
	}
	return nil
}

// costStr renders a price with six decimal places, the precision the
// downstream NUMERIC columns carry. Nil stays NULL.
func costStr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.Round(6).String()
	return &s
}
