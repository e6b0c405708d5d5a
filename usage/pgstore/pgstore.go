// Package pgstore is the pgx-backed implementation of usage.Store: the
// usage ledger, organization balance, and organization limits history
// tables (§3, §6's schema requirements). It follows §9's guidance to rely on
// the database's unique constraint for idempotency rather than an
// in-memory dedupe: RecordUsage uses "INSERT ... ON CONFLICT DO NOTHING
// RETURNING" and falls back to a SELECT when the conflict fires.
package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modelgateway/core/catalog"
	"github.com/modelgateway/core/usage"
)

// Store implements usage.Store against a Postgres pool, matching §6's
// schema requirements: a composite unique index on
// (organization_id, external_id) on organization_usage_log, a primary key
// (organization_id) on organization_balance, and a partial index on active
// rows (effective_until IS NULL) on organization_limits_history.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool. The caller owns the pool's lifecycle
// (pgxpool.New/Close); this mirrors the rest of the pack's practice of
// accepting a constructed client rather than a DSN.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetBalance(ctx context.Context, orgID uuid.UUID) (*usage.Balance, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT organization_id, total_spent, total_tokens, total_requests, last_usage_at, updated_at
		FROM organization_balance
		WHERE organization_id = $1
	`, orgID)

	var b usage.Balance
	err := row.Scan(&b.OrganizationID, &b.TotalSpent, &b.TotalTokens, &b.TotalRequests, &b.LastUsageAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ActiveLimitsTotal(ctx context.Context, orgID uuid.UUID) (catalog.Nano, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(spend_limit), 0)
		FROM organization_limits_history
		WHERE organization_id = $1 AND effective_until IS NULL
	`, orgID)

	var count int64
	var total catalog.Nano
	if err := row.Scan(&count, &total); err != nil {
		return 0, false, err
	}
	return total, count > 0, nil
}

func (s *Store) RecordUsage(ctx context.Context, req usage.RecordRequest, cost usage.CostBreakdown) (*usage.Log, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	log, inserted, err := insertUsageLog(ctx, tx, req, cost)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Idempotent replay: a row for this (org_id, external_id) already
		// existed. Per §4.6 step 4, return it unchanged and do not touch
		// Balance a second time.
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return log, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO organization_balance (organization_id, total_spent, total_tokens, total_requests, last_usage_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (organization_id) DO UPDATE SET
			total_spent    = organization_balance.total_spent + $2,
			total_tokens   = organization_balance.total_tokens + $3,
			total_requests = organization_balance.total_requests + 1,
			last_usage_at  = $4,
			updated_at     = $4
	`, req.OrganizationID, cost.Total, req.InputTokens+req.OutputTokens, time.Now()); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return log, nil
}

// insertUsageLog performs the conflict-tolerant insert and reports whether a
// new row was actually created (true) or an existing row was fetched
// instead (false).
func insertUsageLog(ctx context.Context, tx pgx.Tx, req usage.RecordRequest, cost usage.CostBreakdown) (*usage.Log, bool, error) {
	id := uuid.New()
	now := time.Now()

	var externalID any
	if req.ExternalID != "" {
		externalID = req.ExternalID
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO organization_usage_log (
			id, organization_id, workspace_id, api_key_id, model_name,
			input_tokens, output_tokens, input_cost, output_cost, total_cost,
			inference_type, created_at, ttft_ms, avg_itl_ms, inference_id, external_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (organization_id, external_id) WHERE external_id IS NOT NULL DO NOTHING
		RETURNING id, organization_id, workspace_id, api_key_id, model_name,
			input_tokens, output_tokens, input_cost, output_cost, total_cost,
			inference_type, created_at, ttft_ms, avg_itl_ms, inference_id, external_id
	`,
		id, req.OrganizationID, req.WorkspaceID, req.ApiKeyID, req.ModelName,
		req.InputTokens, req.OutputTokens, cost.Input, cost.Output, cost.Total,
		string(req.InferenceType), now, req.TTFTMillis, req.AvgITLMillis, req.InferenceID, externalID,
	)

	log, err := scanLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict fired: select the row that already exists.
		existing, err := selectByExternalID(ctx, tx, req.OrganizationID, req.ExternalID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return log, true, nil
}

func selectByExternalID(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, externalID string) (*usage.Log, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, organization_id, workspace_id, api_key_id, model_name,
			input_tokens, output_tokens, input_cost, output_cost, total_cost,
			inference_type, created_at, ttft_ms, avg_itl_ms, inference_id, external_id
		FROM organization_usage_log
		WHERE organization_id = $1 AND external_id = $2
	`, orgID, externalID)
	return scanLog(row)
}

func scanLog(row pgx.Row) (*usage.Log, error) {
	var l usage.Log
	var externalID *string
	err := row.Scan(
		&l.ID, &l.OrganizationID, &l.WorkspaceID, &l.ApiKeyID, &l.ModelName,
		&l.InputTokens, &l.OutputTokens, &l.InputCost, &l.OutputCost, &l.TotalCost,
		&l.InferenceType, &l.CreatedAt, &l.TTFTMillis, &l.AvgITLMillis, &l.InferenceID, &externalID,
	)
	if err != nil {
		return nil, err
	}
	if externalID != nil {
		l.ExternalID = *externalID
	}
	return &l, nil
}

func (s *Store) UpsertLimitsRow(ctx context.Context, orgID uuid.UUID, creditType usage.CreditType, source string, spendLimit catalog.Nano) (*usage.LimitsHistoryRow, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now()
	if _, err := tx.Exec(ctx, `
		UPDATE organization_limits_history
		SET effective_until = $4
		WHERE organization_id = $1 AND credit_type = $2 AND source = $3 AND effective_until IS NULL
	`, orgID, string(creditType), source, now); err != nil {
		return nil, err
	}

	row := usage.LimitsHistoryRow{
		ID:             uuid.New(),
		OrganizationID: orgID,
		CreditType:     creditType,
		Source:         source,
		SpendLimit:     spendLimit,
		EffectiveFrom:  now,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO organization_limits_history (id, organization_id, credit_type, source, spend_limit, effective_from, effective_until)
		VALUES ($1,$2,$3,$4,$5,$6,NULL)
	`, row.ID, row.OrganizationID, string(row.CreditType), row.Source, row.SpendLimit, row.EffectiveFrom); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &row, nil
}
