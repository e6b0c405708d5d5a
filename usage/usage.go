// Package usage implements the Usage Service (§4.6): pricing lookup, cost
// calculation, pre-flight admission checks against an organization's credit
// balance, and atomic usage+balance recording with idempotency on an
// external id.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/modelgateway/core/catalog"
	"github.com/modelgateway/core/gatewayerr"
)

type (
	// InferenceType is the closed set of billable operation kinds §3 names.
	InferenceType string

	// CheckStatus is the closed result of a pre-flight admission check.
	CheckStatus string

	// CheckResult is the outcome of CheckCanUse.
	CheckResult struct {
		Status    CheckStatus
		Remaining catalog.Nano
		Spent     catalog.Nano
		Limit     catalog.Nano
	}

	// Balance mirrors §3's Balance entity: one row per organization.
	Balance struct {
		OrganizationID uuid.UUID
		TotalSpent     catalog.Nano
		TotalTokens    int64
		TotalRequests  int64
		LastUsageAt    time.Time
		UpdatedAt      time.Time
	}

	// RecordRequest is the input to RecordUsage (§4.6, §6's
	// RecordUsageRequest canonical shape). ExternalID is required at the API
	// boundary but optional for internal callers (the response state
	// machine records usage once per response and passes the
	// CreateResponseRequest's ExternalID, which may be empty). An empty
	// ExternalID is never deduplicated.
	RecordRequest struct {
		OrganizationID uuid.UUID
		WorkspaceID    uuid.UUID
		ApiKeyID       uuid.UUID
		ModelName      string
		InferenceType  InferenceType
		InputTokens    int64
		OutputTokens   int64
		ImageCount     int64
		TTFTMillis     *int64
		AvgITLMillis   *int64
		InferenceID    string
		ExternalID     string
	}

	// Log mirrors §3's UsageLog entity, the row persisted (or replayed on
	// idempotent conflict) by RecordUsage.
	Log struct {
		ID             uuid.UUID
		OrganizationID uuid.UUID
		WorkspaceID    uuid.UUID
		ApiKeyID       uuid.UUID
		ModelID        uuid.UUID
		ModelName      string
		InferenceType  InferenceType
		InputTokens    int64
		OutputTokens   int64
		InputCost      catalog.Nano
		OutputCost     catalog.Nano
		TotalCost      catalog.Nano
		CreatedAt      time.Time
		TTFTMillis     *int64
		AvgITLMillis   *int64
		InferenceID    string
		ExternalID     string
	}

	// CreditType distinguishes the two kinds of OrganizationLimitsHistory
	// rows §3 names: a promotional grant versus a paid top-up. Both
	// contribute to the organization's effective spend limit (§4.6 "Limits
	// update": the effective limit is the sum across active rows).
	CreditType string

	// LimitsHistoryRow is one append-only row in an organization's limits
	// history (§3's OrganizationLimitsHistory).
	LimitsHistoryRow struct {
		ID             uuid.UUID
		OrganizationID uuid.UUID
		CreditType     CreditType
		Source         string
		SpendLimit     catalog.Nano
		EffectiveFrom  time.Time
		EffectiveUntil *time.Time
	}

	// Store is the persistence port the Usage Service depends on. A pgx
	// implementation lives in usage/pgstore; tests substitute an in-memory
	// fake. All methods are expected to be safe for concurrent use; atomicity
	// requirements (§5, §8) are the Store implementation's responsibility.
	Store interface {
		// GetBalance returns the organization's balance row, or
		// (nil, nil) if none exists yet.
		GetBalance(ctx context.Context, orgID uuid.UUID) (*Balance, error)

		// ActiveLimitsTotal sums SpendLimit across every currently-active
		// (EffectiveUntil IS NULL) history row for the organization. It
		// returns (0, false, nil) when no active rows exist at all,
		// feeding §4.6's four-way presence match against balance
		// presence (see CheckCanUse).
		ActiveLimitsTotal(ctx context.Context, orgID uuid.UUID) (limit catalog.Nano, hasLimit bool, err error)

		// RecordUsage inserts a UsageLog row and atomically upserts the
		// Balance row in one transaction. If req.ExternalID is non-empty
		// and a row with the same (organization_id, external_id) already
		// exists, RecordUsage returns that existing row unchanged
		// (idempotent replay, §4.6 step 4) and does not touch Balance.
		RecordUsage(ctx context.Context, req RecordRequest, cost CostBreakdown) (*Log, error)

		// UpsertLimitsRow closes any existing active row for
		// (org_id, credit_type, source) by setting its EffectiveUntil to
		// now, then inserts a new active row with the given SpendLimit
		// (§4.6 "Limits update").
		UpsertLimitsRow(ctx context.Context, orgID uuid.UUID, creditType CreditType, source string, spendLimit catalog.Nano) (*LimitsHistoryRow, error)
	}

	// CostBreakdown is the result of calculating a RecordRequest's cost
	// against catalog pricing, per the §4.6/§C.4 formula branches.
	CostBreakdown struct {
		Input  catalog.Nano
		Output catalog.Nano
		Total  catalog.Nano
	}

	// Service is the Usage Service (§4.6). It composes the Catalog (for
	// pricing lookups) with a Store (for balance/limits/log persistence).
	Service struct {
		catalog *catalog.Catalog
		store   Store
	}
)

const (
	InferenceChatCompletion    InferenceType = "chat_completion"
	InferenceImageGeneration   InferenceType = "image_generation"
	InferenceImageEdit         InferenceType = "image_edit"
	InferenceRerank            InferenceType = "rerank"
	InferenceScore             InferenceType = "score"
	InferenceEmbedding         InferenceType = "embedding"
	InferenceTranscription     InferenceType = "transcription"
	InferenceSpeech            InferenceType = "speech"
)

const (
	// CheckAllowed means the organization has remaining credit; Remaining
	// reports how much.
	CheckAllowed CheckStatus = "allowed"
	// CheckLimitExceeded means spend has reached or passed the active limit.
	CheckLimitExceeded CheckStatus = "limit_exceeded"
	// CheckNoLimitSet means the organization has a balance row (has spent
	// before) but no active limits row — denied per the conservative
	// canonical behavior §9's Open Questions ratifies.
	CheckNoLimitSet CheckStatus = "no_limit_set"
	// CheckNoCredits means neither a balance nor a limits row exists, or
	// there is no balance row and the active limit is non-positive: "no
	// credits, no calls." With a balance row, a non-positive limit yields
	// CheckLimitExceeded instead.
	CheckNoCredits CheckStatus = "no_credits"
)

const (
	CreditTypeGrant   CreditType = "grant"
	CreditTypePayment CreditType = "payment"
)

// New builds a Service over the given Catalog and Store.
func New(cat *catalog.Catalog, store Store) *Service {
	return &Service{catalog: cat, store: store}
}

// CheckCanUse implements the pre-flight admission check (§4.6). It follows
// the four-way (balance, limit) presence match ported verbatim from the
// original implementation's check_can_use (§C.3): the conservative "no
// credits, no calls" branch is canonical per §9's Open Questions, superseding
// an older permissive code path that is not reproduced here.
func (s *Service) CheckCanUse(ctx context.Context, orgID uuid.UUID) (CheckResult, error) {
	balance, err := s.store.GetBalance(ctx, orgID)
	if err != nil {
		return CheckResult{}, gatewayerr.Wrap(gatewayerr.Internal, err, "failed to load balance")
	}
	limit, hasLimit, err := s.store.ActiveLimitsTotal(ctx, orgID)
	if err != nil {
		return CheckResult{}, gatewayerr.Wrap(gatewayerr.Internal, err, "failed to load limits")
	}

	switch {
	case balance != nil && hasLimit:
		if balance.TotalSpent >= limit {
			return CheckResult{Status: CheckLimitExceeded, Spent: balance.TotalSpent, Limit: limit}, nil
		}
		return CheckResult{Status: CheckAllowed, Remaining: limit - balance.TotalSpent}, nil
	case balance != nil && !hasLimit:
		// Has spent before but carries no active limit row: deny.
		return CheckResult{Status: CheckNoLimitSet, Spent: balance.TotalSpent}, nil
	case balance == nil && hasLimit:
		if limit > 0 {
			return CheckResult{Status: CheckAllowed, Remaining: limit}, nil
		}
		return CheckResult{Status: CheckNoCredits}, nil
	default:
		return CheckResult{Status: CheckNoCredits}, nil
	}
}

// CalculateCost computes the §4.6/§C.4 cost formula for req against the
// catalog's current pricing for req.ModelName, without recording anything.
func (s *Service) CalculateCost(req RecordRequest) (CostBreakdown, *catalog.Model, error) {
	m, err := s.catalog.Lookup(req.ModelName)
	if err != nil {
		return CostBreakdown{}, nil, err
	}
	return costFor(req, m), m, nil
}

// costFor branches on inference type exactly as §C.4 specifies: chat and
// unrecognized types bill input+output tokens, image generation/edit bills
// per image, and rerank/score bill input tokens only.
func costFor(req RecordRequest, m *catalog.Model) CostBreakdown {
	switch req.InferenceType {
	case InferenceImageGeneration, InferenceImageEdit:
		cost := m.CostPerImage * catalog.Nano(req.ImageCount)
		return CostBreakdown{Output: cost, Total: cost}
	case InferenceRerank, InferenceScore:
		cost := m.InputCostPerToken * catalog.Nano(req.InputTokens)
		return CostBreakdown{Input: cost, Total: cost}
	default:
		input, output, total := m.CostNano(int(req.InputTokens), int(req.OutputTokens))
		return CostBreakdown{Input: input, Output: output, Total: total}
	}
}

// RecordUsage implements §4.6's recording procedure: look up pricing,
// compute cost, and persist the UsageLog+Balance atomically via Store,
// which is responsible for the idempotent-replay semantics on
// (organization_id, external_id) conflicts.
func (s *Service) RecordUsage(ctx context.Context, req RecordRequest) (*Log, CostBreakdown, error) {
	cost, m, err := s.CalculateCost(req)
	if err != nil {
		return nil, CostBreakdown{}, err
	}
	log, err := s.store.RecordUsage(ctx, req, cost)
	if err != nil {
		return nil, CostBreakdown{}, gatewayerr.Wrap(gatewayerr.Internal, err, "failed to record usage")
	}
	if log.ModelID == uuid.Nil {
		log.ModelID = m.ID
	}
	if log.ModelName == "" {
		log.ModelName = m.Name
	}
	return log, cost, nil
}

// UpdateLimits implements §4.6's admin-only limits update: it writes a new
// active OrganizationLimitsHistory row and closes any prior active row for
// the same (org, credit_type, source), per §3's invariant that updates
// replace rather than mutate.
func (s *Service) UpdateLimits(ctx context.Context, orgID uuid.UUID, creditType CreditType, source string, spendLimit catalog.Nano) (*LimitsHistoryRow, error) {
	if spendLimit < 0 {
		return nil, gatewayerr.New(gatewayerr.InvalidParams, "spend_limit must not be negative")
	}
	row, err := s.store.UpsertLimitsRow(ctx, orgID, creditType, source, spendLimit)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.Internal, err, "failed to update limits")
	}
	return row, nil
}
