// Package organization implements the Organization entity (§3): the tenant
// record CreateResponse reads its per-organization concurrency limit and
// default system prompt from.
package organization

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/modelgateway/core/catalog"
	"github.com/modelgateway/core/gatewayerr"
)

type (
	// Settings mirrors §3's Organization.settings. SystemPrompt is nil when
	// unset, matching the GET {system_prompt: null} response in E2E
	// scenario 6.
	Settings struct {
		SystemPrompt *string
	}

	// Organization mirrors §3's Organization entity. SpendLimit and
	// ConcurrentLimit are optional: a nil ConcurrentLimit means the pool's
	// default applies (provider.defaultConcurrentLimit); SpendLimit is
	// superseded by the summed OrganizationLimitsHistory rows the Usage
	// Service reads (§4.6) and is carried here only for completeness with
	// §3's shape.
	Organization struct {
		ID              uuid.UUID
		IsActive        bool
		SpendLimit      *catalog.Nano
		ConcurrentLimit *int
		Settings        Settings
	}

	// SettingsPatch is the tri-state input to UpdateSettings, modeling
	// PATCH's omit/set/null distinction (§4.4 step 2, E2E scenario 6):
	// SystemPrompt == nil means the field was omitted from the request body
	// and the existing value is preserved; a non-nil pointer to a nil
	// *string means the field was present with value null and clears the
	// setting; a non-nil pointer to a non-nil *string sets it.
	SettingsPatch struct {
		SystemPrompt **string
	}

	// Store is the persistence port Organization lookups and updates
	// depend on, matching the usage.Store/responses.Store port pattern: a
	// pgx implementation would live alongside theirs, tests and small
	// deployments use MemoryStore.
	Store interface {
		// GetOrganization returns the organization row, or NotFound if it
		// does not exist.
		GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error)

		// UpdateSettings applies patch to the organization's settings and
		// returns the updated row. Idempotent: applying the same patch
		// twice (e.g. PATCH {system_prompt: null} after it is already
		// null) produces the same result both times.
		UpdateSettings(ctx context.Context, id uuid.UUID, patch SettingsPatch) (*Organization, error)
	}

	// MemoryStore is an in-process Store for tests and deployments that do
	// not need cross-replica persistence, matching responses.MemoryStore's
	// shape.
	MemoryStore struct {
		mu   sync.RWMutex
		byID map[uuid.UUID]*Organization
	}
)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]*Organization)}
}

// Put inserts or replaces an organization row, for seeding tests and small
// deployments that configure organizations out of band.
func (s *MemoryStore) Put(org *Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *org
	s.byID[org.ID] = &cp
}

func (s *MemoryStore) GetOrganization(_ context.Context, id uuid.UUID) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.byID[id]
	if !ok {
		return nil, gatewayerr.Errorf(gatewayerr.NotFound, "organization %s not found", id)
	}
	cp := *org
	return &cp, nil
}

func (s *MemoryStore) UpdateSettings(_ context.Context, id uuid.UUID, patch SettingsPatch) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.byID[id]
	if !ok {
		org = &Organization{ID: id, IsActive: true}
		s.byID[id] = org
	}
	if patch.SystemPrompt != nil {
		org.Settings.SystemPrompt = *patch.SystemPrompt
	}
	cp := *org
	return &cp, nil
}
