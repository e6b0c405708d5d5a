package responses

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/modelgateway/core/gatewayerr"
)

// Store is the persistence port the state machine depends on for
// Conversations, Responses, and the ResponseItems that belong to them.
// Grounded on §9's Open Questions: "list_conversation_items ... pulls from a
// dedicated response_items repository" is the canonical behavior (the
// mock-returning empty-list variant is not reproduced here).
type Store interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error)
	GetResponse(ctx context.Context, id uuid.UUID) (*Response, error)
	SaveResponse(ctx context.Context, r *Response) error
	// ListConversationItems returns every output item across every response
	// belonging to the conversation, in response-then-output-index order,
	// to hydrate Prepare's input (§4.4).
	ListConversationItems(ctx context.Context, conversationID uuid.UUID) ([]Item, error)
}

// MemoryStore is an in-process Store used by tests and by deployments that
// do not need cross-replica persistence. A production deployment would
// back this with the pgx-backed usage ledger's sibling store for
// conversations/responses (out of scope here per §1: "the database schema
// proper ... interfaces, not contracts").
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*Conversation
	responsesByID map[uuid.UUID]*Response
	// responsesByConv preserves creation order per conversation so
	// ListConversationItems can replay items in the order they were
	// produced.
	responsesByConv map[uuid.UUID][]uuid.UUID
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations:   make(map[uuid.UUID]*Conversation),
		responsesByID:   make(map[uuid.UUID]*Response),
		responsesByConv: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *MemoryStore) PutConversation(c *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = c
}

func (s *MemoryStore) GetConversation(_ context.Context, id uuid.UUID) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, gatewayerr.Errorf(gatewayerr.NotFound, "conversation %s not found", id)
	}
	return c, nil
}

func (s *MemoryStore) GetResponse(_ context.Context, id uuid.UUID) (*Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responsesByID[id]
	if !ok {
		return nil, gatewayerr.Errorf(gatewayerr.NotFound, "response %s not found", id)
	}
	return r, nil
}

func (s *MemoryStore) SaveResponse(_ context.Context, r *Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.responsesByID[r.ID]; !exists && r.ConversationID != nil {
		s.responsesByConv[*r.ConversationID] = append(s.responsesByConv[*r.ConversationID], r.ID)
	}
	s.responsesByID[r.ID] = r
	return nil
}

func (s *MemoryStore) ListConversationItems(_ context.Context, conversationID uuid.UUID) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []Item
	for _, rid := range s.responsesByConv[conversationID] {
		if r, ok := s.responsesByID[rid]; ok {
			items = append(items, r.OutputItems...)
		}
	}
	return items, nil
}
