package responses

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetResponse_NotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetResponse(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestMemoryStore_GetConversation_NotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetConversation(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestMemoryStore_SaveAndGetResponse_RoundTrips(t *testing.T) {
	s := NewMemoryStore()
	r := &Response{ID: uuid.New(), Status: StatusCompleted, Model: "gpt-4.1"}

	require.NoError(t, s.SaveResponse(context.Background(), r))

	got, err := s.GetResponse(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestMemoryStore_ListConversationItems_PreservesCreationOrder(t *testing.T) {
	s := NewMemoryStore()
	convID := uuid.New()
	s.PutConversation(&Conversation{ID: convID})

	first := &Response{ID: uuid.New(), ConversationID: &convID, OutputItems: []Item{&Message{Role: "user"}}}
	second := &Response{ID: uuid.New(), ConversationID: &convID, OutputItems: []Item{&Message{Role: "assistant"}}}

	require.NoError(t, s.SaveResponse(context.Background(), first))
	require.NoError(t, s.SaveResponse(context.Background(), second))

	items, err := s.ListConversationItems(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "user", items[0].(*Message).Role)
	assert.Equal(t, "assistant", items[1].(*Message).Role)
}

func TestMemoryStore_SaveResponse_UpdateDoesNotDuplicateConversationEntry(t *testing.T) {
	s := NewMemoryStore()
	convID := uuid.New()
	r := &Response{ID: uuid.New(), ConversationID: &convID, Status: StatusInProgress}

	require.NoError(t, s.SaveResponse(context.Background(), r))
	r.Status = StatusCompleted
	require.NoError(t, s.SaveResponse(context.Background(), r))

	items, err := s.ListConversationItems(context.Background(), convID)
	require.NoError(t, err)
	assert.Empty(t, items)

	got, err := s.GetResponse(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestMemoryStore_ListConversationItems_UnknownConversationReturnsEmpty(t *testing.T) {
	s := NewMemoryStore()
	items, err := s.ListConversationItems(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, items)
}
