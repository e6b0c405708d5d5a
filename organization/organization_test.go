package organization

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetOrganization_NotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetOrganization(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestMemoryStore_UpdateSettings_PatchSemantics(t *testing.T) {
	s := NewMemoryStore()
	id := uuid.New()
	s.Put(&Organization{ID: id, IsActive: true})

	// GET before any PATCH: system_prompt is null.
	org, err := s.GetOrganization(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, org.Settings.SystemPrompt)

	// PATCH {system_prompt: "A"} sets it.
	a := "A"
	aPtr := &a
	org, err = s.UpdateSettings(context.Background(), id, SettingsPatch{SystemPrompt: &aPtr})
	require.NoError(t, err)
	require.NotNil(t, org.Settings.SystemPrompt)
	assert.Equal(t, "A", *org.Settings.SystemPrompt)

	// PATCH {} (omitted) preserves the existing value.
	org, err = s.UpdateSettings(context.Background(), id, SettingsPatch{})
	require.NoError(t, err)
	require.NotNil(t, org.Settings.SystemPrompt)
	assert.Equal(t, "A", *org.Settings.SystemPrompt)

	// PATCH {system_prompt: null} clears it.
	var nilStr *string
	org, err = s.UpdateSettings(context.Background(), id, SettingsPatch{SystemPrompt: &nilStr})
	require.NoError(t, err)
	assert.Nil(t, org.Settings.SystemPrompt)

	// PATCH {system_prompt: null} again is idempotent.
	org, err = s.UpdateSettings(context.Background(), id, SettingsPatch{SystemPrompt: &nilStr})
	require.NoError(t, err)
	assert.Nil(t, org.Settings.SystemPrompt)
}

func TestMemoryStore_UpdateSettings_CreatesMissingOrganization(t *testing.T) {
	s := NewMemoryStore()
	id := uuid.New()
	prompt := "default prompt"
	promptPtr := &prompt

	org, err := s.UpdateSettings(context.Background(), id, SettingsPatch{SystemPrompt: &promptPtr})
	require.NoError(t, err)
	assert.Equal(t, id, org.ID)
	assert.Equal(t, "default prompt", *org.Settings.SystemPrompt)
}
