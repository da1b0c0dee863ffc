package env

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"cuedesk/reasoning/api_key": "CUEDESK_REASONING_API_KEY",
		"  openai.key ":             "OPENAI_KEY",
		"a//b--c":                   "A_B_C",
		"/leading/":                 "LEADING",
	}
	for ref, want := range tests {
		assert.Equal(t, want, VariableName(ref), ref)
	}
}

func TestStoreLookup(t *testing.T) {
	t.Parallel()

	vars := map[string]string{
		"CUEDESK_REASONING_API_KEY": " sk-derived ",
		"OPENAI_API_KEY":            "sk-override",
		"EMPTY":                     "",
	}
	store := &Store{lookup: func(name string) (string, bool) {
		value, ok := vars[name]
		return value, ok
	}}

	value, err := store.Lookup(context.Background(), "cuedesk/reasoning/api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-derived", value)

	store.overrides = map[string]string{"cuedesk/reasoning/api_key": "OPENAI_API_KEY"}
	value, err = store.Lookup(context.Background(), "cuedesk/reasoning/api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-override", value)

	_, err = store.Lookup(context.Background(), "empty")
	require.ErrorIs(t, err, ErrNotSet)
}

func TestStoreIsReadOnly(t *testing.T) {
	t.Parallel()

	store := NewStore(nil)
	require.ErrorIs(t, store.Store(context.Background(), "x", "y"), ErrReadOnly)
	require.ErrorIs(t, store.Remove(context.Background(), "x"), ErrReadOnly)
}
