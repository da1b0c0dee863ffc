package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRef = "cuedesk/reasoning/api_key"

func TestStoreRejectsInvalidRefs(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	for _, ref := range []string{"", "   ", "/etc/passwd", "../escape", "cuedesk/../../escape", ".hidden", "cuedesk//key"} {
		t.Run(ref, func(t *testing.T) {
			require.ErrorIs(t, store.Store(context.Background(), ref, "value"), domain.ErrInvalidCredentialRef)
			_, err := store.Lookup(context.Background(), ref)
			require.ErrorIs(t, err, domain.ErrInvalidCredentialRef)
		})
	}
}

func TestStoreRejectsMalformedKeys(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	for _, value := range []string{"", "  \n", "sk test", "sk-a\nsk-b"} {
		require.ErrorIs(t, store.Store(context.Background(), testRef, value), domain.ErrInvalidCredential)
	}
	assert.NoFileExists(t, filepath.Join(root, testRef))
}

func TestStoreRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)

	require.NoError(t, store.Store(context.Background(), testRef, "sk-test\n"))

	got, err := store.Lookup(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", got)

	info, err := os.Stat(filepath.Join(root, testRef))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(credentialFileMod), info.Mode().Perm())
}

func TestStoreLookupMissing(t *testing.T) {
	t.Parallel()

	_, err := NewStore(t.TempDir()).Lookup(context.Background(), testRef)
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestStoreLookupRefusesLooseFilePermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, store.Store(context.Background(), testRef, "sk-test"))

	path := filepath.Join(root, testRef)
	require.NoError(t, os.Chmod(path, 0o644))

	_, err := store.Lookup(context.Background(), testRef)
	require.Error(t, err)
	assert.ErrorContains(t, err, "has mode 0644")
}

func TestStoreOverwriteLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, store.Store(context.Background(), testRef, "sk-first"))
	require.NoError(t, store.Store(context.Background(), testRef, "sk-second"))

	got, err := store.Lookup(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, "sk-second", got)

	entries, err := os.ReadDir(filepath.Dir(filepath.Join(root, testRef)))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "api_key", entries[0].Name())
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	require.NoError(t, store.Remove(context.Background(), testRef))
	require.NoError(t, store.Remove(context.Background(), testRef))
}
