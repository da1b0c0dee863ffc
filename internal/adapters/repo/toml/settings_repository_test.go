package toml

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSettingsRepo(t *testing.T) (*SettingsRepository, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.toml")
	cfg := viper.New()
	cfg.Set("settings.path", path)

	repo, err := NewSettingsRepository(cfg)
	require.NoError(t, err)
	return repo, path
}

func TestSettingsRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo, path := newSettingsRepo(t)

	settings := domain.DefaultSettings()
	settings.Mode = domain.ModeOffline
	settings.Reasoning.Model = "gpt-4.1-mini"
	settings.Reasoning.Temperature = 0
	settings.Reasoning.Timeout = 45 * time.Second
	settings.UpdatedAt = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(context.Background(), settings))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, settings, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(dataFileMode), info.Mode().Perm())
}

func TestSettingsRepositoryLoadMissing(t *testing.T) {
	t.Parallel()

	repo, _ := newSettingsRepo(t)
	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrSettingsNotFound)
}

func TestSettingsRepositoryFillsDefaults(t *testing.T) {
	t.Parallel()

	repo, path := newSettingsRepo(t)
	require.NoError(t, os.WriteFile(path, []byte("mode = \"local\"\n[reasoning]\nmodel = \"llama3\"\n"), 0o600))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)

	want := domain.DefaultSettings()
	want.Mode = domain.ModeOffline
	want.Reasoning.Model = "llama3"
	assert.Equal(t, want, got)
}

func TestSettingsRepositoryRejectsNewerSchema(t *testing.T) {
	t.Parallel()

	repo, path := newSettingsRepo(t)
	require.NoError(t, os.WriteFile(path, []byte("version = 9\nmode = \"auto\"\n"), 0o600))

	_, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported settings schema version 9")
}

func TestSettingsRepositoryRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	repo, path := newSettingsRepo(t)
	require.NoError(t, os.WriteFile(path, []byte("mode = \"sometimes\"\n"), 0o600))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestSettingsRepositoryConcurrentSaves(t *testing.T) {
	t.Parallel()

	repo, _ := newSettingsRepo(t)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			settings := domain.DefaultSettings()
			settings.Reasoning.MaxTokens = 100 + i
			assert.NoError(t, repo.Save(context.Background(), settings))
		}()
	}
	wg.Wait()

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Reasoning.MaxTokens, 100)
}

func TestSettingsRepositoryHonoursCanceledContext(t *testing.T) {
	t.Parallel()

	repo, _ := newSettingsRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, repo.Save(ctx, domain.DefaultSettings()), context.Canceled)
}
