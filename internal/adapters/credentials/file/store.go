package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
)

const (
	storeDirMode      = 0o700
	credentialFileMod = 0o600
)

// Store keeps each API key in its own 0600 file under root. Files readable by
// group or others are refused, the way ssh refuses loose private keys.
type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// Store replaces the key atomically so a crash never leaves a half-written file.
func (s *Store) Store(ctx context.Context, ref string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForRef(ref)
	if err != nil {
		return err
	}
	value, err = domain.NormalizeCredential(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write credential %q: %w", ref, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Chmod(credentialFileMod); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credential %q: %w", ref, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credential %q: %w", ref, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credential %q: %w", ref, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("write credential %q: %w", ref, err)
	}

	return nil
}

func (s *Store) Lookup(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.pathForRef(ref)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("credential %q: %w: %w", ref, domain.ErrCredentialNotFound, err)
		}
		return "", fmt.Errorf("read credential %q: %w", ref, err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return "", fmt.Errorf("credential file %s has mode %04o, want %04o", path, perm, credentialFileMod)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read credential %q: %w", ref, err)
	}

	value, err := domain.NormalizeCredential(string(data))
	if err != nil {
		return "", fmt.Errorf("credential %q: %w", ref, err)
	}
	return value, nil
}

func (s *Store) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForRef(ref)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential %q: %w", ref, err)
	}

	return nil
}

func (s *Store) pathForRef(ref string) (string, error) {
	parsed, err := domain.ParseCredentialRef(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(parsed)), nil
}
