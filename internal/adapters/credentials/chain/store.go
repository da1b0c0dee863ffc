package chain

import (
	"context"
	"errors"
	"fmt"

	envstore "github.com/bnema/cuedesk/internal/adapters/credentials/env"
	filestore "github.com/bnema/cuedesk/internal/adapters/credentials/file"
	passstore "github.com/bnema/cuedesk/internal/adapters/credentials/pass"
	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
)

// Store consults its backends in order. Lookups return the first value
// found; writes land in the first backend that accepts them.
type Store struct {
	backends []ports.CredentialStore
}

var _ ports.CredentialStore = (*Store)(nil)

var errNoBackends = errors.New("credential chain has no backends")

func NewStore(backends ...ports.CredentialStore) (*Store, error) {
	filtered := make([]ports.CredentialStore, 0, len(backends))
	for _, backend := range backends {
		if backend != nil {
			filtered = append(filtered, backend)
		}
	}
	if len(filtered) == 0 {
		return nil, errNoBackends
	}

	return &Store{backends: filtered}, nil
}

// NewDefault reads the environment first, then pass, then files under fileRoot.
func NewDefault(fileRoot string, envOverrides map[string]string) (*Store, error) {
	return NewStore(envstore.NewStore(envOverrides), passstore.NewStore(), filestore.NewStore(fileRoot))
}

func (s *Store) Lookup(ctx context.Context, ref string) (string, error) {
	var errs []error
	for i, backend := range s.backends {
		value, err := backend.Lookup(ctx, ref)
		if err == nil {
			return value, nil
		}
		if shouldStop(err) {
			return "", err
		}
		errs = append(errs, fmt.Errorf("backend %d lookup failed: %w", i+1, err))
	}

	return "", errors.Join(errs...)
}

func (s *Store) Store(ctx context.Context, ref string, value string) error {
	var errs []error
	for i, backend := range s.backends {
		err := backend.Store(ctx, ref, value)
		if err == nil {
			return nil
		}
		if shouldStop(err) {
			return err
		}
		if !errors.Is(err, envstore.ErrReadOnly) {
			errs = append(errs, fmt.Errorf("backend %d store failed: %w", i+1, err))
		}
	}

	if len(errs) == 0 {
		return envstore.ErrReadOnly
	}
	return errors.Join(errs...)
}

// Remove deletes the credential from every writable backend.
func (s *Store) Remove(ctx context.Context, ref string) error {
	var errs []error
	removed := false
	for i, backend := range s.backends {
		err := backend.Remove(ctx, ref)
		switch {
		case err == nil:
			removed = true
		case shouldStop(err):
			return err
		case errors.Is(err, envstore.ErrReadOnly):
		default:
			errs = append(errs, fmt.Errorf("backend %d remove failed: %w", i+1, err))
		}
	}

	if removed {
		return nil
	}
	return errors.Join(errs...)
}

// shouldStop reports errors no other backend can recover from: cancellation
// and input every backend rejects alike.
func shouldStop(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, domain.ErrInvalidCredentialRef) ||
		errors.Is(err, domain.ErrInvalidCredential)
}
