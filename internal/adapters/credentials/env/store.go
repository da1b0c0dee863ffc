package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bnema/cuedesk/internal/ports"
)

var (
	ErrNotSet   = errors.New("credential environment variable not set")
	ErrReadOnly = errors.New("environment credentials are read-only")
)

// Store resolves a credential ref such as "cuedesk/reasoning/api_key" from
// the variable CUEDESK_REASONING_API_KEY. An explicit override map takes
// precedence over the derived name.
type Store struct {
	lookup    func(string) (string, bool)
	overrides map[string]string
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(overrides map[string]string) *Store {
	return &Store{lookup: os.LookupEnv, overrides: overrides}
}

func (s *Store) Lookup(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := VariableName(ref)
	if override, ok := s.overrides[ref]; ok && override != "" {
		name = override
	}

	value, ok := s.lookup(name)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", ErrNotSet, name)
	}

	return value, nil
}

func (s *Store) Store(context.Context, string, string) error {
	return ErrReadOnly
}

func (s *Store) Remove(context.Context, string) error {
	return ErrReadOnly
}

// VariableName maps a credential ref onto an upper-case environment name.
func VariableName(ref string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToUpper(strings.TrimSpace(ref)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
