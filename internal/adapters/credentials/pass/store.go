package pass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
)

var ErrUnavailable = errors.New("pass command unavailable")

// pass reports a missing entry on stderr with this phrase.
const notInStore = "is not in the password store"

type runFunc func(ctx context.Context, input string, args ...string) (stdout string, stderr string, err error)

// Store keeps API keys in the pass password manager. Refs are validated
// before they reach the command line and values are normalized both ways.
type Store struct {
	run runFunc
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{run: runPassCommand}
}

func (s *Store) Store(ctx context.Context, ref string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ref, err := domain.ParseCredentialRef(ref)
	if err != nil {
		return err
	}
	value, err = domain.NormalizeCredential(value)
	if err != nil {
		return err
	}

	_, stderr, err := s.run(ctx, value+"\n", "insert", "-m", "-f", ref)
	if err != nil {
		return formatError("insert", ref, err, stderr)
	}

	return nil
}

// Lookup returns the first line of the entry; pass keeps free-form notes
// such as the provider URL below it.
func (s *Store) Lookup(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref, err := domain.ParseCredentialRef(ref)
	if err != nil {
		return "", err
	}

	stdout, stderr, err := s.run(ctx, "", "show", ref)
	if err != nil {
		if strings.Contains(stderr, notInStore) {
			return "", fmt.Errorf("pass entry %q: %w", ref, domain.ErrCredentialNotFound)
		}
		return "", formatError("show", ref, err, stderr)
	}

	first, _, _ := strings.Cut(stdout, "\n")
	value, err := domain.NormalizeCredential(first)
	if err != nil {
		return "", fmt.Errorf("pass entry %q: %w", ref, err)
	}
	return value, nil
}

// Remove succeeds when the entry is already gone.
func (s *Store) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ref, err := domain.ParseCredentialRef(ref)
	if err != nil {
		return err
	}

	_, stderr, err := s.run(ctx, "", "rm", "-f", ref)
	if err != nil {
		if strings.Contains(stderr, notInStore) {
			return nil
		}
		return formatError("rm", ref, err, stderr)
	}

	return nil
}

func runPassCommand(ctx context.Context, input string, args ...string) (string, string, error) {
	path, err := exec.LookPath("pass")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate pass command: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

func formatError(op string, ref string, err error, stderr string) error {
	if stderr == "" {
		return fmt.Errorf("pass %s %q: %w", op, ref, err)
	}

	return fmt.Errorf("pass %s %q: %w: %s", op, ref, err, stderr)
}
