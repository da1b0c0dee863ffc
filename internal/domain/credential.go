package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	ErrCredentialNotFound   = errors.New("credential not found")
	ErrInvalidCredentialRef = errors.New("invalid credential ref")
	ErrInvalidCredential    = errors.New("invalid credential value")
)

// A ref is one or more slash-separated segments. Segments cannot start with
// a dot or a dash, so a ref never reads as a flag or a hidden path.
var credentialRefSegment = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]*$`)

// ParseCredentialRef trims ref and checks every segment.
func ParseCredentialRef(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCredentialRef)
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if !credentialRefSegment.MatchString(segment) {
			return "", fmt.Errorf("%w %q", ErrInvalidCredentialRef, ref)
		}
	}
	return trimmed, nil
}

// NormalizeCredential trims surrounding whitespace and rejects values that
// cannot be sent as a bearer token.
func NormalizeCredential(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCredential)
	}
	for _, r := range trimmed {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", fmt.Errorf("%w: contains whitespace or control characters", ErrInvalidCredential)
		}
	}
	return trimmed, nil
}
