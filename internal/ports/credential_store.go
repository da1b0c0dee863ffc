package ports

import "context"

type CredentialStore interface {
	Lookup(ctx context.Context, ref string) (string, error)
	Store(ctx context.Context, ref string, value string) error
	Remove(ctx context.Context, ref string) error
}
