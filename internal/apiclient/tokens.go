package apiclient

import (
	"context"

	"github.com/SigNoz/marketplace-storefront/internal/localstore"
)

// TokenSource yields the bearer credential for the next request, "" when signed out
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StoreTokenSource reads the credential from the local store on every call
type StoreTokenSource struct {
	Store localstore.Store
	Key   string
}

func (s StoreTokenSource) Token(ctx context.Context) (string, error) {
	v, _, err := s.Store.Get(ctx, s.Key)
	return v, err
}

// StaticToken always returns the same credential
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }
