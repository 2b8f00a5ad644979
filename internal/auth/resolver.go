package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ask4sham/letsrevise-attempts/internal/config"
	"github.com/ask4sham/letsrevise-attempts/internal/services"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// IdentityResolver turns a bearer token into the caller's identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (services.Identity, error)
}

// NewResolver builds the resolver selected by AUTH_PROVIDER.
func NewResolver(cfg *config.Config) (IdentityResolver, error) {
	switch cfg.Auth.Provider {
	case config.AuthJWT:
		return NewJWTResolver(cfg.JWTSecret), nil
	case config.AuthCasdoor:
		return NewCasdoorResolver(cfg.Auth.Casdoor), nil
	default:
		return nil, fmt.Errorf("unsupported auth provider: %s", cfg.Auth.Provider)
	}
}
