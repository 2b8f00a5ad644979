package auth

import (
	"context"
	"fmt"

	"github.com/ask4sham/letsrevise-attempts/internal/config"
	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
)

// CasdoorResolver verifies tokens issued by a Casdoor identity server.
type CasdoorResolver struct {
	client *casdoorsdk.Client
}

func NewCasdoorResolver(cfg config.CasdoorConfig) *CasdoorResolver {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.OrganizationName,
		cfg.ApplicationName,
	)
	return &CasdoorResolver{client: client}
}

func (r *CasdoorResolver) Resolve(_ context.Context, token string) (services.Identity, error) {
	if token == "" {
		return services.Identity{}, ErrMissingToken
	}

	claims, err := r.client.ParseJwtToken(token)
	if err != nil {
		return services.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID := claims.User.Id
	if userID == "" {
		// Casdoor names are unique per organization.
		userID = claims.User.Owner + "/" + claims.User.Name
	}

	id := services.Identity{
		UserID: userID,
		Name:   claims.User.DisplayName,
	}
	if claims.User.IsAdmin {
		id.Roles = append(id.Roles, "admin")
	}
	return id, nil
}
