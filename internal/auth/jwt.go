package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload issued by the platform's auth service.
type Claims struct {
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HS256 tokens signed with a shared secret.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

func (r *JWTResolver) Resolve(_ context.Context, tokenString string) (services.Identity, error) {
	if tokenString == "" {
		return services.Identity{}, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return services.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return services.Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return services.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return services.Identity{
		UserID: claims.Subject,
		Name:   claims.Name,
		Roles:  claims.Roles,
	}, nil
}

// Issue signs a token for id. Used by local tooling and tests.
func (r *JWTResolver) Issue(id services.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name:  id.Name,
		Roles: id.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}
