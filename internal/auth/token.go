package auth

import (
	"errors"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/opsdesk/support-engine/internal/domain"
)

// TokenVerifier validates bearer tokens issued by the identity provider.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier builds a verifier over a shared HS256 secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Claims describes the identity-provider JWT payload.
type Claims struct {
	Role           domain.Role `json:"role"`
	OrganizationID string      `json:"org"`
	Email          string      `json:"email"`
	DisplayName    string      `json:"name"`
	jwt.RegisteredClaims
}

// Verify validates the token and returns the authenticated caller.
func (tv *TokenVerifier) Verify(tokenStr string) (domain.AuthenticatedUser, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tv.secret, nil
	})
	if err != nil {
		return domain.AuthenticatedUser{}, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.AuthenticatedUser{}, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return domain.AuthenticatedUser{}, errors.New("token missing subject")
	}
	role := claims.Role
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}

	return domain.AuthenticatedUser{
		ID:             claims.Subject,
		Role:           role,
		OrganizationID: claims.OrganizationID,
		Email:          claims.Email,
		DisplayName:    claims.DisplayName,
	}, nil
}
