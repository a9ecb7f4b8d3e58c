package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/support-engine/internal/domain"
	apperrors "github.com/opsdesk/support-engine/pkg/util"
)

const principalKey = "auth_principal"

// AuthMiddleware validates bearer tokens and loads the caller identity.
type AuthMiddleware struct {
	verifier *TokenVerifier
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(verifier *TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	user, err := m.verifier.Verify(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, user)
	return c.Next()
}

// UserFromContext retrieves the authenticated caller.
func UserFromContext(c *fiber.Ctx) (domain.AuthenticatedUser, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return domain.AuthenticatedUser{}, false
	}
	user, ok := val.(domain.AuthenticatedUser)
	return user, ok
}
