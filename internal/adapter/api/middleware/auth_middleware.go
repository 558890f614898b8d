package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"marketchat/internal/domain/entity"
	"marketchat/internal/infrastructure/firebase"
)

const identityContextKey = "identity"

type AuthMiddleware struct {
	authClient *firebase.AuthClient
}

func NewAuthMiddleware(authClient *firebase.AuthClient) *AuthMiddleware {
	return &AuthMiddleware{
		authClient: authClient,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		identity, err := m.authClient.VerifyToken(c.Request().Context(), parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set(identityContextKey, identity)
		return next(c)
	}
}

// CallerIdentity returns the identity stashed by Authenticate. Without it the
// zero Identity is returned, which every chat operation rejects as not
// signed in.
func CallerIdentity(c echo.Context) entity.Identity {
	if identity, ok := c.Get(identityContextKey).(entity.Identity); ok {
		return identity
	}
	return entity.Identity{}
}
