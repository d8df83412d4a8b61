package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/repository"
)

// UserDirectory looks up the portal user row of a Keycloak account.
type UserDirectory interface {
	GetByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error)
	MigrateByEmail(ctx context.Context, email, keycloakID string) (*model.User, error)
}

// Identity resolves the auth.Actor of the request once, after JWTAuth.  Sites
// come from the users table; an account without a row has none.  With
// migrate set, an unknown Keycloak id is matched by email and re-keyed.
func Identity(users UserDirectory, migrate bool, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(ClaimsKey).(*KeycloakClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			ctx := c.Request().Context()

			user, err := users.GetByKeycloakID(ctx, claims.Subject)
			if errors.Is(err, repository.ErrNotFound) && migrate && claims.Email != "" {
				user, err = users.MigrateByEmail(ctx, claims.Email, claims.Subject)
				if err == nil {
					log.Info("user re-keyed to new keycloak id",
						zap.String("keycloak_id", claims.Subject), zap.Int64("user_id", user.ID))
				}
			}
			var sites []int64
			switch {
			case err == nil:
				sites = user.Sites
			case errors.Is(err, repository.ErrNotFound):
			default:
				log.Error("resolve user", zap.String("keycloak_id", claims.Subject), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}

			actor := auth.NewActor(claims.Subject, claims.PreferredUsername, claims.Email, claims.RealmAccess.Roles, sites)
			c.Set(auth.ContextKey, actor)
			return next(c)
		}
	}
}

// ActorFrom returns the actor Identity stored on c.
func ActorFrom(c echo.Context) (auth.Actor, bool) {
	a, ok := c.Get(auth.ContextKey).(auth.Actor)
	return a, ok
}

// actorID returns the subject of the request, or "anon" before
// authentication.
func actorID(c echo.Context) string {
	if a, ok := ActorFrom(c); ok && a.ID != "" {
		return a.ID
	}
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return "anon"
}
