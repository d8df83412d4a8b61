package handler

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/repository"
	"github.com/iliyamo/hcap-portal/internal/service"
)

// RealmRoleManager reads and grants Keycloak realm roles; *auth.Client
// implements it.
type RealmRoleManager interface {
	RealmRoles(ctx context.Context, userID string) ([]string, error)
	AssignRealmRole(ctx context.Context, userID, role string) error
}

// UserHandler serves the caller's profile and user approval.
type UserHandler struct {
	Users    *repository.UserRepo
	Sites    *repository.SiteRepo
	Keycloak RealmRoleManager
	Log      *zap.Logger
}

func NewUserHandler(users *repository.UserRepo, sites *repository.SiteRepo, kc RealmRoleManager, log *zap.Logger) *UserHandler {
	if users == nil || sites == nil || kc == nil || log == nil {
		panic("nil dependency passed to NewUserHandler")
	}
	return &UserHandler{Users: users, Sites: sites, Keycloak: kc, Log: log}
}

type approveUserReq struct {
	KeycloakID string   `json:"userId" validate:"required"`
	Email      string   `json:"email" validate:"required,email"`
	Username   string   `json:"username" validate:"required"`
	Role       string   `json:"role" validate:"required,oneof=employer health_authority ministry_of_health"`
	Regions    []string `json:"regions" validate:"omitempty,dive,required"`
	Sites      []int64  `json:"sites" validate:"omitempty,dive,gt=0"`
}

// Me handles GET /user.
func (h *UserHandler) Me(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	sites, err := h.Sites.ListByIDs(c.Request().Context(), a.Sites)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":           a.ID,
		"username":     a.Username,
		"email":        a.Email,
		"role":         a.Role,
		"regions":      a.Regions,
		"sites":        sites,
		"isMinistry":   a.Role.IsMinistry(),
		"capabilities": a.Role.Capabilities(),
	})
}

// List handles GET /users.
func (h *UserHandler) List(c echo.Context) error {
	rows, err := h.Users.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// Approve handles POST /approve-user.  It stores the user's sites, then
// grants the portal role and any region roles in Keycloak.
func (h *UserHandler) Approve(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req approveUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	role, _ := auth.ParseRole(req.Role)
	regions, err := normalizeRegions(req.Regions)
	if err != nil {
		return err
	}
	if role == auth.RoleHealthAuthority && len(regions) == 0 {
		return &service.ValidationError{
			Message: "a health authority user needs at least one region",
			Fields:  []service.FieldError{{Field: "regions", Rule: "required"}},
		}
	}
	ctx := c.Request().Context()
	if len(req.Sites) > 0 {
		found, err := h.Sites.ListByIDs(ctx, req.Sites)
		if err != nil {
			return err
		}
		if len(found) != len(req.Sites) {
			return fmt.Errorf("one or more sites: %w", repository.ErrNotFound)
		}
	}

	user, err := h.Users.Upsert(ctx, req.KeycloakID, req.Email, req.Username, req.Sites)
	if err != nil {
		return err
	}
	roles := []string{string(role)}
	for _, r := range regions {
		roles = append(roles, "region_"+strings.ToLower(strings.ReplaceAll(r, " ", "_")))
	}
	have, err := h.Keycloak.RealmRoles(ctx, req.KeycloakID)
	if err != nil {
		return fmt.Errorf("read realm roles: %w", err)
	}
	granted := missingRoles(roles, have)
	for _, r := range granted {
		if err := h.Keycloak.AssignRealmRole(ctx, req.KeycloakID, r); err != nil {
			return fmt.Errorf("assign realm role %s: %w", r, err)
		}
	}
	h.Log.Info("user approved",
		zap.String("actor_id", a.ID),
		zap.String("keycloak_id", req.KeycloakID),
		zap.Strings("roles", roles),
		zap.Strings("granted", granted),
		zap.Int64s("sites", req.Sites))
	return c.JSON(http.StatusOK, user)
}

// missingRoles returns the roles in want that have does not already hold.
func missingRoles(want, have []string) []string {
	var out []string
	for _, r := range want {
		if !slices.Contains(have, r) && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
