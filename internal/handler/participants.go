package handler

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/repository"
	"github.com/iliyamo/hcap-portal/internal/service"
)

// ParticipantHandler serves participant records.
type ParticipantHandler struct {
	Participants *repository.ParticipantRepo
	// AllowDelete enables hard deletes, which only local environments permit.
	AllowDelete bool
}

func NewParticipantHandler(p *repository.ParticipantRepo, allowDelete bool) *ParticipantHandler {
	if p == nil {
		panic("nil repository passed to NewParticipantHandler")
	}
	return &ParticipantHandler{Participants: p, AllowDelete: allowDelete}
}

// expressionOfInterest is the public sign-up form.
type expressionOfInterest struct {
	FirstName         string   `json:"firstName" validate:"required,max=100"`
	LastName          string   `json:"lastName" validate:"required,max=100"`
	Email             string   `json:"emailAddress" validate:"required,email"`
	PhoneNumber       string   `json:"phoneNumber" validate:"required,max=32"`
	PostalCode        string   `json:"postalCode" validate:"required,max=16"`
	PreferredLocation []string `json:"preferredLocation" validate:"required,min=1,dive,required"`
	CRCClear          string   `json:"crcClear" validate:"omitempty,oneof=yes no"`
}

// normalizeRegions canonicalises every region name or returns a
// ValidationError naming the first unknown one.
func normalizeRegions(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		canonical, ok := model.NormalizeRegion(r)
		if !ok {
			return nil, &service.ValidationError{
				Message: fmt.Sprintf("unknown region %q", r),
				Fields:  []service.FieldError{{Field: "preferredLocation", Rule: "oneof"}},
			}
		}
		if !slices.Contains(out, canonical) {
			out = append(out, canonical)
		}
	}
	return out, nil
}

// Create handles POST /participants.  It needs no authentication.
func (h *ParticipantHandler) Create(c echo.Context) error {
	var req expressionOfInterest
	if err := bind(c, &req); err != nil {
		return err
	}
	regions, err := normalizeRegions(req.PreferredLocation)
	if err != nil {
		return err
	}
	p := &model.Participant{
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		Email:             req.Email,
		PhoneNumber:       strings.TrimSpace(req.PhoneNumber),
		PostalCode:        strings.ToUpper(strings.TrimSpace(req.PostalCode)),
		PreferredLocation: strings.Join(regions, ","),
		CRCClear:          req.CRCClear,
	}
	if err := h.Participants.Create(c.Request().Context(), p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// List handles GET /participants?status=&region=&limit=&offset=.
func (h *ParticipantHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	scope := a.RegionScope()
	if region := c.QueryParam("region"); region != "" {
		canonical, ok := model.NormalizeRegion(region)
		if !ok {
			return &service.ValidationError{Message: fmt.Sprintf("unknown region %q", region)}
		}
		if scope != nil && !slices.Contains(scope, canonical) {
			return fmt.Errorf("region %q: %w", canonical, repository.ErrForbidden)
		}
		scope = []string{canonical}
	}
	status := c.QueryParam("status")
	if status != "" && !model.Status(status).Valid() {
		return &service.ValidationError{Message: fmt.Sprintf("unknown status %q", status)}
	}
	f := repository.ParticipantFilter{
		Regions: scope,
		Status:  status,
		Limit:   queryInt(c, "limit", 20),
		Offset:  queryInt(c, "offset", 0),
	}
	rows, total, err := h.Participants.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows, "total": total, "limit": f.Limit, "offset": f.Offset})
}

// load fetches participant id and checks the actor may see it: a
// participant sees only itself, staff only participants in their regions.
func (h *ParticipantHandler) load(c echo.Context, a auth.Actor, id int64) (*model.Participant, error) {
	p, err := h.Participants.GetByID(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if !canSee(a, p) {
		return nil, fmt.Errorf("participant %d: %w", id, repository.ErrForbidden)
	}
	return p, nil
}

func canSee(a auth.Actor, p *model.Participant) bool {
	if a.Role == auth.RoleParticipant {
		return strings.EqualFold(a.Email, p.Email)
	}
	scope := a.RegionScope()
	if scope == nil {
		return true
	}
	for _, r := range p.Regions() {
		if slices.Contains(scope, r) {
			return true
		}
	}
	return false
}

// Get handles GET /participant/:id.
func (h *ParticipantHandler) Get(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.load(c, a, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Update handles PATCH /participant/:id.  Ministry staff may edit anyone;
// a participant may edit its own record.
func (h *ParticipantHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.load(c, a, id)
	if err != nil {
		return err
	}
	self := a.Role == auth.RoleParticipant && strings.EqualFold(a.Email, p.Email)
	if !self && !a.Can(auth.CanEditParticipants) {
		return fmt.Errorf("edit participant %d: %w", id, repository.ErrForbidden)
	}
	var patch repository.ParticipantPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	if patch.PreferredLocation != nil {
		if patch.PreferredLocation, err = normalizeRegions(patch.PreferredLocation); err != nil {
			return err
		}
	}
	updated, err := h.Participants.Update(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /participant/:id.
func (h *ParticipantHandler) Delete(c echo.Context) error {
	if !h.AllowDelete {
		return echo.NewHTTPError(http.StatusForbidden, "participant deletion is disabled in this environment")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Participants.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
