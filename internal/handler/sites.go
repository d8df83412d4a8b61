package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/repository"
	"github.com/iliyamo/hcap-portal/internal/service"
)

// SiteHandler serves employer sites.
type SiteHandler struct {
	Sites *repository.SiteRepo
}

func NewSiteHandler(s *repository.SiteRepo) *SiteHandler {
	if s == nil {
		panic("nil repository passed to NewSiteHandler")
	}
	return &SiteHandler{Sites: s}
}

type createSiteReq struct {
	SiteID          int64  `json:"siteId" validate:"required,gt=0"`
	SiteName        string `json:"siteName" validate:"required,max=255"`
	HealthAuthority string `json:"healthAuthority" validate:"required"`
	OperatorName    string `json:"operatorName" validate:"max=255"`
	City            string `json:"city" validate:"max=100"`
	Allocation      int    `json:"allocation" validate:"gte=0"`
}

// List handles GET /employer-sites.  Employers see the sites they are
// assigned to, health authorities the sites in their regions.
func (h *SiteHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	var sites []model.EmployerSite
	if a.Role == auth.RoleEmployer {
		sites, err = h.Sites.ListByIDs(ctx, a.Sites)
	} else {
		sites, err = h.Sites.List(ctx, a.RegionScope())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": sites})
}

// Get handles GET /employer-sites/:id.
func (h *SiteHandler) Get(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	site, err := h.Sites.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !a.HasSite(site.ID) && !a.CanViewRegion(site.HealthAuthority) {
		return fmt.Errorf("site %d: %w", id, repository.ErrForbidden)
	}
	return c.JSON(http.StatusOK, site)
}

// Create handles POST /employer-sites.
func (h *SiteHandler) Create(c echo.Context) error {
	var req createSiteReq
	if err := bind(c, &req); err != nil {
		return err
	}
	region, ok := model.NormalizeRegion(req.HealthAuthority)
	if !ok {
		return &service.ValidationError{
			Message: fmt.Sprintf("unknown health authority %q", req.HealthAuthority),
			Fields:  []service.FieldError{{Field: "healthAuthority", Rule: "oneof"}},
		}
	}
	site := &model.EmployerSite{
		SiteID:          req.SiteID,
		SiteName:        strings.TrimSpace(req.SiteName),
		HealthAuthority: region,
		OperatorName:    strings.TrimSpace(req.OperatorName),
		City:            strings.TrimSpace(req.City),
		Allocation:      req.Allocation,
	}
	if err := h.Sites.Create(c.Request().Context(), site); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, site)
}

// Update handles PATCH /employer-sites/:id.
func (h *SiteHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var patch repository.SitePatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	if patch.HealthAuthority != nil {
		region, ok := model.NormalizeRegion(*patch.HealthAuthority)
		if !ok {
			return &service.ValidationError{
				Message: fmt.Sprintf("unknown health authority %q", *patch.HealthAuthority),
				Fields:  []service.FieldError{{Field: "healthAuthority", Rule: "oneof"}},
			}
		}
		patch.HealthAuthority = &region
	}
	site, err := h.Sites.Update(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, site)
}
