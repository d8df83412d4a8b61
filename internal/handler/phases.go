package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/repository"
	"github.com/iliyamo/hcap-portal/internal/service"
)

// PhaseHandler serves funding phases and per-site allocations.
type PhaseHandler struct {
	Phases *repository.PhaseRepo
}

func NewPhaseHandler(r *repository.PhaseRepo) *PhaseHandler {
	if r == nil {
		panic("nil repository passed to NewPhaseHandler")
	}
	return &PhaseHandler{Phases: r}
}

type createPhaseReq struct {
	Name      string `json:"name" validate:"required,max=255"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

type allocationReq struct {
	Allocation int `json:"allocation" validate:"gte=0"`
}

// List handles GET /phase-allocation.  With ?phaseId= it returns that
// phase's site allocations in the actor's regions instead.
func (h *PhaseHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if raw := c.QueryParam("phaseId"); raw != "" {
		phaseID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || phaseID <= 0 {
			return &service.ValidationError{Message: "invalid phaseId"}
		}
		rows, err := h.Phases.Allocations(ctx, phaseID, a.RegionScope())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"data": rows})
	}
	rows, err := h.Phases.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// Create handles POST /phase-allocation.
func (h *PhaseHandler) Create(c echo.Context) error {
	var req createPhaseReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := checkDateRange(req.StartDate, req.EndDate); err != nil {
		return err
	}
	p := &model.Phase{Name: strings.TrimSpace(req.Name), StartDate: req.StartDate, EndDate: req.EndDate}
	if err := h.Phases.Create(c.Request().Context(), p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// SetAllocation handles POST /phase-allocation/:phaseId/site/:siteId.
func (h *PhaseHandler) SetAllocation(c echo.Context) error {
	phaseID, err := paramID(c, "phaseId")
	if err != nil {
		return err
	}
	siteID, err := paramID(c, "siteId")
	if err != nil {
		return err
	}
	var req allocationReq
	if err := bind(c, &req); err != nil {
		return err
	}
	alloc, err := h.Phases.SetAllocation(c.Request().Context(), phaseID, siteID, req.Allocation)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, alloc)
}
