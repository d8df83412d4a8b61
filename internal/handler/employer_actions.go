package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hcap-portal/internal/service"
)

// EmployerActionHandler exposes participant status transitions.
type EmployerActionHandler struct {
	Status *service.StatusService
}

func NewEmployerActionHandler(s *service.StatusService) *EmployerActionHandler {
	if s == nil {
		panic("nil service passed to NewEmployerActionHandler")
	}
	return &EmployerActionHandler{Status: s}
}

// Transition handles POST /employer-actions.
func (h *EmployerActionHandler) Transition(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req service.TransitionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rec, err := h.Status.Transition(c.Request().Context(), a, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

// Archive handles POST /employer-actions/archive.
func (h *EmployerActionHandler) Archive(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req service.ArchiveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rec, err := h.Status.Archive(c.Request().Context(), a, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

type bulkEngageReq struct {
	Candidates []int64 `json:"candidates" validate:"required,min=1,max=500,dive,gt=0"`
}

// BulkEngage handles POST /employer-actions/bulk-engage.  The response
// always carries one result per candidate.
func (h *EmployerActionHandler) BulkEngage(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req bulkEngageReq
	if err := bind(c, &req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.Status.BulkEngage(c.Request().Context(), a, req.Candidates))
}

// History handles GET /participant/:id/status-history.
func (h *EmployerActionHandler) History(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	rows, err := h.Status.History(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}
