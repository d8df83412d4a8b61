package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hcap-portal/internal/service"
)

// ROSHandler exposes the return-of-service record of a participant.
type ROSHandler struct {
	ROS *service.ROSService
}

func NewROSHandler(s *service.ROSService) *ROSHandler {
	if s == nil {
		panic("nil service passed to NewROSHandler")
	}
	return &ROSHandler{ROS: s}
}

// Get handles GET /ros/participant/:id.
func (h *ROSHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	view, err := h.ROS.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// History handles GET /ros/participant/:id/history.
func (h *ROSHandler) History(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	rows, err := h.ROS.History(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// Create handles POST /ros/participant/:id.
func (h *ROSHandler) Create(c echo.Context) error {
	return h.write(c, http.StatusCreated, func(c echo.Context, id int64) (any, error) {
		var req service.ROSRequest
		if err := bind(c, &req); err != nil {
			return nil, err
		}
		a, _ := actor(c)
		return h.ROS.Create(c.Request().Context(), a, id, req)
	})
}

// Update handles PATCH /ros/participant/:id.
func (h *ROSHandler) Update(c echo.Context) error {
	return h.write(c, http.StatusOK, func(c echo.Context, id int64) (any, error) {
		var req service.ROSUpdate
		if err := bind(c, &req); err != nil {
			return nil, err
		}
		a, _ := actor(c)
		return h.ROS.Update(c.Request().Context(), a, id, req)
	})
}

// ChangeSite handles PATCH /ros/participant/:id/change-site.
func (h *ROSHandler) ChangeSite(c echo.Context) error {
	return h.write(c, http.StatusOK, func(c echo.Context, id int64) (any, error) {
		var req service.ROSRequest
		if err := bind(c, &req); err != nil {
			return nil, err
		}
		a, _ := actor(c)
		return h.ROS.ChangeSite(c.Request().Context(), a, id, req)
	})
}

func (h *ROSHandler) write(c echo.Context, status int, fn func(echo.Context, int64) (any, error)) error {
	if _, err := actor(c); err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := fn(c, id)
	if err != nil {
		return err
	}
	return c.JSON(status, out)
}
