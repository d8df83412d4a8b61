package handler

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/middleware"
	"github.com/iliyamo/hcap-portal/internal/service"
)

// RequestValidator adapts go-playground/validator to echo.Validator so
// handlers can call c.Validate.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: service.NewValidator()}
}

// Validate returns a *service.ValidationError describing every failed rule.
func (rv *RequestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		return service.ValidationFailed("invalid request body", err)
	}
	return nil
}

// bind decodes the body into dst and validates it.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return service.ValidationFailed("invalid request body", err)
	}
	return c.Validate(dst)
}

// paramID parses a positive integer path parameter.
func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &service.ValidationError{
			Message: "invalid " + name,
			Fields:  []service.FieldError{{Field: name, Rule: "gt", Param: "0"}},
		}
	}
	return id, nil
}

// queryInt parses an optional integer query parameter, returning def when
// it is absent or malformed.
func queryInt(c echo.Context, name string, def int) int {
	if n, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return n
	}
	return def
}

// checkDateRange rejects an end date before the start date.  Both are
// already validated as YYYY-MM-DD, which orders lexically.
func checkDateRange(start, end string) error {
	if end < start {
		return &service.ValidationError{
			Message: "endDate is before startDate",
			Fields:  []service.FieldError{{Field: "endDate", Rule: "gtefield", Param: "startDate"}},
		}
	}
	return nil
}

// actor returns the caller resolved by middleware.Identity.
func actor(c echo.Context) (auth.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return auth.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	return a, nil
}
