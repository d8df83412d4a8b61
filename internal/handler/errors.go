package handler // handler holds the Echo handlers of the portal API

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/repository"
	"github.com/iliyamo/hcap-portal/internal/service"
)

// Error codes returned for the storage sentinels.
const (
	codeNotHired  = "NOT_HIRED"
	codeForbidden = "forbidden"
	codeNotFound  = "not found"
	codeConflict  = "conflict"
)

// errorResponse maps an error returned by a handler to its HTTP status and
// body.  ok is false for errors that are not part of the taxonomy.
func errorResponse(err error) (status int, body any, ok bool) {
	var ve *service.ValidationError
	var re *service.RejectedError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve, true
	case errors.As(err, &re):
		return http.StatusBadRequest, echo.Map{"error": string(re.Kind)}, true
	case errors.Is(err, service.ErrNotHired):
		return http.StatusBadRequest, echo.Map{"error": codeNotHired}, true
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, echo.Map{"error": codeForbidden}, true
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, echo.Map{"error": codeNotFound}, true
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, echo.Map{"error": codeConflict}, true
	case errors.As(err, &he):
		msg := he.Message
		if s, isStr := msg.(string); isStr {
			msg = echo.Map{"error": s}
		}
		return he.Code, msg, true
	}
	return http.StatusInternalServerError, echo.Map{"error": "internal server error"}, false
}

// ErrorHandler is the Echo HTTPErrorHandler.  Unclassified errors are
// logged with the request context and answered with a generic 500.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body, ok := errorResponse(err)
		if !ok {
			log.Error("unhandled error",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err))
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}
