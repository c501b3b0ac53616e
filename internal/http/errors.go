package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jmehdipour/billing-sandbox/internal/model"
)

func writeError(c echo.Context, status int, e model.APIError) error {
	return c.JSON(status, model.ErrorResponse{Error: e})
}

func invalidParam(param, format string, args ...any) *model.APIError {
	return &model.APIError{
		Type:    model.ErrorTypeInvalidRequest,
		Code:    "parameter_invalid",
		Message: fmt.Sprintf(format, args...),
		Param:   param,
	}
}

func missingCursor(cursor string) model.APIError {
	return model.APIError{
		Type:    model.ErrorTypeInvalidRequest,
		Code:    "resource_missing",
		Message: fmt.Sprintf("No such object: '%s'", cursor),
		Param:   "starting_after",
	}
}

// errorHandler renders echo's own errors (unknown routes, panics recovered
// by middleware) in the same envelope as handler errors.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := http.StatusText(status)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	}

	typ := model.ErrorTypeInvalidRequest
	if status >= 500 {
		typ = model.ErrorTypeAPI
		c.Logger().Errorf("request failed: %v", err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = writeError(c, status, model.APIError{Type: typ, Message: msg})
}
