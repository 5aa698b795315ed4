package apperr

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorResponse is the JSON envelope returned for every failed request.
type ErrorResponse struct {
	Status      int               `json:"status"`
	Error       string            `json:"error"`
	Message     string            `json:"message"`
	Timestamp   time.Time         `json:"timestamp"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

func statusFor(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorHandler returns an echo error handler that maps the error taxonomy
// onto HTTP statuses and the response envelope. echo.HTTPErrors raised by
// middleware (auth, binding, rate limiting) pass through with their status.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := ErrorResponse{
			Status:    http.StatusInternalServerError,
			Error:     KindInternal.String(),
			Message:   "an unexpected error occurred",
			Timestamp: time.Now().UTC(),
		}

		var appErr *Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			resp.Status = statusFor(appErr.Kind)
			resp.Error = appErr.Kind.String()
			resp.Message = appErr.Message
			resp.FieldErrors = appErr.Fields
		case errors.As(err, &httpErr):
			resp.Status = httpErr.Code
			resp.Error = http.StatusText(httpErr.Code)
			if msg, ok := httpErr.Message.(string); ok {
				resp.Message = msg
			} else {
				resp.Message = http.StatusText(httpErr.Code)
			}
		}

		if resp.Status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(resp.Status)
			return
		}
		_ = c.JSON(resp.Status, resp)
	}
}
