package http

import (
	"errors"
	"net/http"
	"time"

	domain "peerlend/internal/domain/loan"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// SuccessResponse wraps every successful payload.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorResponse is the failure envelope. Code is the error kind, Reason the
// stable machine code when the engine provided one.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Code    string       `json:"code"`
	Reason  string       `json:"reason,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, SuccessResponse{Success: true, Data: data})
}

func badRequest(c echo.Context, msg string, details []FieldError) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   msg,
		Code:    string(domain.KindValidation),
		Details: details,
	})
}

// StatusOf maps an engine error kind to its HTTP status.
func StatusOf(k domain.Kind) int {
	switch k {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindStateConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err as an error envelope. Internal errors are logged and their
// cause is not exposed.
func fail(c echo.Context, log *zap.Logger, err error) error {
	kind := domain.KindOf(err)
	status := StatusOf(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		msg = "internal server error"
		var e *domain.Error
		if errors.As(err, &e) && e.Msg != "" {
			msg = e.Msg
		}
	}
	return c.JSON(status, ErrorResponse{
		Error:  msg,
		Code:   string(kind),
		Reason: domain.ReasonOf(err),
	})
}
