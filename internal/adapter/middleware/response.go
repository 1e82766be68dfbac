package middleware

import "github.com/labstack/echo/v4"

// Request headers understood by the middleware chain.
const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"
	HeaderUserID    = "Ax-User-Id"
	HeaderUserRole  = "Ax-User-Role"
)

// errorBody mirrors the error envelope written by the HTTP handlers.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func abort(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, errorBody{Success: false, Error: msg, Code: code})
}
