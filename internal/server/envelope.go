package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// envelope is the uniform success body. Failures are rendered by the errors
// middleware with the same shape, success=false.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func created(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: data})
}
