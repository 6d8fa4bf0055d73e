package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"mediagrab/internal/api/middleware"
	"mediagrab/internal/api/response"
)

// SetupRouter wires all routes and the error-shape fallbacks.
func SetupRouter(e *echo.Echo, h *Handler, authToken string) {
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	auth := middleware.Bearer(authToken)

	e.GET("/health", h.Health)
	e.GET("/health/redis", h.HealthRedis)

	e.POST("/download", h.Download, auth)
	e.GET("/files/:id", h.File, auth)

	e.POST("/transcribe", h.Transcribe)
	e.GET("/jobs/:jobId", h.Job)
}

// errorHandler maps everything that escapes a handler onto the fallback
// wire shapes: unmatched routes 404, malformed input 400, the rest 500.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			_ = response.Fail(c, http.StatusNotFound, "NOT_FOUND", "route not found")
			return
		case http.StatusBadRequest, http.StatusUnsupportedMediaType:
			_ = response.Fail(c, http.StatusBadRequest, "BAD_REQUEST", "malformed request")
			return
		case http.StatusUnauthorized:
			_ = response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return
		}
	}

	log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled request error")
	_ = response.Fail(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
}
