package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"mediagrab/internal/api/response"
)

// Bearer guards a route group with a static shared-secret token. The
// comparison is constant-time; an empty configured token rejects every
// request rather than opening the route.
func Bearer(token string) echo.MiddlewareFunc {
	expected := []byte("Bearer " + token)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication is not configured")
			}
			header := []byte(c.Request().Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(header, expected) != 1 {
				return response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing token")
			}
			return next(c)
		}
	}
}
