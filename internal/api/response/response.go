// Package response owns the wire envelopes. Success bodies are flat maps
// with ok:true; failures carry ok:false plus a coded error object.
package response

import "github.com/labstack/echo/v4"

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func OK(c echo.Context, status int, fields echo.Map) error {
	body := echo.Map{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(status, body)
}

func Fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{
		"ok":    false,
		"error": Error{Code: code, Message: message},
	})
}
