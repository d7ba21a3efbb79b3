package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// CallbackSecret rejects callbacks whose ?token= does not match secret. An
// empty secret accepts every caller.
func CallbackSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}
			token := c.QueryParam("token")
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				slog.Warn("callback rejected: bad token", "remoteIp", c.RealIP())
				return c.NoContent(http.StatusUnauthorized)
			}
			return next(c)
		}
	}
}
