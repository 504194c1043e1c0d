package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ServiceTokenAuth создает Echo middleware, проверяющее общий межсервисный
// токен. API слушает только внутреннюю сеть; токен — вторая линия обороны
// от случайного трафика, а не полноценная аутентификация пользователей
// (ею занимается бот-процесс).
func ServiceTokenAuth(expectedToken string, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.With(zap.String("path", c.Request().URL.Path))

			token := c.Request().Header.Get("X-Internal-Service-Token")
			if token == "" {
				log.Warn("X-Internal-Service-Token header missing")
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized: Missing inter-service token")
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				log.Warn("Inter-service token mismatch")
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized: Invalid inter-service token")
			}

			return next(c)
		}
	}
}
