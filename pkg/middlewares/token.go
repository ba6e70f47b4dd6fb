package middlewares

import (
	"tour_chat_service/pkg/logger"
	t_token "tour_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenEmail verified email, set c.locals name
	TokenEmail = "email"
	//TokenName verified display name, set c.locals name
	TokenName = "name"
)

// JWTMiddleware parse the token from query or cookie and put the claims into
// Locals. When required is false a missing token passes through anonymous, an
// invalid token is always rejected.
func JWTMiddleware(required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Query(QueryToken)
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		if tokenStr == "" {
			if !required {
				return c.Next()
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := t_token.ParseJWT(tokenStr)
		if err != nil {
			logger.Log.Debug("token rejected", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(TokenEmail, claims.Email)
		c.Locals(TokenName, claims.Name)
		return c.Next()
	}
}

// LocalString read a string local, empty when unset
func LocalString(v interface{}) string {
	s, _ := v.(string)
	return s
}
