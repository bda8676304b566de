package orchestrator

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const authAccountKey = "auth_account"

// jwtAuth guards the API group with an HMAC bearer token. The token's
// subject claim names the account the caller acts for and is stashed in the
// request context for handlers that want it.
func (orch *Orchestrator) jwtAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return authError("missing auth header")
		}

		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return authError("auth header is not a bearer token")
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			// Don't forget to validate the alg is what you expect:
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return orch.config.JwtSecret, nil
		})
		if err != nil || !token.Valid {
			return authError("token cannot be parsed")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return authError("malformed claims")
		}

		subject, _ := claims.GetSubject()
		if subject == "" {
			return authError("missing subject")
		}
		if !common.IsHexAddress(subject) {
			return authError("subject is not an address")
		}

		c.Set(authAccountKey, common.HexToAddress(subject))
		return next(c)
	}
}

func authError(msg string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, ErrorResp{
		Code:    "UNAUTHENTICATED",
		Message: msg,
	})
}
