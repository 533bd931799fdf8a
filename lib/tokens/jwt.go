package tokens

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
)

// The identity provider is an external collaborator: it authenticates the
// actor and hands us a signed token with the actor id and role. This
// middleware only verifies the signature and exposes the claims; all
// record-level authorization happens in the service layer.

type jwtCustomClaims struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
	jwt.StandardClaims
}

func GenerateAccessToken(secret []byte, expiryInSeconds int, userId int64, role string) (string, error) {
	claims := &jwtCustomClaims{
		ID:   userId,
		Role: role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Duration(expiryInSeconds) * time.Second).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
			}
			claims := &jwtCustomClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
			}
			c.Set("UserID", claims.ID)
			c.Set("Role", claims.Role)
			return next(c)
		}
	}
}
