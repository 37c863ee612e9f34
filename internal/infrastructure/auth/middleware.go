package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const contextUserKey = "userID"

// Claims carries the authenticated user identity. user_id is the subject of
// every authorization check downstream; controllers never trust ids from
// request bodies or socket frames.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Middleware authenticates REST requests from a Bearer token.
func Middleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		userID, err := ParseUserID(strings.TrimPrefix(h, "Bearer "), jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(contextUserKey, userID)
		c.Next()
	}
}

// ParseUserID validates a token and extracts the user id. Websocket upgrades
// call this directly with the token from the query string, since browsers
// cannot set an Authorization header on the handshake.
func ParseUserID(tokenStr, jwtSecret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("auth: invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return "", errors.New("auth: token has no user_id claim")
	}
	return claims.UserID, nil
}

// MustUserID returns the authenticated user id set by Middleware.
func MustUserID(c *gin.Context) string {
	v, _ := c.Get(contextUserKey)
	id, _ := v.(string)
	return id
}
