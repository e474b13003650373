package util

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the access token issued by the identity provider. Subject is the
// canonical user id everywhere in this service.
type Claims struct {
	Email       string      `json:"email"`
	Role        string      `json:"role"`
	AppMetadata AppMetadata `json:"app_metadata"`
	IsAdmin     bool        `json:"-"`
	jwt.RegisteredClaims
}

type AppMetadata struct {
	Role string `json:"role"`
}

func (c *Claims) UserID() string {
	return c.Subject
}

var errMissingSubject = errors.New("token has no subject")

func ParseJWT(tokenString, secret, audience string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errMissingSubject
	}
	return claims, nil
}

func GetUserFromContext(c *gin.Context) *Claims {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	claims, ok := user.(*Claims)
	if !ok {
		return nil
	}
	return claims
}
