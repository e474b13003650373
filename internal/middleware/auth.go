package middleware

import (
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/util"
	"exam_tracker_backend/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	// sendBeacon cannot set headers, so the flush endpoint passes the token in the query
	return c.Query("token")
}

func authenticate(c *gin.Context, cfg *config.AuthConfig) (*util.Claims, error) {
	claims, err := util.ParseJWT(bearerToken(c), cfg.JWTSecret, cfg.Audience)
	if err != nil {
		return nil, err
	}
	claims.IsAdmin = claims.AppMetadata.Role == "admin" || cfg.IsAdminEmail(claims.Email)
	return claims, nil
}

// AuthMiddleware requires a valid identity provider token.
func AuthMiddleware(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bearerToken(c) == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := authenticate(c, cfg)
		if err != nil {
			logger.Log.Debug("JWT rejected", zap.String("path", c.FullPath()), zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if !user.IsAdmin {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
