package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/four20hq/clanhub/cache"
	"github.com/four20hq/clanhub/config"
	"github.com/gin-gonic/gin"
)

const DiscordIDKey = "discord_id"
const UsernameKey = "username"

// SessionCookie is the browser session cookie name.
const SessionCookie = "clanhub_session"

// sessionToken pulls the JWT from the session cookie or, for API clients,
// the Authorization header.
func sessionToken(ctx *gin.Context) string {
	if c, err := ctx.Cookie(SessionCookie); err == nil && c != "" {
		return c
	}
	header := ctx.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Auth validates the session JWT and checks the session still exists in the
// cache, so logout revokes immediately instead of waiting for expiry.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenStr := sessionToken(ctx)
		if tokenStr == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := ParseToken(tokenStr, sec.JWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		sessionKey := "session:" + tokenStr
		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		if _, err := c.Get(cacheCtx, sessionKey); err != nil {
			// Sessions fail closed: a missing key means logged out, and a
			// broken cache backend must not let stale tokens through.
			if cache.IsNotFound(err) {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			} else {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session check failed"})
			}
			return
		}

		ctx.Set(DiscordIDKey, claims.DiscordID)
		ctx.Set(UsernameKey, claims.Username)
	}
}

// GetDiscordID retrieves the authenticated Discord ID from the Gin context.
func GetDiscordID(c *gin.Context) string {
	if v, exists := c.Get(DiscordIDKey); exists {
		return v.(string)
	}
	return ""
}
