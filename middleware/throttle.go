package middleware

import (
	"net/http"
	"time"

	"github.com/four20hq/clanhub/cache"
	"github.com/gin-gonic/gin"
)

// Throttle limits an authenticated actor to one call per window for the
// named action, using a SETNX-with-TTL window in the cache. With a Redis
// backend the window holds across instances; with the local backend it is
// best-effort and resets on restart, which is the accepted degradation.
func Throttle(c cache.Cache, action string, window time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor := GetDiscordID(ctx)
		if actor == "" {
			// Unauthenticated callers are rejected upstream by Auth.
			ctx.Next()
			return
		}
		key := "throttle:" + action + ":" + actor
		ok, err := c.SetNX(ctx.Request.Context(), key, "1", window)
		if err != nil {
			// Cache trouble must not block staff actions.
			ctx.Next()
			return
		}
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "action throttled, try again later",
				"code":  "THROTTLED",
			})
			return
		}
		ctx.Next()
	}
}
