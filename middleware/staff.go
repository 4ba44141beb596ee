package middleware

import (
	"net/http"

	"github.com/four20hq/clanhub/config"
	"github.com/four20hq/clanhub/discord"
	"github.com/four20hq/clanhub/staff"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const StaffTierKey = "staff_tier"

// RequireStaff gates a route on a minimum staff tier. The tier is
// re-derived from current Discord roles on every request; stored state is
// never trusted for access decisions.
func RequireStaff(min staff.Tier, dir *discord.Directory, cfg config.DiscordConfig, logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		discordID := GetDiscordID(ctx)
		if discordID == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
			return
		}

		member, err := dir.Member(ctx.Request.Context(), discordID)
		if err != nil {
			logger.Error("staff check: member fetch failed",
				zap.String("discord_id", discordID), zap.Error(err))
			ctx.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "discord unavailable"})
			return
		}

		tier := staff.TierFor(member, cfg)
		if !tier.AtLeast(min) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff access required"})
			return
		}

		ctx.Set(StaffTierKey, tier)
	}
}

// GetStaffTier retrieves the tier computed by RequireStaff.
func GetStaffTier(c *gin.Context) staff.Tier {
	if v, exists := c.Get(StaffTierKey); exists {
		return v.(staff.Tier)
	}
	return staff.TierNone
}
