package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/four20hq/clanhub/application"
	"github.com/four20hq/clanhub/cache"
	"github.com/four20hq/clanhub/config"
	"github.com/four20hq/clanhub/discord"
	mw "github.com/four20hq/clanhub/middleware"
	"github.com/four20hq/clanhub/staff"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthHandler handles the Discord OAuth login flow and session endpoints.
type AuthHandler struct {
	oauth  *discord.Client
	dir    *discord.Directory
	apps   *application.Service
	cache  cache.Cache
	sec    config.SecurityConfig
	dcfg   config.DiscordConfig
	logger *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(oauth *discord.Client, dir *discord.Directory, apps *application.Service,
	c cache.Cache, sec config.SecurityConfig, dcfg config.DiscordConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{oauth: oauth, dir: dir, apps: apps, cache: c, sec: sec, dcfg: dcfg, logger: logger}
}

const oauthStateTTL = 10 * time.Minute

// Login handles GET /api/auth/login: issues a state nonce and returns the
// Discord consent URL.
func (h *AuthHandler) Login(c *gin.Context) {
	state := uuid.New().String()
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, "oauth:state:"+state, "1", oauthStateTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "url": h.oauth.AuthorizeURL(state)})
}

// Callback handles GET /api/auth/callback: validates state, exchanges the
// code, fetches the user, and issues a session.
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code or state"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	stateKey := "oauth:state:" + state
	exists, err := h.cache.Exists(ctx, stateKey)
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid oauth state"})
		return
	}
	_ = h.cache.Del(ctx, stateKey)

	tok, err := h.oauth.ExchangeCode(ctx, code)
	if err != nil {
		h.logger.Error("oauth exchange failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "oauth exchange failed"})
		return
	}
	user, err := h.oauth.Me(ctx, tok.AccessToken)
	if err != nil {
		h.logger.Error("oauth identify failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "identify failed"})
		return
	}

	token, err := mw.GenerateToken(user.ID, user.Username, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	if err := h.cache.Set(ctx, "session:"+token, user.ID, h.sec.JWTTTLH); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session store error"})
		return
	}

	c.SetCookie(mw.SessionCookie, token, int(h.sec.JWTTTLH.Seconds()), "/", "", h.sec.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true, "discord_id": user.ID, "username": user.Username})
}

// Logout handles POST /api/auth/logout: drops the cache session and clears
// the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, _ := c.Cookie(mw.SessionCookie)
	if token == "" {
		if header := c.GetHeader("Authorization"); len(header) > 7 {
			token = header[7:]
		}
	}
	if token != "" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		_ = h.cache.Del(ctx, "session:"+token)
	}
	c.SetCookie(mw.SessionCookie, "", -1, "/", "", h.sec.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Me handles GET /api/auth/me. It always re-derives access from current
// Discord roles; the application field is null whenever the user has no
// live claim, regardless of what the row said before the check.
func (h *AuthHandler) Me(c *gin.Context) {
	discordID := mw.GetDiscordID(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	app, err := h.apps.CheckAccess(ctx, discordID, time.Now())
	if err != nil {
		h.logger.Error("access check failed", zap.String("discord_id", discordID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "access check failed"})
		return
	}

	member, err := h.dir.Member(ctx, discordID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "discord unavailable"})
		return
	}

	tier := staff.TierFor(member, h.dcfg)
	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"discord_id":  discordID,
		"in_guild":    member != nil,
		"staff_tier":  tier.String(),
		"application": app,
	})
}
