package rest

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/four20hq/clanhub/audit"
	"github.com/four20hq/clanhub/cache"
	"github.com/four20hq/clanhub/config"
	mw "github.com/four20hq/clanhub/middleware"
	"github.com/four20hq/clanhub/model"
	"github.com/four20hq/clanhub/roster"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminAuth guards the admin routes. Two ways in: a logged-in session
// holding the webdev tier or above, or the break-glass X-Admin-Key checked
// against the bcrypt hash from config. A request carrying the key is
// decided on the key alone; an empty hash disables the key path, leaving
// the staff path as the only door.
func AdminAuth(cfg *config.Config, session, staffGate gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader("X-Admin-Key"); key != "" {
			if cfg.Server.AdminKeyHash == "" {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(cfg.Server.AdminKeyHash), []byte(key)); err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
				return
			}
			return
		}
		session(c)
		if c.IsAborted() {
			return
		}
		staffGate(c)
	}
}

// AdminHandler serves the admin panel endpoints: metrics, on-demand sync,
// ban reports and the audit trail.
type AdminHandler struct {
	db        *gorm.DB
	cache     cache.Cache
	rosterSvc *roster.Service
	audit     *audit.Service
	banWindow time.Duration
	logger    *zap.Logger
	startedAt time.Time
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(db *gorm.DB, c cache.Cache, rosterSvc *roster.Service, auditSvc *audit.Service, banWindow time.Duration, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		db:        db,
		cache:     c,
		rosterSvc: rosterSvc,
		audit:     auditSvc,
		banWindow: banWindow,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Metrics handles GET /api/admin/metrics.
func (h *AdminHandler) Metrics(c *gin.Context) {
	var activeMembers, pendingApps, queuedPromotions, unresolved int64
	h.db.Model(&model.RosterMember{}).
		Where("status = ? AND archived_at IS NULL", model.MemberStatusActive).
		Count(&activeMembers)
	h.db.Model(&model.Application{}).
		Where("status = ? AND archived_at IS NULL", model.ApplicationPending).
		Count(&pendingApps)
	h.db.Model(&model.PromotionQueueItem{}).
		Where("status IN ?", []string{model.PromotionQueued, model.PromotionConfirmed}).
		Count(&queuedPromotions)
	h.db.Model(&model.RosterMember{}).
		Where("needs_resolution = ? AND archived_at IS NULL", true).
		Count(&unresolved)

	c.JSON(http.StatusOK, gin.H{
		"ok":                   true,
		"uptime_seconds":       int64(time.Since(h.startedAt).Seconds()),
		"active_members":       activeMembers,
		"pending_applications": pendingApps,
		"queued_promotions":    queuedPromotions,
		"unresolved_members":   unresolved,
	})
}

// Sync handles POST /api/admin/sync, running one roster sweep on demand.
func (h *AdminHandler) Sync(c *gin.Context) {
	result, err := h.rosterSvc.Sync(c.Request.Context(), time.Now())
	if err != nil {
		h.logger.Error("admin sync failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "sync failed"})
		return
	}
	h.audit.Log(audit.Entry{
		TraceID: mw.GetTraceID(c),
		ActorID: adminActor(c),
		Action:  "admin.sync",
		IP:      c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

type banReportRequest struct {
	TargetID string `json:"target_id" binding:"required,max=32"`
	Reason   string `json:"reason" binding:"max=512"`
}

// ReportBan handles POST /api/admin/bans. A second report for the same
// target inside the ban window is a conflict.
func (h *AdminHandler) ReportBan(c *gin.Context) {
	var req banReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := fmt.Sprintf("banreport:%s", req.TargetID)
	ok, err := h.cache.SetNX(c.Request.Context(), key, "1", h.banWindow)
	if err != nil {
		h.logger.Error("ban report dedupe check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{
			"error": "a report for this target was already filed",
			"code":  "DUPLICATE_REPORT",
		})
		return
	}

	report := &model.BanReport{
		ReporterID: adminActor(c),
		TargetID:   req.TargetID,
		Reason:     req.Reason,
	}
	if err := h.db.Create(report).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.audit.Log(audit.Entry{
		TraceID:  mw.GetTraceID(c),
		ActorID:  report.ReporterID,
		TargetID: req.TargetID,
		Action:   "admin.ban_report",
		IP:       c.ClientIP(),
	})
	c.JSON(http.StatusCreated, gin.H{"ok": true, "report": report})
}

// Audit handles GET /api/admin/audit with simple offset paging.
func (h *AdminHandler) Audit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	q := h.db.Model(&model.AuditLog{}).Order("id DESC")
	if action := c.Query("action"); action != "" {
		q = q.Where("action = ?", action)
	}
	if actor := c.Query("actor"); actor != "" {
		q = q.Where("actor_id = ?", actor)
	}

	var logs []model.AuditLog
	if err := q.Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "logs": logs, "count": len(logs)})
}

// adminActor names the acting party in audit rows: the logged-in staff user
// when one is attached, otherwise the static admin key identity.
func adminActor(c *gin.Context) string {
	if id := mw.GetDiscordID(c); id != "" {
		return id
	}
	return "admin-key"
}
