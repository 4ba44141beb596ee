package rest

import (
	"errors"
	"net/http"
	"time"

	mw "github.com/four20hq/clanhub/middleware"
	"github.com/four20hq/clanhub/model"
	"github.com/four20hq/clanhub/promotion"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PromotionHandler handles promotion-queue REST endpoints. All routes are
// staff-gated by the router.
type PromotionHandler struct {
	svc    *promotion.Service
	logger *zap.Logger
}

// NewPromotionHandler creates a PromotionHandler.
func NewPromotionHandler(svc *promotion.Service, logger *zap.Logger) *PromotionHandler {
	return &PromotionHandler{svc: svc, logger: logger}
}

// List handles GET /api/promotions.
func (h *PromotionHandler) List(c *gin.Context) {
	statuses := c.QueryArray("status")
	if len(statuses) == 0 {
		statuses = []string{model.PromotionQueued, model.PromotionConfirmed}
	}
	items, err := h.svc.List(statuses...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": items, "count": len(items)})
}

// Build handles POST /api/promotions/build.
func (h *PromotionHandler) Build(c *gin.Context) {
	result, err := h.svc.Build(mw.GetDiscordID(c), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

type confirmRequest struct {
	Force bool `json:"force"`
}

// Confirm handles POST /api/promotions/confirm. Fewer resolved queued items
// than the batch threshold is a 409 unless force is set.
func (h *PromotionHandler) Confirm(c *gin.Context) {
	var req confirmRequest
	_ = c.ShouldBindJSON(&req)

	confirmed, err := h.svc.Confirm(mw.GetDiscordID(c), req.Force, time.Now())
	if errors.Is(err, promotion.ErrInsufficientQueue) {
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
			"code":  promotion.CodeInsufficientQueue,
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "confirmed": confirmed})
}

// Process handles POST /api/promotions/process. The response always carries
// per-item detail; partial failure is a success response, not an error.
func (h *PromotionHandler) Process(c *gin.Context) {
	result, err := h.svc.Process(c.Request.Context(), mw.GetDiscordID(c), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

// Run handles POST /api/promotions/run, the legacy single-shot path.
func (h *PromotionHandler) Run(c *gin.Context) {
	var req confirmRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.svc.Run(c.Request.Context(), mw.GetDiscordID(c), req.Force, time.Now())
	if errors.Is(err, promotion.ErrInsufficientQueue) {
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
			"code":  promotion.CodeInsufficientQueue,
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

// Clear handles DELETE /api/promotions.
func (h *PromotionHandler) Clear(c *gin.Context) {
	removed, err := h.svc.Clear(mw.GetDiscordID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "removed": removed})
}
