package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/four20hq/clanhub/application"
	mw "github.com/four20hq/clanhub/middleware"
	"github.com/four20hq/clanhub/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ApplicationHandler handles application REST endpoints. Submit is open to
// any logged-in user; the rest are staff-gated by the router.
type ApplicationHandler struct {
	svc    *application.Service
	logger *zap.Logger
}

// NewApplicationHandler creates an ApplicationHandler.
func NewApplicationHandler(svc *application.Service, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{svc: svc, logger: logger}
}

type submitRequest struct {
	UID     string                 `json:"uid" binding:"required,max=32"`
	Answers map[string]interface{} `json:"answers" binding:"required"`
}

// Submit handles POST /api/applications.
func (h *ApplicationHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := h.svc.Submit(mw.GetDiscordID(c), req.UID, req.Answers)
	if errors.Is(err, application.ErrAlreadyApplied) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "a live application already exists",
			"code":  application.CodeAlreadyApplied,
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "application": app})
}

// List handles GET /api/applications.
func (h *ApplicationHandler) List(c *gin.Context) {
	apps, err := h.svc.List(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "applications": apps, "count": len(apps)})
}

// Accept handles POST /api/applications/:id/accept.
func (h *ApplicationHandler) Accept(c *gin.Context) {
	app, ok := h.appParam(c)
	if !ok {
		return
	}
	if app.Status != model.ApplicationPending {
		c.JSON(http.StatusConflict, gin.H{"error": "application is not pending"})
		return
	}
	if err := h.svc.Accept(c.Request.Context(), app, mw.GetDiscordID(c), time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "application": app})
}

// Reject handles POST /api/applications/:id/reject.
func (h *ApplicationHandler) Reject(c *gin.Context) {
	app, ok := h.appParam(c)
	if !ok {
		return
	}
	if app.Status != model.ApplicationPending {
		c.JSON(http.StatusConflict, gin.H{"error": "application is not pending"})
		return
	}
	if err := h.svc.Reject(app, mw.GetDiscordID(c), time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "application": app})
}

// Revoke handles POST /api/applications/:id/revoke.
func (h *ApplicationHandler) Revoke(c *gin.Context) {
	app, ok := h.appParam(c)
	if !ok {
		return
	}
	if err := h.svc.Revoke(app, mw.GetDiscordID(c), time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "application": app})
}

func (h *ApplicationHandler) appParam(c *gin.Context) (*model.Application, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	app, err := h.svc.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "application not found"})
		return nil, false
	}
	return app, true
}
