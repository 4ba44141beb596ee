package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/four20hq/clanhub/audit"
	"github.com/four20hq/clanhub/discord"
	mw "github.com/four20hq/clanhub/middleware"
	"github.com/four20hq/clanhub/model"
	"github.com/four20hq/clanhub/resolve"
	"github.com/four20hq/clanhub/roster"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RosterHandler handles clan-list REST endpoints. All routes are
// staff-gated by the router.
type RosterHandler struct {
	svc    *roster.Service
	dir    *discord.Directory
	tokens *resolve.Tokens
	audit  *audit.Service
	logger *zap.Logger
}

// NewRosterHandler creates a RosterHandler.
func NewRosterHandler(svc *roster.Service, dir *discord.Directory, tokens *resolve.Tokens,
	auditSvc *audit.Service, logger *zap.Logger) *RosterHandler {
	return &RosterHandler{svc: svc, dir: dir, tokens: tokens, audit: auditSvc, logger: logger}
}

// List handles GET /api/roster.
func (h *RosterHandler) List(c *gin.Context) {
	includeArchived := c.Query("archived") == "true"
	members, err := h.svc.List(includeArchived)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	now := time.Now()
	type memberView struct {
		model.RosterMember
		TimeDays int `json:"time_days"`
	}
	views := make([]memberView, 0, len(members))
	for _, m := range members {
		views = append(views, memberView{RosterMember: m, TimeDays: roster.TimeDays(&m, now)})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "members": views, "count": len(views)})
}

type addMemberRequest struct {
	DiscordName string `json:"discord_name" binding:"required,max=64"`
	IGN         string `json:"ign" binding:"max=64"`
	UID         string `json:"uid" binding:"required,max=32"`
	JoinDate    string `json:"join_date" binding:"max=16"`
}

// Add handles POST /api/roster (manual single-row add).
func (h *RosterHandler) Add(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.Import(c.Request.Context(), []roster.ImportRow{{
		DiscordName: req.DiscordName,
		IGN:         req.IGN,
		UID:         req.UID,
		JoinDate:    req.JoinDate,
	}}, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	row := result.Rows[0]
	switch row.Outcome {
	case roster.ImportConflict:
		c.JSON(http.StatusConflict, gin.H{"error": "uid already on roster", "code": row.Code})
	case roster.ImportError:
		c.JSON(http.StatusInternalServerError, gin.H{"error": row.Error})
	default:
		h.audit.Log(audit.Entry{
			TraceID: mw.GetTraceID(c), ActorID: mw.GetDiscordID(c),
			TargetID: req.UID, Action: "roster.add", IP: c.ClientIP(),
		})
		c.JSON(http.StatusCreated, gin.H{"ok": true, "uid": req.UID})
	}
}

type importRequest struct {
	Rows []map[string]string `json:"rows" binding:"required"`
}

// Import handles POST /api/roster/import with pre-parsed rows.
func (h *RosterHandler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := roster.NormalizeRows(req.Rows)
	if err != nil {
		// One error naming every missing column; nothing was imported.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.Import(c.Request.Context(), rows, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.audit.Log(audit.Entry{
		TraceID: mw.GetTraceID(c), ActorID: mw.GetDiscordID(c),
		Action: "roster.import", IP: c.ClientIP(),
		Details: map[string]int{"created": result.Created, "conflicts": result.Conflicts},
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

// ImportCSV handles POST /api/roster/import/csv with a raw file upload.
func (h *RosterHandler) ImportCSV(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	defer file.Close()

	rows, err := roster.ParseCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.Import(c.Request.Context(), rows, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.audit.Log(audit.Entry{
		TraceID: mw.GetTraceID(c), ActorID: mw.GetDiscordID(c),
		Action: "roster.import_csv", IP: c.ClientIP(),
		Details: map[string]int{"created": result.Created, "conflicts": result.Conflicts},
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

type updateMemberRequest struct {
	Status      *string `json:"status" binding:"omitempty,oneof=active inactive"`
	Has420Tag   *bool   `json:"has_420_tag"`
	IGN         *string `json:"ign" binding:"omitempty,max=64"`
	RankCurrent *string `json:"rank_current" binding:"omitempty,max=32"`
}

// Update handles PATCH /api/roster/:id. Status and tag edits run through
// the counting transition so pause/resume cycles never double-count days.
func (h *RosterHandler) Update(c *gin.Context) {
	m, ok := h.memberParam(c)
	if !ok {
		return
	}
	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Status != nil {
		m.Status = *req.Status
	}
	if req.Has420Tag != nil {
		m.Has420Tag = *req.Has420Tag
	}
	if req.IGN != nil {
		m.IGN = *req.IGN
	}
	if req.RankCurrent != nil {
		m.RankCurrent = *req.RankCurrent
	}

	if err := h.svc.Update(m, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.audit.Log(audit.Entry{
		TraceID: mw.GetTraceID(c), ActorID: mw.GetDiscordID(c),
		TargetID: m.UID, Action: "roster.update", IP: c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "member": m})
}

// Archive handles POST /api/roster/:id/archive (soft delete).
func (h *RosterHandler) Archive(c *gin.Context) {
	m, ok := h.memberParam(c)
	if !ok {
		return
	}
	if err := h.svc.Archive(m, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.audit.Log(audit.Entry{
		TraceID: mw.GetTraceID(c), ActorID: mw.GetDiscordID(c),
		TargetID: m.UID, Action: "roster.archive", IP: c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete handles DELETE /api/roster/:id (hard delete, explicit staff action).
func (h *RosterHandler) Delete(c *gin.Context) {
	m, ok := h.memberParam(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(m.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.audit.Log(audit.Entry{
		TraceID: mw.GetTraceID(c), ActorID: mw.GetDiscordID(c),
		TargetID: m.UID, Action: "roster.delete", IP: c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type resolveSearchRequest struct {
	Query string `json:"query" binding:"required,max=64"`
	Limit int    `json:"limit" binding:"omitempty,min=1,max=50"`
}

// candidateView hides the raw Discord ID behind a resolve token.
type candidateView struct {
	Token      string `json:"token"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Nick       string `json:"nick"`
	Score      int    `json:"score"`
}

// ResolveSearch handles POST /api/roster/resolve: returns scored candidates
// as opaque tokens. More than one candidate is reported as ambiguous for a
// human to settle; the server never auto-picks.
func (h *RosterHandler) ResolveSearch(c *gin.Context) {
	var req resolveSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	members, err := h.dir.Members(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "discord unavailable"})
		return
	}

	candidates := resolve.Search(req.Query, members, req.Limit)
	views := make([]candidateView, 0, len(candidates))
	for _, cand := range candidates {
		token, signErr := h.tokens.Sign(cand.Member.User.ID)
		if signErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		views = append(views, candidateView{
			Token:      token,
			Username:   cand.Member.User.Username,
			GlobalName: cand.Member.User.GlobalName,
			Nick:       cand.Member.Nick,
			Score:      cand.Score,
		})
	}

	if len(views) > 1 {
		c.JSON(http.StatusConflict, gin.H{
			"error":      "ambiguous match",
			"code":       "AMBIGUOUS_MATCH",
			"candidates": views,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "candidates": views})
}

type applyResolveRequest struct {
	Token string `json:"token" binding:"required"`
}

// ResolveApply handles POST /api/roster/:id/resolve: binds the Discord ID
// behind the token to the roster row.
func (h *RosterHandler) ResolveApply(c *gin.Context) {
	m, ok := h.memberParam(c)
	if !ok {
		return
	}
	var req applyResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	discordID, err := h.tokens.Verify(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid resolve token"})
		return
	}

	if err := h.svc.ResolveMember(m, discordID, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.audit.Log(audit.Entry{
		TraceID: mw.GetTraceID(c), ActorID: mw.GetDiscordID(c),
		TargetID: m.UID, Action: "roster.resolve", IP: c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "member": m})
}

func (h *RosterHandler) memberParam(c *gin.Context) (*model.RosterMember, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	m, err := h.svc.Get(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, false
	}
	return m, true
}
