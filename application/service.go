// Package application manages membership applications and live access
// re-derivation.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/four20hq/clanhub/audit"
	"github.com/four20hq/clanhub/discord"
	"github.com/four20hq/clanhub/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAlreadyApplied is returned when the user already has a live application.
var ErrAlreadyApplied = errors.New("application: live application exists")

// CodeAlreadyApplied is the wire conflict code for ErrAlreadyApplied.
const CodeAlreadyApplied = "ALREADY_APPLIED"

// Service owns the application lifecycle.
type Service struct {
	db           *gorm.DB
	dir          *discord.Directory
	memberRoleID string
	audit        *audit.Service
	logger       *zap.Logger
}

// New creates an application Service. memberRoleID is the Discord role that
// marks an accepted member.
func New(db *gorm.DB, dir *discord.Directory, memberRoleID string, auditSvc *audit.Service, logger *zap.Logger) *Service {
	return &Service{db: db, dir: dir, memberRoleID: memberRoleID, audit: auditSvc, logger: logger}
}

// Submit creates a pending application. A second submission while a
// pending or accepted one exists is a conflict, not a silent overwrite.
func (s *Service) Submit(discordID, uid string, answers map[string]interface{}) (*model.Application, error) {
	var existing []model.Application
	err := s.db.Where("discord_id = ? AND archived_at IS NULL AND status IN ?",
		discordID, []string{model.ApplicationPending, model.ApplicationAccepted}).Find(&existing).Error
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrAlreadyApplied
	}

	answersJSON, _ := json.Marshal(answers)
	app := &model.Application{
		DiscordID: discordID,
		UID:       uid,
		Status:    model.ApplicationPending,
		Answers:   datatypes.JSON(answersJSON),
	}
	if err := s.db.Create(app).Error; err != nil {
		return nil, err
	}
	s.audit.Log(audit.Entry{
		ActorID:  discordID,
		TargetID: uid,
		Action:   "application.submit",
	})
	return app, nil
}

// Get returns one application by ID.
func (s *Service) Get(id int64) (*model.Application, error) {
	var app model.Application
	if err := s.db.First(&app, id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns applications, optionally filtered by status.
func (s *Service) List(status string) ([]model.Application, error) {
	q := s.db.Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var apps []model.Application
	if err := q.Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// Accept marks the application accepted and grants the member role. The
// role grant happening after the status write mirrors the rest of the
// system: two calls, no cross-store atomicity.
func (s *Service) Accept(ctx context.Context, app *model.Application, actorID string, now time.Time) error {
	t := now
	app.Status = model.ApplicationAccepted
	app.DecidedBy = actorID
	app.DecidedAt = &t
	if err := s.db.Save(app).Error; err != nil {
		return err
	}
	if s.memberRoleID != "" {
		if err := s.dir.API().AddMemberRole(ctx, app.DiscordID, s.memberRoleID); err != nil {
			s.logger.Error("accept: member role grant failed",
				zap.String("discord_id", app.DiscordID), zap.Error(err))
		}
	}
	s.audit.Log(audit.Entry{
		ActorID:  actorID,
		TargetID: app.DiscordID,
		Action:   "application.accept",
	})
	return nil
}

// Reject marks the application rejected.
func (s *Service) Reject(app *model.Application, actorID string, now time.Time) error {
	t := now
	app.Status = model.ApplicationRejected
	app.DecidedBy = actorID
	app.DecidedAt = &t
	if err := s.db.Save(app).Error; err != nil {
		return err
	}
	s.audit.Log(audit.Entry{
		ActorID:  actorID,
		TargetID: app.DiscordID,
		Action:   "application.reject",
	})
	return nil
}

// Revoke marks the application revoked.
func (s *Service) Revoke(app *model.Application, actorID string, now time.Time) error {
	t := now
	app.Status = model.ApplicationRevoked
	app.DecidedBy = actorID
	app.DecidedAt = &t
	if err := s.db.Save(app).Error; err != nil {
		return err
	}
	s.audit.Log(audit.Entry{
		ActorID:  actorID,
		TargetID: app.DiscordID,
		Action:   "application.revoke",
	})
	return nil
}

// CheckAccess re-derives access from current Discord roles. Stored status
// is never authoritative: a stored "accepted" whose user no longer holds
// the member role is rewritten to revoked before any access decision, and
// a user who left the guild entirely gets the application archived as
// well. Returns the UI-facing application, which is nil whenever the user
// has no live claim on access.
func (s *Service) CheckAccess(ctx context.Context, discordID string, now time.Time) (*model.Application, error) {
	var app model.Application
	err := s.db.Where("discord_id = ? AND archived_at IS NULL", discordID).
		Order("id DESC").First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !app.Live() {
		return nil, nil
	}

	member, err := s.dir.Member(ctx, discordID)
	if err != nil {
		// Discord being down must not silently grant or revoke; surface
		// the error and make no access decision.
		return nil, err
	}

	if member == nil {
		t := now
		app.Status = model.ApplicationRevoked
		app.ArchivedAt = &t
		if saveErr := s.db.Save(&app).Error; saveErr != nil {
			return nil, saveErr
		}
		s.audit.Log(audit.Entry{
			ActorID:  "system",
			TargetID: discordID,
			Action:   "application.auto_revoke",
			Details:  map[string]string{"reason": "left guild"},
		})
		return nil, nil
	}

	if app.Status == model.ApplicationAccepted && s.memberRoleID != "" && !member.HasRole(s.memberRoleID) {
		app.Status = model.ApplicationRevoked
		if saveErr := s.db.Save(&app).Error; saveErr != nil {
			return nil, saveErr
		}
		s.audit.Log(audit.Entry{
			ActorID:  "system",
			TargetID: discordID,
			Action:   "application.auto_revoke",
			Details:  map[string]string{"reason": "member role removed"},
		})
		return nil, nil
	}

	return &app, nil
}
