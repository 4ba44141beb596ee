package model

import (
	"time"

	"gorm.io/datatypes"
)

// Application status values. Stored status is advisory only: live access is
// always re-derived from current Discord roles (see application.CheckAccess).
const (
	ApplicationPending  = "pending"
	ApplicationAccepted = "accepted"
	ApplicationRejected = "rejected"
	ApplicationRevoked  = "revoked"
)

// Application is a membership application submitted through the site.
type Application struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	DiscordID  string         `gorm:"index;size:20;not null" json:"discord_id"`
	UID        string         `gorm:"index;size:32" json:"uid"`
	Status     string         `gorm:"size:16;default:pending" json:"status"`
	Answers    datatypes.JSON `json:"answers"`
	DecidedBy  string         `gorm:"size:20" json:"decided_by"`
	DecidedAt  *time.Time     `json:"decided_at"`
	ArchivedAt *time.Time     `gorm:"index" json:"archived_at"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// Live reports whether the application still represents a claim on access.
func (a *Application) Live() bool {
	return a.ArchivedAt == nil &&
		(a.Status == ApplicationPending || a.Status == ApplicationAccepted)
}
