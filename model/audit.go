package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records staff and system actions. Append-only; never read back
// programmatically, purely for operator forensics.
type AuditLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID   string         `gorm:"index:idx_audit_trace;size:36" json:"trace_id"`
	ActorID   string         `gorm:"index:idx_audit_actor;size:20" json:"actor_id"`
	TargetID  string         `gorm:"size:32" json:"target_id"`
	Action    string         `gorm:"size:64;not null" json:"action"`
	Details   datatypes.JSON `json:"details"`
	Error     string         `gorm:"type:text" json:"error"`
	IP        string         `gorm:"size:45" json:"ip"`
	CreatedAt time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}

// BanReport is a staff report of a rule-breaking player. Duplicate reports
// for the same target inside the configured window are rejected, not deduped.
type BanReport struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ReporterID string    `gorm:"size:20;not null" json:"reporter_id"`
	TargetID   string    `gorm:"index;size:32;not null" json:"target_id"`
	Reason     string    `gorm:"size:512" json:"reason"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
