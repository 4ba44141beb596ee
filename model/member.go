package model

import "time"

// Member status values.
const (
	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
)

// Resolution status values for roster rows that could not be attached to a
// Discord account automatically.
const (
	ResolutionNone      = ""
	ResolutionPending   = "pending"
	ResolutionAmbiguous = "ambiguous"
	ResolutionResolved  = "resolved"
)

// RosterMember is one row of the clan list.
//
// CountingSince is non-nil exactly while the member is simultaneously
// active and tagged; whenever that joint condition turns false the elapsed
// whole days are folded into FrozenDays and CountingSince is cleared.
type RosterMember struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	DiscordName      string     `gorm:"size:64;not null" json:"discord_name"`
	DiscordID        string     `gorm:"index;size:20" json:"discord_id"`
	IGN              string     `gorm:"size:64" json:"ign"`
	UID              string     `gorm:"uniqueIndex;size:32;not null" json:"uid"`
	JoinDate         string     `gorm:"size:16" json:"join_date"`
	Status           string     `gorm:"size:16;default:active" json:"status"`
	Has420Tag        bool       `gorm:"column:has_420_tag" json:"has_420_tag"`
	RankCurrent      string     `gorm:"size:32;default:Private" json:"rank_current"`
	RankNext         *string    `gorm:"size:32" json:"rank_next"`
	FrozenDays       int        `gorm:"default:0" json:"frozen_days"`
	CountingSince    *time.Time `json:"counting_since"`
	PromoteEligible  bool       `json:"promote_eligible"`
	PromoteReason    string     `gorm:"size:128" json:"promote_reason"`
	NeedsResolution  bool       `json:"needs_resolution"`
	ResolutionStatus string     `gorm:"size:16" json:"resolution_status"`
	InGuild          bool       `gorm:"default:true" json:"in_guild"`
	ArchivedAt       *time.Time `gorm:"index" json:"archived_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Archived reports whether the member has been soft-deleted.
func (m *RosterMember) Archived() bool { return m.ArchivedAt != nil }

// Counting reports whether the tenure clock is currently running.
func (m *RosterMember) Counting() bool { return m.CountingSince != nil }
