package model

import "time"

// Promotion queue item states. queued → confirmed → processed | failed;
// removed is terminal and reachable only through an explicit clear.
const (
	PromotionQueued    = "queued"
	PromotionConfirmed = "confirmed"
	PromotionProcessed = "processed"
	PromotionFailed    = "failed"
	PromotionRemoved   = "removed"
)

// PromotionQueueItem is one pending promotion for a roster member.
type PromotionQueueItem struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID    int64      `gorm:"index;not null" json:"member_id"`
	DiscordID   string     `gorm:"size:20" json:"discord_id"`
	FromRank    string     `gorm:"size:32;not null" json:"from_rank"`
	ToRank      string     `gorm:"size:32;not null" json:"to_rank"`
	Status      string     `gorm:"index;size:16;default:queued" json:"status"`
	Error       string     `gorm:"size:256" json:"error,omitempty"`
	CreatedBy   string     `gorm:"size:20" json:"created_by"`
	ConfirmedBy string     `gorm:"size:20" json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ProcessedBy string     `gorm:"size:20" json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
