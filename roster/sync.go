package roster

import (
	"context"
	"time"

	"github.com/four20hq/clanhub/model"
	"github.com/four20hq/clanhub/resolve"
	"go.uber.org/zap"
)

// SyncResult summarizes one guild sync sweep.
type SyncResult struct {
	Scanned  int `json:"scanned"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
}

// Sync reconciles the roster against the live guild directory: refreshes
// in_guild / tag / display name for bound members, archives rows whose
// member left the guild, and runs the counting transition for everything
// the sweep touched. Runs both on a schedule and on demand from the admin
// panel.
func (s *Service) Sync(ctx context.Context, now time.Time) (*SyncResult, error) {
	guildMembers, err := s.dir.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(guildMembers))
	for i := range guildMembers {
		byID[guildMembers[i].User.ID] = i
	}

	var members []model.RosterMember
	if err := s.db.Where("archived_at IS NULL AND discord_id <> ''").Find(&members).Error; err != nil {
		return nil, err
	}

	result := &SyncResult{Scanned: len(members)}
	for i := range members {
		m := &members[i]
		changed := false

		if gi, ok := byID[m.DiscordID]; ok {
			gm := &guildMembers[gi]
			if !m.InGuild {
				m.InGuild = true
				changed = true
			}
			if tag := resolve.HasTag(gm, s.tag); tag != m.Has420Tag {
				m.Has420Tag = tag
				changed = true
			}
			if name := gm.DisplayName(); name != "" && name != m.DiscordName {
				m.DiscordName = name
				changed = true
			}
		} else {
			// Left the guild: archive, never hard-delete.
			t := now
			m.ArchivedAt = &t
			m.InGuild = false
			changed = true
			result.Archived++
		}

		if ApplyCountingState(m, now) {
			changed = true
		}
		if changed {
			s.RefreshPromotion(m, now)
			if err := s.db.Save(m).Error; err != nil {
				s.logger.Error("sync: save failed",
					zap.Int64("member_id", m.ID), zap.Error(err))
				continue
			}
			result.Updated++
		}
	}
	return result, nil
}
