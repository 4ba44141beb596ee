// Package promotion runs the queued → confirmed → processed/failed
// promotion workflow.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/four20hq/clanhub/audit"
	"github.com/four20hq/clanhub/discord"
	"github.com/four20hq/clanhub/model"
	"github.com/four20hq/clanhub/rank"
	"github.com/four20hq/clanhub/roster"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInsufficientQueue is returned by Confirm when fewer resolved items are
// queued than the batch threshold and force is not set.
var ErrInsufficientQueue = errors.New("promotion: not enough resolved queued items")

// CodeInsufficientQueue is the wire conflict code for ErrInsufficientQueue.
const CodeInsufficientQueue = "INSUFFICIENT_QUEUE"

// Service owns the promotion queue.
type Service struct {
	db       *gorm.DB
	api      discord.API
	ladder   *rank.Ladder
	audit    *audit.Service
	minBatch int
	channel  string
	logger   *zap.Logger
}

// New creates a promotion Service. minBatch is the confirm threshold;
// channel is the announcement channel ID.
func New(db *gorm.DB, api discord.API, ladder *rank.Ladder, auditSvc *audit.Service, minBatch int, channel string, logger *zap.Logger) *Service {
	if minBatch <= 0 {
		minBatch = 5
	}
	return &Service{
		db:       db,
		api:      api,
		ladder:   ladder,
		audit:    auditSvc,
		minBatch: minBatch,
		channel:  channel,
		logger:   logger,
	}
}

// List returns queue items, newest first, optionally filtered by status.
func (s *Service) List(statuses ...string) ([]model.PromotionQueueItem, error) {
	q := s.db.Order("id DESC")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var items []model.PromotionQueueItem
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// BuildResult summarizes a queue build.
type BuildResult struct {
	Scanned int                        `json:"scanned"`
	Queued  int                        `json:"queued"`
	Skipped int                        `json:"skipped"`
	Items   []model.PromotionQueueItem `json:"items"`
}

// Build scans the roster for promotion candidates and queues them. Members
// already queued or confirmed are skipped, so repeated builds are
// idempotent.
func (s *Service) Build(actorID string, now time.Time) (*BuildResult, error) {
	var members []model.RosterMember
	err := s.db.Where("status = ? AND has_420_tag = ? AND archived_at IS NULL AND in_guild = ?",
		model.MemberStatusActive, true, true).Find(&members).Error
	if err != nil {
		return nil, err
	}

	var pending []model.PromotionQueueItem
	if err := s.db.Where("status IN ?",
		[]string{model.PromotionQueued, model.PromotionConfirmed}).Find(&pending).Error; err != nil {
		return nil, err
	}
	inQueue := make(map[int64]bool, len(pending))
	for _, it := range pending {
		inQueue[it.MemberID] = true
	}

	result := &BuildResult{Scanned: len(members)}
	topIdx := s.ladder.Index(s.ladder.Top().Name)
	for i := range members {
		m := &members[i]
		days := roster.TimeDays(m, now)
		earned := s.ladder.EarnedRank(days)
		earnedIdx := s.ladder.Index(earned.Name)
		currentIdx := s.ladder.Index(m.RankCurrent)

		if earnedIdx <= currentIdx || currentIdx >= topIdx {
			continue
		}
		if inQueue[m.ID] {
			result.Skipped++
			continue
		}

		item := model.PromotionQueueItem{
			MemberID:  m.ID,
			DiscordID: m.DiscordID,
			FromRank:  m.RankCurrent,
			ToRank:    earned.Name,
			Status:    model.PromotionQueued,
			CreatedBy: actorID,
		}
		if err := s.db.Create(&item).Error; err != nil {
			s.logger.Error("promotion build: queue insert failed",
				zap.Int64("member_id", m.ID), zap.Error(err))
			continue
		}
		result.Queued++
		result.Items = append(result.Items, item)
	}

	s.audit.Log(audit.Entry{
		ActorID: actorID,
		Action:  "promotion.build",
		Details: map[string]int{"scanned": result.Scanned, "queued": result.Queued},
	})
	return result, nil
}

// Confirm moves resolved queued items to confirmed. At least minBatch
// resolved items are required unless force is set; the threshold batches
// promotions into a single announcement instead of spamming one message
// per member. Items without a Discord ID can sit in the queue but are
// never confirmed.
func (s *Service) Confirm(actorID string, force bool, now time.Time) (int, error) {
	var items []model.PromotionQueueItem
	err := s.db.Where("status = ? AND discord_id <> ''", model.PromotionQueued).Find(&items).Error
	if err != nil {
		return 0, err
	}

	if len(items) < s.minBatch && !force {
		return 0, fmt.Errorf("%w: have %d, need %d", ErrInsufficientQueue, len(items), s.minBatch)
	}

	confirmed := 0
	for i := range items {
		t := now
		items[i].Status = model.PromotionConfirmed
		items[i].ConfirmedBy = actorID
		items[i].ConfirmedAt = &t
		if err := s.db.Save(&items[i]).Error; err != nil {
			s.logger.Error("promotion confirm: save failed",
				zap.Int64("item_id", items[i].ID), zap.Error(err))
			continue
		}
		confirmed++
	}

	s.audit.Log(audit.Entry{
		ActorID: actorID,
		Action:  "promotion.confirm",
		Details: map[string]interface{}{"confirmed": confirmed, "force": force},
	})
	return confirmed, nil
}

// ItemResult reports one processed queue item.
type ItemResult struct {
	ItemID    int64  `json:"item_id"`
	MemberID  int64  `json:"member_id"`
	DiscordID string `json:"discord_id"`
	ToRank    string `json:"to_rank"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// ProcessResult reports a processing run. Partial success is expected;
// processed and failed counts are both first-class.
type ProcessResult struct {
	ProcessedCount int          `json:"processed_count"`
	FailedCount    int          `json:"failed_count"`
	Announced      bool         `json:"announced"`
	AnnounceError  string       `json:"announce_error,omitempty"`
	Items          []ItemResult `json:"items"`
}

// Process grants the target Discord role for every confirmed item. Role
// grants are additive only; lower-rank roles are never removed. A per-item
// failure marks that item failed and leaves its roster row untouched
// without blocking siblings. After the run, one grouped announcement is
// posted if at least one item succeeded; an announcement failure is logged
// and reported but never rolls anything back.
func (s *Service) Process(ctx context.Context, actorID string, now time.Time) (*ProcessResult, error) {
	var items []model.PromotionQueueItem
	if err := s.db.Where("status = ?", model.PromotionConfirmed).Order("id").Find(&items).Error; err != nil {
		return nil, err
	}

	result := &ProcessResult{}
	var succeeded []model.PromotionQueueItem

	for i := range items {
		item := &items[i]
		ir := ItemResult{
			ItemID:    item.ID,
			MemberID:  item.MemberID,
			DiscordID: item.DiscordID,
			ToRank:    item.ToRank,
		}

		if err := s.processItem(ctx, item, actorID, now); err != nil {
			item.Status = model.PromotionFailed
			item.Error = err.Error()
			if saveErr := s.db.Save(item).Error; saveErr != nil {
				s.logger.Error("promotion process: failed-state save failed",
					zap.Int64("item_id", item.ID), zap.Error(saveErr))
			}
			ir.Status = model.PromotionFailed
			ir.Error = err.Error()
			result.FailedCount++
		} else {
			ir.Status = model.PromotionProcessed
			result.ProcessedCount++
			succeeded = append(succeeded, *item)
		}
		result.Items = append(result.Items, ir)
	}

	if len(succeeded) > 0 {
		if err := s.announce(ctx, succeeded); err != nil {
			s.logger.Error("promotion announcement failed", zap.Error(err))
			result.AnnounceError = err.Error()
		} else {
			result.Announced = true
		}
	}

	s.audit.Log(audit.Entry{
		ActorID: actorID,
		Action:  "promotion.process",
		Details: map[string]int{
			"processed": result.ProcessedCount,
			"failed":    result.FailedCount,
		},
	})
	return result, nil
}

// processItem grants the role and commits the item + member updates.
func (s *Service) processItem(ctx context.Context, item *model.PromotionQueueItem, actorID string, now time.Time) error {
	roleID := s.ladder.RoleID(item.ToRank)
	if item.DiscordID == "" {
		return errors.New("member has no resolved discord id")
	}
	if roleID != "" {
		if err := s.api.AddMemberRole(ctx, item.DiscordID, roleID); err != nil {
			return fmt.Errorf("role grant: %w", err)
		}
	}

	t := now
	item.Status = model.PromotionProcessed
	item.ProcessedBy = actorID
	item.ProcessedAt = &t
	if err := s.db.Save(item).Error; err != nil {
		return fmt.Errorf("queue update: %w", err)
	}

	err := s.db.Model(&model.RosterMember{}).Where("id = ?", item.MemberID).
		Updates(map[string]interface{}{
			"rank_current":     item.ToRank,
			"promote_eligible": false,
			"promote_reason":   "",
		}).Error
	if err != nil {
		return fmt.Errorf("roster update: %w", err)
	}
	return nil
}

// announce posts one consolidated message, one line per member, grouped by
// target rank.
func (s *Service) announce(ctx context.Context, items []model.PromotionQueueItem) error {
	byRank := make(map[string][]model.PromotionQueueItem)
	for _, it := range items {
		byRank[it.ToRank] = append(byRank[it.ToRank], it)
	}

	// Announce in ladder order, highest rank first.
	ranks := make([]string, 0, len(byRank))
	for r := range byRank {
		ranks = append(ranks, r)
	}
	sort.Slice(ranks, func(a, b int) bool {
		return s.ladder.Index(ranks[a]) > s.ladder.Index(ranks[b])
	})

	var b strings.Builder
	b.WriteString("**Promotions**\n")
	for _, r := range ranks {
		fmt.Fprintf(&b, "\n__%s__\n", r)
		for _, it := range byRank[r] {
			fmt.Fprintf(&b, "<@%s>\n", it.DiscordID)
		}
	}
	return s.api.PostMessage(ctx, s.channel, b.String())
}

// Clear retires all queued and confirmed items unconditionally, marking
// them removed so the queue history stays inspectable. This is an
// administrative escape valve, not part of the normal state machine.
func (s *Service) Clear(actorID string) (int64, error) {
	res := s.db.Model(&model.PromotionQueueItem{}).
		Where("status IN ?", []string{model.PromotionQueued, model.PromotionConfirmed}).
		Update("status", model.PromotionRemoved)
	if res.Error != nil {
		return 0, res.Error
	}
	s.audit.Log(audit.Entry{
		ActorID: actorID,
		Action:  "promotion.clear",
		Details: map[string]int64{"removed": res.RowsAffected},
	})
	return res.RowsAffected, nil
}

// Run is the legacy single-shot path: build, confirm, and process in one
// call. The force flag applies to the confirm threshold exactly as it does
// for the queue confirm.
func (s *Service) Run(ctx context.Context, actorID string, force bool, now time.Time) (*ProcessResult, error) {
	if _, err := s.Build(actorID, now); err != nil {
		return nil, err
	}
	if _, err := s.Confirm(actorID, force, now); err != nil {
		return nil, err
	}
	return s.Process(ctx, actorID, now)
}
