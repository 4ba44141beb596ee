package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/four20hq/clanhub/discord"
	"github.com/four20hq/clanhub/model"
	"github.com/four20hq/clanhub/rank"
	"github.com/four20hq/clanhub/resolve"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Import row outcomes.
const (
	ImportCreated  = "created"
	ImportConflict = "conflict"
	ImportError    = "error"
)

// ConflictDuplicateUID is the conflict code for re-importing an existing UID.
const ConflictDuplicateUID = "DUPLICATE_UID"

// Service owns roster reads and writes.
type Service struct {
	db     *gorm.DB
	ladder *rank.Ladder
	dir    *discord.Directory
	tag    string
	logger *zap.Logger
}

// New creates a roster Service.
func New(db *gorm.DB, ladder *rank.Ladder, dir *discord.Directory, tag string, logger *zap.Logger) *Service {
	return &Service{db: db, ladder: ladder, dir: dir, tag: tag, logger: logger}
}

// RefreshPromotion recomputes rank_next / promote_eligible from the ladder.
func (s *Service) RefreshPromotion(m *model.RosterMember, now time.Time) {
	days := TimeDays(m, now)
	earned := s.ladder.EarnedRank(days)
	earnedIdx := s.ladder.Index(earned.Name)
	currentIdx := s.ladder.Index(m.RankCurrent)

	if next := s.ladder.NextRankFor(m.RankCurrent); next != nil {
		name := next.Name
		m.RankNext = &name
	} else {
		m.RankNext = nil
	}

	if earnedIdx > currentIdx {
		m.PromoteEligible = true
		m.PromoteReason = fmt.Sprintf("earned %s at %d days", earned.Name, days)
	} else {
		m.PromoteEligible = false
		m.PromoteReason = ""
	}
}

// ImportRowResult reports the outcome of one imported row.
type ImportRowResult struct {
	UID     string `json:"uid"`
	Outcome string `json:"outcome"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ImportResult aggregates an import run.
type ImportResult struct {
	Created   int               `json:"created"`
	Conflicts int               `json:"conflicts"`
	Errors    int               `json:"errors"`
	Rows      []ImportRowResult `json:"rows"`
}

// Import inserts rows into the roster. An existing UID is a per-row
// conflict (DUPLICATE_UID), never a silent dedupe. Each created row goes
// through identity resolution against the current guild directory.
func (s *Service) Import(ctx context.Context, rows []ImportRow, now time.Time) (*ImportResult, error) {
	members, err := s.dir.Members(ctx)
	if err != nil {
		s.logger.Warn("import: guild directory unavailable, resolution deferred", zap.Error(err))
		members = nil
	}
	uidMap, err := s.uidDiscordMap()
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for _, row := range rows {
		rr := ImportRowResult{UID: row.UID}

		var existing model.RosterMember
		err := s.db.Where("uid = ?", row.UID).First(&existing).Error
		switch {
		case err == nil:
			rr.Outcome = ImportConflict
			rr.Code = ConflictDuplicateUID
			result.Conflicts++
		case errors.Is(err, gorm.ErrRecordNotFound):
			m := s.buildMember(row, uidMap, members, now)
			if createErr := s.db.Create(m).Error; createErr != nil {
				rr.Outcome = ImportError
				rr.Error = createErr.Error()
				result.Errors++
			} else {
				rr.Outcome = ImportCreated
				result.Created++
			}
		default:
			rr.Outcome = ImportError
			rr.Error = err.Error()
			result.Errors++
		}
		result.Rows = append(result.Rows, rr)
	}
	return result, nil
}

// buildMember normalizes one import row into a roster member, attaching a
// Discord ID when resolution is unambiguous.
func (s *Service) buildMember(row ImportRow, uidMap map[string][]string, members []discord.GuildMember, now time.Time) *model.RosterMember {
	m := &model.RosterMember{
		DiscordName: row.DiscordName,
		IGN:         row.IGN,
		UID:         row.UID,
		JoinDate:    row.JoinDate,
		Status:      model.MemberStatusActive,
		RankCurrent: s.ladder.Defs()[0].Name,
	}

	// Exact UID mapping from prior applications wins; zero or multiple
	// distinct mapped IDs falls through to name search. Ambiguous matches
	// are never silently picked.
	if ids := uidMap[row.UID]; len(ids) == 1 {
		s.attach(m, ids[0], members)
	} else if len(members) > 0 {
		candidates := resolve.Search(row.DiscordName, members, 2)
		switch len(candidates) {
		case 1:
			s.attach(m, candidates[0].Member.User.ID, members)
		case 0:
			m.NeedsResolution = true
			m.ResolutionStatus = model.ResolutionPending
		default:
			m.NeedsResolution = true
			m.ResolutionStatus = model.ResolutionAmbiguous
		}
	} else {
		m.NeedsResolution = true
		m.ResolutionStatus = model.ResolutionPending
	}

	ApplyCountingState(m, now)
	s.RefreshPromotion(m, now)
	return m
}

// attach binds a resolved Discord ID and derives tag/guild state from the
// directory snapshot when the member is present in it.
func (s *Service) attach(m *model.RosterMember, discordID string, members []discord.GuildMember) {
	m.DiscordID = discordID
	m.ResolutionStatus = model.ResolutionResolved
	m.NeedsResolution = false
	for i := range members {
		if members[i].User.ID == discordID {
			m.InGuild = true
			m.Has420Tag = resolve.HasTag(&members[i], s.tag)
			if name := members[i].DisplayName(); name != "" {
				m.DiscordName = name
			}
			return
		}
	}
	m.InGuild = false
}

// uidDiscordMap builds UID → distinct Discord IDs from pending and accepted
// applications.
func (s *Service) uidDiscordMap() (map[string][]string, error) {
	var apps []model.Application
	if err := s.db.Where("status IN ? AND uid <> ''",
		[]string{model.ApplicationPending, model.ApplicationAccepted}).Find(&apps).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, a := range apps {
		seen := false
		for _, id := range out[a.UID] {
			if id == a.DiscordID {
				seen = true
				break
			}
		}
		if !seen {
			out[a.UID] = append(out[a.UID], a.DiscordID)
		}
	}
	return out, nil
}

// Get returns one member by ID. Archived rows come back too; delete and
// resolution still operate on them.
func (s *Service) Get(id int64) (*model.RosterMember, error) {
	var m model.RosterMember
	if err := s.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns roster members, optionally including archived rows.
func (s *Service) List(includeArchived bool) ([]model.RosterMember, error) {
	q := s.db.Order("id")
	if !includeArchived {
		q = q.Where("archived_at IS NULL")
	}
	var members []model.RosterMember
	if err := q.Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// Update applies status/tag/rank edits through the counting transition and
// persists the row.
func (s *Service) Update(m *model.RosterMember, now time.Time) error {
	ApplyCountingState(m, now)
	s.RefreshPromotion(m, now)
	return s.db.Save(m).Error
}

// Archive soft-deletes a member, freezing the tenure clock first.
func (s *Service) Archive(m *model.RosterMember, now time.Time) error {
	t := now
	m.ArchivedAt = &t
	m.InGuild = false
	ApplyCountingState(m, now)
	return s.db.Save(m).Error
}

// Delete hard-deletes a member. Explicit staff action only.
func (s *Service) Delete(id int64) error {
	return s.db.Delete(&model.RosterMember{}, id).Error
}

// ResolveMember binds a Discord ID to a roster row.
func (s *Service) ResolveMember(m *model.RosterMember, discordID string, now time.Time) error {
	members, err := s.dir.Members(context.Background())
	if err != nil {
		members = nil
	}
	s.attach(m, discordID, members)
	ApplyCountingState(m, now)
	s.RefreshPromotion(m, now)
	return s.db.Save(m).Error
}
