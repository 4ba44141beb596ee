package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/four20hq/clanhub/audit"
	"github.com/four20hq/clanhub/config"
	"github.com/four20hq/clanhub/model"
	"github.com/four20hq/clanhub/rank"
	"github.com/four20hq/clanhub/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testLadder(t *testing.T) *rank.Ladder {
	t.Helper()
	l, err := rank.NewLadder([]config.RankConfig{
		{Name: "Private", DaysRequired: 0},
		{Name: "Corporal", RoleID: "r-corp", DaysRequired: 14},
		{Name: "Sergeant", RoleID: "r-sgt", DaysRequired: 45},
		{Name: "Lieutenant", RoleID: "r-lt", DaysRequired: 90},
		{Name: "Major", RoleID: "r-maj", DaysRequired: 180},
	})
	require.NoError(t, err)
	return l
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *testutil.FakeDiscord) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fake := testutil.NewFakeDiscord()
	auditSvc := audit.New(db, testutil.Logger())
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	svc := New(db, fake, testLadder(t), auditSvc, 5, "chan-1", testutil.Logger())
	return svc, db, fake
}

func seedMember(t *testing.T, db *gorm.DB, uid, discordID, rankCurrent string, frozenDays int) *model.RosterMember {
	t.Helper()
	m := &model.RosterMember{
		DiscordName: "member-" + uid,
		DiscordID:   discordID,
		UID:         uid,
		Status:      model.MemberStatusActive,
		Has420Tag:   true,
		RankCurrent: rankCurrent,
		FrozenDays:  frozenDays,
		InGuild:     true,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func TestBuild_QueuesEligibleMembers(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedMember(t, db, "u-1", "d-1", "Private", 20)  // earned Corporal
	seedMember(t, db, "u-2", "d-2", "Private", 5)   // still Private
	seedMember(t, db, "u-3", "d-3", "Major", 500)   // already at top

	result, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 1, result.Queued)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Private", result.Items[0].FromRank)
	assert.Equal(t, "Corporal", result.Items[0].ToRank)
	assert.Equal(t, model.PromotionQueued, result.Items[0].Status)
}

func TestBuild_SkipsRanklessJumpToEarned(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedMember(t, db, "u-1", "d-1", "Private", 200)

	result, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	// a long-tenured member jumps straight to the earned rank
	assert.Equal(t, "Major", result.Items[0].ToRank)
}

func TestBuild_Idempotent(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedMember(t, db, "u-1", "d-1", "Private", 20)

	first, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Queued)

	second, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Queued)
	assert.Equal(t, 1, second.Skipped)

	var count int64
	db.Model(&model.PromotionQueueItem{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestBuild_IgnoresArchivedAndUntagged(t *testing.T) {
	svc, db, _ := newTestService(t)
	archived := seedMember(t, db, "u-1", "d-1", "Private", 20)
	at := testNow
	archived.ArchivedAt = &at
	require.NoError(t, db.Save(archived).Error)

	untagged := seedMember(t, db, "u-2", "d-2", "Private", 20)
	untagged.Has420Tag = false
	require.NoError(t, db.Save(untagged).Error)

	result, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Queued)
}

func TestConfirm_BelowThreshold(t *testing.T) {
	svc, db, _ := newTestService(t)
	for i := 0; i < 4; i++ {
		seedMember(t, db, fmt.Sprintf("u-%d", i), fmt.Sprintf("d-%d", i), "Private", 20)
	}
	_, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)

	_, err = svc.Confirm("staff-1", false, testNow)
	assert.ErrorIs(t, err, ErrInsufficientQueue)

	// nothing moved
	var confirmed int64
	db.Model(&model.PromotionQueueItem{}).Where("status = ?", model.PromotionConfirmed).Count(&confirmed)
	assert.EqualValues(t, 0, confirmed)
}

func TestConfirm_ForceBypassesThreshold(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedMember(t, db, "u-1", "d-1", "Private", 20)
	_, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)

	n, err := svc.Confirm("staff-1", true, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var item model.PromotionQueueItem
	require.NoError(t, db.First(&item).Error)
	assert.Equal(t, model.PromotionConfirmed, item.Status)
	assert.Equal(t, "staff-1", item.ConfirmedBy)
	require.NotNil(t, item.ConfirmedAt)
}

func TestConfirm_AtThreshold(t *testing.T) {
	svc, db, _ := newTestService(t)
	for i := 0; i < 5; i++ {
		seedMember(t, db, fmt.Sprintf("u-%d", i), fmt.Sprintf("d-%d", i), "Private", 20)
	}
	_, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)

	n, err := svc.Confirm("staff-1", false, testNow)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestConfirm_UnresolvedItemsNeverConfirmed(t *testing.T) {
	svc, db, _ := newTestService(t)
	m := seedMember(t, db, "u-1", "", "Private", 20) // no discord id
	require.NoError(t, db.Create(&model.PromotionQueueItem{
		MemberID: m.ID, FromRank: "Private", ToRank: "Corporal",
		Status: model.PromotionQueued,
	}).Error)

	n, err := svc.Confirm("staff-1", true, testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestProcess_GrantsRolesAndUpdatesRoster(t *testing.T) {
	svc, db, fake := newTestService(t)
	fake.AddMember("d-1", "alice", "", "")
	m := seedMember(t, db, "u-1", "d-1", "Private", 20)
	_, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)
	_, err = svc.Confirm("staff-1", true, testNow)
	require.NoError(t, err)

	result, err := svc.Process(context.Background(), "staff-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.True(t, result.Announced)

	require.Len(t, fake.AddedRoles, 1)
	assert.Equal(t, "d-1", fake.AddedRoles[0].UserID)
	assert.Equal(t, "r-corp", fake.AddedRoles[0].RoleID)
	// additive: no role removals, ever
	assert.Empty(t, fake.RemovedRoles)

	var updated model.RosterMember
	require.NoError(t, db.First(&updated, m.ID).Error)
	assert.Equal(t, "Corporal", updated.RankCurrent)
	assert.False(t, updated.PromoteEligible)
}

func TestProcess_PartialFailureIsolated(t *testing.T) {
	svc, db, fake := newTestService(t)
	fake.AddMember("d-2", "bob", "", "")
	// d-1 absent from the fake guild, so its role grant fails
	m1 := seedMember(t, db, "u-1", "d-1", "Private", 20)
	m2 := seedMember(t, db, "u-2", "d-2", "Private", 20)
	_, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)
	_, err = svc.Confirm("staff-1", true, testNow)
	require.NoError(t, err)

	result, err := svc.Process(context.Background(), "staff-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.True(t, result.Announced)

	var failed model.PromotionQueueItem
	require.NoError(t, db.Where("member_id = ?", m1.ID).First(&failed).Error)
	assert.Equal(t, model.PromotionFailed, failed.Status)
	assert.NotEmpty(t, failed.Error)

	// the failed member's roster row is untouched
	var untouched model.RosterMember
	require.NoError(t, db.First(&untouched, m1.ID).Error)
	assert.Equal(t, "Private", untouched.RankCurrent)

	var ok model.RosterMember
	require.NoError(t, db.First(&ok, m2.ID).Error)
	assert.Equal(t, "Corporal", ok.RankCurrent)
}

func TestProcess_AnnouncementGroupedByRankHighestFirst(t *testing.T) {
	svc, db, fake := newTestService(t)
	fake.AddMember("d-1", "alice", "", "")
	fake.AddMember("d-2", "bob", "", "")
	seedMember(t, db, "u-1", "d-1", "Private", 20)   // -> Corporal
	seedMember(t, db, "u-2", "d-2", "Private", 100)  // -> Lieutenant
	_, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)
	_, err = svc.Confirm("staff-1", true, testNow)
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), "staff-1", testNow)
	require.NoError(t, err)

	require.Len(t, fake.Messages, 1)
	msg := fake.Messages[0]
	assert.Equal(t, "chan-1", msg.ChannelID)
	assert.Contains(t, msg.Content, "**Promotions**")
	assert.Contains(t, msg.Content, "<@d-1>")
	assert.Contains(t, msg.Content, "<@d-2>")
	assert.Less(t, strings.Index(msg.Content, "__Lieutenant__"), strings.Index(msg.Content, "__Corporal__"))
}

func TestProcess_AnnounceFailureDoesNotRollBack(t *testing.T) {
	svc, db, fake := newTestService(t)
	fake.AddMember("d-1", "alice", "", "")
	fake.PostErr = errors.New("channel gone")
	m := seedMember(t, db, "u-1", "d-1", "Private", 20)
	_, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)
	_, err = svc.Confirm("staff-1", true, testNow)
	require.NoError(t, err)

	result, err := svc.Process(context.Background(), "staff-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.False(t, result.Announced)
	assert.NotEmpty(t, result.AnnounceError)

	var updated model.RosterMember
	require.NoError(t, db.First(&updated, m.ID).Error)
	assert.Equal(t, "Corporal", updated.RankCurrent)
}

func TestProcess_NoConfirmedItemsIsNoop(t *testing.T) {
	svc, _, fake := newTestService(t)
	result, err := svc.Process(context.Background(), "staff-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.False(t, result.Announced)
	assert.Empty(t, fake.Messages)
}

func TestClear(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedMember(t, db, "u-1", "d-1", "Private", 20)
	_, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)

	removed, err := svc.Clear("staff-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	// the row survives as history, out of the live queue
	var items []model.PromotionQueueItem
	require.NoError(t, db.Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, model.PromotionRemoved, items[0].Status)

	// a cleared member is eligible to be queued again
	result, err := svc.Build("staff-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
}

func TestRun_SingleShot(t *testing.T) {
	svc, db, fake := newTestService(t)
	fake.AddMember("d-1", "alice", "", "")
	seedMember(t, db, "u-1", "d-1", "Private", 20)

	result, err := svc.Run(context.Background(), "staff-1", true, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	require.Len(t, fake.AddedRoles, 1)
}
