package roster

import (
	"testing"
	"time"

	"github.com/four20hq/clanhub/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestComputeTimeDays_FrozenClock(t *testing.T) {
	assert.Equal(t, 10, ComputeTimeDays(10, nil, baseTime))
	assert.Equal(t, 0, ComputeTimeDays(0, nil, baseTime))
}

func TestComputeTimeDays_RunningClock(t *testing.T) {
	since := baseTime
	assert.Equal(t, 10, ComputeTimeDays(10, &since, baseTime))
	assert.Equal(t, 10, ComputeTimeDays(10, &since, baseTime.Add(23*time.Hour)))
	assert.Equal(t, 11, ComputeTimeDays(10, &since, baseTime.Add(24*time.Hour)))
	assert.Equal(t, 13, ComputeTimeDays(10, &since, baseTime.Add(3*24*time.Hour+5*time.Hour)))
}

func TestComputeTimeDays_ClockSkewClamps(t *testing.T) {
	since := baseTime
	// now before countingSince must not reduce the balance
	assert.Equal(t, 10, ComputeTimeDays(10, &since, baseTime.Add(-48*time.Hour)))
}

func TestComputeTimeDays_NeverNegative(t *testing.T) {
	assert.Equal(t, 0, ComputeTimeDays(-5, nil, baseTime))
}

func TestApplyCountingState_PauseFoldsElapsedDays(t *testing.T) {
	since := baseTime
	m := &model.RosterMember{
		Status:        model.MemberStatusActive,
		Has420Tag:     true,
		FrozenDays:    10,
		CountingSince: &since,
	}

	now := baseTime.Add(3 * 24 * time.Hour)
	m.Has420Tag = false
	require.True(t, ApplyCountingState(m, now))
	assert.Equal(t, 13, m.FrozenDays)
	assert.Nil(t, m.CountingSince)
}

func TestApplyCountingState_ResumeStampsWithoutCounting(t *testing.T) {
	m := &model.RosterMember{
		Status:     model.MemberStatusActive,
		Has420Tag:  false,
		FrozenDays: 13,
	}

	m.Has420Tag = true
	require.True(t, ApplyCountingState(m, baseTime))
	assert.Equal(t, 13, m.FrozenDays)
	require.NotNil(t, m.CountingSince)
	assert.Equal(t, baseTime, *m.CountingSince)
}

func TestApplyCountingState_NoChangeIsIdempotent(t *testing.T) {
	since := baseTime
	m := &model.RosterMember{
		Status:        model.MemberStatusActive,
		Has420Tag:     true,
		FrozenDays:    10,
		CountingSince: &since,
	}
	assert.False(t, ApplyCountingState(m, baseTime.Add(time.Hour)))
	assert.Equal(t, 10, m.FrozenDays)
	assert.Equal(t, baseTime, *m.CountingSince)
}

func TestApplyCountingState_SameDayToggleFoldsZero(t *testing.T) {
	since := baseTime
	m := &model.RosterMember{
		Status:        model.MemberStatusActive,
		Has420Tag:     true,
		FrozenDays:    10,
		CountingSince: &since,
	}

	now := baseTime.Add(6 * time.Hour)
	m.Status = model.MemberStatusInactive
	require.True(t, ApplyCountingState(m, now))
	assert.Equal(t, 10, m.FrozenDays)

	m.Status = model.MemberStatusActive
	require.True(t, ApplyCountingState(m, now))
	assert.Equal(t, 10, m.FrozenDays)
	require.NotNil(t, m.CountingSince)
}

func TestApplyCountingState_ArchiveFreezes(t *testing.T) {
	since := baseTime
	archived := baseTime.Add(48 * time.Hour)
	m := &model.RosterMember{
		Status:        model.MemberStatusActive,
		Has420Tag:     true,
		FrozenDays:    0,
		CountingSince: &since,
		ArchivedAt:    &archived,
	}
	require.True(t, ApplyCountingState(m, archived))
	assert.Equal(t, 2, m.FrozenDays)
	assert.Nil(t, m.CountingSince)
}

func TestComputeTimeDays_Monotone(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frozen := rapid.IntRange(0, 10000).Draw(t, "frozen")
		since := baseTime.Add(time.Duration(rapid.Int64Range(-1e6, 1e6).Draw(t, "offset")) * time.Second)
		a := time.Duration(rapid.Int64Range(0, 1e7).Draw(t, "a")) * time.Second
		b := time.Duration(rapid.Int64Range(0, 1e7).Draw(t, "b")) * time.Second
		if a > b {
			a, b = b, a
		}
		early := ComputeTimeDays(frozen, &since, baseTime.Add(a))
		late := ComputeTimeDays(frozen, &since, baseTime.Add(b))
		if late < early {
			t.Fatalf("day count decreased: %d then %d", early, late)
		}
	})
}

func TestApplyCountingState_FoldPreservesDayCount(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frozen := rapid.IntRange(0, 1000).Draw(t, "frozen")
		elapsed := time.Duration(rapid.Int64Range(0, 400*24*3600).Draw(t, "elapsed")) * time.Second
		since := baseTime
		now := baseTime.Add(elapsed)

		m := &model.RosterMember{
			Status:        model.MemberStatusActive,
			Has420Tag:     true,
			FrozenDays:    frozen,
			CountingSince: &since,
		}
		before := TimeDays(m, now)

		m.Status = model.MemberStatusInactive
		ApplyCountingState(m, now)
		if got := TimeDays(m, now); got != before {
			t.Fatalf("fold changed day count: %d -> %d", before, got)
		}

		m.Status = model.MemberStatusActive
		ApplyCountingState(m, now)
		if got := TimeDays(m, now); got != before {
			t.Fatalf("unfold changed day count: %d -> %d", before, got)
		}
	})
}
