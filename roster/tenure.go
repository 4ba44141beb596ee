package roster

import (
	"time"

	"github.com/four20hq/clanhub/model"
)

const dayMillis = 86_400_000

// ComputeTimeDays returns the member's effective day count: the frozen
// balance plus whole days elapsed since countingSince. A nil countingSince
// means the clock is frozen and the balance is returned unchanged.
//
// The function is pure and monotonically non-decreasing in now while
// countingSince stays fixed; every eligibility and display computation
// goes through it.
func ComputeTimeDays(frozenDays int, countingSince *time.Time, now time.Time) int {
	if countingSince == nil {
		return frozenDays
	}
	elapsed := now.UnixMilli() - countingSince.UnixMilli()
	if elapsed < 0 {
		elapsed = 0
	}
	days := frozenDays + int(elapsed/dayMillis)
	if days < 0 {
		return 0
	}
	return days
}

// ShouldCount reports whether the tenure clock should be running for m.
func ShouldCount(m *model.RosterMember) bool {
	return m.Status == model.MemberStatusActive && m.Has420Tag && !m.Archived()
}

// ApplyCountingState reconciles CountingSince/FrozenDays with the member's
// current status and tag. Pausing folds the elapsed whole days into the
// frozen balance; resuming stamps CountingSince and leaves the balance
// untouched. Repeated toggles within the same day therefore fold zero days
// and never double-count. Returns true when the row changed.
func ApplyCountingState(m *model.RosterMember, now time.Time) bool {
	should := ShouldCount(m)
	counting := m.Counting()
	if should == counting {
		return false
	}
	if counting {
		m.FrozenDays = ComputeTimeDays(m.FrozenDays, m.CountingSince, now)
		m.CountingSince = nil
	} else {
		t := now
		m.CountingSince = &t
	}
	return true
}

// TimeDays returns the member's effective day count as of now.
func TimeDays(m *model.RosterMember, now time.Time) int {
	return ComputeTimeDays(m.FrozenDays, m.CountingSince, now)
}
