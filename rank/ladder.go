package rank

import (
	"fmt"

	"github.com/four20hq/clanhub/config"
)

// Def is one rung of the promotion ladder.
type Def struct {
	Name         string
	RoleID       string // empty for Private, which carries no Discord role
	DaysRequired int
}

// Ladder is the ordered rank table. Index position is the total order used
// for all rank comparisons.
type Ladder struct {
	defs   []Def
	byName map[string]int
}

// defaults are used when the config carries no ladder.
var defaults = []Def{
	{Name: "Private", DaysRequired: 0},
	{Name: "Corporal", DaysRequired: 14},
	{Name: "Sergeant", DaysRequired: 45},
	{Name: "Lieutenant", DaysRequired: 90},
	{Name: "Major", DaysRequired: 180},
}

// NewLadder builds a Ladder from config, falling back to the default table.
// Thresholds must be strictly increasing.
func NewLadder(cfg []config.RankConfig) (*Ladder, error) {
	defs := make([]Def, 0, len(cfg))
	for _, rc := range cfg {
		defs = append(defs, Def{Name: rc.Name, RoleID: rc.RoleID, DaysRequired: rc.DaysRequired})
	}
	if len(defs) == 0 {
		defs = append(defs, defaults...)
	}

	l := &Ladder{defs: defs, byName: make(map[string]int, len(defs))}
	for i, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("rank: rung %d has no name", i)
		}
		if i > 0 && d.DaysRequired <= defs[i-1].DaysRequired {
			return nil, fmt.Errorf("rank: %q threshold %d is not above %q",
				d.Name, d.DaysRequired, defs[i-1].Name)
		}
		l.byName[d.Name] = i
	}
	return l, nil
}

// MustDefault returns the built-in ladder; panics only on a programming error.
func MustDefault() *Ladder {
	l, err := NewLadder(nil)
	if err != nil {
		panic(err)
	}
	return l
}

// Defs returns the ordered rank table.
func (l *Ladder) Defs() []Def { return l.defs }

// Index returns the position of a rank name. Unknown names map to 0
// (Private) on purpose: imported rosters carry free-text rank columns and
// the lenient fallback is long-standing observable behavior.
func (l *Ladder) Index(name string) int {
	if i, ok := l.byName[name]; ok {
		return i
	}
	return 0
}

// EarnedRank returns the highest rung whose threshold is within days.
func (l *Ladder) EarnedRank(days int) Def {
	earned := l.defs[0]
	for _, d := range l.defs {
		if d.DaysRequired <= days {
			earned = d
		}
	}
	return earned
}

// NextRankFor returns the rung immediately above current, or nil at the top.
func (l *Ladder) NextRankFor(current string) *Def {
	i := l.Index(current)
	if i+1 >= len(l.defs) {
		return nil
	}
	next := l.defs[i+1]
	return &next
}

// Top returns the highest rung.
func (l *Ladder) Top() Def { return l.defs[len(l.defs)-1] }

// RoleID returns the Discord role for a rank name, if any.
func (l *Ladder) RoleID(name string) string {
	return l.defs[l.Index(name)].RoleID
}
