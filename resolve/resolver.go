// Package resolve attaches free-text roster names to Discord guild members.
package resolve

import (
	"sort"
	"strings"

	"github.com/four20hq/clanhub/discord"
)

// Match scores, highest first.
const (
	ScoreExact     = 3
	ScorePrefix    = 2
	ScoreSubstring = 1
)

// DefaultLimit caps candidate lists when the caller passes no limit.
const DefaultLimit = 20

// Candidate is one scored guild member.
type Candidate struct {
	Member discord.GuildMember `json:"member"`
	Score  int                 `json:"score"`
}

// normalize lowercases and collapses runs of whitespace to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func scoreField(field, query string) int {
	f := normalize(field)
	if f == "" {
		return 0
	}
	switch {
	case f == query:
		return ScoreExact
	case strings.HasPrefix(f, query):
		return ScorePrefix
	case strings.Contains(f, query):
		return ScoreSubstring
	default:
		return 0
	}
}

func scoreMember(m *discord.GuildMember, query string) int {
	best := scoreField(m.User.Username, query)
	if s := scoreField(m.User.GlobalName, query); s > best {
		best = s
	}
	if s := scoreField(m.Nick, query); s > best {
		best = s
	}
	return best
}

// IsSnowflake reports whether q looks like a raw Discord ID (17-20 digits).
func IsSnowflake(q string) bool {
	if len(q) < 17 || len(q) > 20 {
		return false
	}
	for _, r := range q {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Search scores members against query over username, global name, and
// nickname, drops zero scores, and returns up to limit candidates in
// descending score order. A raw snowflake query bypasses fuzzy matching and
// returns the exact member, if present. Callers must treat multiple
// candidates as ambiguous and ask a human; auto-picking is never correct.
func Search(query string, members []discord.GuildMember, limit int) []Candidate {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if IsSnowflake(query) {
		for i := range members {
			if members[i].User.ID == query {
				return []Candidate{{Member: members[i], Score: ScoreExact}}
			}
		}
		return nil
	}

	q := normalize(query)
	if q == "" {
		return nil
	}

	var candidates []Candidate
	for i := range members {
		if score := scoreMember(&members[i], q); score > 0 {
			candidates = append(candidates, Candidate{Member: members[i], Score: score})
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// HasTag reports whether any of the member's names contains the clan tag.
func HasTag(m *discord.GuildMember, tag string) bool {
	if tag == "" {
		return false
	}
	t := strings.ToLower(tag)
	return strings.Contains(strings.ToLower(m.User.Username), t) ||
		strings.Contains(strings.ToLower(m.User.GlobalName), t) ||
		strings.Contains(strings.ToLower(m.Nick), t)
}
