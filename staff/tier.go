// Package staff derives staff tiers from Discord role membership.
package staff

import (
	"github.com/four20hq/clanhub/config"
	"github.com/four20hq/clanhub/discord"
)

// Tier is a staff level with an explicit rank integer so comparisons are
// total: Owner > WebDev > Admin > None.
type Tier int

const (
	TierNone Tier = iota
	TierAdmin
	TierWebDev
	TierOwner
)

func (t Tier) String() string {
	switch t {
	case TierOwner:
		return "owner"
	case TierWebDev:
		return "webdev"
	case TierAdmin:
		return "admin"
	default:
		return "none"
	}
}

// AtLeast reports whether t meets the minimum tier.
func (t Tier) AtLeast(min Tier) bool { return t >= min }

func holdsAny(m *discord.GuildMember, roleIDs []string) bool {
	for _, id := range roleIDs {
		if id != "" && m.HasRole(id) {
			return true
		}
	}
	return false
}

// TierFor returns the highest tier the member's current roles grant.
func TierFor(m *discord.GuildMember, cfg config.DiscordConfig) Tier {
	if m == nil {
		return TierNone
	}
	switch {
	case holdsAny(m, cfg.OwnerRoleIDs):
		return TierOwner
	case holdsAny(m, cfg.WebDevRoleIDs):
		return TierWebDev
	case holdsAny(m, cfg.AdminRoleIDs):
		return TierAdmin
	default:
		return TierNone
	}
}
