package staff

import (
	"testing"

	"github.com/four20hq/clanhub/config"
	"github.com/four20hq/clanhub/discord"
	"github.com/stretchr/testify/assert"
)

var tierCfg = config.DiscordConfig{
	OwnerRoleIDs:  []string{"r-owner"},
	WebDevRoleIDs: []string{"r-webdev", "r-webdev2"},
	AdminRoleIDs:  []string{"r-admin"},
}

func withRoles(roles ...string) *discord.GuildMember {
	return &discord.GuildMember{Roles: roles}
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierOwner, TierFor(withRoles("r-owner"), tierCfg))
	assert.Equal(t, TierWebDev, TierFor(withRoles("r-webdev2"), tierCfg))
	assert.Equal(t, TierAdmin, TierFor(withRoles("r-admin"), tierCfg))
	assert.Equal(t, TierNone, TierFor(withRoles("r-member"), tierCfg))
	assert.Equal(t, TierNone, TierFor(nil, tierCfg))
}

func TestTierFor_HighestWins(t *testing.T) {
	m := withRoles("r-admin", "r-owner", "r-webdev")
	assert.Equal(t, TierOwner, TierFor(m, tierCfg))
}

func TestAtLeast(t *testing.T) {
	assert.True(t, TierOwner.AtLeast(TierAdmin))
	assert.True(t, TierAdmin.AtLeast(TierAdmin))
	assert.False(t, TierAdmin.AtLeast(TierWebDev))
	assert.False(t, TierNone.AtLeast(TierAdmin))
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "owner", TierOwner.String())
	assert.Equal(t, "webdev", TierWebDev.String())
	assert.Equal(t, "admin", TierAdmin.String())
	assert.Equal(t, "none", TierNone.String())
}
