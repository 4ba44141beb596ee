package resolve

import (
	"testing"

	"github.com/four20hq/clanhub/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member(id, username, globalName, nick string) discord.GuildMember {
	return discord.GuildMember{
		User: discord.User{ID: id, Username: username, GlobalName: globalName},
		Nick: nick,
	}
}

func TestSearch_ScoreOrdering(t *testing.T) {
	members := []discord.GuildMember{
		member("1", "mikel", "", ""),       // prefix
		member("2", "m1k3", "", ""),        // exact
		member("3", "them1k3guy", "", ""),  // substring
		member("4", "unrelated", "", ""),   // no match
	}

	got := Search("M1K3", members, 0)
	require.Len(t, got, 3)
	assert.Equal(t, "2", got[0].Member.User.ID)
	assert.Equal(t, ScoreExact, got[0].Score)
	assert.Equal(t, ScoreSubstring, got[2].Score)
}

func TestSearch_BestFieldWins(t *testing.T) {
	members := []discord.GuildMember{
		member("1", "somebody", "Somebody Else", "m1k3"),
	}
	got := Search("m1k3", members, 0)
	require.Len(t, got, 1)
	assert.Equal(t, ScoreExact, got[0].Score)
}

func TestSearch_NormalizesWhitespaceAndCase(t *testing.T) {
	members := []discord.GuildMember{member("1", "", "Big  Dog", "")}
	got := Search("  big DOG ", members, 0)
	require.Len(t, got, 1)
	assert.Equal(t, ScoreExact, got[0].Score)
}

func TestSearch_SnowflakeBypassesFuzzy(t *testing.T) {
	members := []discord.GuildMember{
		member("123456789012345678", "123456789012345678", "", ""),
		member("2", "12345678901234567", "", ""),
	}

	got := Search("123456789012345678", members, 0)
	require.Len(t, got, 1)
	assert.Equal(t, "123456789012345678", got[0].Member.User.ID)
	assert.Equal(t, ScoreExact, got[0].Score)
}

func TestSearch_SnowflakeNotInGuild(t *testing.T) {
	members := []discord.GuildMember{member("1", "alice", "", "")}
	assert.Empty(t, Search("123456789012345678", members, 0))
}

func TestSearch_LimitCaps(t *testing.T) {
	var members []discord.GuildMember
	for i := 0; i < 30; i++ {
		members = append(members, member("x", "clanmate", "", ""))
	}
	assert.Len(t, Search("clanmate", members, 0), DefaultLimit)
	assert.Len(t, Search("clanmate", members, 2), 2)
}

func TestSearch_EmptyQuery(t *testing.T) {
	members := []discord.GuildMember{member("1", "alice", "", "")}
	assert.Empty(t, Search("   ", members, 0))
}

func TestIsSnowflake(t *testing.T) {
	assert.True(t, IsSnowflake("12345678901234567"))   // 17
	assert.True(t, IsSnowflake("12345678901234567890")) // 20
	assert.False(t, IsSnowflake("1234567890123456"))    // 16
	assert.False(t, IsSnowflake("123456789012345678901")) // 21
	assert.False(t, IsSnowflake("1234567890123456a"))
	assert.False(t, IsSnowflake(""))
}

func TestHasTag(t *testing.T) {
	m := member("1", "soldier", "", "[420] soldier")
	assert.True(t, HasTag(&m, "420"))

	m2 := member("2", "civilian", "Civ", "")
	assert.False(t, HasTag(&m2, "420"))

	m3 := member("3", "420enjoyer", "", "")
	assert.True(t, HasTag(&m3, "420"))

	assert.False(t, HasTag(&m, ""))
}
