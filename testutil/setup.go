// Package testutil provides shared test fixtures: a throwaway SQLite DB, a
// local cache, a quiet logger and a scriptable fake Discord API.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/four20hq/clanhub/cache/local"
	"github.com/four20hq/clanhub/db/sqlite"
	"github.com/four20hq/clanhub/discord"
	"github.com/four20hq/clanhub/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupTestDB opens a migrated SQLite database in a temp dir.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	return db
}

// SetupTestCache returns a LocalCache that is torn down with the test.
func SetupTestCache(t *testing.T) *local.LocalCache {
	t.Helper()
	c, err := local.NewCache(local.Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// Logger returns a no-op logger for tests.
func Logger() *zap.Logger { return zap.NewNop() }

// FakeDiscord is a scriptable in-memory discord.API. Members are keyed by
// user ID; role mutations are applied to the stored members so that
// subsequent lookups observe them.
type FakeDiscord struct {
	mu sync.Mutex

	MembersByID map[string]*discord.GuildMember

	// Errors to inject per operation. Nil means success.
	MembersErr error
	RoleErr    error
	PostErr    error

	AddedRoles   []RoleChange
	RemovedRoles []RoleChange
	Messages     []PostedMessage
}

// RoleChange records one role grant or revocation.
type RoleChange struct {
	UserID string
	RoleID string
}

// PostedMessage records one channel message.
type PostedMessage struct {
	ChannelID string
	Content   string
}

// NewFakeDiscord creates an empty fake.
func NewFakeDiscord() *FakeDiscord {
	return &FakeDiscord{MembersByID: make(map[string]*discord.GuildMember)}
}

// AddMember registers a guild member on the fake.
func (f *FakeDiscord) AddMember(id, username, globalName, nick string, roles ...string) *discord.GuildMember {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &discord.GuildMember{
		User:  discord.User{ID: id, Username: username, GlobalName: globalName},
		Nick:  nick,
		Roles: roles,
	}
	f.MembersByID[id] = m
	return m
}

// RemoveMember drops a member, simulating a guild leave.
func (f *FakeDiscord) RemoveMember(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.MembersByID, id)
}

func (f *FakeDiscord) GuildMembers(_ context.Context) ([]discord.GuildMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MembersErr != nil {
		return nil, f.MembersErr
	}
	out := make([]discord.GuildMember, 0, len(f.MembersByID))
	for _, m := range f.MembersByID {
		out = append(out, *m)
	}
	return out, nil
}

func (f *FakeDiscord) GuildMember(_ context.Context, userID string) (*discord.GuildMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MembersErr != nil {
		return nil, f.MembersErr
	}
	m, ok := f.MembersByID[userID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *FakeDiscord) AddMemberRole(_ context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RoleErr != nil {
		return f.RoleErr
	}
	f.AddedRoles = append(f.AddedRoles, RoleChange{UserID: userID, RoleID: roleID})
	m, ok := f.MembersByID[userID]
	if !ok {
		return fmt.Errorf("fake discord: unknown member %s", userID)
	}
	for _, r := range m.Roles {
		if r == roleID {
			return nil
		}
	}
	m.Roles = append(m.Roles, roleID)
	return nil
}

func (f *FakeDiscord) RemoveMemberRole(_ context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RoleErr != nil {
		return f.RoleErr
	}
	f.RemovedRoles = append(f.RemovedRoles, RoleChange{UserID: userID, RoleID: roleID})
	m, ok := f.MembersByID[userID]
	if !ok {
		return nil
	}
	kept := m.Roles[:0]
	for _, r := range m.Roles {
		if r != roleID {
			kept = append(kept, r)
		}
	}
	m.Roles = kept
	return nil
}

func (f *FakeDiscord) PostMessage(_ context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PostErr != nil {
		return f.PostErr
	}
	f.Messages = append(f.Messages, PostedMessage{ChannelID: channelID, Content: content})
	return nil
}
