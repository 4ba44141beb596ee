package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/four20hq/clanhub/cache/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubAPI serves a fixed member list and counts fetches.
type stubAPI struct {
	members []GuildMember
	err     error
	calls   int
}

func (s *stubAPI) GuildMembers(context.Context) ([]GuildMember, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.members, nil
}

func (s *stubAPI) GuildMember(_ context.Context, userID string) (*GuildMember, error) {
	for i := range s.members {
		if s.members[i].User.ID == userID {
			return &s.members[i], nil
		}
	}
	return nil, nil
}

func (s *stubAPI) AddMemberRole(context.Context, string, string) error    { return nil }
func (s *stubAPI) RemoveMemberRole(context.Context, string, string) error { return nil }
func (s *stubAPI) PostMessage(context.Context, string, string) error      { return nil }

func newTestDirectory(t *testing.T, api API) *Directory {
	t.Helper()
	c, err := local.NewCache(local.Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return NewDirectory(api, c, time.Minute, zap.NewNop())
}

func TestMembers_ServedFromSnapshot(t *testing.T) {
	api := &stubAPI{members: []GuildMember{
		{User: User{ID: "d-1", Username: "alice"}},
		{User: User{ID: "d-2", Username: "bob"}},
	}}
	dir := newTestDirectory(t, api)

	first, err := dir.Members(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, api.calls)

	// second read inside the TTL hits the snapshot
	second, err := dir.Members(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.Equal(t, 1, api.calls)
}

func TestRefresh_RewritesSnapshot(t *testing.T) {
	api := &stubAPI{members: []GuildMember{{User: User{ID: "d-1"}}}}
	dir := newTestDirectory(t, api)

	_, err := dir.Members(context.Background())
	require.NoError(t, err)

	// d-1 leaves, d-2 joins
	api.members = []GuildMember{{User: User{ID: "d-2"}}}
	members, err := dir.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "d-2", members[0].User.ID)

	cached, err := dir.Members(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "d-2", cached[0].User.ID)
}

func TestRefresh_StaleSnapshotBeatsError(t *testing.T) {
	api := &stubAPI{members: []GuildMember{{User: User{ID: "d-1"}}}}
	dir := newTestDirectory(t, api)

	_, err := dir.Refresh(context.Background())
	require.NoError(t, err)

	api.err = errors.New("discord down")
	members, err := dir.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "d-1", members[0].User.ID)
}

func TestRefresh_ErrorWithoutSnapshot(t *testing.T) {
	api := &stubAPI{err: errors.New("discord down")}
	dir := newTestDirectory(t, api)

	_, err := dir.Members(context.Background())
	assert.Error(t, err)
}

func TestMember_Live(t *testing.T) {
	api := &stubAPI{members: []GuildMember{{User: User{ID: "d-1", Username: "alice"}}}}
	dir := newTestDirectory(t, api)

	m, err := dir.Member(context.Background(), "d-1")
	require.NoError(t, err)
	require.NotNil(t, m)

	gone, err := dir.Member(context.Background(), "d-x")
	require.NoError(t, err)
	assert.Nil(t, gone)
}
