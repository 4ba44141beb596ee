package discord

import (
	"context"
	"encoding/json"
	"time"

	"github.com/four20hq/clanhub/cache"
	"go.uber.org/zap"
)

const snapshotKey = "guild:members"
const snapshotStampKey = "guild:members:stamp"

// Directory serves the guild member list out of the cache, refreshing the
// snapshot from the API when the stamp expires. Single-member lookups that
// need live data (access checks) bypass the snapshot.
type Directory struct {
	api    API
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewDirectory creates a Directory with the given snapshot TTL.
func NewDirectory(api API, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Directory {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Directory{api: api, cache: c, ttl: ttl, logger: logger}
}

// API exposes the underlying Discord API for callers that need to mutate
// roles or post messages.
func (d *Directory) API() API { return d.api }

// Members returns the guild member list, from the snapshot when fresh.
func (d *Directory) Members(ctx context.Context) ([]GuildMember, error) {
	fresh, err := d.cache.Exists(ctx, snapshotStampKey)
	if err == nil && fresh {
		if members, ok := d.loadSnapshot(ctx); ok {
			return members, nil
		}
	}
	return d.Refresh(ctx)
}

// Refresh pulls the member list from the API and rewrites the snapshot.
func (d *Directory) Refresh(ctx context.Context) ([]GuildMember, error) {
	members, err := d.api.GuildMembers(ctx)
	if err != nil {
		// A stale snapshot beats an error for read paths.
		if cached, ok := d.loadSnapshot(ctx); ok {
			d.logger.Warn("guild member fetch failed, serving stale snapshot", zap.Error(err))
			return cached, nil
		}
		return nil, err
	}

	_ = d.cache.Del(ctx, snapshotKey)
	for _, m := range members {
		data, mErr := json.Marshal(m)
		if mErr != nil {
			continue
		}
		_ = d.cache.HSet(ctx, snapshotKey, m.User.ID, string(data))
	}
	_ = d.cache.Set(ctx, snapshotStampKey, "1", d.ttl)
	return members, nil
}

// Member does a live single-member fetch; nil means not in the guild.
func (d *Directory) Member(ctx context.Context, userID string) (*GuildMember, error) {
	return d.api.GuildMember(ctx, userID)
}

func (d *Directory) loadSnapshot(ctx context.Context) ([]GuildMember, bool) {
	raw, err := d.cache.HGetAll(ctx, snapshotKey)
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	members := make([]GuildMember, 0, len(raw))
	for _, v := range raw {
		var m GuildMember
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		members = append(members, m)
	}
	return members, true
}
