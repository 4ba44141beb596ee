package model_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/four20hq/clanhub/db/sqlite"
	"github.com/four20hq/clanhub/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrate(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))

	for _, table := range []interface{}{
		&model.RosterMember{}, &model.Application{}, &model.PromotionQueueItem{},
		&model.AuditLog{}, &model.BanReport{},
	} {
		assert.True(t, db.Migrator().HasTable(table))
	}
}

func TestRosterMember_UIDUnique(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "unique.db"))
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))

	require.NoError(t, db.Create(&model.RosterMember{DiscordName: "a", UID: "u-1"}).Error)
	assert.Error(t, db.Create(&model.RosterMember{DiscordName: "b", UID: "u-1"}).Error)
}

func TestRosterMember_Helpers(t *testing.T) {
	m := &model.RosterMember{}
	assert.False(t, m.Archived())
	assert.False(t, m.Counting())

	now := time.Now()
	m.ArchivedAt = &now
	m.CountingSince = &now
	assert.True(t, m.Archived())
	assert.True(t, m.Counting())
}

func TestApplication_Live(t *testing.T) {
	app := &model.Application{Status: model.ApplicationPending}
	assert.True(t, app.Live())

	app.Status = model.ApplicationAccepted
	assert.True(t, app.Live())

	app.Status = model.ApplicationRejected
	assert.False(t, app.Live())

	now := time.Now()
	app.Status = model.ApplicationAccepted
	app.ArchivedAt = &now
	assert.False(t, app.Live())
}
