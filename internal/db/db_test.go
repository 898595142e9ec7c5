package db

import (
	"testing"

	"podnest/internal/logger"
	"podnest/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := OpenWith(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared&_foreign_keys=1"), logger.Nop())
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return gdb
}

func TestMigrateCreatesTables(t *testing.T) {
	gdb := openTestDB(t)
	require.NoError(t, Migrate(gdb))
	// idempotent
	require.NoError(t, Migrate(gdb))

	for _, table := range []string{"users", "pods", "pod_shares", "stories", "story_reactions", "user_follows", "pod_creators", "bookmarks", "archived_pods"} {
		assert.True(t, gdb.Migrator().HasTable(table), table)
	}
}

func TestEdgeUniqueness(t *testing.T) {
	gdb := openTestDB(t)
	require.NoError(t, Migrate(gdb))

	a := models.User{Email: "a@example.com"}
	b := models.User{Email: "b@example.com"}
	require.NoError(t, gdb.Create(&a).Error)
	require.NoError(t, gdb.Create(&b).Error)

	require.NoError(t, gdb.Create(&models.UserFollow{FollowerID: a.ID, UserID: b.ID}).Error)
	err := gdb.Create(&models.UserFollow{FollowerID: a.ID, UserID: b.ID}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	err = gdb.Create(&models.User{Email: "a@example.com"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestPodRowsAndForeignKeys(t *testing.T) {
	gdb := openTestDB(t)
	require.NoError(t, Migrate(gdb))

	admin := models.User{Email: "admin@example.com"}
	require.NoError(t, gdb.Create(&admin).Error)

	pod := models.Pod{AdminID: admin.ID, Name: "Tech Talk", IsPublic: true}
	require.NoError(t, gdb.Create(&pod).Error)
	require.NotZero(t, pod.ID)

	require.NoError(t, gdb.Create(&models.PodShare{PodID: pod.ID, SharedEmail: "guest@example.com"}).Error)
	require.NoError(t, gdb.Create(&models.Story{PodID: pod.ID, UserID: admin.ID, Content: "hello"}).Error)
	require.NoError(t, gdb.Create(&models.PodMembership{UserID: admin.ID, PodID: pod.ID}).Error)
	require.NoError(t, gdb.Create(&models.Bookmark{UserID: admin.ID, PodID: pod.ID}).Error)

	second := models.Pod{AdminID: admin.ID, Name: "Second", IsPublic: false}
	require.NoError(t, gdb.Create(&second).Error)

	// pods reference users, never the other way round
	err := gdb.Create(&models.Pod{AdminID: admin.ID + 100, Name: "Orphan"}).Error
	assert.Error(t, err)
}
