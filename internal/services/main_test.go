package services

import (
	"context"
	"testing"

	"podnest/internal/db"
	"podnest/internal/logger"
	"podnest/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens a private shared-cache in-memory sqlite database with the
// full schema. A single connection keeps every caller on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	gdb, err := db.OpenWith(sqlite.Open(dsn), logger.Nop())
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func mustUser(t *testing.T, gdb *gorm.DB, email string) *models.User {
	t.Helper()
	u, err := NewIdentityService(gdb).ResolveOrCreateUser(context.Background(), email, "", "")
	require.NoError(t, err)
	return u
}

func mustPod(t *testing.T, gdb *gorm.DB, adminID uint, name string, public bool) *models.Pod {
	t.Helper()
	p, err := NewPodService(gdb).CreatePod(context.Background(), PodInput{AdminID: adminID, Name: name, IsPublic: public})
	require.NoError(t, err)
	return p
}

func reloadUser(t *testing.T, gdb *gorm.DB, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, gdb.Where("user_id = ?", id).Take(&u).Error)
	return u
}

func reloadPod(t *testing.T, gdb *gorm.DB, id uint) models.Pod {
	t.Helper()
	var p models.Pod
	require.NoError(t, gdb.Where("pod_id = ?", id).Take(&p).Error)
	return p
}
