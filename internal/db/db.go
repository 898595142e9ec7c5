package db

import (
	"time"

	"podnest/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the postgres database at dsn. The returned handle is
// the process-wide pool; pass it explicitly to the services that need it.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	gdb, err := OpenWith(postgres.Open(dsn), log)
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("Database connection established")
	return gdb, nil
}

// OpenWith opens a gorm handle on any dialector. Tests use it with sqlite.
func OpenWith(dialector gorm.Dialector, log *zap.Logger) (*gorm.DB, error) {
	gormLog := logger.New(zap.NewStdLog(log), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	return gdb, nil
}

// Migrate creates or updates every table together with its unique indexes.
// The edge uniqueness constraints are what make insert-if-absent atomic.
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&models.User{},
		&models.Pod{},
		&models.PodShare{},
		&models.Story{},
		&models.StoryReaction{},
		&models.UserFollow{},
		&models.PodMembership{},
		&models.Bookmark{},
		&models.ArchivedPod{},
	)
	return errors.Wrap(err, "auto migrate")
}
