package services

import (
	"podnest/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// adjustCounter applies delta to a denormalized counter column with a single
// arithmetic UPDATE. Decrements never take the column below zero.
// It must run on the transaction that writes the owning edge.
func adjustCounter(tx *gorm.DB, model interface{}, keyColumn string, id uint, column string, delta int) error {
	q := tx.Model(model).Where(keyColumn+" = ?", id)
	if delta < 0 {
		q = q.Where(column+" >= ?", -delta)
	}
	return q.UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

// insertEdge inserts edge unless its unique (subject, object) pair is already
// present. It reports whether a row was written.
func insertEdge(tx *gorm.DB, edge interface{}) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edge)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func exists(tx *gorm.DB, model interface{}, keyColumn string, id uint) (bool, error) {
	var n int64
	if err := tx.Model(model).Where(keyColumn+" = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func requireUser(tx *gorm.DB, userID uint) error {
	ok, err := exists(tx, &models.User{}, "user_id", userID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrNotFound, "user %d", userID)
	}
	return nil
}

func requirePod(tx *gorm.DB, podID uint) error {
	ok, err := exists(tx, &models.Pod{}, "pod_id", podID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrNotFound, "pod %d", podID)
	}
	return nil
}

func requireStory(tx *gorm.DB, storyID uint) error {
	ok, err := exists(tx, &models.Story{}, "story_id", storyID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrNotFound, "story %d", storyID)
	}
	return nil
}
