package services

import (
	"context"

	"podnest/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// BookmarkService keeps the per-user bookmark and archive markers on pods.
// Neither marker depends on membership and neither carries counters.
type BookmarkService struct {
	db *gorm.DB
}

func NewBookmarkService(db *gorm.DB) *BookmarkService {
	return &BookmarkService{db: db}
}

func (s *BookmarkService) mark(ctx context.Context, op string, userID, podID uint, edge interface{}) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}
		if err := requirePod(tx, podID); err != nil {
			return err
		}
		inserted, err := insertEdge(tx, edge)
		if err != nil {
			return err
		}
		if !inserted {
			return errors.Wrapf(ErrAlreadyExists, "%s: user %d pod %d", op, userID, podID)
		}
		return nil
	})
	return storageErr(op, err)
}

func (s *BookmarkService) unmark(ctx context.Context, op string, userID, podID uint, model interface{}) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND pod_id = ?", userID, podID).Delete(model)
	if res.Error != nil {
		return false, storageErr(op, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *BookmarkService) listMarked(ctx context.Context, op, table, orderColumn string, userID uint) ([]models.Pod, error) {
	var pods []models.Pod
	err := s.db.WithContext(ctx).
		Select("pods.*").
		Joins("JOIN "+table+" ON "+table+".pod_id = pods.pod_id").
		Where(table+".user_id = ?", userID).
		Order(table + "." + orderColumn + " DESC, pods.pod_id DESC").
		Find(&pods).Error
	if err != nil {
		return nil, storageErr(op, err)
	}
	return pods, nil
}

func (s *BookmarkService) BookmarkPod(ctx context.Context, userID, podID uint) error {
	return s.mark(ctx, "bookmark pod", userID, podID, &models.Bookmark{UserID: userID, PodID: podID})
}

func (s *BookmarkService) UnbookmarkPod(ctx context.Context, userID, podID uint) (bool, error) {
	return s.unmark(ctx, "unbookmark pod", userID, podID, &models.Bookmark{})
}

func (s *BookmarkService) GetBookmarkedPods(ctx context.Context, userID uint) ([]models.Pod, error) {
	return s.listMarked(ctx, "get bookmarked pods", "bookmarks", "bookmarked_at", userID)
}

func (s *BookmarkService) IsBookmarked(ctx context.Context, userID, podID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Bookmark{}).
		Where("user_id = ? AND pod_id = ?", userID, podID).
		Count(&n).Error
	if err != nil {
		return false, storageErr("is bookmarked", err)
	}
	return n > 0, nil
}

// ArchivePod 归档是个人隐藏标记，不影响关注与收藏
func (s *BookmarkService) ArchivePod(ctx context.Context, userID, podID uint) error {
	return s.mark(ctx, "archive pod", userID, podID, &models.ArchivedPod{UserID: userID, PodID: podID})
}

func (s *BookmarkService) UnarchivePod(ctx context.Context, userID, podID uint) (bool, error) {
	return s.unmark(ctx, "unarchive pod", userID, podID, &models.ArchivedPod{})
}

func (s *BookmarkService) GetArchivedPods(ctx context.Context, userID uint) ([]models.Pod, error) {
	return s.listMarked(ctx, "get archived pods", "archived_pods", "archived_at", userID)
}
