package services

import (
	"context"

	"podnest/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// SocialGraphService owns user→user follows and user→pod memberships.
// Every edge write and the counters on both of its ends commit together.
type SocialGraphService struct {
	db *gorm.DB
}

func NewSocialGraphService(db *gorm.DB) *SocialGraphService {
	return &SocialGraphService{db: db}
}

// FollowUser 关注用户，同时维护双方的计数
func (s *SocialGraphService) FollowUser(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return ErrSelfFollow
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, targetID); err != nil {
			return err
		}
		if err := requireUser(tx, followerID); err != nil {
			return err
		}

		inserted, err := insertEdge(tx, &models.UserFollow{FollowerID: followerID, UserID: targetID})
		if err != nil {
			return err
		}
		if !inserted {
			return errors.Wrapf(ErrAlreadyExists, "user %d already follows user %d", followerID, targetID)
		}

		if err := adjustCounter(tx, &models.User{}, "user_id", followerID, "user_following", 1); err != nil {
			return err
		}
		return adjustCounter(tx, &models.User{}, "user_id", targetID, "followers", 1)
	})
	return storageErr("follow user", err)
}

// UnfollowUser removes the edge. It returns false, touching no counter,
// when there was nothing to remove.
func (s *SocialGraphService) UnfollowUser(ctx context.Context, followerID, targetID uint) (bool, error) {
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND user_id = ?", followerID, targetID).Delete(&models.UserFollow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true

		if err := adjustCounter(tx, &models.User{}, "user_id", followerID, "user_following", -1); err != nil {
			return err
		}
		return adjustCounter(tx, &models.User{}, "user_id", targetID, "followers", -1)
	})
	if err != nil {
		return false, storageErr("unfollow user", err)
	}
	return removed, nil
}

// FollowPod 加入 pod: 边 + users.pod_follow + pods.followers_count 在同一事务中
func (s *SocialGraphService) FollowPod(ctx context.Context, userID, podID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}
		if err := requirePod(tx, podID); err != nil {
			return err
		}

		inserted, err := insertEdge(tx, &models.PodMembership{UserID: userID, PodID: podID})
		if err != nil {
			return err
		}
		if !inserted {
			return errors.Wrapf(ErrAlreadyExists, "user %d already follows pod %d", userID, podID)
		}

		if err := adjustCounter(tx, &models.User{}, "user_id", userID, "pod_follow", 1); err != nil {
			return err
		}
		return adjustCounter(tx, &models.Pod{}, "pod_id", podID, "followers_count", 1)
	})
	return storageErr("follow pod", err)
}

func (s *SocialGraphService) UnfollowPod(ctx context.Context, userID, podID uint) (bool, error) {
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND pod_id = ?", userID, podID).Delete(&models.PodMembership{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true

		if err := adjustCounter(tx, &models.User{}, "user_id", userID, "pod_follow", -1); err != nil {
			return err
		}
		return adjustCounter(tx, &models.Pod{}, "pod_id", podID, "followers_count", -1)
	})
	if err != nil {
		return false, storageErr("unfollow pod", err)
	}
	return removed, nil
}

// GetFollowers lists users following userID, oldest follow first.
func (s *SocialGraphService) GetFollowers(ctx context.Context, userID uint, page Page) ([]models.User, error) {
	page = page.normalize()
	var users []models.User
	err := s.db.WithContext(ctx).
		Select("users.*").
		Joins("JOIN user_follows ON user_follows.follower_id = users.user_id").
		Where("user_follows.user_id = ?", userID).
		Order("user_follows.created_at ASC, users.user_id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&users).Error
	if err != nil {
		return nil, storageErr("get followers", err)
	}
	return users, nil
}

// GetFollowing lists users that userID follows, oldest follow first.
func (s *SocialGraphService) GetFollowing(ctx context.Context, userID uint, page Page) ([]models.User, error) {
	page = page.normalize()
	var users []models.User
	err := s.db.WithContext(ctx).
		Select("users.*").
		Joins("JOIN user_follows ON user_follows.user_id = users.user_id").
		Where("user_follows.follower_id = ?", userID).
		Order("user_follows.created_at ASC, users.user_id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&users).Error
	if err != nil {
		return nil, storageErr("get following", err)
	}
	return users, nil
}

func (s *SocialGraphService) IsFollowingUser(ctx context.Context, followerID, targetID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.UserFollow{}).
		Where("follower_id = ? AND user_id = ?", followerID, targetID).
		Count(&n).Error
	if err != nil {
		return false, storageErr("is following user", err)
	}
	return n > 0, nil
}

func (s *SocialGraphService) IsFollowingPod(ctx context.Context, userID, podID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PodMembership{}).
		Where("user_id = ? AND pod_id = ?", userID, podID).
		Count(&n).Error
	if err != nil {
		return false, storageErr("is following pod", err)
	}
	return n > 0, nil
}

// GetSuggestedUsers returns up to limit users that userID does not follow yet,
// earliest joiners first.
func (s *SocialGraphService) GetSuggestedUsers(ctx context.Context, userID uint, limit int) ([]models.User, error) {
	limit = clampLimit(limit, DefaultSuggestedUsers)
	tx := s.db.WithContext(ctx)
	if err := requireUser(tx, userID); err != nil {
		return nil, storageErr("get suggested users", err)
	}

	following := tx.Model(&models.UserFollow{}).Select("user_id").Where("follower_id = ?", userID)

	var users []models.User
	err := tx.Where("user_id <> ?", userID).
		Where("user_id NOT IN (?)", following).
		Order("joined_at ASC, user_id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, storageErr("get suggested users", err)
	}
	return users, nil
}

// GetSuggestedPods returns up to limit public pods the user neither
// administers nor follows, most popular first.
func (s *SocialGraphService) GetSuggestedPods(ctx context.Context, userID uint, limit int) ([]models.Pod, error) {
	limit = clampLimit(limit, DefaultSuggestedPods)
	tx := s.db.WithContext(ctx)
	if err := requireUser(tx, userID); err != nil {
		return nil, storageErr("get suggested pods", err)
	}

	followed := tx.Model(&models.PodMembership{}).Select("pod_id").Where("user_id = ?", userID)

	var pods []models.Pod
	err := tx.Where("is_public = ?", true).
		Where("admin_id <> ?", userID).
		Where("pod_id NOT IN (?)", followed).
		Order("popularity_score DESC, followers_count DESC, pod_id ASC").
		Limit(limit).
		Find(&pods).Error
	if err != nil {
		return nil, storageErr("get suggested pods", err)
	}
	return pods, nil
}

// GetFollowedPods lists pods userID has joined, most recent first.
func (s *SocialGraphService) GetFollowedPods(ctx context.Context, userID uint) ([]models.Pod, error) {
	var pods []models.Pod
	err := s.db.WithContext(ctx).
		Select("pods.*").
		Joins("JOIN pod_creators ON pod_creators.pod_id = pods.pod_id").
		Where("pod_creators.user_id = ?", userID).
		Order("pod_creators.joined_at DESC, pods.pod_id DESC").
		Find(&pods).Error
	if err != nil {
		return nil, storageErr("get followed pods", err)
	}
	return pods, nil
}

func (s *SocialGraphService) GetPodFollowers(ctx context.Context, podID uint, page Page) ([]models.User, error) {
	page = page.normalize()
	var users []models.User
	err := s.db.WithContext(ctx).
		Select("users.*").
		Joins("JOIN pod_creators ON pod_creators.user_id = users.user_id").
		Where("pod_creators.pod_id = ?", podID).
		Order("pod_creators.joined_at ASC, users.user_id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&users).Error
	if err != nil {
		return nil, storageErr("get pod followers", err)
	}
	return users, nil
}
