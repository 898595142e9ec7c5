package services

import (
	"context"
	"strings"

	"podnest/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// PodService is the pod directory: creation, lookup, search and sharing.
type PodService struct {
	db *gorm.DB
}

func NewPodService(db *gorm.DB) *PodService {
	return &PodService{db: db}
}

type PodInput struct {
	AdminID     uint
	Name        string
	Description string
	Domain      string
	Subtag      string
	IsPublic    bool
}

// SearchOptions 搜索参数，IsPublic 为要匹配的可见性
// 搜索私有 pod 时只返回 Viewer 可见的（管理员或被分享）
type SearchOptions struct {
	Limit    int
	IsPublic bool
	Viewer   *models.User
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{Limit: DefaultSearchLimit, IsPublic: true}
}

// CreatePod inserts a pod owned by in.AdminID with every counter at zero.
func (s *PodService) CreatePod(ctx context.Context, in PodInput) (*models.Pod, error) {
	pod := models.Pod{
		AdminID:     in.AdminID,
		IsPublic:    in.IsPublic,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Domain:      strings.TrimSpace(in.Domain),
		Subtag:      strings.TrimSpace(in.Subtag),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.User{}, "user_id", in.AdminID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrInvalidAdmin, "user %d", in.AdminID)
		}
		return tx.Create(&pod).Error
	})
	if err != nil {
		return nil, storageErr("create pod", err)
	}
	return &pod, nil
}

func (s *PodService) GetPod(ctx context.Context, podID uint) (*models.Pod, error) {
	var pod models.Pod
	if err := s.db.WithContext(ctx).First(&pod, "pod_id = ?", podID).Error; err != nil {
		return nil, storageErr("get pod", err)
	}
	return &pod, nil
}

// escapeLike escapes LIKE wildcards so the term matches literally.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// SearchPods does a case-insensitive substring match of term over subtag and
// domain, restricted to pods whose visibility equals opts.IsPublic. Private
// results are limited to pods opts.Viewer administers or was invited to, so
// the limit counts only pods the viewer can read.
func (s *PodService) SearchPods(ctx context.Context, term string, opts SearchOptions) ([]models.Pod, error) {
	limit := clampLimit(opts.Limit, DefaultSearchLimit)
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(term))) + "%"

	if !opts.IsPublic && opts.Viewer == nil {
		return []models.Pod{}, nil
	}

	q := s.db.WithContext(ctx).
		Where("is_public = ?", opts.IsPublic).
		Where("(LOWER(subtag) LIKE ? ESCAPE '\\' OR LOWER(domain) LIKE ? ESCAPE '\\')", pattern, pattern)
	if !opts.IsPublic {
		invited := s.db.Model(&models.PodShare{}).Select("pod_id").
			Where("shared_email = ?", normalizeEmail(opts.Viewer.Email))
		q = q.Where("(admin_id = ? OR pod_id IN (?))", opts.Viewer.ID, invited)
	}

	var pods []models.Pod
	err := q.Order("popularity_score DESC, pod_id ASC").
		Limit(limit).
		Find(&pods).Error
	if err != nil {
		return nil, storageErr("search pods", err)
	}
	return pods, nil
}

// GetUserPods lists the pods administered by userID.
func (s *PodService) GetUserPods(ctx context.Context, userID uint) ([]models.Pod, error) {
	var pods []models.Pod
	err := s.db.WithContext(ctx).
		Where("admin_id = ?", userID).
		Order("created_at DESC, pod_id DESC").
		Find(&pods).Error
	if err != nil {
		return nil, storageErr("get user pods", err)
	}
	return pods, nil
}

func (s *PodService) GetPublicPods(ctx context.Context) ([]models.Pod, error) {
	var pods []models.Pod
	err := s.db.WithContext(ctx).
		Where("is_public = ?", true).
		Order("popularity_score DESC, pod_id ASC").
		Find(&pods).Error
	if err != nil {
		return nil, storageErr("get public pods", err)
	}
	return pods, nil
}

// SharePod records an invitation of email to podID. The email does not need
// to belong to a registered user.
func (s *PodService) SharePod(ctx context.Context, podID uint, email string) (*models.PodShare, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.Wrapf(ErrInvalidInput, "invalid email %q", email)
	}

	share := models.PodShare{PodID: podID, SharedEmail: email}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePod(tx, podID); err != nil {
			return err
		}
		inserted, err := insertEdge(tx, &share)
		if err != nil {
			return err
		}
		if !inserted {
			return errors.Wrapf(ErrAlreadyExists, "pod %d already shared with %s", podID, email)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("share pod", err)
	}
	return &share, nil
}

// GetSharedPods lists pods shared with email.
func (s *PodService) GetSharedPods(ctx context.Context, email string) ([]models.Pod, error) {
	var pods []models.Pod
	err := s.db.WithContext(ctx).
		Select("pods.*").
		Joins("JOIN pod_shares ON pod_shares.pod_id = pods.pod_id").
		Where("pod_shares.shared_email = ?", normalizeEmail(email)).
		Order("pod_shares.shared_at DESC, pods.pod_id DESC").
		Find(&pods).Error
	if err != nil {
		return nil, storageErr("get shared pods", err)
	}
	return pods, nil
}

// CanViewPod 判断 viewer 是否可以读取 pod: 公开、管理员、或邮箱在分享名单中
func (s *PodService) CanViewPod(ctx context.Context, pod *models.Pod, viewer *models.User) (bool, error) {
	if pod.IsPublic {
		return true, nil
	}
	if viewer == nil {
		return false, nil
	}
	if viewer.ID == pod.AdminID {
		return true, nil
	}

	var n int64
	err := s.db.WithContext(ctx).Model(&models.PodShare{}).
		Where("pod_id = ? AND shared_email = ?", pod.ID, normalizeEmail(viewer.Email)).
		Count(&n).Error
	if err != nil {
		return false, storageErr("check pod access", err)
	}
	return n > 0, nil
}
