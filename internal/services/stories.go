package services

import (
	"context"
	"strings"
	"time"

	"podnest/internal/models"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxReactionKind = 32

type StoryInput struct {
	PodID    uint
	AuthorID uint
	Title    string
	Content  string
	Tags     []string
	IsDraft  bool
	RevealAt *time.Time // 时间胶囊的揭晓时间
}

// StoryService stores stories and their per-kind reaction counters.
type StoryService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStoryService(db *gorm.DB) *StoryService {
	return &StoryService{db: db, now: time.Now}
}

// NormalizeTags trims, drops the leading '#', lower-cases and de-duplicates
// tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimLeft(strings.TrimSpace(t), "#"))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// CreateStory inserts the story and bumps pods.total_stories in one transaction.
func (s *StoryService) CreateStory(ctx context.Context, in StoryInput) (*models.Story, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, errors.Wrap(ErrInvalidInput, "story content is required")
	}

	story := models.Story{
		PodID:    in.PodID,
		UserID:   in.AuthorID,
		Title:    strings.TrimSpace(in.Title),
		Content:  in.Content,
		Hashtags: datatypes.JSONSlice[string](NormalizeTags(in.Tags)),
		IsDraft:  in.IsDraft,
	}
	if in.RevealAt != nil {
		at := in.RevealAt.UTC()
		story.RevealAt = &at
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePod(tx, in.PodID); err != nil {
			return err
		}
		if err := requireUser(tx, in.AuthorID); err != nil {
			return err
		}
		if err := tx.Create(&story).Error; err != nil {
			return err
		}
		return adjustCounter(tx, &models.Pod{}, "pod_id", in.PodID, "total_stories", 1)
	})
	if err != nil {
		return nil, storageErr("create story", err)
	}
	story.Reactions = map[string]int{}
	return &story, nil
}

func normalizeKind(kind string) (string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" || len(kind) > maxReactionKind {
		return "", errors.Wrapf(ErrInvalidInput, "reaction kind %q", kind)
	}
	return kind, nil
}

// AddStoryReaction increments the counter for kind and returns the story's
// full reaction map after the change.
func (s *StoryService) AddStoryReaction(ctx context.Context, storyID uint, kind string) (map[string]int, error) {
	kind, err := normalizeKind(kind)
	if err != nil {
		return nil, err
	}

	var reactions map[string]int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireStory(tx, storyID); err != nil {
			return err
		}
		if err := incrementReaction(tx, storyID, kind); err != nil {
			return err
		}
		if kind == models.ReactionLike {
			if err := adjustCounter(tx, &models.Story{}, "story_id", storyID, "likes_count", 1); err != nil {
				return err
			}
		}
		reactions, err = loadReactions(tx, storyID)
		return err
	})
	if err != nil {
		return nil, storageErr("add story reaction", err)
	}
	return reactions, nil
}

// incrementReaction bumps an existing row, or creates it at 1. A concurrent
// creator losing the insert race falls back to the increment.
func incrementReaction(tx *gorm.DB, storyID uint, kind string) error {
	bump := func() (int64, error) {
		res := tx.Model(&models.StoryReaction{}).
			Where("story_id = ? AND kind = ?", storyID, kind).
			UpdateColumn("total", gorm.Expr("total + ?", 1))
		return res.RowsAffected, res.Error
	}

	n, err := bump()
	if err != nil || n > 0 {
		return err
	}
	inserted, err := insertEdge(tx, &models.StoryReaction{StoryID: storyID, Kind: kind, Total: 1})
	if err != nil || inserted {
		return err
	}
	_, err = bump()
	return err
}

// RemoveStoryReaction decrements the counter for kind. Counters stop at zero.
func (s *StoryService) RemoveStoryReaction(ctx context.Context, storyID uint, kind string) (map[string]int, error) {
	kind, err := normalizeKind(kind)
	if err != nil {
		return nil, err
	}

	var reactions map[string]int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireStory(tx, storyID); err != nil {
			return err
		}
		res := tx.Model(&models.StoryReaction{}).
			Where("story_id = ? AND kind = ? AND total >= ?", storyID, kind, 1).
			UpdateColumn("total", gorm.Expr("total - ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 && kind == models.ReactionLike {
			if err := adjustCounter(tx, &models.Story{}, "story_id", storyID, "likes_count", -1); err != nil {
				return err
			}
		}
		reactions, err = loadReactions(tx, storyID)
		return err
	})
	if err != nil {
		return nil, storageErr("remove story reaction", err)
	}
	return reactions, nil
}

func (s *StoryService) GetStoryReactions(ctx context.Context, storyID uint) (map[string]int, error) {
	var reactions map[string]int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireStory(tx, storyID); err != nil {
			return err
		}
		var err error
		reactions, err = loadReactions(tx, storyID)
		return err
	})
	if err != nil {
		return nil, storageErr("get story reactions", err)
	}
	return reactions, nil
}

func loadReactions(tx *gorm.DB, storyID uint) (map[string]int, error) {
	var rows []models.StoryReaction
	if err := tx.Where("story_id = ? AND total > 0", storyID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Kind] = r.Total
	}
	return out, nil
}

// fillReactions 批量填充反应计数，避免 N+1
func (s *StoryService) fillReactions(ctx context.Context, stories []models.Story) error {
	if len(stories) == 0 {
		return nil
	}
	ids := make([]uint, len(stories))
	byID := make(map[uint]*models.Story, len(stories))
	for i := range stories {
		ids[i] = stories[i].ID
		stories[i].Reactions = map[string]int{}
		byID[stories[i].ID] = &stories[i]
	}

	var rows []models.StoryReaction
	if err := s.db.WithContext(ctx).Where("story_id IN ? AND total > 0", ids).Find(&rows).Error; err != nil {
		return err
	}
	for _, r := range rows {
		if st, ok := byID[r.StoryID]; ok {
			st.Reactions[r.Kind] = r.Total
		}
	}
	return nil
}

// visibleTo limits q to stories a viewer may read: published and revealed,
// or authored by the viewer. viewerID 0 is an anonymous reader.
func (s *StoryService) visibleTo(q *gorm.DB, viewerID uint) *gorm.DB {
	now := s.now().UTC()
	published := "(stories.is_draft = ? AND (stories.reveal_at IS NULL OR stories.reveal_at <= ?))"
	if viewerID == 0 {
		return q.Where(published, false, now)
	}
	return q.Where("("+published+" OR stories.user_id = ?)", false, now, viewerID)
}

func (s *StoryService) listStories(ctx context.Context, op string, q *gorm.DB) ([]models.Story, error) {
	var stories []models.Story
	if err := q.Find(&stories).Error; err != nil {
		return nil, storageErr(op, err)
	}
	if err := s.fillReactions(ctx, stories); err != nil {
		return nil, storageErr(op, err)
	}
	return stories, nil
}

// GetPodStories returns a pod's stories newest first.
func (s *StoryService) GetPodStories(ctx context.Context, podID, viewerID uint) ([]models.Story, error) {
	q := s.db.WithContext(ctx).Model(&models.Story{}).
		Where("stories.pod_id = ?", podID).
		Order("stories.created_at DESC, stories.story_id DESC")
	return s.listStories(ctx, "get pod stories", s.visibleTo(q, viewerID))
}

func (s *StoryService) GetUserStories(ctx context.Context, authorID, viewerID uint) ([]models.Story, error) {
	q := s.db.WithContext(ctx).Model(&models.Story{}).
		Where("stories.user_id = ?", authorID).
		Order("stories.created_at DESC, stories.story_id DESC")
	return s.listStories(ctx, "get user stories", s.visibleTo(q, viewerID))
}

// GetPopularStories 热门故事：仅公开 pod 中已发布且已揭晓的故事
func (s *StoryService) GetPopularStories(ctx context.Context, limit int) ([]models.Story, error) {
	q := s.db.WithContext(ctx).Model(&models.Story{}).
		Select("stories.*").
		Joins("JOIN pods ON pods.pod_id = stories.pod_id").
		Where("pods.is_public = ?", true).
		Order("stories.likes_count DESC, stories.created_at DESC, stories.story_id DESC").
		Limit(clampLimit(limit, DefaultPopularStories))
	return s.listStories(ctx, "get popular stories", s.visibleTo(q, 0))
}

// GetStory returns a single story. Hidden drafts and sealed capsules read as
// not found for anyone but their author.
func (s *StoryService) GetStory(ctx context.Context, storyID, viewerID uint) (*models.Story, error) {
	var story models.Story
	if err := s.db.WithContext(ctx).Where("story_id = ?", storyID).Take(&story).Error; err != nil {
		return nil, storageErr("get story", err)
	}
	if story.UserID != viewerID && (story.IsDraft || story.IsSealed(s.now())) {
		return nil, errors.Wrapf(ErrNotFound, "story %d", storyID)
	}
	stories := []models.Story{story}
	if err := s.fillReactions(ctx, stories); err != nil {
		return nil, storageErr("get story", err)
	}
	return &stories[0], nil
}
