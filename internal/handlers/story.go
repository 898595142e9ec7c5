package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"podnest/internal/middleware"
	"podnest/internal/models"
	"podnest/internal/services"
	"podnest/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type StoryHandler struct {
	stories *services.StoryService
	pods    *services.PodService
	ranking RankScheduler
	cache   *utils.Cache
}

func NewStoryHandler(stories *services.StoryService, pods *services.PodService, ranking RankScheduler, cache *utils.Cache) *StoryHandler {
	return &StoryHandler{stories: stories, pods: pods, ranking: ranking, cache: cache}
}

type createStoryRequest struct {
	PodID    uint       `json:"pod_id" binding:"required"`
	Title    string     `json:"title"`
	Content  string     `json:"content" binding:"required"`
	Tags     []string   `json:"tags"`
	IsDraft  bool       `json:"is_draft"`
	RevealAt *time.Time `json:"reveal_at"`
}

// canRead 检查当前用户能否读取 pod
func (h *StoryHandler) canRead(c *gin.Context, podID uint) bool {
	ctx := c.Request.Context()
	pod, err := h.pods.GetPod(ctx, podID)
	if err != nil {
		respondError(c, err)
		return false
	}
	can, err := h.pods.CanViewPod(ctx, pod, middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return false
	}
	if !can {
		respondError(c, errors.Wrapf(services.ErrNotFound, "pod %d", podID))
	}
	return can
}

// Create 发布故事；reveal_at 在未来时为时间胶囊
func (h *StoryHandler) Create(c *gin.Context) {
	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "pod_id and content are required")
		return
	}
	if !h.canRead(c, req.PodID) {
		return
	}

	story, err := h.stories.CreateStory(c.Request.Context(), services.StoryInput{
		PodID:    req.PodID,
		AuthorID: middleware.CurrentUser(c).ID,
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
		IsDraft:  req.IsDraft,
		RevealAt: req.RevealAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.ranking.ScheduleUpdate(story.PodID)
	h.cache.Delete(popularStoriesKey)
	c.JSON(http.StatusCreated, gin.H{"story": story})
}

// loadVisibleStory resolves :id through both the story and the pod visibility rules.
func (h *StoryHandler) loadVisibleStory(c *gin.Context) (*models.Story, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	story, err := h.stories.GetStory(c.Request.Context(), id, viewerID(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !h.canRead(c, story.PodID) {
		return nil, false
	}
	return story, true
}

func (h *StoryHandler) Get(c *gin.Context) {
	story, ok := h.loadVisibleStory(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"story":        story,
		"content_html": utils.RenderStory(story.Content),
	})
}

// Popular 热门故事；默认条数走缓存
func (h *StoryHandler) Popular(c *gin.Context) {
	limit := utils.StringToInt(c.Query("limit"), services.DefaultPopularStories)
	cacheable := limit == services.DefaultPopularStories
	if cacheable {
		if cached, ok := h.cache.Get(popularStoriesKey); ok {
			c.JSON(http.StatusOK, gin.H{"stories": cached})
			return
		}
	}

	stories, err := h.stories.GetPopularStories(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if cacheable {
		h.cache.Set(popularStoriesKey, stories, listCacheTTL)
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

func (h *StoryHandler) Reactions(c *gin.Context) {
	story, ok := h.loadVisibleStory(c)
	if !ok {
		return
	}
	reactions, err := h.stories.GetStoryReactions(c.Request.Context(), story.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": reactions})
}

func (h *StoryHandler) React(c *gin.Context) {
	h.changeReaction(c, h.stories.AddStoryReaction)
}

func (h *StoryHandler) Unreact(c *gin.Context) {
	h.changeReaction(c, h.stories.RemoveStoryReaction)
}

type reactionFunc func(ctx context.Context, storyID uint, kind string) (map[string]int, error)

func (h *StoryHandler) changeReaction(c *gin.Context, apply reactionFunc) {
	story, ok := h.loadVisibleStory(c)
	if !ok {
		return
	}
	kind := c.Param("kind")
	reactions, err := apply(c.Request.Context(), story.ID, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	if strings.EqualFold(strings.TrimSpace(kind), models.ReactionLike) {
		h.ranking.ScheduleUpdate(story.PodID)
		h.cache.Delete(popularStoriesKey)
	}
	c.JSON(http.StatusOK, gin.H{"reactions": reactions})
}
