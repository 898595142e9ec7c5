package handlers

import (
	"net/http"
	"time"

	"podnest/internal/middleware"
	"podnest/internal/models"
	"podnest/internal/services"
	"podnest/internal/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type UserHandler struct {
	identity *services.IdentityService
	graph    *services.SocialGraphService
	stories  *services.StoryService
	pods     *services.PodService
}

func NewUserHandler(identity *services.IdentityService, graph *services.SocialGraphService, stories *services.StoryService, pods *services.PodService) *UserHandler {
	return &UserHandler{identity: identity, graph: graph, stories: stories, pods: pods}
}

// Profile 用户主页
func (h *UserHandler) Profile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	user, err := h.identity.GetUser(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"user":              user,
		"days_since_joined": utils.DaysSince(user.JoinedAt, time.Now()),
	}
	if viewer := middleware.CurrentUser(c); viewer != nil && viewer.ID != id {
		following, err := h.graph.IsFollowingUser(ctx, viewer.ID, id)
		if err != nil {
			respondError(c, err)
			return
		}
		resp["is_following"] = following
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) Followers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	users, err := h.graph.GetFollowers(c.Request.Context(), id, pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UserHandler) Following(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	users, err := h.graph.GetFollowing(c.Request.Context(), id, pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Stories lists an author's stories, leaving out pods the viewer cannot read.
func (h *UserHandler) Stories(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	stories, err := h.stories.GetUserStories(ctx, id, viewerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	viewer := middleware.CurrentUser(c)
	readable := make(map[uint]bool)
	visible := make([]models.Story, 0, len(stories))
	for _, s := range stories {
		can, seen := readable[s.PodID]
		if !seen {
			pod, err := h.pods.GetPod(ctx, s.PodID)
			if err != nil {
				respondError(c, err)
				return
			}
			if can, err = h.pods.CanViewPod(ctx, pod, viewer); err != nil {
				respondError(c, err)
				return
			}
			readable[s.PodID] = can
		}
		if can {
			visible = append(visible, s)
		}
	}
	c.JSON(http.StatusOK, gin.H{"stories": visible})
}

func (h *UserHandler) Follow(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.graph.FollowUser(c.Request.Context(), middleware.CurrentUser(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"following": true})
}

func (h *UserHandler) Unfollow(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	removed, err := h.graph.UnfollowUser(c.Request.Context(), middleware.CurrentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": false, "removed": removed})
}

// Suggestions 侧边栏：推荐用户与推荐 pod 并行查询
func (h *UserHandler) Suggestions(c *gin.Context) {
	me := middleware.CurrentUser(c).ID
	userLimit := utils.StringToInt(c.Query("users"), 0)
	podLimit := utils.StringToInt(c.Query("pods"), 0)
	g, ctx := errgroup.WithContext(c.Request.Context())

	var users []models.User
	var pods []models.Pod
	g.Go(func() error {
		var err error
		users, err = h.graph.GetSuggestedUsers(ctx, me, userLimit)
		return err
	})
	g.Go(func() error {
		var err error
		pods, err = h.graph.GetSuggestedPods(ctx, me, podLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "pods": pods})
}
