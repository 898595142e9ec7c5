package handlers

import (
	"net/http"

	"podnest/internal/middleware"
	"podnest/internal/models"
	"podnest/internal/services"
	"podnest/internal/utils"

	"github.com/gin-gonic/gin"
)

type PodHandler struct {
	pods    *services.PodService
	graph   *services.SocialGraphService
	stories *services.StoryService
	ranking RankScheduler
	mail    InvitationSender
	cache   *utils.Cache
}

func NewPodHandler(pods *services.PodService, graph *services.SocialGraphService, stories *services.StoryService,
	ranking RankScheduler, mail InvitationSender, cache *utils.Cache) *PodHandler {
	return &PodHandler{pods: pods, graph: graph, stories: stories, ranking: ranking, mail: mail, cache: cache}
}

type createPodRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Domain      string `json:"domain"`
	Subtag      string `json:"subtag"`
	IsPublic    *bool  `json:"is_public"`
}

// Create 创建 pod，当前用户为管理员；默认公开
func (h *PodHandler) Create(c *gin.Context) {
	var req createPodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	pod, err := h.pods.CreatePod(c.Request.Context(), services.PodInput{
		AdminID:     middleware.CurrentUser(c).ID,
		Name:        req.Name,
		Description: req.Description,
		Domain:      req.Domain,
		Subtag:      req.Subtag,
		IsPublic:    isPublic,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.cache.Delete(publicPodsKey)
	c.JSON(http.StatusCreated, gin.H{"pod": pod})
}

func (h *PodHandler) loadVisiblePod(c *gin.Context) (*models.Pod, bool) {
	return loadVisiblePod(c, h.pods)
}

func (h *PodHandler) Get(c *gin.Context) {
	pod, ok := h.loadVisiblePod(c)
	if !ok {
		return
	}
	resp := gin.H{"pod": pod}
	if viewer := middleware.CurrentUser(c); viewer != nil {
		following, err := h.graph.IsFollowingPod(c.Request.Context(), viewer.ID, pod.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		resp["is_following"] = following
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PodHandler) Stories(c *gin.Context) {
	pod, ok := h.loadVisiblePod(c)
	if !ok {
		return
	}
	stories, err := h.stories.GetPodStories(c.Request.Context(), pod.ID, viewerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

func (h *PodHandler) Followers(c *gin.Context) {
	pod, ok := h.loadVisiblePod(c)
	if !ok {
		return
	}
	users, err := h.graph.GetPodFollowers(c.Request.Context(), pod.ID, pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// ListPublic 公开 pod 列表，带短期缓存
func (h *PodHandler) ListPublic(c *gin.Context) {
	if cached, ok := h.cache.Get(publicPodsKey); ok {
		c.JSON(http.StatusOK, gin.H{"pods": cached})
		return
	}
	pods, err := h.pods.GetPublicPods(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	h.cache.Set(publicPodsKey, pods, listCacheTTL)
	c.JSON(http.StatusOK, gin.H{"pods": pods})
}

func (h *PodHandler) Search(c *gin.Context) {
	opts := services.DefaultSearchOptions()
	opts.Limit = utils.StringToInt(c.Query("limit"), opts.Limit)
	if public := utils.ParseBool(c.Query("public")); public != nil {
		opts.IsPublic = *public
	}
	// 私有 pod 只返回当前用户可见的
	opts.Viewer = middleware.CurrentUser(c)
	pods, err := h.pods.SearchPods(c.Request.Context(), c.Query("q"), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pods": pods})
}

func (h *PodHandler) Mine(c *gin.Context) {
	pods, err := h.pods.GetUserPods(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pods": pods})
}

func (h *PodHandler) Followed(c *gin.Context) {
	pods, err := h.graph.GetFollowedPods(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pods": pods})
}

func (h *PodHandler) Shared(c *gin.Context) {
	pods, err := h.pods.GetSharedPods(c.Request.Context(), middleware.CurrentUser(c).Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pods": pods})
}

// Follow 加入 pod
func (h *PodHandler) Follow(c *gin.Context) {
	pod, ok := h.loadVisiblePod(c)
	if !ok {
		return
	}
	if err := h.graph.FollowPod(c.Request.Context(), middleware.CurrentUser(c).ID, pod.ID); err != nil {
		respondError(c, err)
		return
	}
	h.ranking.ScheduleUpdate(pod.ID)
	h.cache.Delete(publicPodsKey)
	c.JSON(http.StatusCreated, gin.H{"following": true})
}

func (h *PodHandler) Unfollow(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	removed, err := h.graph.UnfollowPod(c.Request.Context(), middleware.CurrentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if removed {
		h.ranking.ScheduleUpdate(id)
		h.cache.Delete(publicPodsKey)
	}
	c.JSON(http.StatusOK, gin.H{"following": false, "removed": removed})
}

type shareRequest struct {
	Email string `json:"email" binding:"required"`
}

// Share 管理员邀请邮箱访问 pod，并异步发送邀请邮件
func (h *PodHandler) Share(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email is required")
		return
	}

	ctx := c.Request.Context()
	pod, err := h.pods.GetPod(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	me := middleware.CurrentUser(c)
	if pod.AdminID != me.ID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "only the pod admin can share it"})
		return
	}

	share, err := h.pods.SharePod(ctx, pod.ID, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	h.mail.SendPodInvitation(services.Invitation{
		Email:       share.SharedEmail,
		Inviter:     me.Name,
		PodID:       pod.ID,
		PodName:     pod.Name,
		Description: pod.Description,
	})
	c.JSON(http.StatusCreated, gin.H{"share": share})
}
