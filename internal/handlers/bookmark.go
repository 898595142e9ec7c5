package handlers

import (
	"net/http"

	"podnest/internal/middleware"
	"podnest/internal/services"

	"github.com/gin-gonic/gin"
)

type BookmarkHandler struct {
	bookmarks *services.BookmarkService
	pods      *services.PodService
}

func NewBookmarkHandler(bookmarks *services.BookmarkService, pods *services.PodService) *BookmarkHandler {
	return &BookmarkHandler{bookmarks: bookmarks, pods: pods}
}

// Bookmark 收藏 pod；看不到的私有 pod 按 404 处理
func (h *BookmarkHandler) Bookmark(c *gin.Context) {
	pod, ok := loadVisiblePod(c, h.pods)
	if !ok {
		return
	}
	if err := h.bookmarks.BookmarkPod(c.Request.Context(), middleware.CurrentUser(c).ID, pod.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bookmarked": true})
}

func (h *BookmarkHandler) Unbookmark(c *gin.Context) {
	podID, ok := pathID(c, "id")
	if !ok {
		return
	}
	removed, err := h.bookmarks.UnbookmarkPod(c.Request.Context(), middleware.CurrentUser(c).ID, podID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarked": false, "removed": removed})
}

func (h *BookmarkHandler) List(c *gin.Context) {
	pods, err := h.bookmarks.GetBookmarkedPods(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	pods, ok := filterVisible(c, h.pods, pods)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"pods": pods})
}

// Archive 归档 pod（仅对自己隐藏）
func (h *BookmarkHandler) Archive(c *gin.Context) {
	pod, ok := loadVisiblePod(c, h.pods)
	if !ok {
		return
	}
	if err := h.bookmarks.ArchivePod(c.Request.Context(), middleware.CurrentUser(c).ID, pod.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"archived": true})
}

func (h *BookmarkHandler) Unarchive(c *gin.Context) {
	podID, ok := pathID(c, "id")
	if !ok {
		return
	}
	removed, err := h.bookmarks.UnarchivePod(c.Request.Context(), middleware.CurrentUser(c).ID, podID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": false, "removed": removed})
}

func (h *BookmarkHandler) Archived(c *gin.Context) {
	pods, err := h.bookmarks.GetArchivedPods(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	pods, ok := filterVisible(c, h.pods, pods)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"pods": pods})
}
