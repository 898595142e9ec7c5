package handlers

import (
	"net/http"
	"time"

	"podnest/internal/middleware"
	"podnest/internal/models"
	"podnest/internal/services"
	"podnest/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const (
	publicPodsKey     = "pods:public"
	popularStoriesKey = "stories:popular"
	listCacheTTL      = time.Minute
)

// RankScheduler queues a pod for popularity recomputation.
type RankScheduler interface {
	ScheduleUpdate(podID uint)
}

// InvitationSender delivers pod share invitations.
type InvitationSender interface {
	SendPodInvitation(inv services.Invitation)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidAdmin), errors.Is(err, services.ErrSelfFollow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Storage failures are
// recorded on the context for the request logger and answered generically.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// pathID parses a numeric path parameter, answering 400 when it is malformed.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		badRequest(c, "invalid "+name)
	}
	return id, ok
}

func pageFromQuery(c *gin.Context) services.Page {
	return services.Page{
		Limit:  utils.StringToInt(c.Query("limit"), 0),
		Offset: utils.StringToInt(c.Query("offset"), 0),
	}
}

// viewerID is 0 for anonymous requests.
func viewerID(c *gin.Context) uint {
	if u := middleware.CurrentUser(c); u != nil {
		return u.ID
	}
	return 0
}

// loadVisiblePod answers 404 for pods the viewer may not read, so private
// pods do not leak their existence.
func loadVisiblePod(c *gin.Context, pods *services.PodService) (*models.Pod, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	ctx := c.Request.Context()
	pod, err := pods.GetPod(ctx, id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	can, err := pods.CanViewPod(ctx, pod, middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !can {
		respondError(c, errors.Wrapf(services.ErrNotFound, "pod %d", id))
		return nil, false
	}
	return pod, true
}

// filterVisible drops pods the current viewer may not read, such as a
// bookmarked pod that turned private. On error the response is already written.
func filterVisible(c *gin.Context, pods *services.PodService, list []models.Pod) ([]models.Pod, bool) {
	viewer := middleware.CurrentUser(c)
	out := make([]models.Pod, 0, len(list))
	for i := range list {
		can, err := pods.CanViewPod(c.Request.Context(), &list[i], viewer)
		if err != nil {
			respondError(c, err)
			return nil, false
		}
		if can {
			out = append(out, list[i])
		}
	}
	return out, true
}
