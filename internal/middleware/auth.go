package middleware

import (
	"context"
	"net/http"

	"podnest/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CheckUserKey   = "user"
	SessionUserKey = "user_id"
)

// UserLoader resolves the signed-in user id stored in the session.
type UserLoader interface {
	GetUser(ctx context.Context, userID uint) (*models.User, error)
}

// LoadUser retrieves user from session and sets it on the context.
// A session pointing at a vanished user is cleared.
func LoadUser(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(SessionUserKey).(uint)
		if ok && userID != 0 {
			user, err := users.GetUser(c.Request.Context(), userID)
			if err == nil {
				c.Set(CheckUserKey, user)
			} else {
				session.Delete(SessionUserKey)
				_ = session.Save()
			}
		}
		c.Next()
	}
}

// AuthRequired rejects requests without a signed-in user.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请先登录"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the signed-in user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CheckUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
