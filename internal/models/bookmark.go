package models

import (
	"time"
)

// Bookmark 收藏模型 - 用户收藏 pod，与关注无关
type Bookmark struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index;uniqueIndex:idx_user_pod" json:"user_id"`
	PodID        uint      `gorm:"not null;index;uniqueIndex:idx_user_pod" json:"pod_id"`
	BookmarkedAt time.Time `gorm:"autoCreateTime" json:"bookmarked_at"`
}
