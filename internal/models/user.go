package models

import (
	"time"
)

// User is created on first successful external sign-in and never hard-deleted.
type User struct {
	ID            uint      `gorm:"column:user_id;primaryKey" json:"user_id"`
	Email         string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name          string    `gorm:"size:255" json:"name"`
	Profile       string    `json:"profile"` // avatar URL from the auth provider
	Onboarded     bool      `gorm:"default:false" json:"onboarded"`
	PodFollow     int       `gorm:"column:pod_follow;default:0;not null" json:"pod_follow"`
	UserFollowing int       `gorm:"column:user_following;default:0;not null" json:"user_following"`
	Followers     int       `gorm:"default:0;not null" json:"followers"`
	JoinedAt      time.Time `gorm:"autoCreateTime;index" json:"joined_at"`
}
