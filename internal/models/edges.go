package models

import (
	"time"
)

// UserFollow 是有向边: FollowerID 关注 UserID
type UserFollow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follower_user" json:"follower_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_follower_user;index" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// PodMembership 用户关注(加入)的 pod，表名沿用 pod_creators
type PodMembership struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_member_pod" json:"user_id"`
	PodID    uint      `gorm:"not null;uniqueIndex:idx_member_pod;index" json:"pod_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (PodMembership) TableName() string { return "pod_creators" }

type ArchivedPod struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_archive_user_pod" json:"user_id"`
	PodID      uint      `gorm:"not null;uniqueIndex:idx_archive_user_pod" json:"pod_id"`
	ArchivedAt time.Time `gorm:"autoCreateTime" json:"archived_at"`
}
