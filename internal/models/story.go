package models

import (
	"time"

	"gorm.io/datatypes"
)

const ReactionLike = "like"

type Story struct {
	ID            uint                        `gorm:"column:story_id;primaryKey" json:"story_id"`
	PodID         uint                        `gorm:"not null;index" json:"pod_id"`
	UserID        uint                        `gorm:"not null;index" json:"user_id"`
	Title         string                      `gorm:"size:200" json:"title"`
	Content       string                      `gorm:"type:text;not null" json:"content"`
	Hashtags      datatypes.JSONSlice[string] `json:"hashtags"`
	LikesCount    int                         `gorm:"default:0;not null;index" json:"likes_count"`
	CommentsCount int                         `gorm:"default:0;not null" json:"comments_count"`
	IsFeatured    bool                        `gorm:"default:false" json:"is_featured"`
	IsDraft       bool                        `gorm:"default:false" json:"is_draft"`
	RevealAt      *time.Time                  `gorm:"index" json:"reveal_at,omitempty"` // 非空时为时间胶囊
	CreatedAt     time.Time                   `gorm:"index" json:"created_at"`

	// 非数据库字段，查询时填充
	Reactions map[string]int `gorm:"-" json:"reactions,omitempty"`
}

// IsSealed reports whether the story is a time capsule that has not revealed yet.
func (s *Story) IsSealed(now time.Time) bool {
	return s.RevealAt != nil && now.Before(*s.RevealAt)
}

// StoryReaction holds one per-kind counter of a story.
type StoryReaction struct {
	StoryID uint   `gorm:"primaryKey;autoIncrement:false" json:"story_id"`
	Kind    string `gorm:"primaryKey;size:32" json:"kind"`
	Total   int    `gorm:"not null;default:0" json:"total"`
}
