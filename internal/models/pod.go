package models

import (
	"time"
)

type Pod struct {
	ID              uint      `gorm:"column:pod_id;primaryKey" json:"pod_id"`
	AdminID         uint      `gorm:"not null;index" json:"admin_id"`
	Admin           *User     `gorm:"foreignKey:AdminID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"admin,omitempty"`
	IsPublic        bool      `gorm:"not null;index" json:"is_public"`
	Name            string    `gorm:"size:100;not null" json:"name"`
	Subtag          string    `gorm:"size:50" json:"subtag"`
	Domain          string    `gorm:"size:100" json:"domain"`
	Description     string    `gorm:"type:text" json:"description"`
	CreatedAt       time.Time `json:"created_at"`
	TotalStories    int       `gorm:"default:0;not null" json:"total_stories"`
	FollowersCount  int       `gorm:"default:0;not null" json:"followers_count"`
	PopularityScore int       `gorm:"default:0;not null;index" json:"popularity_score"`
}

// PodShare is an email invitation to a (usually private) pod.
// Access is resolved at read time by matching the signed-in email.
type PodShare struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PodID       uint      `gorm:"not null;uniqueIndex:idx_pod_share" json:"pod_id"`
	SharedEmail string    `gorm:"size:255;not null;uniqueIndex:idx_pod_share;index" json:"shared_email"`
	SharedAt    time.Time `gorm:"autoCreateTime" json:"shared_at"`
}
