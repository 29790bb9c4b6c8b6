package models

import (
	"time"

	"github.com/google/uuid"
)

// RecommendationFeedback is a reviewer's reward signal on a recommendation,
// used downstream for model retraining.
type RecommendationFeedback struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecommendationID uuid.UUID `gorm:"column:recommendation_id;type:uuid;not null"`
	ReviewerUserID   uuid.UUID `gorm:"column:reviewer_user_id;type:uuid;not null"`
	Reward           int       `gorm:"column:reward;not null"`
	Comment          *string   `gorm:"column:comment"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (RecommendationFeedback) TableName() string { return "recommendation_feedback" }
