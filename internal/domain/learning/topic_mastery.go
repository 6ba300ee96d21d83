package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TopicMastery is the derived per-(user, topic) mastery score and its inputs.
type TopicMastery struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;index:idx_topic_mastery_user_topic,unique,priority:1" json:"user_id"`
	TopicID uuid.UUID `gorm:"type:uuid;not null;index:idx_topic_mastery_user_topic,unique,priority:2" json:"topic_id"`

	Mastery            float64 `gorm:"column:mastery;not null" json:"mastery"`
	MatureFraction     float64 `gorm:"column:mature_fraction;not null" json:"mature_fraction"`
	StabilityScore     float64 `gorm:"column:stability_score;not null" json:"stability_score"`
	MeanRetrievability float64 `gorm:"column:mean_retrievability;not null" json:"mean_retrievability"`
	RecentRetention    float64 `gorm:"column:recent_retention;not null" json:"recent_retention"`
	CardCount          int     `gorm:"column:card_count;not null" json:"card_count"`
	RecentReviewCount  int     `gorm:"column:recent_review_count;not null" json:"recent_review_count"`

	// Metadata records the policy used to compute the score.
	Metadata   datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	LastUpdate time.Time      `gorm:"column:last_update;not null" json:"last_update"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (TopicMastery) TableName() string { return "topic_mastery" }
