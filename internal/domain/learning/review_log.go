package learning

import (
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-srs/internal/fsrs"
)

// ReviewLog is an append-only record of one review with before/after snapshots.
type ReviewLog struct {
	ID      uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CardID  uuid.UUID  `gorm:"type:uuid;not null;index;index:idx_review_log_card_idem,unique,priority:1" json:"card_id"`
	UserID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_review_log_user_time,priority:1" json:"user_id"`
	TopicID *uuid.UUID `gorm:"type:uuid;column:topic_id;index" json:"topic_id,omitempty"`

	Rating                fsrs.Rating `gorm:"column:rating;type:smallint;not null" json:"rating"`
	ReviewDurationSeconds *float64    `gorm:"column:review_duration_seconds" json:"review_duration_seconds,omitempty"`
	ReviewedAt            time.Time   `gorm:"column:reviewed_at;not null;index:idx_review_log_user_time,priority:2" json:"reviewed_at"`

	StateBefore          fsrs.State `gorm:"column:state_before;type:varchar(16);not null" json:"state_before"`
	StateAfter           fsrs.State `gorm:"column:state_after;type:varchar(16);not null" json:"state_after"`
	DifficultyBefore     float64    `gorm:"column:difficulty_before;not null" json:"difficulty_before"`
	DifficultyAfter      float64    `gorm:"column:difficulty_after;not null" json:"difficulty_after"`
	StabilityBefore      float64    `gorm:"column:stability_before;not null" json:"stability_before"`
	StabilityAfter       float64    `gorm:"column:stability_after;not null" json:"stability_after"`
	RetrievabilityBefore float64    `gorm:"column:retrievability_before;not null" json:"retrievability_before"`
	ScheduledDays        int        `gorm:"column:scheduled_days;not null" json:"scheduled_days"`
	ElapsedDays          int        `gorm:"column:elapsed_days;not null" json:"elapsed_days"`

	IdempotencyKey *string `gorm:"column:idempotency_key;type:varchar(128);index:idx_review_log_card_idem,unique,priority:2" json:"idempotency_key,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ReviewLog) TableName() string { return "review_log" }
