package learning

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-srs/internal/fsrs"
)

// Card is one reviewable item owned by a user. At least one of ChunkID, TopicID
// or FlashcardText is set.
type Card struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_card_user_due,priority:1;index:idx_card_user_state,priority:1;index:idx_card_user_topic,priority:1" json:"user_id"`

	ChunkID       *uuid.UUID `gorm:"type:uuid;column:chunk_id;index" json:"chunk_id,omitempty"`
	TopicID       *uuid.UUID `gorm:"type:uuid;column:topic_id;index:idx_card_user_topic,priority:2" json:"topic_id,omitempty"`
	FlashcardText *string    `gorm:"column:flashcard_text;type:text" json:"flashcard_text,omitempty"`

	Difficulty     float64 `gorm:"column:difficulty;not null" json:"difficulty"`
	Stability      float64 `gorm:"column:stability;not null;default:0" json:"stability"`
	Retrievability float64 `gorm:"column:retrievability;not null" json:"retrievability"`

	State          fsrs.State `gorm:"column:state;type:varchar(16);not null;default:'new';index:idx_card_user_state,priority:2" json:"state"`
	DueAt          time.Time  `gorm:"column:due_at;not null;index:idx_card_user_due,priority:2" json:"due_at"`
	LastReviewedAt *time.Time `gorm:"column:last_reviewed_at" json:"last_reviewed_at,omitempty"`
	ElapsedDays    int        `gorm:"column:elapsed_days;not null;default:0" json:"elapsed_days"`
	ScheduledDays  int        `gorm:"column:scheduled_days;not null;default:0" json:"scheduled_days"`

	Reps               int `gorm:"column:reps;not null;default:0" json:"reps"`
	Lapses             int `gorm:"column:lapses;not null;default:0" json:"lapses"`
	ConsecutiveCorrect int `gorm:"column:consecutive_correct;not null;default:0" json:"consecutive_correct"`

	AverageResponseTimeSeconds *float64 `gorm:"column:average_response_time_seconds" json:"average_response_time_seconds,omitempty"`

	// Version is bumped on every review and guards the compare-and-set update.
	Version int `gorm:"column:version;not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Card) TableName() string { return "review_card" }

// HasContent reports whether the card references something to study.
func (c *Card) HasContent() bool {
	if c == nil {
		return false
	}
	if c.ChunkID != nil && *c.ChunkID != uuid.Nil {
		return true
	}
	if c.TopicID != nil && *c.TopicID != uuid.Nil {
		return true
	}
	return c.FlashcardText != nil && strings.TrimSpace(*c.FlashcardText) != ""
}

// Memory projects the card onto the memory model input.
func (c *Card) Memory() fsrs.Memory {
	var last *time.Time
	if c.LastReviewedAt != nil {
		t := *c.LastReviewedAt
		last = &t
	}
	return fsrs.Memory{
		Difficulty:    c.Difficulty,
		Stability:     c.Stability,
		ElapsedDays:   c.ElapsedDays,
		ScheduledDays: c.ScheduledDays,
		Reps:          c.Reps,
		Lapses:        c.Lapses,
		State:         c.State,
		Due:           c.DueAt,
		LastReview:    last,
	}
}
