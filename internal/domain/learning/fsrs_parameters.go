package learning

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/neurobridge-srs/internal/fsrs"
)

// FSRSParameters is a weight vector plus scheduler config for one scope.
// Scope is (user|nil) x (topic|nil); nil x nil is the global default.
type FSRSParameters struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ScopeKey string     `gorm:"column:scope_key;type:varchar(96);not null;uniqueIndex:idx_fsrs_parameters_scope" json:"scope_key"`
	UserID   *uuid.UUID `gorm:"type:uuid;column:user_id;index" json:"user_id,omitempty"`
	TopicID  *uuid.UUID `gorm:"type:uuid;column:topic_id" json:"topic_id,omitempty"`

	Weights         datatypes.JSON `gorm:"column:weights;type:jsonb;not null" json:"weights"`
	TargetRetention float64        `gorm:"column:target_retention;not null" json:"target_retention"`
	MaximumInterval int            `gorm:"column:maximum_interval;not null" json:"maximum_interval"`
	EnableFuzz      bool           `gorm:"column:enable_fuzz;not null" json:"enable_fuzz"`

	Version    string   `gorm:"column:version;type:varchar(32);not null" json:"version"`
	Optimized  bool     `gorm:"column:optimized;not null;default:false" json:"optimized"`
	SampleSize int      `gorm:"column:sample_size;not null;default:0" json:"sample_size"`
	Loss       *float64 `gorm:"column:loss" json:"loss,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (FSRSParameters) TableName() string { return "fsrs_parameters" }

const GlobalScopeKey = "global"

// ScopeKey renders the unique key for a (user, topic) scope. Nil and uuid.Nil both mean "any".
func ScopeKey(userID, topicID *uuid.UUID) string {
	u := userID != nil && *userID != uuid.Nil
	t := topicID != nil && *topicID != uuid.Nil
	switch {
	case u && t:
		return "user:" + userID.String() + "/topic:" + topicID.String()
	case u:
		return "user:" + userID.String()
	case t:
		return "topic:" + topicID.String()
	default:
		return GlobalScopeKey
	}
}

// ResolutionOrder lists scope keys from most to least specific:
// (user, topic), (nil, topic), (user, nil), (nil, nil).
func ResolutionOrder(userID uuid.UUID, topicID *uuid.UUID) []string {
	out := make([]string, 0, 4)
	hasTopic := topicID != nil && *topicID != uuid.Nil
	if hasTopic {
		out = append(out, ScopeKey(&userID, topicID), ScopeKey(nil, topicID))
	}
	out = append(out, ScopeKey(&userID, nil), GlobalScopeKey)
	return out
}

// NewFSRSParameters builds a row for scope from a config.
func NewFSRSParameters(userID, topicID *uuid.UUID, cfg fsrs.Config) (*FSRSParameters, error) {
	raw, err := json.Marshal(cfg.Weights.Slice())
	if err != nil {
		return nil, err
	}
	return &FSRSParameters{
		ID:              uuid.New(),
		ScopeKey:        ScopeKey(userID, topicID),
		UserID:          userID,
		TopicID:         topicID,
		Weights:         datatypes.JSON(raw),
		TargetRetention: cfg.TargetRetention,
		MaximumInterval: cfg.MaximumInterval,
		EnableFuzz:      cfg.EnableFuzz,
		Version:         fsrs.Version,
	}, nil
}

// Config decodes the row into a validated memory model config.
func (p *FSRSParameters) Config() (fsrs.Config, error) {
	var vec []float64
	if err := json.Unmarshal(p.Weights, &vec); err != nil {
		return fsrs.Config{}, fmt.Errorf("decode weights for %s: %w", p.ScopeKey, err)
	}
	w, err := fsrs.WeightsFromSlice(vec)
	if err != nil {
		return fsrs.Config{}, err
	}
	cfg := fsrs.Config{
		Weights:         w,
		TargetRetention: p.TargetRetention,
		MaximumInterval: p.MaximumInterval,
		EnableFuzz:      p.EnableFuzz,
	}
	return cfg, cfg.Validate()
}

// WeightVector returns the decoded weights, or nil when they cannot be decoded.
func (p *FSRSParameters) WeightVector() []float64 {
	var vec []float64
	if err := json.Unmarshal(p.Weights, &vec); err != nil {
		return nil
	}
	return vec
}
