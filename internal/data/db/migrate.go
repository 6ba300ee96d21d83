package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-srs/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return err
	}
	return EnsureReviewIndexes(db)
}

// EnsureReviewIndexes adds the partial index used by the due query when new cards are excluded.
func EnsureReviewIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_card_user_due_seen
		ON review_card(user_id, due_at)
		WHERE state <> 'new';
	`).Error; err != nil {
		return fmt.Errorf("create idx_card_user_due_seen: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating review tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
