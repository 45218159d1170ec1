package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"anon-dialog-server/internal/models"
)

func (s *Store) GetPreference(ctx context.Context, userID int64) (models.PreferenceMode, error) {
	var p models.Preference
	err := s.DB.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("preference of %d: %w", userID, err)
	}
	return p.Mode, nil
}

func (s *Store) SetPreference(ctx context.Context, userID int64, mode models.PreferenceMode) error {
	p := models.Preference{UserID: userID, Mode: mode, UpdatedAt: time.Now()}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"mode", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("set preference of %d: %w", userID, err)
	}
	return nil
}
