package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"anon-dialog-server/internal/models"
)

// SaveDeadline inserts or replaces the deadline for (dialog, awaited party).
func (s *Store) SaveDeadline(ctx context.Context, d *models.ReplyDeadline) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dialog_id"}, {Name: "awaited_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"message_id", "last_sender_id", "due_at"}),
	}).Create(d).Error
	if err != nil {
		return fmt.Errorf("save deadline for %s: %w", d.DialogID, err)
	}
	return nil
}

func (s *Store) DeleteDeadline(ctx context.Context, dialogID string, awaitedID int64) error {
	err := s.DB.WithContext(ctx).
		Where("dialog_id = ? AND awaited_id = ?", dialogID, awaitedID).
		Delete(&models.ReplyDeadline{}).Error
	if err != nil {
		return fmt.Errorf("delete deadline for %s: %w", dialogID, err)
	}
	return nil
}

func (s *Store) DeleteDeadlineFor(ctx context.Context, dialogID string, awaitedID int64, messageID string) error {
	err := s.DB.WithContext(ctx).
		Where("dialog_id = ? AND awaited_id = ? AND message_id = ?", dialogID, awaitedID, messageID).
		Delete(&models.ReplyDeadline{}).Error
	if err != nil {
		return fmt.Errorf("delete deadline for %s: %w", dialogID, err)
	}
	return nil
}

func (s *Store) DeleteDialogDeadlines(ctx context.Context, dialogID string) error {
	if err := s.DB.WithContext(ctx).Where("dialog_id = ?", dialogID).Delete(&models.ReplyDeadline{}).Error; err != nil {
		return fmt.Errorf("delete deadlines for %s: %w", dialogID, err)
	}
	return nil
}

// ListDeadlines returns every persisted deadline, soonest first.
func (s *Store) ListDeadlines(ctx context.Context) ([]models.ReplyDeadline, error) {
	var out []models.ReplyDeadline
	if err := s.DB.WithContext(ctx).Order("due_at asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}
	return out, nil
}
