package store

import (
	"context"
	"fmt"

	"anon-dialog-server/internal/anon"
	"anon-dialog-server/internal/models"
)

func (s *Store) AddMessage(ctx context.Context, m *models.Message) error {
	if err := s.DB.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := s.DB.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "message "+id)
	}
	return &m, nil
}

func (s *Store) SetMessageDelivered(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Update("delivered", true)
	if res.Error != nil {
		return fmt.Errorf("mark message %s delivered: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("message %s: %w", id, anon.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	if err := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Message{}).Error; err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	return nil
}

// HasReplySince looks for a message from awaitedID stored no earlier than sinceMessageID.
func (s *Store) HasReplySince(ctx context.Context, dialogID, sinceMessageID string, awaitedID int64) (bool, error) {
	since, err := s.GetMessage(ctx, sinceMessageID)
	if err != nil {
		return false, err
	}
	var count int64
	err = s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("dialog_id = ? AND sender_id = ? AND id <> ?", dialogID, awaitedID, sinceMessageID).
		Where("created_at >= ?", since.CreatedAt).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count replies in %s: %w", dialogID, err)
	}
	return count > 0, nil
}
