package store

import (
	"context"
	"fmt"
	"time"

	"anon-dialog-server/internal/models"
)

func (s *Store) CreatePublicRequest(ctx context.Context, r *models.PublicRequest) error {
	if err := s.DB.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create public request: %w", err)
	}
	return nil
}

func (s *Store) GetPublicRequest(ctx context.Context, id string) (*models.PublicRequest, error) {
	var r models.PublicRequest
	if err := s.DB.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "public request "+id)
	}
	return &r, nil
}

// TransitionPublicRequest moves a request from one status to another only if it
// still holds from, so two moderators cannot both act on it.
func (s *Store) TransitionPublicRequest(ctx context.Context, id string, from, to models.PublicStatus, moderatorID int64, reason string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.PublicRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":       to,
			"moderator_id": moderatorID,
			"reason":       reason,
			"resolved_at":  time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("update public request %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
