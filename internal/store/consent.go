package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"anon-dialog-server/internal/anon"
	"anon-dialog-server/internal/models"
)

func (s *Store) CreateConsentRequest(ctx context.Context, r *models.ConsentRequest) error {
	if err := s.DB.WithContext(ctx).Create(r).Error; err != nil {
		if isDuplicate(err) {
			return anon.ErrPendingConsentExists
		}
		return fmt.Errorf("create consent request: %w", err)
	}
	return nil
}

func (s *Store) GetConsentRequest(ctx context.Context, id string) (*models.ConsentRequest, error) {
	var r models.ConsentRequest
	if err := s.DB.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "consent request "+id)
	}
	return &r, nil
}

func (s *Store) GetPendingConsentRequest(ctx context.Context, dialogID string, recipientID int64) (*models.ConsentRequest, error) {
	var r models.ConsentRequest
	err := s.DB.WithContext(ctx).
		Where("pending_key = ?", models.PendingConsentKey(dialogID, recipientID)).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending consent request: %w", err)
	}
	return &r, nil
}

func (s *Store) SetConsentPlaceholder(ctx context.Context, id, placeholderID string) error {
	res := s.DB.WithContext(ctx).Model(&models.ConsentRequest{}).Where("id = ?", id).Update("placeholder_id", placeholderID)
	if res.Error != nil {
		return fmt.Errorf("set placeholder of %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("consent request %s: %w", id, anon.ErrNotFound)
	}
	return nil
}

// UpdateConsentRequestStatus resolves a request only while it is still pending.
// Clearing pending_key frees the (dialog, recipient) pair for a new request.
func (s *Store) UpdateConsentRequestStatus(ctx context.Context, id string, status models.ConsentStatus) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.ConsentRequest{}).
		Where("id = ? AND status = ?", id, models.ConsentPending).
		Updates(map[string]any{
			"status":      status,
			"pending_key": nil,
			"resolved_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("update consent request %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
