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

// CreateDialog inserts d and, for user dialogs, reserves an active slot for
// both parties in the same transaction.
func (s *Store) CreateDialog(ctx context.Context, d *models.Dialog) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(d).Error; err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("dialog code %s: %w", d.Code, anon.ErrDuplicateCode)
			}
			return err
		}
		if d.Kind != models.DialogKindUser {
			return nil
		}
		slots := []models.ActiveDialogSlot{
			{UserID: d.InitiatorID, DialogID: d.ID},
			{UserID: d.TargetID, DialogID: d.ID},
		}
		if err := tx.Create(&slots).Error; err != nil {
			if isDuplicate(err) {
				return anon.ErrActiveDialogExists
			}
			return err
		}
		return nil
	})
}

func (s *Store) GetDialog(ctx context.Context, id string) (*models.Dialog, error) {
	var d models.Dialog
	if err := s.DB.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "dialog "+id)
	}
	return &d, nil
}

func (s *Store) GetDialogByCode(ctx context.Context, code string) (*models.Dialog, error) {
	var d models.Dialog
	if err := s.DB.WithContext(ctx).First(&d, "code = ?", code).Error; err != nil {
		return nil, notFound(err, "dialog #"+code)
	}
	return &d, nil
}

// GetActiveDialog returns the newest active dialog of kind involving userID.
func (s *Store) GetActiveDialog(ctx context.Context, userID int64, kind models.DialogKind) (*models.Dialog, error) {
	var d models.Dialog
	err := s.DB.WithContext(ctx).
		Where("kind = ? AND status = ?", kind, models.DialogStatusActive).
		Where("initiator_id = ? OR target_id = ?", userID, userID).
		Order("created_at desc").
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active dialog of %d: %w", userID, err)
	}
	return &d, nil
}

// CloseDialog flips an active dialog to closed and frees its slots. Only the
// call that performed the transition reports true.
func (s *Store) CloseDialog(ctx context.Context, id string) (bool, error) {
	closed := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Dialog{}).
			Where("id = ? AND status = ?", id, models.DialogStatusActive).
			Updates(map[string]any{"status": models.DialogStatusClosed, "closed_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Dialog{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return anon.ErrNotFound
			}
			return nil
		}
		closed = true
		return tx.Where("dialog_id = ?", id).Delete(&models.ActiveDialogSlot{}).Error
	})
	if err != nil {
		return false, fmt.Errorf("close dialog %s: %w", id, err)
	}
	return closed, nil
}

func consentColumn(role models.Party) string {
	if role == models.PartyInitiator {
		return "initiator_consent"
	}
	return "target_consent"
}

func headerColumn(role models.Party) string {
	if role == models.PartyInitiator {
		return "initiator_header_sent"
	}
	return "target_header_sent"
}

func (s *Store) SetPartyConsent(ctx context.Context, id string, role models.Party, status models.ConsentStatus) error {
	return s.updateDialog(ctx, id, consentColumn(role), status)
}

func (s *Store) MarkHeaderSent(ctx context.Context, id string, role models.Party) error {
	return s.updateDialog(ctx, id, headerColumn(role), true)
}

func (s *Store) updateDialog(ctx context.Context, id, column string, value any) error {
	res := s.DB.WithContext(ctx).Model(&models.Dialog{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("update dialog %s %s: %w", id, column, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("dialog %s: %w", id, anon.ErrNotFound)
	}
	return nil
}
