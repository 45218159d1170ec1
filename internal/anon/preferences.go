package anon

import (
	"context"
	"fmt"

	"anon-dialog-server/internal/models"
)

// PreferenceStore reads and writes consent modes. Closing dialogs when a user
// switches to reject is the DialogManager's job, not this type's.
type PreferenceStore struct {
	store Store
}

// NewPreferenceStore wraps store.
func NewPreferenceStore(store Store) *PreferenceStore {
	return &PreferenceStore{store: store}
}

// GetMode returns the user's mode, ModeAuto when unset.
func (p *PreferenceStore) GetMode(ctx context.Context, userID int64) (models.PreferenceMode, error) {
	mode, err := p.store.GetPreference(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get preference for %d: %w", userID, err)
	}
	if !mode.Valid() {
		return models.ModeAuto, nil
	}
	return mode, nil
}

// SetMode stores mode for userID.
func (p *PreferenceStore) SetMode(ctx context.Context, userID int64, mode models.PreferenceMode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	if err := p.store.SetPreference(ctx, userID, mode); err != nil {
		return fmt.Errorf("set preference for %d: %w", userID, err)
	}
	return nil
}
