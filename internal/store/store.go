// Package store persists dialogs, messages, consent requests, preferences and
// reply deadlines with GORM. It implements anon.Store and anon.Resolver.
package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"anon-dialog-server/internal/anon"
)

// Store is the GORM-backed anon.Store.
type Store struct {
	DB *gorm.DB
}

var (
	_ anon.Store    = (*Store)(nil)
	_ anon.Resolver = (*Store)(nil)
)

// New creates a store over an already migrated database.
func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// notFound maps gorm.ErrRecordNotFound onto anon.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, anon.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
