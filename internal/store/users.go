package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"anon-dialog-server/internal/anon"
	"anon-dialog-server/internal/models"
)

// Resolve accepts a numeric user ID or a username, with or without a leading @.
func (s *Store) Resolve(ctx context.Context, handle string) (int64, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return 0, fmt.Errorf("empty handle: %w", anon.ErrNotFound)
	}

	var user models.User
	query := s.DB.WithContext(ctx).Select("id")
	if id, err := strconv.ParseInt(handle, 10, 64); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("username = ?", handle)
	}
	if err := query.First(&user).Error; err != nil {
		return 0, notFound(err, "user "+handle)
	}
	return user.ID, nil
}

// AdminIDs lists users with the admin role.
func (s *Store) AdminIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return ids, nil
}
