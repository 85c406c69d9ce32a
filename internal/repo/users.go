package repo

import (
	"context"
	"fmt"

	"github.com/avolkov/usersvc/internal/models"
)

func (s *Store) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.DB.WithContext(ctx).
		Where("revoked_on IS NULL").
		Order("created_on").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return users, nil
}

// ListUsersOlderThan returns users whose full age in years exceeds age.
func (s *Store) ListUsersOlderThan(ctx context.Context, age int) ([]models.User, error) {
	cutoff := s.now().AddDate(-(age + 1), 0, 0)

	var users []models.User
	err := s.DB.WithContext(ctx).
		Where("birth_day IS NOT NULL AND birth_day <= ?", cutoff).
		Order("created_on").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users older than %d: %w", age, err)
	}
	return users, nil
}
