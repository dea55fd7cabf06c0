package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taskpulse/internal/model"
)

// UserRepository handles account members and the per-account system user.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleMember
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// SystemUser finds or creates the account's service actor used for automated events.
func (r *UserRepository) SystemUser(ctx context.Context, accountID uint) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("account_id = ? AND role = ?", accountID, model.RoleSystem).Order("id ASC").First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			AccountID: accountID,
			Name:      "System",
			Role:      model.RoleSystem,
			Active:    true,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create system user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find system user: %w", err)
	}
}
