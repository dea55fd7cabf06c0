package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskpulse/internal/model"
)

// AccountRepository reads and creates tenants.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id uint) (*model.Account, error) {
	var account model.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// EachBatch calls fn with accounts in primary key order, size at a time.
func (r *AccountRepository) EachBatch(ctx context.Context, size int, fn func([]model.Account) error) error {
	var batch []model.Account
	res := r.db.WithContext(ctx).FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	if res.Error != nil {
		return fmt.Errorf("list accounts: %w", res.Error)
	}
	return nil
}
