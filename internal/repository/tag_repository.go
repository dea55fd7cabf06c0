package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskpulse/internal/model"
)

// TagRepository manages account-scoped tags.
type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *TagRepository) WithTx(tx *gorm.DB) *TagRepository {
	return &TagRepository{db: tx}
}

// GetOrCreate returns the account's tag with title, creating it when missing.
// Tags of other accounts are never returned.
func (r *TagRepository) GetOrCreate(ctx context.Context, accountID uint, title string) (*model.Tag, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("tag title is required")
	}

	var tag model.Tag
	db := r.db.WithContext(ctx)
	err := db.Where("account_id = ? AND title = ?", accountID, title).First(&tag).Error
	switch {
	case err == nil:
		return &tag, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		tag = model.Tag{AccountID: accountID, Title: title}
		// A concurrent writer may win the unique index; read its row back.
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tag).Error; err != nil {
			return nil, fmt.Errorf("create tag: %w", err)
		}
		if tag.ID == 0 {
			if err := db.Where("account_id = ? AND title = ?", accountID, title).First(&tag).Error; err != nil {
				return nil, fmt.Errorf("find tag: %w", err)
			}
		}
		return &tag, nil
	default:
		return nil, fmt.Errorf("find tag: %w", err)
	}
}

// FindByIDs returns only the tags that belong to accountID.
func (r *TagRepository) FindByIDs(ctx context.Context, accountID uint, ids []uint) ([]model.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tags []model.Tag
	if err := r.db.WithContext(ctx).Where("account_id = ? AND id IN ?", accountID, ids).
		Order("id ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("find tags: %w", err)
	}
	return tags, nil
}
