package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskpulse/internal/model"
)

type BoardRepository struct {
	db *gorm.DB
}

func NewBoardRepository(db *gorm.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

func (r *BoardRepository) Create(ctx context.Context, board *model.Board) error {
	if err := r.db.WithContext(ctx).Create(board).Error; err != nil {
		return fmt.Errorf("create board: %w", err)
	}
	return nil
}

// FindByIDs returns only the boards that belong to accountID.
func (r *BoardRepository) FindByIDs(ctx context.Context, accountID uint, ids []uint) ([]model.Board, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var boards []model.Board
	if err := r.db.WithContext(ctx).Where("account_id = ? AND id IN ?", accountID, ids).
		Order("id ASC").Find(&boards).Error; err != nil {
		return nil, fmt.Errorf("find boards: %w", err)
	}
	return boards, nil
}
