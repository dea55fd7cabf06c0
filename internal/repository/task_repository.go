package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskpulse/internal/model"
)

// TaskRepository handles tasks and their tags, assignees and checklist items.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

// Create inserts the task row only; associations are written explicitly.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindByID loads a task of accountID with tags, assignees, board and ordered checklist.
func (r *TaskRepository) FindByID(ctx context.Context, accountID, taskID uint) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.title ASC") }).
		Preload("Assignees").
		Preload("ChecklistItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Board").
		Where("account_id = ? AND id = ?", accountID, taskID).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) UpdateDescription(ctx context.Context, task *model.Task, description string) error {
	if err := r.db.WithContext(ctx).Model(task).Update("description", description).Error; err != nil {
		return fmt.Errorf("update description: %w", err)
	}
	return nil
}

// AddTag links tag to task; an existing link is left alone.
func (r *TaskRepository) AddTag(ctx context.Context, taskID, tagID uint) error {
	link := model.Tagging{TaskID: taskID, TagID: tagID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
		return fmt.Errorf("tag task: %w", err)
	}
	return nil
}

// Assign adds assignee to task. It reports false when the assignment already existed.
func (r *TaskRepository) Assign(ctx context.Context, taskID, assigneeID, assignerID uint) (bool, error) {
	a := model.Assignment{TaskID: taskID, AssigneeID: assigneeID, AssignerID: assignerID}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&a)
	if res.Error != nil {
		return false, fmt.Errorf("assign task: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *TaskRepository) AddChecklistItem(ctx context.Context, item *model.ChecklistItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("create checklist item: %w", err)
	}
	return nil
}

func (r *TaskRepository) SetDueOn(ctx context.Context, task *model.Task, due *model.Date) error {
	if err := r.db.WithContext(ctx).Model(task).Update("due_on", due).Error; err != nil {
		return fmt.Errorf("set due date: %w", err)
	}
	task.DueOn = due
	return nil
}

// Publish makes a drafted task visible.
func (r *TaskRepository) Publish(ctx context.Context, task *model.Task, at time.Time) error {
	at = at.UTC()
	err := r.db.WithContext(ctx).Model(task).Updates(map[string]any{
		"published":    true,
		"published_at": at,
	}).Error
	if err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	task.Published = true
	task.PublishedAt = &at
	return nil
}

func (r *TaskRepository) Close(ctx context.Context, task *model.Task, at time.Time) error {
	at = at.UTC()
	if err := r.db.WithContext(ctx).Model(task).Update("closed_at", at).Error; err != nil {
		return fmt.Errorf("close task: %w", err)
	}
	task.ClosedAt = &at
	return nil
}

// ListDueOn returns published, open tasks of accountID due on day.
func (r *TaskRepository) ListDueOn(ctx context.Context, accountID uint, day model.Date) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND published = ? AND closed_at IS NULL AND due_on = ?", accountID, true, day).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks due %s: %w", day, err)
	}
	return tasks, nil
}

// Delete removes a task with its links, checklist and recurrence.
func (r *TaskRepository) Delete(ctx context.Context, accountID, taskID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.Task
		if err := tx.Select("id").Where("account_id = ? AND id = ?", accountID, taskID).First(&task).Error; err != nil {
			return err
		}
		for _, m := range []any{&model.Recurrence{}, &model.Tagging{}, &model.Assignment{}, &model.ChecklistItem{}} {
			if err := tx.Where("task_id = ?", taskID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Where("account_id = ? AND id = ?", accountID, taskID).Delete(&model.Task{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
