package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskpulse/internal/model"
)

// NotificationRuleRepository stores rules and evaluates their task filters.
type NotificationRuleRepository struct {
	db *gorm.DB
}

func NewNotificationRuleRepository(db *gorm.DB) *NotificationRuleRepository {
	return &NotificationRuleRepository{db: db}
}

// Create inserts the rule together with its board and tag links.
func (r *NotificationRuleRepository) Create(ctx context.Context, rule *model.NotificationRule) error {
	if err := r.db.WithContext(ctx).Omit("User", "Account", "Boards.*", "Tags.*").Create(rule).Error; err != nil {
		return fmt.Errorf("create notification rule: %w", err)
	}
	return nil
}

// Update writes the rule columns and replaces its board and tag links.
func (r *NotificationRuleRepository) Update(ctx context.Context, rule *model.NotificationRule) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(rule).Updates(map[string]any{
			"name":        rule.Name,
			"frequency":   rule.Frequency,
			"due_in_days": rule.DueInDays,
			"active":      rule.Active,
			"send_time":   rule.SendTime,
		}).Error; err != nil {
			return err
		}
		if err := replaceLinks(tx, rule, "Boards", len(rule.Boards), rule.Boards); err != nil {
			return err
		}
		return replaceLinks(tx, rule, "Tags", len(rule.Tags), rule.Tags)
	})
	if err != nil {
		return fmt.Errorf("update notification rule: %w", err)
	}
	return nil
}

func replaceLinks(tx *gorm.DB, rule *model.NotificationRule, name string, n int, values any) error {
	assoc := tx.Model(rule).Omit(name + ".*").Association(name)
	if n == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(values)
}

func (r *NotificationRuleRepository) Delete(ctx context.Context, rule *model.NotificationRule) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(rule).Association("Boards").Clear(); err != nil {
			return err
		}
		if err := tx.Model(rule).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(rule).Error
	})
	if err != nil {
		return fmt.Errorf("delete notification rule: %w", err)
	}
	return nil
}

// FindByID loads a rule owned by userID with its boards and tags.
func (r *NotificationRuleRepository) FindByID(ctx context.Context, userID, ruleID uint) (*model.NotificationRule, error) {
	var rule model.NotificationRule
	if err := r.preloaded(ctx).Where("user_id = ? AND id = ?", userID, ruleID).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListByUser returns the user's rules, optionally only the active ones.
func (r *NotificationRuleRepository) ListByUser(ctx context.Context, userID uint, activeOnly bool) ([]model.NotificationRule, error) {
	q := r.preloaded(ctx).Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rules []model.NotificationRule
	if err := q.Order("id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list notification rules: %w", err)
	}
	return rules, nil
}

// EachActiveBatch calls fn with active rules of frequency, size at a time.
func (r *NotificationRuleRepository) EachActiveBatch(ctx context.Context, frequency string, size int, fn func([]model.NotificationRule) error) error {
	var batch []model.NotificationRule
	res := r.preloaded(ctx).
		Where("active = ? AND frequency = ?", true, frequency).
		FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		})
	if res.Error != nil {
		return fmt.Errorf("list %s notification rules: %w", frequency, res.Error)
	}
	return nil
}

// MatchingTasks returns the published, open tasks with a due date that pass
// the rule's board, tag and due-window filters. Only rows of the rule's account
// are considered, including the boards and tags it filters on. today is the
// current day in the account's zone.
func (r *NotificationRuleRepository) MatchingTasks(ctx context.Context, rule model.NotificationRule, today model.Date) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{}).
		Preload("Board").
		Where("tasks.account_id = ? AND tasks.published = ? AND tasks.closed_at IS NULL AND tasks.due_on IS NOT NULL", rule.AccountID, true)

	if len(rule.Boards) > 0 {
		ids := boardIDs(rule.Boards, rule.AccountID)
		if len(ids) == 0 {
			return nil, nil
		}
		q = q.Where("tasks.board_id IN ?", ids)
	}

	if len(rule.Tags) > 0 {
		ids := tagIDs(rule.Tags, rule.AccountID)
		if len(ids) == 0 {
			return nil, nil
		}
		q = q.Where(`EXISTS (SELECT 1 FROM taggings JOIN tags ON tags.id = taggings.tag_id
			WHERE taggings.task_id = tasks.id AND taggings.tag_id IN ? AND tags.account_id = ?)`, ids, rule.AccountID)
	}

	if rule.DueInDays != nil {
		q = q.Where("tasks.due_on = ?", today.AddDays(*rule.DueInDays))
	}

	var tasks []model.Task
	if err := q.Order("tasks.due_on ASC, tasks.id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("match notification rule %d: %w", rule.ID, err)
	}
	return tasks, nil
}

func (r *NotificationRuleRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("User").
		Preload("Account").
		Preload("Boards", func(db *gorm.DB) *gorm.DB { return db.Order("boards.id ASC") }).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id ASC") })
}

func boardIDs(boards []model.Board, accountID uint) []uint {
	ids := make([]uint, 0, len(boards))
	for _, b := range boards {
		if b.AccountID == accountID {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

func tagIDs(tags []model.Tag, accountID uint) []uint {
	ids := make([]uint, 0, len(tags))
	for _, t := range tags {
		if t.AccountID == accountID {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
