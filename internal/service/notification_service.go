package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskpulse/internal/config"
	"taskpulse/internal/mailer"
	"taskpulse/internal/model"
	"taskpulse/internal/repository"
)

// RuleInput is the caller-editable part of a notification rule.
type RuleInput struct {
	Name      string
	Frequency string
	DueInDays *int
	Active    bool
	SendTime  string
	BoardIDs  []uint
	TagIDs    []uint
}

// NotificationService manages rules for a user and previews their matches.
type NotificationService struct {
	rules  *repository.NotificationRuleRepository
	boards *repository.BoardRepository
	tags   *repository.TagRepository
	queue  mailer.Queue
	loc    *time.Location
	now    func() time.Time
}

func NewNotificationService(rules *repository.NotificationRuleRepository, boards *repository.BoardRepository, tags *repository.TagRepository, queue mailer.Queue, loc *time.Location) *NotificationService {
	return &NotificationService{rules: rules, boards: boards, tags: tags, queue: queue, loc: loc, now: time.Now}
}

func (s *NotificationService) Create(ctx context.Context, user model.User, input RuleInput) (*model.NotificationRule, error) {
	rule := model.NotificationRule{AccountID: user.AccountID, UserID: user.ID}
	if err := s.assign(ctx, &rule, input); err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, &rule); err != nil {
		return nil, err
	}
	return s.rules.FindByID(ctx, user.ID, rule.ID)
}

func (s *NotificationService) Update(ctx context.Context, user model.User, ruleID uint, input RuleInput) (*model.NotificationRule, error) {
	rule, err := s.rules.FindByID(ctx, user.ID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("find notification rule %d: %w", ruleID, err)
	}
	if err := s.assign(ctx, rule, input); err != nil {
		return nil, err
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, err
	}
	return s.rules.FindByID(ctx, user.ID, rule.ID)
}

func (s *NotificationService) Delete(ctx context.Context, user model.User, ruleID uint) error {
	rule, err := s.rules.FindByID(ctx, user.ID, ruleID)
	if err != nil {
		return fmt.Errorf("find notification rule %d: %w", ruleID, err)
	}
	return s.rules.Delete(ctx, rule)
}

func (s *NotificationService) List(ctx context.Context, user model.User) ([]model.NotificationRule, error) {
	return s.rules.ListByUser(ctx, user.ID, false)
}

// Preview returns the tasks rule would report right now.
func (s *NotificationService) Preview(ctx context.Context, rule model.NotificationRule) ([]model.Task, error) {
	return s.rules.MatchingTasks(ctx, rule, s.today(rule.Account))
}

// SendTest sends one digest with the union of all the user's active rule
// matches, addressed through the first active rule. It returns the task count.
func (s *NotificationService) SendTest(ctx context.Context, user model.User) (int, error) {
	rules, err := s.rules.ListByUser(ctx, user.ID, true)
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, ErrNoActiveRules
	}

	seen := make(map[uint]bool)
	var all []model.Task
	for _, rule := range rules {
		tasks, err := s.Preview(ctx, rule)
		if err != nil {
			return 0, err
		}
		for _, t := range tasks {
			if !seen[t.ID] {
				seen[t.ID] = true
				all = append(all, t)
			}
		}
	}
	if len(all) == 0 {
		return 0, ErrNoMatchingTasks
	}

	if err := s.queue.Enqueue(ctx, mailer.NewDigest(rules[0], all, s.now())); err != nil {
		return 0, fmt.Errorf("enqueue test digest: %w", err)
	}
	return len(all), nil
}

// Describe summarizes the rule filters, e.g. "in Ops and Sales, tagged urgent, due tomorrow".
func (s *NotificationService) Describe(rule model.NotificationRule) string {
	var parts []string
	if len(rule.Boards) > 0 {
		names := make([]string, 0, len(rule.Boards))
		for _, b := range rule.Boards {
			names = append(names, b.Name)
		}
		parts = append(parts, "in "+sentence(names))
	}
	if len(rule.Tags) > 0 {
		titles := make([]string, 0, len(rule.Tags))
		for _, t := range rule.Tags {
			titles = append(titles, t.Title)
		}
		parts = append(parts, "tagged "+sentence(titles))
	}
	switch {
	case rule.DueInDays == nil:
		parts = append(parts, "with any due date")
	case *rule.DueInDays == 0:
		parts = append(parts, "due today")
	case *rule.DueInDays == 1:
		parts = append(parts, "due tomorrow")
	default:
		parts = append(parts, fmt.Sprintf("due in %d days", *rule.DueInDays))
	}
	return strings.Join(parts, ", ")
}

func (s *NotificationService) today(account model.Account) model.Date {
	return model.DateOf(s.now().In(account.Location(s.loc)))
}

// assign validates input and copies it onto rule. Boards and tags must belong
// to the rule's account.
func (s *NotificationService) assign(ctx context.Context, rule *model.NotificationRule, input RuleInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	freq := strings.ToLower(strings.TrimSpace(input.Frequency))
	if freq == "" {
		freq = model.RuleFrequencyDaily
	}
	if freq != model.RuleFrequencyDaily && freq != model.RuleFrequencyWeekly {
		return fmt.Errorf("%w: frequency %q is not daily or weekly", ErrValidation, input.Frequency)
	}
	if input.DueInDays != nil && *input.DueInDays < 0 {
		return fmt.Errorf("%w: due in days must be zero or more", ErrValidation)
	}
	sendTime := strings.TrimSpace(input.SendTime)
	if sendTime == "" {
		sendTime = "09:00"
	}
	if _, _, err := config.ParseClock(sendTime); err != nil {
		return fmt.Errorf("%w: send time: %w", ErrValidation, err)
	}

	boardIDs := uniqueIDs(input.BoardIDs)
	boards, err := s.boards.FindByIDs(ctx, rule.AccountID, boardIDs)
	if err != nil {
		return err
	}
	if len(boards) != len(boardIDs) {
		return fmt.Errorf("%w: unknown board", ErrValidation)
	}
	tagIDs := uniqueIDs(input.TagIDs)
	tags, err := s.tags.FindByIDs(ctx, rule.AccountID, tagIDs)
	if err != nil {
		return err
	}
	if len(tags) != len(tagIDs) {
		return fmt.Errorf("%w: unknown tag", ErrValidation)
	}

	rule.Name = name
	rule.Frequency = freq
	rule.DueInDays = input.DueInDays
	rule.Active = input.Active
	rule.SendTime = sendTime
	rule.Boards = boards
	rule.Tags = tags
	return nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// sentence joins items as "a", "a and b" or "a, b, and c".
func sentence(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
