package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskpulse/internal/model"
	"taskpulse/internal/recurrence"
	"taskpulse/internal/repository"
)

// RecurrenceInput carries the schedule a caller wants on a template task.
type RecurrenceInput struct {
	Frequency  string
	DayOfWeek  *int
	DayOfMonth *int
	// Active is honored by Update only; nil keeps the current state.
	Active *bool
}

// RecurrenceService manages the recurrence attached to a template task.
type RecurrenceService struct {
	tasks       *repository.TaskRepository
	recurrences *repository.RecurrenceRepository
	loc         *time.Location
	now         func() time.Time
}

func NewRecurrenceService(tasks *repository.TaskRepository, recurrences *repository.RecurrenceRepository, loc *time.Location) *RecurrenceService {
	return &RecurrenceService{tasks: tasks, recurrences: recurrences, loc: loc, now: time.Now}
}

// Setup creates the task's recurrence, or replaces the schedule of an existing
// one and reactivates it.
func (s *RecurrenceService) Setup(ctx context.Context, account model.Account, taskID uint, input RecurrenceInput) (*model.Recurrence, error) {
	sched, err := recurrence.New(input.Frequency, input.DayOfWeek, input.DayOfMonth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if _, err := s.tasks.FindByID(ctx, account.ID, taskID); err != nil {
		return nil, fmt.Errorf("find task %d: %w", taskID, err)
	}

	rec, err := s.recurrences.FindByTaskID(ctx, account.ID, taskID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = &model.Recurrence{TaskID: taskID, AccountID: account.ID, Active: true}
		s.apply(rec, sched, account)
		if err := s.recurrences.Create(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	case err != nil:
		return nil, fmt.Errorf("find recurrence: %w", err)
	}

	rec.Active = true
	s.apply(rec, sched, account)
	if err := s.recurrences.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update changes the schedule and optionally the active flag of an existing recurrence.
func (s *RecurrenceService) Update(ctx context.Context, account model.Account, taskID uint, input RecurrenceInput) (*model.Recurrence, error) {
	sched, err := recurrence.New(input.Frequency, input.DayOfWeek, input.DayOfMonth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	rec, err := s.recurrences.FindByTaskID(ctx, account.ID, taskID)
	if err != nil {
		return nil, fmt.Errorf("find recurrence: %w", err)
	}
	if input.Active != nil {
		rec.Active = *input.Active
	}
	s.apply(rec, sched, account)
	if err := s.recurrences.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Pause deactivates the recurrence; next_occurrence_at is left as is.
func (s *RecurrenceService) Pause(ctx context.Context, account model.Account, taskID uint) (*model.Recurrence, error) {
	rec, err := s.recurrences.FindByTaskID(ctx, account.ID, taskID)
	if err != nil {
		return nil, fmt.Errorf("find recurrence: %w", err)
	}
	rec.Active = false
	if err := s.recurrences.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Resume reactivates the recurrence and schedules it from now.
func (s *RecurrenceService) Resume(ctx context.Context, account model.Account, taskID uint) (*model.Recurrence, error) {
	rec, err := s.recurrences.FindByTaskID(ctx, account.ID, taskID)
	if err != nil {
		return nil, fmt.Errorf("find recurrence: %w", err)
	}
	rec.Active = true
	s.apply(rec, recurrence.FromRecord(rec.Frequency, rec.DayOfWeek, rec.DayOfMonth), account)
	if err := s.recurrences.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove deletes the recurrence. The template task is kept.
func (s *RecurrenceService) Remove(ctx context.Context, account model.Account, taskID uint) error {
	return s.recurrences.Delete(ctx, account.ID, taskID)
}

// Describe returns the human schedule, e.g. "Every other Monday".
func (s *RecurrenceService) Describe(rec model.Recurrence) string {
	return recurrence.FromRecord(rec.Frequency, rec.DayOfWeek, rec.DayOfMonth).Describe()
}

// apply writes sched onto rec. Active records get a fresh next occurrence.
func (s *RecurrenceService) apply(rec *model.Recurrence, sched recurrence.Schedule, account model.Account) {
	rec.Frequency = sched.Frequency()
	rec.DayOfWeek, rec.DayOfMonth = recurrence.Columns(sched)
	if rec.Active {
		rec.NextOccurrenceAt = sched.Next(s.now(), account.Location(s.loc))
	}
}
