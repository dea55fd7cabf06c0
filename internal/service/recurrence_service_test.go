package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"taskpulse/internal/repository"
	"taskpulse/internal/testutil"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func newRecurrenceService(f fixture, now time.Time) *RecurrenceService {
	s := NewRecurrenceService(repository.NewTaskRepository(f.db), repository.NewRecurrenceRepository(f.db), time.UTC)
	s.now = testutil.Clock(now)
	return s
}

func TestRecurrenceServiceSetup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := testutil.Task(t, f.db, f.account, testutil.TaskOpts{Title: "Payroll", Creator: f.creator})
	s := newRecurrenceService(f, monday10)

	rec, err := s.Setup(ctx, f.account, task.ID, RecurrenceInput{Frequency: "monthly", DayOfMonth: intPtr(31)})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !rec.Active || rec.Frequency != "monthly" || rec.DayOfMonth == nil || *rec.DayOfMonth != 31 {
		t.Fatalf("unexpected recurrence: %+v", rec)
	}
	if want := time.Date(2024, time.April, 30, 9, 0, 0, 0, time.UTC); !rec.NextOccurrenceAt.Equal(want) {
		t.Fatalf("next = %v, want %v", rec.NextOccurrenceAt, want)
	}
	if got := s.Describe(*rec); got != "Monthly on day 31" {
		t.Fatalf("describe = %q", got)
	}

	// Setting up again replaces the schedule on the same row.
	again, err := s.Setup(ctx, f.account, task.ID, RecurrenceInput{Frequency: "biweekly", DayOfWeek: intPtr(3)})
	if err != nil {
		t.Fatalf("setup again: %v", err)
	}
	if again.ID != rec.ID || again.DayOfMonth != nil || again.DayOfWeek == nil || *again.DayOfWeek != 3 {
		t.Fatalf("unexpected replacement: %+v", again)
	}
	if want := time.Date(2024, time.March, 13, 9, 0, 0, 0, time.UTC); !again.NextOccurrenceAt.Equal(want) {
		t.Fatalf("next = %v, want %v", again.NextOccurrenceAt, want)
	}
}

func TestRecurrenceServiceValidation(t *testing.T) {
	f := newFixture(t)
	task := testutil.Task(t, f.db, f.account, testutil.TaskOpts{Title: "T", Creator: f.creator})
	s := newRecurrenceService(f, monday10)

	tests := []struct {
		name  string
		input RecurrenceInput
	}{
		{name: "unknown frequency", input: RecurrenceInput{Frequency: "yearly"}},
		{name: "weekday out of range", input: RecurrenceInput{Frequency: "weekly", DayOfWeek: intPtr(7)}},
		{name: "day of month zero", input: RecurrenceInput{Frequency: "monthly", DayOfMonth: intPtr(0)}},
		{name: "weekday on monthly", input: RecurrenceInput{Frequency: "monthly", DayOfWeek: intPtr(1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Setup(context.Background(), f.account, task.ID, tc.input); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRecurrenceServiceTenantScope(t *testing.T) {
	f := newFixture(t)
	other := testutil.Account(t, f.db, "Other", "")
	task := testutil.Task(t, f.db, f.account, testutil.TaskOpts{Title: "T", Creator: f.creator})

	_, err := newRecurrenceService(f, monday10).Setup(context.Background(), other, task.ID, RecurrenceInput{Frequency: "daily"})
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecurrencePauseResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := testutil.Task(t, f.db, f.account, testutil.TaskOpts{Title: "Standup", Creator: f.creator})
	s := newRecurrenceService(f, monday10.Add(-48*time.Hour))

	rec, err := s.Setup(ctx, f.account, task.ID, RecurrenceInput{Frequency: "daily"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	paused, err := s.Pause(ctx, f.account, task.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Active || !paused.NextOccurrenceAt.Equal(rec.NextOccurrenceAt) {
		t.Fatalf("unexpected paused state: %+v", paused)
	}

	// The occurrence is long past, but a paused recurrence never fires.
	sum, err := newRecurrenceJob(f, monday10, nil).Run(ctx)
	if err != nil || sum.Processed != 0 {
		t.Fatalf("run while paused = %+v, %v", sum, err)
	}
	if n := f.countTasks(t); n != 1 {
		t.Fatalf("tasks = %d, paused recurrence materialized", n)
	}

	s.now = testutil.Clock(monday10)
	resumed, err := s.Resume(ctx, f.account, task.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !resumed.Active || !resumed.NextOccurrenceAt.After(monday10) {
		t.Fatalf("resume did not schedule ahead: %+v", resumed)
	}
}

func TestRecurrenceServiceUpdateAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := testutil.Task(t, f.db, f.account, testutil.TaskOpts{Title: "Review", Creator: f.creator})
	s := newRecurrenceService(f, monday10)

	if _, err := s.Setup(ctx, f.account, task.ID, RecurrenceInput{Frequency: "daily"}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	rec, err := s.Update(ctx, f.account, task.ID, RecurrenceInput{Frequency: "weekly", DayOfWeek: intPtr(5), Active: boolPtr(false)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.Active || rec.Frequency != "weekly" || s.Describe(*rec) != "Every Friday" {
		t.Fatalf("unexpected update: %+v", rec)
	}

	if err := s.Remove(ctx, f.account, task.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := repository.NewRecurrenceRepository(f.db).FindByTaskID(ctx, f.account.ID, task.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected recurrence gone, got %v", err)
	}
	if n := f.countTasks(t); n != 1 {
		t.Fatalf("template task was removed")
	}
}
