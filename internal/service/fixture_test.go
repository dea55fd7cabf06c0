package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"taskpulse/internal/events"
	"taskpulse/internal/model"
	"taskpulse/internal/repository"
	"taskpulse/internal/testutil"
)

// monday10 is Monday 2024-03-04 10:00 UTC.
var monday10 = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	account  model.Account
	creator  model.User
	recorder *events.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	account := testutil.Account(t, db, "Acme", "UTC")
	return fixture{
		db:       db,
		account:  account,
		creator:  testutil.User(t, db, account, "creator"),
		recorder: events.NewRecorder(repository.NewEventRepository(db), nil, "", nil),
	}
}

func (f fixture) recurrence(t *testing.T, task model.Task, next time.Time, active bool) model.Recurrence {
	t.Helper()
	rec := model.Recurrence{
		TaskID:           task.ID,
		AccountID:        task.AccountID,
		Frequency:        "weekly",
		NextOccurrenceAt: next,
		Active:           active,
	}
	if err := repository.NewRecurrenceRepository(f.db).Create(context.Background(), &rec); err != nil {
		t.Fatalf("create recurrence: %v", err)
	}
	return rec
}

func (f fixture) processor(now time.Time) *RecurrenceProcessor {
	p := NewRecurrenceProcessor(f.db, f.recorder, time.UTC, 15*time.Minute)
	p.now = testutil.Clock(now)
	return p
}

func (f fixture) reload(t *testing.T, id uint) model.Recurrence {
	t.Helper()
	rec, err := repository.NewRecurrenceRepository(f.db).FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload recurrence: %v", err)
	}
	return *rec
}

func (f fixture) countTasks(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&model.Task{}).Count(&n).Error; err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	return n
}

// failCreatesOn makes every insert into table fail.
func failCreatesOn(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
}
