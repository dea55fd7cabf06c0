// Package testutil opens throwaway databases and seeds fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"gorm.io/gorm"

	"taskpulse/internal/model"
	"taskpulse/internal/repository"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// NewDB returns a migrated in-memory SQLite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", unsafeName.ReplaceAllString(t.Name(), "_"))
	db, err := repository.NewDB(dsn, nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func Account(t testing.TB, db *gorm.DB, name, zone string) model.Account {
	t.Helper()
	a := model.Account{Name: name, TimeZone: zone}
	if err := repository.NewAccountRepository(db).Create(context.Background(), &a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func User(t testing.TB, db *gorm.DB, account model.Account, name string) model.User {
	t.Helper()
	u := model.User{AccountID: account.ID, Name: name, Email: name + "@example.com", Active: true}
	if err := repository.NewUserRepository(db).Create(context.Background(), &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func Board(t testing.TB, db *gorm.DB, account model.Account, name string) model.Board {
	t.Helper()
	b := model.Board{AccountID: account.ID, Name: name}
	if err := repository.NewBoardRepository(db).Create(context.Background(), &b); err != nil {
		t.Fatalf("create board: %v", err)
	}
	return b
}

func Tag(t testing.TB, db *gorm.DB, account model.Account, title string) model.Tag {
	t.Helper()
	tag, err := repository.NewTagRepository(db).GetOrCreate(context.Background(), account.ID, title)
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	return *tag
}

// TaskOpts describes a task to seed. Zero values give an unpublished, untagged
// task on a fresh board.
type TaskOpts struct {
	Title     string
	Board     model.Board
	Creator   model.User
	DueOn     *model.Date
	Published bool
	Closed    bool
	Tags      []string
	Assignees []model.User
	Checklist []string
	CreatedAt time.Time
}

// Task seeds a task with its tags, assignees and checklist.
func Task(t testing.TB, db *gorm.DB, account model.Account, opts TaskOpts) model.Task {
	t.Helper()
	ctx := context.Background()
	tasks := repository.NewTaskRepository(db)

	if opts.Board.ID == 0 {
		opts.Board = Board(t, db, account, "Board")
	}
	task := model.Task{
		AccountID:   account.ID,
		BoardID:     opts.Board.ID,
		CreatorID:   opts.Creator.ID,
		Title:       opts.Title,
		Description: opts.Title + " details",
		DueOn:       opts.DueOn,
		CreatedAt:   opts.CreatedAt,
	}
	if task.Title == "" {
		task.Title = "Task"
	}
	if err := tasks.Create(ctx, &task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if opts.Published {
		if err := tasks.Publish(ctx, &task, time.Now()); err != nil {
			t.Fatalf("publish task: %v", err)
		}
	}
	if opts.Closed {
		if err := tasks.Close(ctx, &task, time.Now()); err != nil {
			t.Fatalf("close task: %v", err)
		}
	}
	for _, title := range opts.Tags {
		tag := Tag(t, db, account, title)
		if err := tasks.AddTag(ctx, task.ID, tag.ID); err != nil {
			t.Fatalf("tag task: %v", err)
		}
	}
	for _, u := range opts.Assignees {
		if _, err := tasks.Assign(ctx, task.ID, u.ID, opts.Creator.ID); err != nil {
			t.Fatalf("assign task: %v", err)
		}
	}
	for i, content := range opts.Checklist {
		item := model.ChecklistItem{AccountID: account.ID, TaskID: task.ID, Position: i, Content: content}
		if err := tasks.AddChecklistItem(ctx, &item); err != nil {
			t.Fatalf("add checklist item: %v", err)
		}
	}
	return task
}

// Day returns a pointer to the given calendar day.
func Day(year int, month time.Month, day int) *model.Date {
	d := model.Date{Year: year, Month: month, Day: day}
	return &d
}

// Clock returns a now func frozen at t.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
