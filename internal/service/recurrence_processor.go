package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskpulse/internal/events"
	"taskpulse/internal/model"
	"taskpulse/internal/recurrence"
	"taskpulse/internal/repository"
)

// RecurrenceProcessor materializes one due recurrence into a published task.
type RecurrenceProcessor struct {
	db          *gorm.DB
	tasks       *repository.TaskRepository
	tags        *repository.TagRepository
	recurrences *repository.RecurrenceRepository
	recorder    *events.Recorder
	loc         *time.Location
	lease       time.Duration
	now         func() time.Time
}

func NewRecurrenceProcessor(db *gorm.DB, recorder *events.Recorder, loc *time.Location, lease time.Duration) *RecurrenceProcessor {
	if lease <= 0 {
		lease = 15 * time.Minute
	}
	return &RecurrenceProcessor{
		db:          db,
		tasks:       repository.NewTaskRepository(db),
		tags:        repository.NewTagRepository(db),
		recurrences: repository.NewRecurrenceRepository(db),
		recorder:    recorder,
		loc:         loc,
		lease:       lease,
		now:         time.Now,
	}
}

// Process creates the next instance of rec's template in account and
// reschedules rec. It returns ErrNotDue for inactive or future definitions
// and ErrAlreadyClaimed when another run holds the definition. On failure the
// definition keeps its next_occurrence_at and is retried by a later sweep.
func (p *RecurrenceProcessor) Process(ctx context.Context, account model.Account, rec model.Recurrence) (*model.Task, error) {
	now := p.now()
	if !rec.Active || rec.NextOccurrenceAt.After(now) {
		return nil, ErrNotDue
	}
	if rec.AccountID != account.ID {
		return nil, fmt.Errorf("recurrence %d belongs to account %d, not %d", rec.ID, rec.AccountID, account.ID)
	}

	claimed, err := p.recurrences.Claim(ctx, rec.ID, now, p.lease)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadyClaimed
	}

	loc := account.Location(p.loc)
	var (
		instance  *model.Task
		published model.Event
	)
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		instance, published, err = p.materialize(ctx, tx, account, rec, now, loc)
		return err
	})
	if err != nil {
		if rerr := p.recurrences.Release(ctx, rec.ID); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, fmt.Errorf("materialize recurrence %d: %w", rec.ID, err)
	}
	p.recorder.Publish(ctx, published)

	next := recurrence.FromRecord(rec.Frequency, rec.DayOfWeek, rec.DayOfMonth).Next(now, loc)
	if err := p.recurrences.Reschedule(ctx, &rec, now, next); err != nil {
		return instance, err
	}
	return instance, nil
}

func (p *RecurrenceProcessor) materialize(ctx context.Context, tx *gorm.DB, account model.Account, rec model.Recurrence, now time.Time, loc *time.Location) (*model.Task, model.Event, error) {
	tasks := p.tasks.WithTx(tx)
	tags := p.tags.WithTx(tx)

	template, err := tasks.FindByID(ctx, account.ID, rec.TaskID)
	if err != nil {
		return nil, model.Event{}, fmt.Errorf("load template %d: %w", rec.TaskID, err)
	}

	instance := model.Task{
		AccountID: account.ID,
		BoardID:   template.BoardID,
		CreatorID: template.CreatorID,
		Title:     template.Title,
		CreatedAt: now.UTC(),
	}
	if err := tasks.Create(ctx, &instance); err != nil {
		return nil, model.Event{}, err
	}
	if template.Description != "" {
		if err := tasks.UpdateDescription(ctx, &instance, template.Description); err != nil {
			return nil, model.Event{}, err
		}
	}

	// Tags are matched by title so the instance shares the account's tag rows.
	for _, t := range template.Tags {
		tag, err := tags.GetOrCreate(ctx, account.ID, t.Title)
		if err != nil {
			return nil, model.Event{}, err
		}
		if err := tasks.AddTag(ctx, instance.ID, tag.ID); err != nil {
			return nil, model.Event{}, err
		}
	}
	for _, assignee := range template.Assignees {
		if _, err := tasks.Assign(ctx, instance.ID, assignee.ID, template.CreatorID); err != nil {
			return nil, model.Event{}, err
		}
	}
	for _, item := range template.ChecklistItems {
		step := model.ChecklistItem{
			AccountID: account.ID,
			TaskID:    instance.ID,
			Position:  item.Position,
			Content:   item.Content,
		}
		if err := tasks.AddChecklistItem(ctx, &step); err != nil {
			return nil, model.Event{}, err
		}
	}

	if template.DueOn != nil {
		offset := template.DueOn.DaysSince(model.DateOf(template.CreatedAt.In(loc)))
		due := model.DateOf(now.In(loc)).AddDays(offset)
		if err := tasks.SetDueOn(ctx, &instance, &due); err != nil {
			return nil, model.Event{}, err
		}
	}

	if err := tasks.Publish(ctx, &instance, now); err != nil {
		return nil, model.Event{}, err
	}
	particulars, err := events.Particulars(map[string]uint{
		"recurrence_id": rec.ID,
		"template_id":   template.ID,
	})
	if err != nil {
		return nil, model.Event{}, err
	}
	ev := model.Event{
		AccountID:   account.ID,
		TaskID:      instance.ID,
		CreatorID:   template.CreatorID,
		Action:      model.ActionPublished,
		Particulars: particulars,
	}
	if err := p.recorder.WithTx(tx).Save(ctx, &ev); err != nil {
		return nil, model.Event{}, err
	}

	created, err := tasks.FindByID(ctx, account.ID, instance.ID)
	if err != nil {
		return nil, model.Event{}, fmt.Errorf("reload instance: %w", err)
	}
	return created, ev, nil
}
