package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"taskpulse/internal/events"
	"taskpulse/internal/model"
	"taskpulse/internal/repository"
)

// DueReminderJob records reminder events for tasks due today, due tomorrow
// and overdue since yesterday, in each account's own zone.
type DueReminderJob struct {
	accounts  *repository.AccountRepository
	tasks     *repository.TaskRepository
	users     *repository.UserRepository
	recorder  *events.Recorder
	batchSize int
	loc       *time.Location
	log       log.FieldLogger
	now       func() time.Time
}

func NewDueReminderJob(accounts *repository.AccountRepository, tasks *repository.TaskRepository, users *repository.UserRepository, recorder *events.Recorder, batchSize int, loc *time.Location, logger log.FieldLogger) *DueReminderJob {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &DueReminderJob{
		accounts:  accounts,
		tasks:     tasks,
		users:     users,
		recorder:  recorder,
		batchSize: batchSize,
		loc:       loc,
		log:       logger.WithField("job", "due_reminder"),
		now:       time.Now,
	}
}

type reminderWindow struct {
	action string
	offset int
}

var reminderWindows = []reminderWindow{
	{action: model.ActionDueTodayReminder, offset: 0},
	{action: model.ActionDueTomorrowReminder, offset: 1},
	{action: model.ActionOverdueReminder, offset: -1},
}

// Run emits one event per matching task. Processed counts recorded events.
func (j *DueReminderJob) Run(ctx context.Context) (RunSummary, error) {
	var sum RunSummary
	now := j.now()
	err := j.accounts.EachBatch(ctx, j.batchSize, func(batch []model.Account) error {
		for _, account := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			j.remind(ctx, account, now, &sum)
		}
		return nil
	})
	j.log.WithFields(log.Fields{
		"recorded": sum.Processed,
		"failed":   sum.Failed,
	}).Info("due reminder sweep done")
	return sum, err
}

func (j *DueReminderJob) remind(ctx context.Context, account model.Account, now time.Time, sum *RunSummary) {
	entry := j.log.WithField("account_id", account.ID)
	today := model.DateOf(now.In(account.Location(j.loc)))

	var system *model.User
	for _, w := range reminderWindows {
		day := today.AddDays(w.offset)
		tasks, err := j.tasks.ListDueOn(ctx, account.ID, day)
		if err != nil {
			sum.Failed++
			entry.WithError(err).WithField("action", w.action).Error("failed to list due tasks")
			continue
		}
		if len(tasks) == 0 {
			continue
		}
		if system == nil {
			if system, err = j.users.SystemUser(ctx, account.ID); err != nil {
				sum.Failed += len(tasks)
				entry.WithError(err).Error("failed to load system user")
				continue
			}
		}
		particulars, err := events.Particulars(map[string]string{"due_on": day.String()})
		if err != nil {
			sum.Failed += len(tasks)
			continue
		}
		for _, task := range tasks {
			ev := model.Event{
				AccountID:   account.ID,
				TaskID:      task.ID,
				CreatorID:   system.ID,
				Action:      w.action,
				Particulars: particulars,
			}
			if err := j.recorder.Record(ctx, &ev); err != nil {
				sum.Failed++
				entry.WithError(err).WithField("task_id", task.ID).Error("failed to record reminder")
				continue
			}
			sum.Processed++
		}
	}
}
