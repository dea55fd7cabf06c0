package service

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"taskpulse/internal/model"
	"taskpulse/internal/repository"
)

// RecurrenceJob sweeps due recurrences and hands each to the processor.
type RecurrenceJob struct {
	recurrences *repository.RecurrenceRepository
	accounts    *repository.AccountRepository
	processor   *RecurrenceProcessor
	batchSize   int
	log         log.FieldLogger
	now         func() time.Time
}

func NewRecurrenceJob(recurrences *repository.RecurrenceRepository, accounts *repository.AccountRepository, processor *RecurrenceProcessor, batchSize int, logger log.FieldLogger) *RecurrenceJob {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &RecurrenceJob{
		recurrences: recurrences,
		accounts:    accounts,
		processor:   processor,
		batchSize:   batchSize,
		log:         logger.WithField("job", "recurrence"),
		now:         time.Now,
	}
}

// Run processes every due recurrence once. A failing recurrence is logged and
// the sweep continues.
func (j *RecurrenceJob) Run(ctx context.Context) (RunSummary, error) {
	var sum RunSummary
	accounts := make(map[uint]*model.Account)

	err := j.recurrences.EachDueBatch(ctx, j.now(), j.batchSize, func(batch []model.Recurrence) error {
		for _, rec := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry := j.log.WithFields(log.Fields{
				"recurrence_id": rec.ID,
				"task_id":       rec.TaskID,
				"account_id":    rec.AccountID,
			})

			account, ok := accounts[rec.AccountID]
			if !ok {
				var err error
				account, err = j.accounts.FindByID(ctx, rec.AccountID)
				if err != nil {
					sum.Failed++
					entry.WithError(err).Error("failed to load account for recurrence")
					continue
				}
				accounts[rec.AccountID] = account
			}

			task, err := j.processor.Process(ctx, *account, rec)
			switch {
			case err == nil:
				sum.Processed++
				entry.WithField("instance_id", task.ID).Debug("recurrence materialized")
			case errors.Is(err, ErrNotDue), errors.Is(err, ErrAlreadyClaimed):
				sum.Skipped++
				entry.WithError(err).Debug("recurrence skipped")
			default:
				sum.Failed++
				entry.WithError(err).Error("failed to process recurrence")
			}
		}
		return nil
	})

	j.log.WithFields(log.Fields{
		"processed": sum.Processed,
		"skipped":   sum.Skipped,
		"failed":    sum.Failed,
	}).Info("recurrence sweep done")
	return sum, err
}
