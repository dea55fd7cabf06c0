package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"taskpulse/internal/mailer"
	"taskpulse/internal/model"
	"taskpulse/internal/repository"
)

// NotificationJob evaluates active rules of one frequency and queues a
// digest for every rule with matches.
type NotificationJob struct {
	rules     *repository.NotificationRuleRepository
	queue     mailer.Queue
	batchSize int
	loc       *time.Location
	log       log.FieldLogger
	now       func() time.Time
}

func NewNotificationJob(rules *repository.NotificationRuleRepository, queue mailer.Queue, batchSize int, loc *time.Location, logger log.FieldLogger) *NotificationJob {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &NotificationJob{
		rules:     rules,
		queue:     queue,
		batchSize: batchSize,
		loc:       loc,
		log:       logger.WithField("job", "notification"),
		now:       time.Now,
	}
}

// Run sends at most one digest per active rule of frequency. Rules without
// matches are skipped silently.
func (j *NotificationJob) Run(ctx context.Context, frequency string) (RunSummary, error) {
	if frequency != model.RuleFrequencyDaily && frequency != model.RuleFrequencyWeekly {
		return RunSummary{}, fmt.Errorf("%w: frequency %q", ErrValidation, frequency)
	}

	var sum RunSummary
	now := j.now()
	err := j.rules.EachActiveBatch(ctx, frequency, j.batchSize, func(batch []model.NotificationRule) error {
		for _, rule := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry := j.log.WithFields(log.Fields{
				"rule_id":    rule.ID,
				"account_id": rule.AccountID,
				"frequency":  frequency,
			})
			if rule.Account.ID == 0 || rule.User.ID == 0 {
				sum.Skipped++
				entry.Debug("rule owner or account missing")
				continue
			}

			today := model.DateOf(now.In(rule.Account.Location(j.loc)))
			tasks, err := j.rules.MatchingTasks(ctx, rule, today)
			if err != nil {
				sum.Failed++
				entry.WithError(err).Error("failed to evaluate notification rule")
				continue
			}
			if len(tasks) == 0 {
				sum.Skipped++
				continue
			}

			if err := j.queue.Enqueue(ctx, mailer.NewDigest(rule, tasks, now)); err != nil {
				sum.Failed++
				entry.WithError(err).Error("failed to queue digest")
				continue
			}
			sum.Processed++
		}
		return nil
	})

	j.log.WithFields(log.Fields{
		"frequency": frequency,
		"sent":      sum.Processed,
		"skipped":   sum.Skipped,
		"failed":    sum.Failed,
	}).Info("notification run done")
	return sum, err
}
