package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskpulse/internal/config"
	"taskpulse/internal/events"
	"taskpulse/internal/logging"
	"taskpulse/internal/mailer"
	"taskpulse/internal/model"
	"taskpulse/internal/repository"
	"taskpulse/internal/service"
)

const jobTimeout = 10 * time.Minute

func main() {
	runOnce := flag.String("run", "", "run one job and exit: recurrence, daily-digest, weekly-digest, due-reminders")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, os.Stdout)

	db, err := repository.NewDB(cfg.DatabaseURL, logging.Gorm(logger))
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("redis url: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatalf("redis: %v", err)
		}
	}

	var queue mailer.Queue
	if rdb != nil {
		queue = mailer.NewRedisQueue(rdb, cfg.Redis.MailQueueKey)
	} else {
		queue = mailer.NewMemoryQueue(cfg.Digest.QueueSize)
	}

	loc := cfg.Location()
	accountRepo := repository.NewAccountRepository(db)
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	recurrenceRepo := repository.NewRecurrenceRepository(db)
	ruleRepo := repository.NewNotificationRuleRepository(db)

	var publisher redis.UniversalClient
	if rdb != nil {
		publisher = rdb
	}
	recorder := events.NewRecorder(repository.NewEventRepository(db), publisher, cfg.Redis.EventsChannel, logger)
	processor := service.NewRecurrenceProcessor(db, recorder, loc, cfg.Recurrence.ClaimLease)
	jobs := runner{
		recurrence:   service.NewRecurrenceJob(recurrenceRepo, accountRepo, processor, cfg.BatchSize, logger),
		notification: service.NewNotificationJob(ruleRepo, queue, cfg.BatchSize, loc, logger),
		dueReminder:  service.NewDueReminderJob(accountRepo, taskRepo, userRepo, recorder, cfg.BatchSize, loc, logger),
		log:          logger,
	}

	worker := mailer.NewWorker(queue, senders(cfg, logger), cfg.Digest.RatePerSec, logger)

	if *runOnce != "" {
		// With the in-memory queue this process is the only consumer, so
		// deliver while the job enqueues and finish the backlog before exit.
		delivered := make(chan struct{})
		mq, inMemory := queue.(*mailer.MemoryQueue)
		if inMemory {
			go func() {
				worker.Run(ctx)
				close(delivered)
			}()
		} else {
			close(delivered)
		}
		err := jobs.run(ctx, *runOnce)
		if inMemory {
			mq.Close()
		}
		<-delivered
		if err != nil {
			logger.Fatalf("%s: %v", *runOnce, err)
		}
		return
	}

	go worker.Run(ctx)

	scheduler := service.NewSchedulerService(loc)
	if err := schedule(scheduler, cfg, func(name string) func() {
		return func() {
			if err := jobs.run(ctx, name); err != nil {
				logger.WithError(err).WithField("job", name).Error("job failed")
			}
		}
	}); err != nil {
		logger.Fatalf("schedule: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.WithField("timezone", loc.String()).Info("taskpulse scheduler started")
	<-ctx.Done()
	logger.Info("shutdown complete")
}

func schedule(s *service.SchedulerService, cfg config.Config, job func(string) func()) error {
	if _, err := s.ScheduleInterval(cfg.Recurrence.Interval, job("recurrence")); err != nil {
		return fmt.Errorf("recurrence: %w", err)
	}
	if _, err := s.ScheduleDaily(cfg.Digest.DailyAt, job("daily-digest")); err != nil {
		return fmt.Errorf("daily digest: %w", err)
	}
	weekday, err := config.ParseWeekday(cfg.Digest.WeeklyDay)
	if err != nil {
		return err
	}
	if _, err := s.ScheduleWeekly(weekday, cfg.Digest.DailyAt, job("weekly-digest")); err != nil {
		return fmt.Errorf("weekly digest: %w", err)
	}
	if _, err := s.ScheduleDaily(cfg.Digest.DueReminderAt, job("due-reminders")); err != nil {
		return fmt.Errorf("due reminders: %w", err)
	}
	return nil
}

type runner struct {
	recurrence   *service.RecurrenceJob
	notification *service.NotificationJob
	dueReminder  *service.DueReminderJob
	log          log.FieldLogger
}

func (r runner) run(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	var (
		sum service.RunSummary
		err error
	)
	switch name {
	case "recurrence":
		sum, err = r.recurrence.Run(ctx)
	case "daily-digest":
		sum, err = r.notification.Run(ctx, model.RuleFrequencyDaily)
	case "weekly-digest":
		sum, err = r.notification.Run(ctx, model.RuleFrequencyWeekly)
	case "due-reminders":
		sum, err = r.dueReminder.Run(ctx)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		r.log.WithFields(log.Fields{"job": name, "failed": sum.Failed}).Warn("job finished with failures")
	}
	return nil
}

func senders(cfg config.Config, logger *log.Logger) mailer.Sender {
	var out mailer.MultiSender
	if cfg.SMTP.Address != "" {
		smtpSender, err := mailer.NewSMTPSender(cfg.SMTP)
		if err != nil {
			logger.WithError(err).Warn("email delivery disabled")
		} else {
			out = append(out, smtpSender)
		}
	}
	if cfg.TelegramToken != "" {
		tg, err := mailer.NewTelegramSender(cfg.TelegramToken, cfg.Digest.SendTimeout)
		if err != nil {
			logger.WithError(err).Warn("telegram delivery disabled")
		} else {
			out = append(out, tg)
		}
	}
	if len(out) == 0 {
		return mailer.LogSender{Log: logger.WithField("component", "mail")}
	}
	return out
}
