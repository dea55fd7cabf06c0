package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"taskpulse/internal/config"
)

// SchedulerService fires jobs on cron entries in one zone. A run still in
// progress makes its entry skip the next tick.
type SchedulerService struct {
	cron *cron.Cron
}

func NewSchedulerService(loc *time.Location) *SchedulerService {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &SchedulerService{cron: c}
}

// ScheduleDaily fires job every day at clock (HH:MM).
func (s *SchedulerService) ScheduleDaily(clock string, job func()) (cron.EntryID, error) {
	return s.at(clock, "*", job)
}

// ScheduleWeekly fires job on day at clock (HH:MM).
func (s *SchedulerService) ScheduleWeekly(day time.Weekday, clock string, job func()) (cron.EntryID, error) {
	return s.at(clock, strconv.Itoa(int(day)), job)
}

// ScheduleInterval fires job every interval, truncated to whole seconds with a
// one second floor.
func (s *SchedulerService) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval %s must be positive", interval)
	}
	return s.cron.Schedule(cron.Every(interval), cron.FuncJob(job)), nil
}

// Next reports when the entry fires next; zero before Start.
func (s *SchedulerService) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to return.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

func (s *SchedulerService) at(clock, dow string, job func()) (cron.EntryID, error) {
	spec, err := clockSpec(clock, dow)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// clockSpec renders a seconds-first cron line firing at clock on dow.
func clockSpec(clock, dow string) (string, error) {
	hour, minute, err := config.ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0 %d %d * * %s", minute, hour, dow), nil
}
