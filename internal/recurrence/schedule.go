// Package recurrence computes when a recurring task fires next.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency names as stored in the recurrences table.
const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyMonthly  = "monthly"
)

// FireHour is the local hour every occurrence is normalized to.
const FireHour = 9

var (
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrInvalidDayOfWeek  = errors.New("day of week must be between 0 and 6")
	ErrInvalidDayOfMonth = errors.New("day of month must be between 1 and 31")
	ErrUnexpectedDay     = errors.New("day parameter does not apply to frequency")
)

// Schedule is one of Daily, Weekly, Biweekly or Monthly.
type Schedule interface {
	Frequency() string
	// Next returns the next firing time strictly after now, at FireHour in loc.
	Next(now time.Time, loc *time.Location) time.Time
	Describe() string
}

type Daily struct{}

// Weekly fires on Weekday; a nil Weekday means the weekday the occurrence is computed on.
type Weekly struct {
	Weekday *time.Weekday
}

// Biweekly is Weekly plus one extra week.
type Biweekly struct {
	Weekday *time.Weekday
}

// Monthly fires on Day of the following month. Zero means the 1st.
type Monthly struct {
	Day int
}

func (Daily) Frequency() string    { return FrequencyDaily }
func (Weekly) Frequency() string   { return FrequencyWeekly }
func (Biweekly) Frequency() string { return FrequencyBiweekly }
func (Monthly) Frequency() string  { return FrequencyMonthly }

func (Daily) Next(now time.Time, loc *time.Location) time.Time {
	y, m, d := localize(now, loc).Date()
	return at(y, m, d+1, loc)
}

func (w Weekly) Next(now time.Time, loc *time.Location) time.Time {
	local := localize(now, loc)
	y, m, d := local.Date()
	return at(y, m, d+daysAhead(local.Weekday(), w.Weekday), loc)
}

func (b Biweekly) Next(now time.Time, loc *time.Location) time.Time {
	local := localize(now, loc)
	y, m, d := local.Date()
	return at(y, m, d+daysAhead(local.Weekday(), b.Weekday)+7, loc)
}

func (mo Monthly) Next(now time.Time, loc *time.Location) time.Time {
	y, m, _ := localize(now, loc).Date()
	next := time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
	day := mo.Day
	if day <= 0 {
		day = 1
	}
	if last := daysInMonth(next.Month(), next.Year()); day > last {
		day = last
	}
	return at(next.Year(), next.Month(), day, loc)
}

func (Daily) Describe() string { return "Every day" }

func (w Weekly) Describe() string {
	return "Every " + weekdayName(w.Weekday)
}

func (b Biweekly) Describe() string {
	return "Every other " + weekdayName(b.Weekday)
}

func (mo Monthly) Describe() string {
	day := mo.Day
	if day <= 0 {
		day = 1
	}
	return fmt.Sprintf("Monthly on day %d", day)
}

// unknown covers stored frequencies this build does not recognize.
type unknown struct {
	name string
}

func (u unknown) Frequency() string { return u.name }

func (unknown) Next(now time.Time, _ *time.Location) time.Time {
	return now.Add(24 * time.Hour)
}

func (u unknown) Describe() string { return u.name }

// New builds a validated Schedule from user input. Day parameters that do not
// apply to the frequency are rejected.
func New(frequency string, dayOfWeek, dayOfMonth *int) (Schedule, error) {
	freq := strings.ToLower(strings.TrimSpace(frequency))
	switch freq {
	case FrequencyDaily:
		if dayOfWeek != nil || dayOfMonth != nil {
			return nil, fmt.Errorf("%s: %w", freq, ErrUnexpectedDay)
		}
		return Daily{}, nil
	case FrequencyWeekly, FrequencyBiweekly:
		if dayOfMonth != nil {
			return nil, fmt.Errorf("%s: %w", freq, ErrUnexpectedDay)
		}
		wd, err := weekday(dayOfWeek)
		if err != nil {
			return nil, err
		}
		if freq == FrequencyWeekly {
			return Weekly{Weekday: wd}, nil
		}
		return Biweekly{Weekday: wd}, nil
	case FrequencyMonthly:
		if dayOfWeek != nil {
			return nil, fmt.Errorf("%s: %w", freq, ErrUnexpectedDay)
		}
		if dayOfMonth == nil {
			return Monthly{}, nil
		}
		if *dayOfMonth < 1 || *dayOfMonth > 31 {
			return nil, ErrInvalidDayOfMonth
		}
		return Monthly{Day: *dayOfMonth}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrInvalidFrequency, frequency)
	}
}

// FromRecord rebuilds a Schedule from stored columns. It never fails: values
// that slipped past validation fall back to the nearest sensible schedule.
func FromRecord(frequency string, dayOfWeek, dayOfMonth *int) Schedule {
	switch frequency {
	case FrequencyDaily:
		return Daily{}
	case FrequencyWeekly:
		wd, _ := weekday(dayOfWeek)
		return Weekly{Weekday: wd}
	case FrequencyBiweekly:
		wd, _ := weekday(dayOfWeek)
		return Biweekly{Weekday: wd}
	case FrequencyMonthly:
		day := 0
		if dayOfMonth != nil {
			day = *dayOfMonth
		}
		return Monthly{Day: day}
	default:
		return unknown{name: frequency}
	}
}

// Columns returns the stored day_of_week and day_of_month for s.
func Columns(s Schedule) (dayOfWeek, dayOfMonth *int) {
	switch v := s.(type) {
	case Weekly:
		return weekdayColumn(v.Weekday), nil
	case Biweekly:
		return weekdayColumn(v.Weekday), nil
	case Monthly:
		if v.Day > 0 {
			day := v.Day
			return nil, &day
		}
	}
	return nil, nil
}

func weekday(v *int) (*time.Weekday, error) {
	if v == nil {
		return nil, nil
	}
	if *v < 0 || *v > 6 {
		return nil, ErrInvalidDayOfWeek
	}
	wd := time.Weekday(*v)
	return &wd, nil
}

func weekdayColumn(wd *time.Weekday) *int {
	if wd == nil {
		return nil
	}
	v := int(*wd)
	return &v
}

func weekdayName(wd *time.Weekday) string {
	if wd == nil {
		return time.Sunday.String()
	}
	return wd.String()
}

// daysAhead is never zero: an occurrence on today's weekday moves a week out.
func daysAhead(today time.Weekday, target *time.Weekday) int {
	want := today
	if target != nil {
		want = *target
	}
	days := int(want) - int(today)
	if days <= 0 {
		days += 7
	}
	return days
}

func localize(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc)
}

func at(y int, m time.Month, d int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(y, m, d, FireHour, 0, 0, 0, loc)
}

func daysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
