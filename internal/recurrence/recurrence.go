// Package recurrence computes the next fire time for the notification
// cadences. All functions are pure: they read the supplied "now" and return a
// strictly-future instant in the same location, so callers can never arm a
// timer in the past or fire twice for the same slot.
package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCadence is returned for malformed time-of-day or day specs.
var ErrInvalidCadence = errors.New("invalid cadence")

// cronParser accepts standard 5-field specs plus descriptors ("@daily").
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseHHMM parses a "HH:MM" time-of-day string.
func ParseHHMM(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q, expected HH:MM", ErrInvalidCadence, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidCadence, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidCadence, s)
	}
	return h, m, nil
}

// NextDaily returns today at hour:minute if that instant is strictly after
// now, otherwise tomorrow at hour:minute.
func NextDaily(hour, minute int, now time.Time) (time.Time, error) {
	if err := checkTime(hour, minute); err != nil {
		return time.Time{}, err
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at, nil
}

// NextWeekly returns the next occurrence of weekday at hour:minute, rolling
// forward a full week when today's slot has already passed.
func NextWeekly(weekday time.Weekday, hour, minute int, now time.Time) (time.Time, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return time.Time{}, fmt.Errorf("%w: weekday %d out of range", ErrInvalidCadence, weekday)
	}
	if err := checkTime(hour, minute); err != nil {
		return time.Time{}, err
	}
	ahead := (int(weekday) - int(now.Weekday()) + 7) % 7
	at := time.Date(now.Year(), now.Month(), now.Day()+ahead, hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 7)
	}
	return at, nil
}

// NextMonthly returns the next occurrence of day-of-month at hour:minute.
//
// When the requested day exceeds the days in a candidate month, the slot is
// clamped to that month's last day (Jan 31 -> Feb 28/29), never skipped.
func NextMonthly(day, hour, minute int, now time.Time) (time.Time, error) {
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: day-of-month %d out of range", ErrInvalidCadence, day)
	}
	if err := checkTime(hour, minute); err != nil {
		return time.Time{}, err
	}
	at := monthlySlot(now.Year(), now.Month(), day, hour, minute, now.Location())
	if !at.After(now) {
		y, m := now.Year(), now.Month()+1
		at = monthlySlot(y, m, day, hour, minute, now.Location())
	}
	return at, nil
}

// NextCron returns the next fire time of a cron expression. Used for the
// optional custom cadences.
func NextCron(spec string, now time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cron %q: %v", ErrInvalidCadence, spec, err)
	}
	at := sched.Next(now)
	if at.IsZero() {
		return time.Time{}, fmt.Errorf("%w: cron %q has no future occurrence", ErrInvalidCadence, spec)
	}
	return at, nil
}

// ValidateCron reports whether spec is a parseable cron expression.
func ValidateCron(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("%w: cron %q: %v", ErrInvalidCadence, spec, err)
	}
	return nil
}

func checkTime(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidCadence, hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidCadence, minute)
	}
	return nil
}

func monthlySlot(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
