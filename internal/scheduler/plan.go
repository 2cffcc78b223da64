package scheduler

import (
	"fmt"
	"time"

	"wellboard/internal/notify"
	"wellboard/internal/recurrence"
	"wellboard/internal/settings"
)

// planEntry is one cadence to arm: where it fires first, how to compute the
// following occurrence, and what it appends.
type planEntry struct {
	kind    Kind
	fireAt  time.Time
	next    nextFunc
	payload payloadFunc
}

// buildPlan derives the full cadence set from a settings snapshot. It is pure
// (no timers are touched) so a failure here leaves the live schedule alone.
//
// Gating: notificationsEnabled is the master switch. emailReminders drives the
// daily check-in; dailyDigest drives the daily digest and the weekly summary;
// the monthly achievement rides on the master switch alone. activityReminders
// arms one task per slot.
func buildPlan(cfg settings.Settings, now time.Time) ([]planEntry, error) {
	if !cfg.NotificationsEnabled {
		return nil, nil
	}
	var plan []planEntry

	add := func(kind Kind, next nextFunc, payload payloadFunc) error {
		fireAt, err := next(now)
		if err != nil {
			return fmt.Errorf("cadence %s: %w", kind, err)
		}
		plan = append(plan, planEntry{kind: kind, fireAt: fireAt, next: next, payload: payload})
		return nil
	}

	if cfg.EmailReminders {
		h, m, err := recurrence.ParseHHMM(cfg.ReminderTime)
		if err != nil {
			return nil, err
		}
		if err := add(KindDailyReminder, dailyAt(h, m), reminderPayload); err != nil {
			return nil, err
		}
	}

	if cfg.DailyDigest {
		h, m, err := recurrence.ParseHHMM(cfg.DigestTime)
		if err != nil {
			return nil, err
		}
		if err := add(KindDailyDigest, dailyAt(h, m), digestPayload); err != nil {
			return nil, err
		}
		if err := add(KindWeeklySummary, weeklyAt(time.Sunday, h, m), weeklySummaryPayload); err != nil {
			return nil, err
		}
	}

	// Monthly achievement fires on the 1st at a quiet mid-morning slot.
	if err := add(KindMonthlyAchievement, monthlyAt(1, 10, 0), achievementPayload); err != nil {
		return nil, err
	}

	if cfg.ActivityReminders {
		for i, slot := range cfg.Slots() {
			h, m, err := recurrence.ParseHHMM(slot)
			if err != nil {
				return nil, err
			}
			if err := add(ActivitySlotKind(i), dailyAt(h, m), activityPayload(slot)); err != nil {
				return nil, err
			}
		}
	}

	for _, c := range cfg.Custom {
		c := c
		next := func(t time.Time) (time.Time, error) { return recurrence.NextCron(c.Spec, t) }
		if err := add(CustomKind(c.Name), next, customPayload(c.Name)); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func dailyAt(hour, minute int) nextFunc {
	return func(now time.Time) (time.Time, error) {
		return recurrence.NextDaily(hour, minute, now)
	}
}

func weeklyAt(weekday time.Weekday, hour, minute int) nextFunc {
	return func(now time.Time) (time.Time, error) {
		return recurrence.NextWeekly(weekday, hour, minute, now)
	}
}

func monthlyAt(day, hour, minute int) nextFunc {
	return func(now time.Time) (time.Time, error) {
		return recurrence.NextMonthly(day, hour, minute, now)
	}
}

func reminderPayload() notify.Payload {
	return notify.Payload{
		Title:    "Daily Check-in Reminder",
		Message:  "Take a minute to log how you are feeling today.",
		Category: notify.CategoryReminder,
		Action:   &notify.Action{Label: "Open check-in", Target: "/checkin"},
	}
}

func digestPayload() notify.Payload {
	return notify.Payload{
		Title:    "Daily Digest",
		Message:  "Your mood, journal and activity summary for today is ready.",
		Category: notify.CategoryInfo,
		Action:   &notify.Action{Label: "View digest", Target: "/digest"},
	}
}

func weeklySummaryPayload() notify.Payload {
	return notify.Payload{
		Title:    "Weekly Summary",
		Message:  "See how your week went and what helped the most.",
		Category: notify.CategoryInfo,
		Action:   &notify.Action{Label: "View summary", Target: "/summary/weekly"},
	}
}

func achievementPayload() notify.Payload {
	return notify.Payload{
		Title:    "Monthly Achievement",
		Message:  "A new month, a fresh look at your streaks and milestones.",
		Category: notify.CategoryAchievement,
		Action:   &notify.Action{Label: "View achievements", Target: "/achievements"},
	}
}

func activityPayload(slot string) payloadFunc {
	return func() notify.Payload {
		return notify.Payload{
			Title:    "Activity Reminder",
			Message:  fmt.Sprintf("Time for your %s activity break.", slot),
			Category: notify.CategoryReminder,
			Action:   &notify.Action{Label: "Start activity", Target: "/activities"},
		}
	}
}

func customPayload(name string) payloadFunc {
	return func() notify.Payload {
		return notify.Payload{
			Title:    name,
			Message:  "Your scheduled reminder.",
			Category: notify.CategoryInfo,
		}
	}
}
