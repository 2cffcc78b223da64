package recurrence

import (
	"errors"
	"testing"
	"time"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNextDaily(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		hour, minute int
		now          time.Time
		want         time.Time
	}{
		{name: "later today", hour: 9, minute: 0, now: at(2026, time.March, 10, 8, 0), want: at(2026, time.March, 10, 9, 0)},
		{name: "already passed", hour: 9, minute: 0, now: at(2026, time.March, 10, 9, 30), want: at(2026, time.March, 11, 9, 0)},
		{name: "exactly now rolls over", hour: 9, minute: 0, now: at(2026, time.March, 10, 9, 0), want: at(2026, time.March, 11, 9, 0)},
		{name: "midnight slot", hour: 0, minute: 0, now: at(2026, time.March, 10, 0, 0), want: at(2026, time.March, 11, 0, 0)},
		{name: "month rollover", hour: 6, minute: 15, now: at(2026, time.March, 31, 7, 0), want: at(2026, time.April, 1, 6, 15)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDaily(tt.hour, tt.minute, tt.now)
			if err != nil {
				t.Fatalf("NextDaily error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("NextDaily = %v, want %v", got, tt.want)
			}
			if !got.After(tt.now) {
				t.Fatalf("NextDaily = %v is not strictly after now %v", got, tt.now)
			}
		})
	}
}

func TestNextDailyInvalid(t *testing.T) {
	t.Parallel()
	now := at(2026, time.March, 10, 8, 0)
	if _, err := NextDaily(24, 0, now); !errors.Is(err, ErrInvalidCadence) {
		t.Fatalf("hour 24: err = %v, want ErrInvalidCadence", err)
	}
	if _, err := NextDaily(12, 60, now); !errors.Is(err, ErrInvalidCadence) {
		t.Fatalf("minute 60: err = %v, want ErrInvalidCadence", err)
	}
}

func TestNextWeekly(t *testing.T) {
	t.Parallel()
	// 2026-03-10 is a Tuesday.
	tests := []struct {
		name    string
		weekday time.Weekday
		now     time.Time
		want    time.Time
	}{
		{name: "later this week", weekday: time.Friday, now: at(2026, time.March, 10, 8, 0), want: at(2026, time.March, 13, 9, 0)},
		{name: "same day before slot", weekday: time.Tuesday, now: at(2026, time.March, 10, 8, 0), want: at(2026, time.March, 10, 9, 0)},
		{name: "same day after slot", weekday: time.Tuesday, now: at(2026, time.March, 10, 10, 0), want: at(2026, time.March, 17, 9, 0)},
		{name: "earlier weekday wraps", weekday: time.Monday, now: at(2026, time.March, 10, 8, 0), want: at(2026, time.March, 16, 9, 0)},
		{name: "exactly at slot wraps", weekday: time.Tuesday, now: at(2026, time.March, 10, 9, 0), want: at(2026, time.March, 17, 9, 0)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextWeekly(tt.weekday, 9, 0, tt.now)
			if err != nil {
				t.Fatalf("NextWeekly error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("NextWeekly = %v, want %v", got, tt.want)
			}
			if got.Weekday() != tt.weekday {
				t.Fatalf("NextWeekly weekday = %v, want %v", got.Weekday(), tt.weekday)
			}
			if !got.After(tt.now) {
				t.Fatalf("NextWeekly = %v is not strictly after now %v", got, tt.now)
			}
			// No intervening occurrence: the gap is at most a full week.
			if got.Sub(tt.now) > 7*24*time.Hour {
				t.Fatalf("NextWeekly = %v skips an occurrence (now %v)", got, tt.now)
			}
		})
	}

	if _, err := NextWeekly(time.Weekday(7), 9, 0, at(2026, time.March, 10, 8, 0)); !errors.Is(err, ErrInvalidCadence) {
		t.Fatalf("weekday 7: err = %v, want ErrInvalidCadence", err)
	}
}

func TestNextMonthly(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		day  int
		now  time.Time
		want time.Time
	}{
		{name: "later this month", day: 15, now: at(2026, time.March, 10, 8, 0), want: at(2026, time.March, 15, 9, 0)},
		{name: "already passed", day: 5, now: at(2026, time.March, 10, 8, 0), want: at(2026, time.April, 5, 9, 0)},
		{name: "same day before slot", day: 10, now: at(2026, time.March, 10, 8, 0), want: at(2026, time.March, 10, 9, 0)},
		{name: "same day after slot", day: 10, now: at(2026, time.March, 10, 10, 0), want: at(2026, time.April, 10, 9, 0)},
		{name: "day 31 clamps to april 30", day: 31, now: at(2026, time.April, 1, 0, 0), want: at(2026, time.April, 30, 9, 0)},
		{name: "day 31 clamps to feb 28", day: 31, now: at(2026, time.February, 1, 0, 0), want: at(2026, time.February, 28, 9, 0)},
		{name: "day 30 clamps to feb 28", day: 30, now: at(2026, time.February, 1, 0, 0), want: at(2026, time.February, 28, 9, 0)},
		{name: "day 29 in leap february", day: 29, now: at(2028, time.February, 1, 0, 0), want: at(2028, time.February, 29, 9, 0)},
		{name: "day 29 clamps in non-leap february", day: 29, now: at(2026, time.February, 1, 0, 0), want: at(2026, time.February, 28, 9, 0)},
		{name: "year rollover", day: 10, now: at(2026, time.December, 20, 8, 0), want: at(2027, time.January, 10, 9, 0)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextMonthly(tt.day, 9, 0, tt.now)
			if err != nil {
				t.Fatalf("NextMonthly error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("NextMonthly = %v, want %v", got, tt.want)
			}
			if !got.After(tt.now) {
				t.Fatalf("NextMonthly = %v is not strictly after now %v", got, tt.now)
			}
		})
	}

	if _, err := NextMonthly(0, 9, 0, at(2026, time.March, 10, 8, 0)); !errors.Is(err, ErrInvalidCadence) {
		t.Fatalf("day 0: err = %v, want ErrInvalidCadence", err)
	}
	if _, err := NextMonthly(32, 9, 0, at(2026, time.March, 10, 8, 0)); !errors.Is(err, ErrInvalidCadence) {
		t.Fatalf("day 32: err = %v, want ErrInvalidCadence", err)
	}
}

func TestNextCron(t *testing.T) {
	t.Parallel()
	now := at(2026, time.March, 10, 8, 0)

	got, err := NextCron("30 9 * * *", now)
	if err != nil {
		t.Fatalf("NextCron error: %v", err)
	}
	want := at(2026, time.March, 10, 9, 30)
	if !got.Equal(want) {
		t.Fatalf("NextCron = %v, want %v", got, want)
	}

	if _, err := NextCron("not a spec", now); !errors.Is(err, ErrInvalidCadence) {
		t.Fatalf("invalid spec: err = %v, want ErrInvalidCadence", err)
	}
	if err := ValidateCron("@daily"); err != nil {
		t.Fatalf("ValidateCron(@daily): %v", err)
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := ParseHHMM("23:15")
	if err != nil {
		t.Fatalf("ParseHHMM error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}

	for _, raw := range []string{"24:00", "09:60", "0900", "", "aa:bb"} {
		if _, _, err := ParseHHMM(raw); !errors.Is(err, ErrInvalidCadence) {
			t.Fatalf("ParseHHMM(%q) err = %v, want ErrInvalidCadence", raw, err)
		}
	}
}
