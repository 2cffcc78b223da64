// Package settings holds the user preference snapshot the scheduler derives
// its cadences from, plus the watcher that turns store change events into
// reschedules.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wellboard/internal/recurrence"
	"wellboard/internal/storage"
)

// DefaultKey is the store key holding the persisted settings document.
const DefaultKey = "settings"

var ErrInvalidSettings = errors.New("invalid settings")

// Settings is read-only to the notification core: the UI mutates it (through
// UpdateSettings) and the core reacts to change events.
type Settings struct {
	NotificationsEnabled bool   `json:"notificationsEnabled"`
	EmailReminders       bool   `json:"emailReminders"`
	DailyDigest          bool   `json:"dailyDigest"`
	ActivityReminders    bool   `json:"activityReminders"`
	ReminderTime         string `json:"reminderTime"` // "HH:MM"
	DigestTime           string `json:"digestTime"`   // "HH:MM"

	// ActivitySlots overrides the default activity reminder times.
	ActivitySlots []string `json:"activitySlots,omitempty"`

	// Custom are extra cron-driven cadences.
	Custom []CustomCadence `json:"custom,omitempty"`
}

// CustomCadence is a user-defined recurring notification driven by a cron
// expression.
type CustomCadence struct {
	Name string `json:"name"`
	Spec string `json:"spec"`
}

// defaultActivitySlots are used when ActivitySlots is empty.
var defaultActivitySlots = []string{"10:00", "14:00", "18:00"}

// Default returns the settings used before the user has saved any.
func Default() Settings {
	return Settings{
		NotificationsEnabled: true,
		EmailReminders:       true,
		DailyDigest:          true,
		ActivityReminders:    false,
		ReminderTime:         "09:00",
		DigestTime:           "20:00",
	}
}

// Slots returns the effective activity reminder times.
func (s Settings) Slots() []string {
	if len(s.ActivitySlots) > 0 {
		return s.ActivitySlots
	}
	return defaultActivitySlots
}

// Validate rejects malformed time-of-day strings and custom cadence specs.
// A snapshot that fails validation must never reach the scheduler.
func (s Settings) Validate() error {
	if _, _, err := recurrence.ParseHHMM(s.ReminderTime); err != nil {
		return fmt.Errorf("%w: reminderTime: %v", ErrInvalidSettings, err)
	}
	if _, _, err := recurrence.ParseHHMM(s.DigestTime); err != nil {
		return fmt.Errorf("%w: digestTime: %v", ErrInvalidSettings, err)
	}
	for i, slot := range s.Slots() {
		if _, _, err := recurrence.ParseHHMM(slot); err != nil {
			return fmt.Errorf("%w: activitySlots[%d]: %v", ErrInvalidSettings, i, err)
		}
	}
	for i, c := range s.Custom {
		if c.Name == "" {
			return fmt.Errorf("%w: custom[%d]: name is required", ErrInvalidSettings, i)
		}
		if err := recurrence.ValidateCron(c.Spec); err != nil {
			return fmt.Errorf("%w: custom[%d]: %v", ErrInvalidSettings, i, err)
		}
	}
	return nil
}

// Patch is a partial settings update; nil fields are left unchanged.
type Patch struct {
	NotificationsEnabled *bool            `json:"notificationsEnabled,omitempty"`
	EmailReminders       *bool            `json:"emailReminders,omitempty"`
	DailyDigest          *bool            `json:"dailyDigest,omitempty"`
	ActivityReminders    *bool            `json:"activityReminders,omitempty"`
	ReminderTime         *string          `json:"reminderTime,omitempty"`
	DigestTime           *string          `json:"digestTime,omitempty"`
	ActivitySlots        *[]string        `json:"activitySlots,omitempty"`
	Custom               *[]CustomCadence `json:"custom,omitempty"`
}

// Apply returns a copy of s with the non-nil patch fields applied.
func (s Settings) Apply(p Patch) Settings {
	if p.NotificationsEnabled != nil {
		s.NotificationsEnabled = *p.NotificationsEnabled
	}
	if p.EmailReminders != nil {
		s.EmailReminders = *p.EmailReminders
	}
	if p.DailyDigest != nil {
		s.DailyDigest = *p.DailyDigest
	}
	if p.ActivityReminders != nil {
		s.ActivityReminders = *p.ActivityReminders
	}
	if p.ReminderTime != nil {
		s.ReminderTime = *p.ReminderTime
	}
	if p.DigestTime != nil {
		s.DigestTime = *p.DigestTime
	}
	if p.ActivitySlots != nil {
		s.ActivitySlots = append([]string(nil), (*p.ActivitySlots)...)
	}
	if p.Custom != nil {
		s.Custom = append([]CustomCadence(nil), (*p.Custom)...)
	}
	return s
}

// Load reads the settings document from the store. A missing key yields
// Default(). The caller decides whether to Validate.
func Load(ctx context.Context, st storage.Store, key string) (Settings, error) {
	if key == "" {
		key = DefaultKey
	}
	data, err := st.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return s, nil
}

// Save persists the settings document. The store publishes the change event
// that ultimately drives the watcher.
func Save(ctx context.Context, st storage.Store, key string, s Settings) error {
	if key == "" {
		key = DefaultKey
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := st.Put(ctx, key, data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
