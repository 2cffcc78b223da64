package notify

import (
	"encoding/json"
	"time"
)

// Category informs default rendering in the UI; the scheduler does not
// branch on it.
type Category string

const (
	CategoryInfo        Category = "Info"
	CategoryReminder    Category = "Reminder"
	CategoryAchievement Category = "Achievement"
	CategorySystem      Category = "System"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryInfo, CategoryReminder, CategoryAchievement, CategorySystem:
		return true
	}
	return false
}

// Action is an optional deep link attached to a notification. Both fields are
// opaque to the core.
type Action struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

// Notification is a single entry in the log. ID and CreatedAt are assigned at
// append time and never change afterwards.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
	Action    *Action   `json:"action,omitempty"`
}

// Payload is the caller-supplied content of a notification-to-be.
type Payload struct {
	Title    string
	Message  string
	Category Category
	Action   *Action
}

// wireNotification mirrors the persisted JSON shape with a lax timestamp so
// individual corrupt entries can be dropped instead of failing the whole load.
type wireNotification struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Category  string  `json:"category"`
	CreatedAt string  `json:"createdAt"`
	Read      bool    `json:"read"`
	Action    *Action `json:"action,omitempty"`
}

// decodeEntries parses the persisted JSON array, dropping entries that are
// missing required fields or carry an unparseable timestamp. It returns the
// surviving entries in stored order plus the number dropped.
func decodeEntries(data []byte) ([]Notification, int, error) {
	if len(data) == 0 {
		return nil, 0, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, err
	}

	out := make([]Notification, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		var w wireNotification
		if err := json.Unmarshal(r, &w); err != nil {
			dropped++
			continue
		}
		if w.ID == "" || w.Title == "" || w.Message == "" {
			dropped++
			continue
		}
		at, err := time.Parse(time.RFC3339, w.CreatedAt)
		if err != nil {
			dropped++
			continue
		}
		cat := Category(w.Category)
		if !cat.Valid() {
			cat = CategoryInfo
		}
		out = append(out, Notification{
			ID:        w.ID,
			Title:     w.Title,
			Message:   w.Message,
			Category:  cat,
			CreatedAt: at,
			Read:      w.Read,
			Action:    w.Action,
		})
	}
	return out, dropped, nil
}
