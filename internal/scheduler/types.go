package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"wellboard/internal/notify"
)

// Kind identifies a cadence. One Pending task exists per kind at most.
type Kind string

const (
	KindDailyReminder      Kind = "daily-reminder"
	KindDailyDigest        Kind = "daily-digest"
	KindWeeklySummary      Kind = "weekly-summary"
	KindMonthlyAchievement Kind = "monthly-achievement"
)

// ActivitySlotKind names the cadence for the n-th activity reminder slot.
func ActivitySlotKind(n int) Kind {
	return Kind(fmt.Sprintf("activity-slot-%d", n))
}

// CustomKind names a user-defined cron cadence.
func CustomKind(name string) Kind {
	return Kind("custom-" + name)
}

// Sink receives fired notifications. *notify.Log satisfies it.
type Sink interface {
	Append(ctx context.Context, p notify.Payload) (*notify.Notification, bool, error)
}

type nextFunc func(now time.Time) (time.Time, error)
type payloadFunc func() notify.Payload

// pending is a live armed task. Immutable after arming; the timer owns the
// only reference besides the pending map.
type pending struct {
	id      string
	kind    Kind
	fireAt  time.Time
	gen     uint64
	timer   *clock.Timer
	next    nextFunc
	payload payloadFunc
}

// TaskInfo is a read-only view of one Pending task.
type TaskInfo struct {
	ID     string
	Kind   Kind
	FireAt time.Time
}

// Snapshot is a read-only view of the scheduler state, for diagnostics.
type Snapshot struct {
	Generation uint64
	Tasks      []TaskInfo
}

// taskID is deterministic in (kind, fireAt) so re-arming the same cadence at
// the same instant is idempotent.
func taskID(kind Kind, fireAt time.Time) string {
	return fmt.Sprintf("%s@%d", kind, fireAt.Unix())
}
