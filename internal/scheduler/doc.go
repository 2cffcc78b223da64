// Package scheduler arms one timer per enabled notification cadence and keeps
// each cadence alive by re-arming it after every fire.
//
// # Lifecycle
//
// A task is Pending from the moment it is armed until its timer elapses.
// On fire it is removed from the pending set, its payload is appended to the
// notification log, and a fresh Pending task for the same cadence is armed
// with the next computed occurrence. Cancel (via Reschedule or Cleanup)
// removes a task without firing it; no task ever returns from fired or
// cancelled.
//
// # Reschedule races
//
// Reschedule replaces the whole pending set under one mutex and bumps a
// generation counter. A callback that is already in flight when that happens
// still appends its notification, but sees the stale generation and skips
// re-arming, so exactly one Pending task per cadence survives.
//
// # Failure policy
//
// Append errors and payload panics are logged and swallowed; the cadence is
// re-armed regardless, so a transient storage failure never silently kills a
// recurring reminder. Malformed settings are rejected up front and leave the
// previously-applied schedule untouched.
package scheduler
