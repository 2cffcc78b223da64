package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"wellboard/internal/storage"
)

func newTestLog(t *testing.T) (*Log, storage.Store, *clock.Mock) {
	t.Helper()
	st := storage.NewMemory(nil)
	mock := clock.NewMock()
	mock.Set(time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC))
	return NewLog(st, nil, mock, zerolog.Nop(), ""), st, mock
}

func TestAppendAssignsFields(t *testing.T) {
	t.Parallel()
	l, _, mock := newTestLog(t)
	ctx := context.Background()

	n, appended, err := l.Append(ctx, Payload{Title: "Daily Check-in Reminder", Message: "Log your mood."})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !appended || n == nil {
		t.Fatal("expected entry to be appended")
	}
	if n.ID == "" {
		t.Fatal("expected assigned ID")
	}
	if !n.CreatedAt.Equal(mock.Now().UTC()) {
		t.Fatalf("CreatedAt = %v, want %v", n.CreatedAt, mock.Now().UTC())
	}
	if n.Read {
		t.Fatal("new entries must be unread")
	}
	if n.Category != CategoryInfo {
		t.Fatalf("Category = %q, want default Info", n.Category)
	}
}

func TestAppendDedup(t *testing.T) {
	t.Parallel()
	l, _, mock := newTestLog(t)
	ctx := context.Background()
	p := Payload{Title: "Daily Digest", Message: "3 journal entries today.", Category: CategoryInfo}

	if _, appended, _ := l.Append(ctx, p); !appended {
		t.Fatal("first append suppressed")
	}
	// Within the window: suppressed.
	mock.Add(DuplicateWindow - time.Minute)
	if _, appended, _ := l.Append(ctx, p); appended {
		t.Fatal("duplicate within window not suppressed")
	}
	// Different message: not a duplicate.
	if _, appended, _ := l.Append(ctx, Payload{Title: p.Title, Message: "other"}); !appended {
		t.Fatal("distinct message wrongly suppressed")
	}
	// After the window: stored again.
	mock.Add(DuplicateWindow)
	if _, appended, _ := l.Append(ctx, p); !appended {
		t.Fatal("append after window suppressed")
	}

	entries, err := l.List(ctx, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
}

func TestAppendEviction(t *testing.T) {
	t.Parallel()
	l, _, mock := newTestLog(t)
	ctx := context.Background()

	const extra = 5
	for i := 0; i < MaxLogSize+extra; i++ {
		p := Payload{Title: fmt.Sprintf("entry %d", i), Message: "m"}
		if _, appended, err := l.Append(ctx, p); err != nil || !appended {
			t.Fatalf("Append %d: appended=%v err=%v", i, appended, err)
		}
		mock.Add(time.Minute)
	}

	entries, err := l.List(ctx, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != MaxLogSize {
		t.Fatalf("len = %d, want %d", len(entries), MaxLogSize)
	}
	// Newest-first: head is the last appended, the oldest `extra` are gone.
	if entries[0].Title != fmt.Sprintf("entry %d", MaxLogSize+extra-1) {
		t.Fatalf("head = %q", entries[0].Title)
	}
	if entries[len(entries)-1].Title != fmt.Sprintf("entry %d", extra) {
		t.Fatalf("tail = %q, want entry %d", entries[len(entries)-1].Title, extra)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Fatal("entries not in newest-first order")
		}
	}
}

func TestCreatedAtMonotonic(t *testing.T) {
	t.Parallel()
	l, _, mock := newTestLog(t)
	ctx := context.Background()

	first, _, err := l.Append(ctx, Payload{Title: "a", Message: "m"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	// Wall clock steps backwards; CreatedAt must not.
	mock.Set(mock.Now().Add(-time.Hour))
	second, _, err := l.Append(ctx, Payload{Title: "b", Message: "m"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.CreatedAt.Before(first.CreatedAt) {
		t.Fatalf("CreatedAt went backwards: %v < %v", second.CreatedAt, first.CreatedAt)
	}
}

func TestReadState(t *testing.T) {
	t.Parallel()
	l, _, mock := newTestLog(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		n, _, err := l.Append(ctx, Payload{Title: fmt.Sprintf("n%d", i), Message: "m"})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		ids = append(ids, n.ID)
		mock.Add(10 * time.Minute)
	}

	// Mark two read up front.
	for _, id := range ids[:2] {
		ok, err := l.MarkRead(ctx, id)
		if err != nil || !ok {
			t.Fatalf("MarkRead(%s): ok=%v err=%v", id, ok, err)
		}
	}
	// Idempotent re-mark.
	if ok, _ := l.MarkRead(ctx, ids[0]); !ok {
		t.Fatal("re-marking a read entry must still report true")
	}
	if ok, _ := l.MarkRead(ctx, "nope"); ok {
		t.Fatal("MarkRead of unknown ID must report false")
	}

	if n, _ := l.UnreadCount(ctx); n != 3 {
		t.Fatalf("UnreadCount = %d, want 3", n)
	}
	unread, _ := l.List(ctx, true)
	if len(unread) != 3 {
		t.Fatalf("List(unread) len = %d, want 3", len(unread))
	}

	if err := l.MarkAllRead(ctx); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if n, _ := l.UnreadCount(ctx); n != 0 {
		t.Fatalf("UnreadCount after MarkAllRead = %d, want 0", n)
	}
	all, _ := l.List(ctx, false)
	if len(all) != 5 {
		t.Fatalf("len = %d, want 5", len(all))
	}
	for _, e := range all {
		if !e.Read {
			t.Fatalf("entry %s still unread", e.ID)
		}
	}
	// MarkAllRead on an already-read log is a no-op.
	if err := l.MarkAllRead(ctx); err != nil {
		t.Fatalf("MarkAllRead no-op: %v", err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	t.Parallel()
	l, _, mock := newTestLog(t)
	ctx := context.Background()

	a, _, _ := l.Append(ctx, Payload{Title: "a", Message: "m"})
	mock.Add(10 * time.Minute)
	_, _, _ = l.Append(ctx, Payload{Title: "b", Message: "m"})

	ok, err := l.Delete(ctx, a.ID)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if ok, _ := l.Delete(ctx, a.ID); ok {
		t.Fatal("second delete must report false")
	}
	entries, _ := l.List(ctx, false)
	if len(entries) != 1 || entries[0].Title != "b" {
		t.Fatalf("unexpected entries after delete: %+v", entries)
	}

	if err := l.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	entries, _ = l.List(ctx, false)
	if len(entries) != 0 {
		t.Fatalf("len after Clear = %d, want 0", len(entries))
	}
}

func TestPersistedRoundTrip(t *testing.T) {
	t.Parallel()
	l, st, mock := newTestLog(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := l.Append(ctx, Payload{
			Title:    fmt.Sprintf("n%d", i),
			Message:  "m",
			Category: CategoryReminder,
			Action:   &Action{Label: "Open", Target: "/journal"},
		}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		mock.Add(10 * time.Minute)
	}
	before, _ := l.List(ctx, false)

	// A fresh log over the same store must reproduce the identical sequence.
	reloaded := NewLog(st, nil, mock, zerolog.Nop(), "")
	after, err := reloaded.List(ctx, false)
	if err != nil {
		t.Fatalf("List after reload: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("len = %d, want %d", len(after), len(before))
	}
	for i := range before {
		b, a := before[i], after[i]
		if b.ID != a.ID || b.Title != a.Title || !b.CreatedAt.Equal(a.CreatedAt) || b.Category != a.Category {
			t.Fatalf("entry %d mismatch:\n before %+v\n after  %+v", i, b, a)
		}
		if a.Action == nil || a.Action.Target != "/journal" {
			t.Fatalf("entry %d lost action: %+v", i, a.Action)
		}
	}
}

func TestCorruptEntriesDroppedOnLoad(t *testing.T) {
	t.Parallel()
	l, st, _ := newTestLog(t)
	ctx := context.Background()

	raw := `[
		{"id":"good-1","title":"ok","message":"m","category":"Info","createdAt":"2026-03-10T08:00:00Z","read":false},
		{"title":"missing id","message":"m","category":"Info","createdAt":"2026-03-10T08:01:00Z","read":false},
		{"id":"bad-time","title":"t","message":"m","category":"Info","createdAt":"yesterday","read":false},
		{"id":"good-2","title":"ok2","message":"m","category":"Bogus","createdAt":"2026-03-10T08:02:00Z","read":true},
		"not even an object"
	]`
	if err := st.Put(ctx, DefaultKey, []byte(raw)); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	entries, err := l.List(ctx, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2 surviving entries", len(entries))
	}
	if entries[0].ID != "good-1" || entries[1].ID != "good-2" {
		t.Fatalf("unexpected survivors: %s, %s", entries[0].ID, entries[1].ID)
	}
	// Unknown category is normalized, not dropped.
	if entries[1].Category != CategoryInfo {
		t.Fatalf("Category = %q, want Info", entries[1].Category)
	}
}

func TestPersistedEncodingShape(t *testing.T) {
	t.Parallel()
	l, st, _ := newTestLog(t)
	ctx := context.Background()

	if _, _, err := l.Append(ctx, Payload{Title: "t", Message: "m", Category: CategorySystem}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	data, err := st.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var doc []map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("persisted doc is not a JSON array: %v", err)
	}
	e := doc[0]
	for _, field := range []string{"id", "title", "message", "category", "createdAt", "read"} {
		if _, ok := e[field]; !ok {
			t.Fatalf("persisted entry missing %q: %v", field, e)
		}
	}
	if _, err := time.Parse(time.RFC3339, e["createdAt"].(string)); err != nil {
		t.Fatalf("createdAt not ISO-8601: %v", err)
	}
}
