package reminders

import (
	"testing"
	"time"
)

func TestRemindAt(t *testing.T) {
	now := time.Date(2025, 11, 14, 12, 0, 0, 0, time.UTC)
	start := time.Date(2025, 11, 16, 10, 0, 0, 0, time.UTC)

	at, ok := RemindAt(start, 24*time.Hour, now)
	if !ok {
		t.Fatal("reminder should be scheduled")
	}
	if want := start.Add(-24 * time.Hour); !at.Equal(want) {
		t.Fatalf("remind at %s, want %s", at, want)
	}
}

func TestRemindAt_PastIsSkipped(t *testing.T) {
	now := time.Date(2025, 11, 16, 9, 0, 0, 0, time.UTC)
	start := time.Date(2025, 11, 16, 10, 0, 0, 0, time.UTC)

	if _, ok := RemindAt(start, 24*time.Hour, now); ok {
		t.Fatal("reminder inside the offset window should be skipped")
	}
	if _, ok := RemindAt(start.Add(-2*time.Hour), 24*time.Hour, now); ok {
		t.Fatal("reminder for a past appointment should be skipped")
	}
}
