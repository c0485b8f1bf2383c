package email

import (
	"strings"
	"testing"
	"time"
)

func TestTemplates(t *testing.T) {
	start := time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)

	subject, body := Confirmed("Ada Quilt", start)
	if !strings.Contains(subject, "confirmed") {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Ada Quilt") || !strings.Contains(body, "15 November 2025") {
		t.Fatalf("body missing name or date: %q", body)
	}

	_, body = Cancelled("", start)
	if !strings.Contains(body, "Hi there,") {
		t.Fatalf("empty name should fall back to a generic greeting: %q", body)
	}

	subject, _ = Reminder("Ada Quilt", start)
	if !strings.Contains(strings.ToLower(subject), "reminder") {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("from@x", "to@y", "Subj", "Body")
	for _, want := range []string{"From: from@x", "To: to@y", "Subject: Subj", "\r\n\r\nBody"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}
