package ui

import (
	"strings"
	"testing"
)

func TestLayoutContentHeight(t *testing.T) {
	l := NewLayout(80, 24)
	if got := l.ContentHeight(); got != 22 {
		t.Errorf("ContentHeight() = %d, want 22", got)
	}
	if got := l.ContentWidth(); got != 80 {
		t.Errorf("ContentWidth() = %d, want 80", got)
	}
}

func TestRenderHeader(t *testing.T) {
	l := NewLayout(80, 24)

	header := l.RenderHeader("Mailscope", "INBOX", "connected", "idle")
	for _, want := range []string{"Mailscope", "INBOX", "connected", "idle"} {
		if !strings.Contains(header, want) {
			t.Errorf("header missing %q:\n%s", want, header)
		}
	}
}

func TestRenderHeaderLocalMailbox(t *testing.T) {
	l := NewLayout(80, 24)

	// Local mailboxes carry no auth state.
	header := l.RenderHeader("Mailscope", "Archive", "", "syncing")
	if !strings.Contains(header, "syncing") {
		t.Errorf("header missing sync state:\n%s", header)
	}
	if strings.Contains(header, "connected") {
		t.Errorf("header shows auth state for a local mailbox:\n%s", header)
	}
}

func TestRenderStatusBar(t *testing.T) {
	l := NewLayout(60, 24)

	bar := l.RenderStatusBar("q quit | ? help", false)
	if !strings.Contains(bar, "q quit | ? help") {
		t.Errorf("status bar missing hints:\n%s", bar)
	}

	alert := l.RenderStatusBar("mailbox or folder not found", true)
	if !strings.Contains(alert, "mailbox or folder not found") {
		t.Errorf("status bar missing alert text:\n%s", alert)
	}
}
