package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailscope/internal/model"
	"github.com/nhle/mailscope/internal/theme"
)

// senderWidth is the fixed column width for the sender in a list row.
const senderWidth = 24

// MessageItem wraps a model.MessageRecord so it can be used in a
// bubbles/list.
type MessageItem struct {
	Record model.MessageRecord
}

// FilterValue returns the string used for fuzzy filtering.
func (i MessageItem) FilterValue() string {
	return i.Record.Subject + " " + i.Record.From
}

// Title returns the message subject for the list.
func (i MessageItem) Title() string { return i.Record.Subject }

// Description returns a short summary line for the list.
func (i MessageItem) Description() string {
	parts := []string{
		i.Record.From,
		relativeTime(i.Record.Date),
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering message rows.
type ItemDelegate struct {
	// analyzed maps message ids to true when an analysis exists in the
	// cache. Shared by reference with the inbox Model.
	analyzed map[string]bool
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single message row.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MessageItem)
	if !ok {
		return
	}

	rec := mi.Record
	isSelected := index == m.Index()

	prefix := " "
	if !rec.Read {
		prefix = "●"
	}

	sender := truncate(senderName(rec.From), senderWidth)
	sender = fmt.Sprintf("%-*s", senderWidth, sender)

	subject := rec.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	attach := ""
	if len(rec.Attachments) > 0 {
		attach = theme.AttachmentStyle.Render(" @")
	}

	analyzed := ""
	if d.analyzed[rec.ID] {
		analyzed = lipgloss.NewStyle().
			Foreground(theme.ColorMagenta).
			Render(" *")
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(rec.Date))

	line := fmt.Sprintf(
		"%s %s %s%s%s  %s",
		prefix, sender, subject, attach, analyzed, timeStr,
	)

	if rec.Read {
		line = theme.ReadStyle.Render(line)
	} else {
		line = theme.UnreadStyle.Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// senderName strips the address part from a "Name <addr>" sender,
// falling back to the raw value.
func senderName(from string) string {
	if i := strings.Index(from, "<"); i > 0 {
		return strings.TrimSpace(from[:i])
	}
	return from
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("Jan 02")
	}
}
