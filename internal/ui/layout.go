package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailscope/internal/theme"
)

// Layout manages the terminal chrome: a header carrying the active
// folder and session state, the content area, and a status bar for key
// hints and alerts.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// RenderHeader renders the top bar: application title and active folder
// on the left, auth and sync state on the right. authState may be empty
// for sources that need no credentials.
func (l Layout) RenderHeader(title, folder, authState, syncState string) string {
	left := lipgloss.JoinHorizontal(
		lipgloss.Top,
		theme.HeaderStyle.Render(title),
		theme.FolderLabelStyle.Render(folder),
	)

	right := theme.HeaderStyle.Render(syncState)
	if authState != "" {
		right = lipgloss.JoinHorizontal(
			lipgloss.Top,
			theme.AuthStatusStyle(authState).Render(authState),
			right,
		)
	}

	gap := l.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// RenderStatusBar renders the bottom bar. An alert replaces the usual
// key hints and is rendered in the warning color.
func (l Layout) RenderStatusBar(text string, alert bool) string {
	style := theme.StatusBarStyle
	if alert {
		style = style.Foreground(theme.ColorYellow).Bold(true)
	}
	rendered := style.Render(text)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}
	filler := style.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
