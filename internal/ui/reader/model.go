package reader

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailscope/internal/keys"
	"github.com/nhle/mailscope/internal/model"
	"github.com/nhle/mailscope/internal/store"
	"github.com/nhle/mailscope/internal/theme"
)

// BackMsg signals the parent to navigate back to the inbox view.
type BackMsg struct{}

// MessageLoadedMsg carries the opened message and its analysis, if any.
type MessageLoadedMsg struct {
	Record   *model.MessageRecord
	Analysis *model.Analysis
}

// AnalyzeRequestMsg asks the parent to analyze the thread containing the
// current message.
type AnalyzeRequestMsg struct {
	MessageID string
}

// Model is the message reading pane.
type Model struct {
	record   *model.MessageRecord
	analysis *model.Analysis
	viewport viewport.Model
	store    store.Store
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new reader model.
func New(s store.Store, keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		store:    s,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the reader.
func (m Model) Init() tea.Cmd {
	return nil
}

// Open returns a tea.Cmd that loads a message from the cache and marks
// it read. Opening is the one place the read flag flips implicitly.
func (m Model) Open(messageID string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx := context.Background()
		rec, err := s.GetMessageByID(ctx, messageID)
		if err != nil || rec == nil {
			return MessageLoadedMsg{}
		}

		if !rec.Read {
			if err := s.SetRead(ctx, messageID, true); err == nil {
				rec.Read = true
			}
		}

		analysis, _ := s.GetAnalysisByMessageID(ctx, messageID)
		return MessageLoadedMsg{Record: rec, Analysis: analysis}
	}
}

// Update handles messages for the reader.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case MessageLoadedMsg:
		m.record = msg.Record
		m.analysis = msg.Analysis
		m.loading = false
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.Analyze):
			if m.record != nil {
				id := m.record.ID
				return m, func() tea.Msg {
					return AnalyzeRequestMsg{MessageID: id}
				}
			}

		case key.Matches(msg, m.keys.ToggleRead):
			if m.record != nil {
				m.record.Read = !m.record.Read
				id, read := m.record.ID, m.record.Read
				s := m.store
				return m, func() tea.Msg {
					_ = s.SetRead(context.Background(), id, read)
					return nil
				}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn).
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the reader.
func (m Model) View() string {
	if m.loading {
		loadingStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return loadingStyle.Render("Loading message...")
	}

	if m.record == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No message selected")
	}

	return m.viewport.View()
}

// renderContent builds the full message content string for the viewport.
func (m Model) renderContent() string {
	if m.record == nil {
		return ""
	}

	rec := m.record
	var sections []string

	// Subject
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	subject := rec.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	sections = append(sections, titleStyle.Render(subject))
	sections = append(sections, "")

	// Header table
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	sections = append(sections, fmt.Sprintf(
		"%s    %s",
		metaStyle.Render("From:"),
		valStyle.Render(rec.From),
	))
	if rec.To != "" {
		sections = append(sections, fmt.Sprintf(
			"%s      %s",
			metaStyle.Render("To:"),
			valStyle.Render(rec.To),
		))
	}
	if !rec.Date.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s    %s",
			metaStyle.Render("Date:"),
			valStyle.Render(rec.Date.Format("2006-01-02 15:04 -0700")),
		))
	}
	sections = append(sections, fmt.Sprintf(
		"%s  %s",
		metaStyle.Render("Folder:"),
		valStyle.Render(rec.Folder),
	))

	// Attachments
	if len(rec.Attachments) > 0 {
		var names []string
		for _, att := range rec.Attachments {
			names = append(names, fmt.Sprintf(
				"%s (%s, %d bytes)",
				att.Filename, att.ContentType, att.Size,
			))
		}
		sections = append(sections, fmt.Sprintf(
			"%s %s",
			metaStyle.Render("Attach:"),
			theme.AttachmentStyle.Render(strings.Join(names, ", ")),
		))
	}

	// Separator
	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))
	sections = append(sections, "")
	sections = append(sections, separator)
	sections = append(sections, "")

	// Body
	body := rec.Body
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("Empty message")
	}
	sections = append(sections, body)

	// Analysis panel
	if m.analysis != nil {
		sections = append(sections, "")
		sections = append(sections, separator)
		sections = append(sections, "")
		sections = append(sections, m.renderAnalysis(m.analysis))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderAnalysis draws the analysis summary block under the message body.
func (m Model) renderAnalysis(a *model.Analysis) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)

	var sections []string
	header := "Analysis"
	if a.MessageCount > 1 {
		header = fmt.Sprintf("Thread analysis (%d messages)", a.MessageCount)
	}
	sections = append(sections, headerStyle.Render(header))
	sections = append(sections, "")

	if a.Sentiment != nil {
		label := sentimentLabel(*a.Sentiment)
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Sentiment:"),
			theme.SentimentStyle(*a.Sentiment).Render(
				fmt.Sprintf("%s (%.2f)", label, *a.Sentiment),
			),
		))
	}
	if len(a.Topics) > 0 {
		sections = append(sections, fmt.Sprintf(
			"%s     %s",
			metaStyle.Render("Topics:"),
			strings.Join(a.Topics, ", "),
		))
	}
	if len(a.Entities) > 0 {
		sections = append(sections, fmt.Sprintf(
			"%s   %s",
			metaStyle.Render("Entities:"),
			strings.Join(a.Entities, ", "),
		))
	}
	if a.Summary != "" {
		sections = append(sections, fmt.Sprintf(
			"%s    %s",
			metaStyle.Render("Summary:"),
			a.Summary,
		))
	}
	sections = append(sections, fmt.Sprintf(
		"%s %.0f%%",
		metaStyle.Render("Confidence:"),
		a.Confidence*100,
	))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the reader dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}

// sentimentLabel maps a score in [-1, 1] to a coarse label.
func sentimentLabel(score float64) string {
	switch {
	case score > 0.25:
		return "positive"
	case score < -0.25:
		return "negative"
	default:
		return "neutral"
	}
}
