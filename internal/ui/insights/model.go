package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailscope/internal/analyzer"
	"github.com/nhle/mailscope/internal/keys"
	"github.com/nhle/mailscope/internal/model"
	"github.com/nhle/mailscope/internal/store"
	"github.com/nhle/mailscope/internal/theme"
)

// BackMsg signals the parent to navigate back to the inbox view.
type BackMsg struct{}

// LoadedMsg carries the aggregated insights, or the error that prevented
// aggregation.
type LoadedMsg struct {
	Insights model.Insights
	Err      error
}

// Model is the mailbox insights panel.
type Model struct {
	insights *model.Insights
	loadErr  error
	viewport viewport.Model
	store    store.Store
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new insights model.
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

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Load returns a tea.Cmd that aggregates all stored analyses.
func (m Model) Load() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		analyses, err := s.GetAnalyses(context.Background())
		if err != nil {
			return LoadedMsg{Err: err}
		}
		agg, err := analyzer.Insights(analyses)
		if err != nil {
			return LoadedMsg{Err: err}
		}
		return LoadedMsg{Insights: agg}
	}
}

// Update handles messages for the insights panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		m.loadErr = msg.Err
		if msg.Err == nil {
			ins := msg.Insights
			m.insights = &ins
		} else {
			m.insights = nil
		}
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg {
				return BackMsg{}
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the insights panel.
func (m Model) View() string {
	if m.loading {
		style := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return style.Render("Crunching the numbers...")
	}

	return m.viewport.View()
}

// renderContent builds the insights content string for the viewport.
func (m Model) renderContent() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)

	var sections []string
	sections = append(sections, titleStyle.Render("Mailbox Insights"))

	if m.loadErr != nil {
		sections = append(sections, metaStyle.Render(
			"Nothing to report yet. Analyses appear here after a sync.",
		))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}
	if m.insights == nil {
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	ins := m.insights

	sections = append(sections, fmt.Sprintf(
		"%s  %d",
		metaStyle.Render("Messages analyzed:"),
		ins.TotalAnalyzed,
	))

	label := sentimentLabel(ins.AverageSentiment)
	sections = append(sections, fmt.Sprintf(
		"%s  %s",
		metaStyle.Render("Overall sentiment:"),
		theme.SentimentStyle(ins.AverageSentiment).Render(
			fmt.Sprintf("%s (%.2f)", label, ins.AverageSentiment),
		),
	))

	sections = append(sections, fmt.Sprintf(
		"%s %.0f%%",
		metaStyle.Render("Average confidence:"),
		ins.AverageConfidence*100,
	))

	if len(ins.CommonTopics) > 0 {
		sections = append(sections, "")
		sections = append(sections, lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorWhite).
			Render("Top topics"))

		maxCount := ins.CommonTopics[0].Count
		for _, tc := range ins.CommonTopics {
			bar := topicBar(tc.Count, maxCount, 20)
			sections = append(sections, fmt.Sprintf(
				"  %-10s %s %d",
				tc.Topic,
				lipgloss.NewStyle().Foreground(theme.ColorBlue).Render(bar),
				tc.Count,
			))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// topicBar renders a proportional bar for a topic count.
func topicBar(count, max, width int) string {
	if max <= 0 {
		return ""
	}
	n := count * width / max
	if n < 1 {
		n = 1
	}
	return strings.Repeat("█", n)
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the panel dimensions.
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
