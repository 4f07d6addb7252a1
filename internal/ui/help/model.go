package help

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailscope/internal/keys"
	"github.com/nhle/mailscope/internal/theme"
)

// sectionTitles label the binding groups returned by KeyMap.FullHelp,
// in the same order.
var sectionTitles = []string{"Navigate", "Inbox", "Messages", "Panels"}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	return Model{
		keys:   keys,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the shortcut reference grouped by concern.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorBlue)
	keyStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		Width(9)

	columns := make([]string, 0, len(sectionTitles))
	for i, group := range m.keys.FullHelp() {
		title := ""
		if i < len(sectionTitles) {
			title = sectionTitles[i]
		}

		rows := []string{sectionStyle.Render(title)}
		for _, binding := range group {
			rows = append(rows, lipgloss.JoinHorizontal(
				lipgloss.Top,
				keyStyle.Render(binding.Help().Key),
				theme.HelpStyle.Render(binding.Help().Desc),
			))
		}

		columns = append(columns, lipgloss.NewStyle().
			MarginRight(4).
			Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		lipgloss.JoinHorizontal(lipgloss.Top, columns...),
	)

	return theme.BorderStyle.
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
