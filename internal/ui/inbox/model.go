package inbox

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailscope/internal/keys"
	"github.com/nhle/mailscope/internal/model"
	"github.com/nhle/mailscope/internal/store"
	"github.com/nhle/mailscope/internal/theme"
)

// MessagesLoadedMsg is sent when messages have been loaded from the cache.
type MessagesLoadedMsg struct {
	Messages []model.MessageRecord
	Analyzed map[string]bool
}

// SelectedMessageMsg is sent when a user opens a message.
type SelectedMessageMsg struct {
	MessageID string
}

// ReadToggledMsg is sent after a message's read flag was flipped.
type ReadToggledMsg struct {
	MessageID string
	Read      bool
}

// Model is the inbox list view component.
type Model struct {
	list        list.Model
	store       store.Store
	keys        *keys.KeyMap
	filter      store.MessageFilter
	folder      string
	analyzed    map[string]bool
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a new inbox model showing the given folder.
func New(s store.Store, k *keys.KeyMap, folder string, width, height int) Model {
	analyzed := make(map[string]bool)
	delegate := ItemDelegate{analyzed: analyzed}
	l := list.New([]list.Item{}, delegate, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search messages..."
	si.Prompt = "/ "
	si.Width = width - 4

	f := folder
	return Model{
		list:  l,
		store: s,
		keys:  k,
		filter: store.MessageFilter{
			Folder:   &f,
			SortBy:   "date",
			SortDesc: true,
		},
		folder:      folder,
		analyzed:    analyzed,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init returns a command that loads the initial set of messages.
func (m Model) Init() tea.Cmd {
	return m.LoadMessages()
}

// Folder returns the folder currently shown.
func (m Model) Folder() string { return m.folder }

// Searching reports whether the search input has focus.
func (m Model) Searching() bool { return m.searchMode }

// SetFolder switches the view to another folder and reloads.
func (m *Model) SetFolder(folder string) tea.Cmd {
	m.folder = folder
	f := folder
	m.filter.Folder = &f
	m.list.Title = folder
	return m.LoadMessages()
}

// Selected returns the currently highlighted message, if any.
func (m Model) Selected() (model.MessageRecord, bool) {
	item, ok := m.list.SelectedItem().(MessageItem)
	if !ok {
		return model.MessageRecord{}, false
	}
	return item.Record, true
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case MessagesLoadedMsg:
		items := make([]list.Item, len(msg.Messages))
		for i, rec := range msg.Messages {
			items[i] = MessageItem{Record: rec}
		}
		// Refresh the analysis markers in place so the shared
		// delegate sees them.
		for k := range m.analyzed {
			delete(m.analyzed, k)
		}
		for k, v := range msg.Analyzed {
			m.analyzed[k] = v
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case ReadToggledMsg:
		return m, m.LoadMessages()

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		query := m.searchInput.Value()
		if query != "" {
			m.filter.Query = &query
		} else {
			m.filter.Query = nil
		}
		return m, m.LoadMessages()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.filter.Query = nil
		return m, m.LoadMessages()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(MessageItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMessageMsg{MessageID: item.Record.ID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.UnreadOnly):
		m.filter.UnreadOnly = !m.filter.UnreadOnly
		return m, m.LoadMessages()

	case key.Matches(msg, m.keys.ToggleRead):
		item, ok := m.list.SelectedItem().(MessageItem)
		if !ok {
			return m, nil
		}
		return m, m.toggleRead(item.Record)
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn).
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// toggleRead flips the read flag of a message in the cache.
func (m Model) toggleRead(rec model.MessageRecord) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		read := !rec.Read
		if err := s.SetRead(context.Background(), rec.ID, read); err != nil {
			return ReadToggledMsg{MessageID: rec.ID, Read: rec.Read}
		}
		return ReadToggledMsg{MessageID: rec.ID, Read: read}
	}
}

// View renders the inbox view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when no messages are available.
func (m Model) renderEmptyState() string {
	hasFilters := m.filter.UnreadOnly || m.filter.Query != nil

	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if hasFilters {
		return style.Render("No matching messages.\nTry adjusting your filters.")
	}

	return style.Render(
		"No messages in this folder.\n\n" +
			"Press r to refresh, or c to connect an account.",
	)
}

// LoadMessages returns a tea.Cmd that queries the cache with the current
// filter and marks which messages already have analyses.
func (m Model) LoadMessages() tea.Cmd {
	filter := m.filter
	s := m.store
	return func() tea.Msg {
		ctx := context.Background()
		msgs, err := s.GetMessages(ctx, filter)
		if err != nil {
			return MessagesLoadedMsg{}
		}

		analyzed := make(map[string]bool)
		if analyses, err := s.GetAnalyses(ctx); err == nil {
			for _, a := range analyses {
				analyzed[a.MessageID] = true
			}
		}

		return MessagesLoadedMsg{Messages: msgs, Analyzed: analyzed}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
