package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/nhle/mailscope/internal/analyzer"
	"github.com/nhle/mailscope/internal/identity"
	"github.com/nhle/mailscope/internal/ingest"
	"github.com/nhle/mailscope/internal/model"
	"github.com/nhle/mailscope/internal/store"
	appsync "github.com/nhle/mailscope/internal/sync"
	"github.com/nhle/mailscope/internal/thread"
	"github.com/nhle/mailscope/internal/ui"
	"github.com/nhle/mailscope/internal/ui/authflow"
	helpview "github.com/nhle/mailscope/internal/ui/help"
	"github.com/nhle/mailscope/internal/ui/inbox"
	insightsview "github.com/nhle/mailscope/internal/ui/insights"
	"github.com/nhle/mailscope/internal/ui/reader"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewReader
	ViewInsights
	ViewAuth
	ViewHelp
)

// foldersLoadedMsg carries the discovered folder names.
type foldersLoadedMsg struct {
	folders []string
}

// threadAnalyzedMsg is sent after a thread analysis finished.
type threadAnalyzedMsg struct {
	messageID string
	err       error
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and access to the persistence layer.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	store        *store.SQLiteStore
	cfg          *model.AppConfig
	cfgPath      string
	coord        *identity.Coordinator
	mailbox      ingest.Ingestor
	analyzer     analyzer.Analyzer
	keys         *KeyMap

	inbox        inbox.Model
	reader       reader.Model
	insightsView insightsview.Model
	helpView     helpview.Model
	authView     authflow.Model

	poller *appsync.Poller
	remote bool

	folders   []string
	folderIdx int

	ready     bool
	statusMsg string
}

// New creates the root application model. remote marks a mailbox that
// requires OAuth credentials; local maildirs poll unconditionally.
func New(
	s *store.SQLiteStore,
	cfg *model.AppConfig,
	cfgPath string,
	coord *identity.Coordinator,
	mailbox ingest.Ingestor,
	an analyzer.Analyzer,
	remote bool,
) Model {
	keys := DefaultKeyMap()

	var auth appsync.Authenticator
	if remote {
		auth = coord
	}
	interval := time.Duration(cfg.Display.PollIntervalSec) * time.Second
	folder := cfg.Mailbox.Folder
	p := appsync.New(s, mailbox, an, auth, folder, interval)

	return Model{
		currentView:  ViewInbox,
		store:        s,
		cfg:          cfg,
		cfgPath:      cfgPath,
		coord:        coord,
		mailbox:      mailbox,
		analyzer:     an,
		keys:         keys,
		inbox:        inbox.New(s, keys, folder, 80, 24),
		reader:       reader.New(s, keys, 80, 24),
		insightsView: insightsview.New(s, keys, 80, 24),
		helpView:     helpview.New(keys, 80, 24),
		poller:       p,
		remote:       remote,
		folders:      []string{folder},
	}
}

// Init loads the cached inbox, discovers folders, and starts polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.inbox.Init(),
		m.loadFolders(),
		m.poller.Start(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.inbox.SetSize(contentWidth, contentHeight)
		m.reader.SetSize(contentWidth, contentHeight)
		m.insightsView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		if m.currentView == ViewAuth {
			m.authView.SetSize(contentWidth, contentHeight)
		}
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case foldersLoadedMsg:
		if len(msg.folders) > 0 {
			m.folders = msg.folders
			m.folderIdx = indexOf(msg.folders, m.inbox.Folder())
		}
		return m, nil

	case appsync.SyncResultMsg:
		if msg.AuthError != nil {
			m.statusMsg = msg.AuthError.Message
		} else if msg.Error != nil {
			m.statusMsg = describeError(msg.Error)
		} else {
			m.statusMsg = ""
		}

		// After a sync completes, reload the inbox from the cache.
		cmd := m.inbox.LoadMessages()
		waitCmd := m.poller.WaitForNextResult()
		return m, tea.Batch(cmd, waitCmd)

	case inbox.SelectedMessageMsg:
		m.previousView = m.currentView
		m.currentView = ViewReader
		m.reader.SetLoading(true)
		return m, m.reader.Open(msg.MessageID)

	case reader.BackMsg:
		m.currentView = ViewInbox
		// Opening marks messages read, so the list needs a reload.
		return m, m.inbox.LoadMessages()

	case reader.AnalyzeRequestMsg:
		m.statusMsg = "analyzing thread..."
		return m, m.analyzeThread(msg.MessageID)

	case threadAnalyzedMsg:
		if msg.err != nil {
			m.statusMsg = describeError(msg.err)
			return m, nil
		}
		m.statusMsg = ""
		m.reader.SetLoading(true)
		return m, m.reader.Open(msg.messageID)

	case insightsview.BackMsg:
		m.currentView = m.previousView
		return m, nil

	case authflow.DoneMsg:
		m.currentView = ViewInbox
		if msg.Authenticated {
			m.statusMsg = ""
			if msg.ClientID != "" && msg.ClientID != m.cfg.Provider.ClientID {
				m.cfg.Provider.ClientID = msg.ClientID
				if err := model.SaveConfig(m.cfgPath, m.cfg); err != nil {
					slog.Warn("saving provider config", "error", err)
				}
			}
			m.poller.Refresh("")
			return m, m.inbox.LoadMessages()
		}
		return m, nil

	case tea.KeyMsg:
		// Global keys that work regardless of current view. Key input
		// belongs to forms while the connect flow is active.
		if m.currentView == ViewAuth && msg.String() != "ctrl+c" {
			return m.updateActiveView(msg)
		}
		// Same for the inbox search input.
		if m.currentView == ViewInbox && m.inbox.Searching() && msg.String() != "ctrl+c" {
			return m.updateActiveView(msg)
		}

		switch msg.String() {
		case "ctrl+c":
			m.poller.Stop()
			return m, tea.Quit

		case "q":
			if m.currentView == ViewInbox {
				m.poller.Stop()
				return m, tea.Quit
			}

		case "?":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case "r":
			if m.currentView == ViewInbox {
				m.poller.Refresh("")
				return m, m.inbox.LoadMessages()
			}

		case "tab":
			if m.currentView == ViewInbox && len(m.folders) > 1 {
				m.folderIdx = (m.folderIdx + 1) % len(m.folders)
				folder := m.folders[m.folderIdx]
				m.poller.SetFolder(folder)
				return m, m.inbox.SetFolder(folder)
			}

		case "i":
			if m.currentView == ViewInbox {
				m.previousView = m.currentView
				m.currentView = ViewInsights
				m.insightsView.SetLoading(true)
				return m, m.insightsView.Load()
			}

		case "c":
			if m.currentView == ViewInbox {
				m.previousView = m.currentView
				m.currentView = ViewAuth
				m.authView = authflow.New(
					m.coord,
					m.oauthFactory(),
					m.cfg.Provider.ClientID,
					m.cfg.Provider.Scope,
					m.keys,
					m.layout.ContentWidth(),
					m.layout.ContentHeight(),
				)
				return m, m.authView.Init()
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewReader:
		m.reader, cmd = m.reader.Update(msg)
	case ViewInsights:
		m.insightsView, cmd = m.insightsView.Update(msg)
	case ViewAuth:
		m.authView, cmd = m.authView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Mailscope", m.inbox.Folder(), m.authState(), m.syncState())
	content := m.renderContent()
	alert := m.statusMsg != "" && m.currentView == ViewInbox
	statusBar := m.layout.RenderStatusBar(m.keyHints(), alert)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewInbox:
		return m.inbox.View()
	case ViewReader:
		return m.reader.View()
	case ViewInsights:
		return m.insightsView.View()
	case ViewAuth:
		return m.authView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// authState labels the session for the header: empty for local
// mailboxes, connected/disconnected by the stored-token check for
// remote ones.
func (m Model) authState() string {
	if !m.remote {
		return ""
	}
	if _, ok := m.coord.ValidToken(); ok {
		return "connected"
	}
	return "disconnected"
}

// syncState labels the poller state for the header.
func (m Model) syncState() string {
	switch m.poller.Status().State {
	case appsync.SyncRunning:
		return "syncing"
	case appsync.SyncError:
		return "sync error"
	default:
		return "idle"
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show errors prominently when present.
	if m.statusMsg != "" && m.currentView == ViewInbox {
		return m.statusMsg
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewReader:
		return "esc back | a analyze thread | j/k scroll"
	case ViewInsights:
		return "esc back | j/k scroll"
	case ViewAuth:
		return "enter next | esc cancel"
	default:
		return "q quit | ? help | / search | enter open | m read | u unread only | tab folder | i insights"
	}
}

// oauthFactory builds OAuth clients against the configured or default
// provider endpoints.
func (m Model) oauthFactory() authflow.ClientFactory {
	eps := identity.GmailEndpoints()
	if m.cfg.Provider.AuthURL != "" {
		eps.AuthURL = m.cfg.Provider.AuthURL
	}
	if m.cfg.Provider.TokenURL != "" {
		eps.TokenURL = m.cfg.Provider.TokenURL
	}
	if m.cfg.Provider.ProbeURL != "" {
		eps.ProbeURL = m.cfg.Provider.ProbeURL
	}
	redirectURI := m.cfg.Provider.RedirectURI

	return func(clientID, clientSecret string) identity.OAuth {
		return identity.NewClient(clientID, clientSecret, redirectURI, eps)
	}
}

// loadFolders discovers mailbox folders, falling back to the folders
// already present in the cache.
func (m Model) loadFolders() tea.Cmd {
	mailbox := m.mailbox
	s := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		folders, err := mailbox.Folders(ctx)
		if err != nil || len(folders) == 0 {
			folders, _ = s.ListFolders(ctx)
		}
		return foldersLoadedMsg{folders: folders}
	}
}

// analyzeThread re-reads the message's folder, groups it into threads,
// and analyzes the conversation containing the given message.
func (m Model) analyzeThread(messageID string) tea.Cmd {
	mailbox := m.mailbox
	an := m.analyzer
	s := m.store
	folder := m.inbox.Folder()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		iter, err := mailbox.Messages(ctx, folder, 0)
		if err != nil {
			return threadAnalyzedMsg{messageID: messageID, err: err}
		}
		msgs, err := ingest.Collect(iter)
		if err != nil {
			return threadAnalyzedMsg{messageID: messageID, err: err}
		}

		var conversation []model.Message
		for _, group := range thread.Group(msgs) {
			for _, msg := range group {
				if msg.ID() == messageID {
					conversation = group
					break
				}
			}
			if conversation != nil {
				break
			}
		}
		if conversation == nil {
			return threadAnalyzedMsg{
				messageID: messageID,
				err:       errors.New("message not found in folder"),
			}
		}

		result, err := an.AnalyzeConversation(conversation)
		if err != nil {
			return threadAnalyzedMsg{messageID: messageID, err: err}
		}
		// Key the thread analysis to the opened message so the reader
		// finds it.
		result.MessageID = messageID
		if result.ID == "" {
			result.ID = uuid.NewString()
		}
		if err := s.SaveAnalysis(ctx, result); err != nil {
			return threadAnalyzedMsg{messageID: messageID, err: err}
		}
		return threadAnalyzedMsg{messageID: messageID}
	}
}

// describeError maps the error taxonomy to a short status-bar message.
func describeError(err error) string {
	var parseErr *model.ParseError
	switch {
	case identity.IsAuthError(err):
		return "authentication failed, please reconnect (c)"
	case ingest.IsConnectionError(err):
		return "mailbox or folder not found"
	case errors.As(err, &parseErr):
		if parseErr.File != "" {
			return "corrupt message: " + parseErr.File
		}
		return "corrupt message: " + parseErr.Reason
	case analyzer.IsAnalysisError(err):
		return "analysis failed: " + err.Error()
	default:
		return err.Error()
	}
}

// indexOf returns the position of s in list, or 0 when absent.
func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return 0
}
