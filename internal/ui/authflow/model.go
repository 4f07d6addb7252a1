package authflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailscope/internal/credential"
	"github.com/nhle/mailscope/internal/identity"
	"github.com/nhle/mailscope/internal/keys"
	"github.com/nhle/mailscope/internal/theme"
)

// FlowMode represents the current step of the connect flow.
type FlowMode int

const (
	ModeClientForm FlowMode = iota // Client id / secret entry
	ModeAwaitCode                  // Show auth URL, wait for pasted code
	ModeExchanging                 // Exchanging the code for a token
	ModeResult                     // Show outcome
)

// DoneMsg signals the connect flow is finished. Authenticated reflects
// whether a token was obtained and stored; ClientID is the id the user
// entered, so the application can persist it for the next run.
type DoneMsg struct {
	Authenticated bool
	ClientID      string
}

// exchangedMsg carries the result of the code exchange.
type exchangedMsg struct {
	token identity.Token
	err   error
}

// ClientFactory builds an OAuth client from the entered credentials. The
// application supplies it so the flow stays free of endpoint wiring.
type ClientFactory func(clientID, clientSecret string) identity.OAuth

// Model walks the user through connecting a mail account: client
// credentials, the provider consent URL, and the pasted authorization
// code.
type Model struct {
	mode    FlowMode
	coord   *identity.Coordinator
	factory ClientFactory
	scope   string

	clientForm *huh.Form
	codeForm   *huh.Form

	formClientID string
	formSecret   string
	formCode     string

	oauth    identity.OAuth
	authURL  string
	verifier string
	state    string

	resultErr error
	spinner   spinner.Model
	statusMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates a connect-flow model. clientID pre-fills the form when the
// provider was configured before.
func New(coord *identity.Coordinator, factory ClientFactory, clientID, scope string, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		mode:         ModeClientForm,
		coord:        coord,
		factory:      factory,
		scope:        scope,
		formClientID: clientID,
		spinner:      sp,
		keys:         k,
		width:        width,
		height:       height,
	}
	m.clientForm = m.buildClientForm()
	return m
}

// Init starts the client credential form.
func (m Model) Init() tea.Cmd {
	return m.clientForm.Init()
}

// Update handles messages for the connect flow.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case exchangedMsg:
		if msg.err != nil {
			m.resultErr = msg.err
			m.mode = ModeResult
			return m, nil
		}
		m.coord.StoreToken(msg.token)
		m.resultErr = nil
		m.mode = ModeResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeExchanging {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == ModeResult {
			switch msg.String() {
			case "enter", "esc":
				authed := m.resultErr == nil
				clientID := m.formClientID
				return m, func() tea.Msg {
					return DoneMsg{Authenticated: authed, ClientID: clientID}
				}
			}
			return m, nil
		}
		if m.mode == ModeExchanging {
			return m, nil
		}
	}

	return m.updateActiveForm(msg)
}

// updateActiveForm dispatches messages to the form for the current step.
func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeClientForm:
		if m.clientForm == nil {
			return m, nil
		}
		mdl, cmd := m.clientForm.Update(msg)
		if f, ok := mdl.(*huh.Form); ok {
			m.clientForm = f
		}
		if m.clientForm.State == huh.StateCompleted {
			return m.startAuthorization()
		}
		if m.clientForm.State == huh.StateAborted {
			return m, func() tea.Msg { return DoneMsg{} }
		}
		return m, cmd

	case ModeAwaitCode:
		if m.codeForm == nil {
			return m, nil
		}
		mdl, cmd := m.codeForm.Update(msg)
		if f, ok := mdl.(*huh.Form); ok {
			m.codeForm = f
		}
		if m.codeForm.State == huh.StateCompleted {
			return m.startExchange()
		}
		if m.codeForm.State == huh.StateAborted {
			return m, func() tea.Msg { return DoneMsg{} }
		}
		return m, cmd
	}
	return m, nil
}

// startAuthorization stores the client secret, builds the consent URL,
// and moves to the code entry step. A blank secret means a public PKCE
// client, so any previously stored secret is removed.
func (m Model) startAuthorization() (Model, tea.Cmd) {
	var err error
	if m.formSecret == "" {
		err = credential.DeleteClientSecret()
	} else {
		err = credential.SetClientSecret(m.formSecret)
	}
	if err != nil {
		m.statusMsg = fmt.Sprintf("Error saving client secret: %v", err)
		m.mode = ModeClientForm
		m.clientForm = m.buildClientForm()
		return m, m.clientForm.Init()
	}

	m.oauth = m.factory(m.formClientID, m.formSecret)
	authURL, state, verifier, err := m.oauth.AuthorizationURL(m.scope)
	if err != nil {
		m.resultErr = err
		m.mode = ModeResult
		return m, nil
	}

	m.authURL = authURL
	m.state = state
	m.verifier = verifier
	m.mode = ModeAwaitCode
	m.formCode = ""
	m.codeForm = m.buildCodeForm()
	return m, m.codeForm.Init()
}

// startExchange trades the pasted code for a token.
func (m Model) startExchange() (Model, tea.Cmd) {
	m.mode = ModeExchanging

	oauth := m.oauth
	code := strings.TrimSpace(m.formCode)
	verifier := m.verifier
	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			token, err := oauth.ExchangeCode(context.Background(), code, verifier)
			return exchangedMsg{token: token, err: err}
		},
	)
}

// --- Forms ---

func (m *Model) buildClientForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Client ID").
				Description("OAuth client id from your provider console").
				Placeholder("xxxxxxxx.apps.googleusercontent.com").
				Value(&m.formClientID).
				Validate(validateRequired("Client ID")),
			huh.NewInput().
				Title("Client Secret").
				Description("Stored in the system keyring, never on disk. Leave blank for a public PKCE client").
				EchoMode(huh.EchoModePassword).
				Value(&m.formSecret),
		),
	).WithWidth(m.formWidth())
}

func (m *Model) buildCodeForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Authorization Code").
				Description("Paste the code shown after granting access").
				Value(&m.formCode).
				Validate(validateRequired("Authorization Code")),
		),
	).WithWidth(m.formWidth())
}

// --- View ---

// View renders the current step of the flow.
func (m Model) View() string {
	switch m.mode {
	case ModeClientForm:
		return m.viewForm(m.clientForm, m.statusMsg)
	case ModeAwaitCode:
		return m.viewAwaitCode()
	case ModeExchanging:
		return m.viewExchanging()
	case ModeResult:
		return m.viewResult()
	default:
		return ""
	}
}

func (m Model) viewForm(f *huh.Form, status string) string {
	if f == nil {
		return ""
	}

	content := f.View()
	if status != "" {
		statusStyle := lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true)
		content = lipgloss.JoinVertical(
			lipgloss.Left, content, "", statusStyle.Render(status),
		)
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m Model) viewAwaitCode() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	urlStyle := lipgloss.NewStyle().
		Foreground(theme.ColorBlue).
		Underline(true)
	hintStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Grant access in your browser"),
		hintStyle.Render("Open this URL, sign in, and approve the requested access:"),
		"",
		urlStyle.Render(m.authURL),
		"",
		m.codeForm.View(),
	)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m Model) viewExchanging() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	return style.Render(fmt.Sprintf(
		"%s Exchanging authorization code...",
		m.spinner.View(),
	))
}

func (m Model) viewResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	var content string
	if m.resultErr != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Connection failed") + "\n\n" +
			m.resultErr.Error() + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("enter/esc back")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		content = okStyle.Render("Account connected") + "\n\n" +
			"A token is stored for this session.\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("enter/esc back")
	}

	return style.Render(content)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// validateRequired rejects blank input for the named field.
func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
