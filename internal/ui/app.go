package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/apptremind/remindctl/internal/gateway"
	"github.com/apptremind/remindctl/internal/prefs"
	"github.com/apptremind/remindctl/internal/session"
)

// Session is the part of session.Facade the console drives.
type Session interface {
	Login(ctx context.Context, email, password string) bool
	Hydrate(ctx context.Context) (session.Identity, bool)
	Logout(ctx context.Context) error
	Snapshot() session.Snapshot
}

// HealthChecker probes backend liveness.
type HealthChecker interface {
	Healthz(ctx context.Context) (gateway.Health, error)
}

// Refresher forces a token rotation.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// View represents the current screen.
type View int

const (
	ViewLogin View = iota
	ViewDashboard
)

const (
	fieldEmail = iota
	fieldPassword
)

// Options configures the console.
type Options struct {
	Context   context.Context
	Session   Session
	Health    HealthChecker
	Refresher Refresher
	BaseURL   string
	PollTick  time.Duration
	ThemeName string // empty uses the saved preference
	PrefsPath string
}

// Model is the root console state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	session   Session
	health    HealthChecker
	refresher Refresher
	baseURL   string
	pollTick  time.Duration
	prefsPath string

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	showHelp    bool
	busy        bool
	spinner     spinner.Model

	// Login form
	inputs   [2]textinput.Model
	focusIdx int

	// Data state
	snapshot    session.Snapshot
	healthState string
	healthErr   error
	lastChecked time.Time
	notice      string
	failure     error
}

// New creates a new console model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = 30 * time.Second
	}

	saved := prefs.Load(opts.PrefsPath)
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = saved.Theme
	}

	m := Model{
		ctx:         ctx,
		session:     opts.Session,
		health:      opts.Health,
		refresher:   opts.Refresher,
		baseURL:     opts.BaseURL,
		pollTick:    pollTick,
		prefsPath:   opts.PrefsPath,
		theme:       GetTheme(themeName),
		currentView: ViewLogin,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.initInputs(saved.LastEmail)

	if opts.Session != nil {
		m.snapshot = opts.Session.Snapshot()
		if m.snapshot.HasIdentity {
			m.currentView = ViewDashboard
		}
	}
	return m
}

func (m *Model) initInputs(email string) {
	emailInput := textinput.New()
	emailInput.Placeholder = "you@business.com"
	emailInput.Prompt = ""
	emailInput.CharLimit = 254
	emailInput.SetValue(email)

	passwordInput := textinput.New()
	passwordInput.Placeholder = "password"
	passwordInput.Prompt = ""
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.EchoCharacter = '•'
	passwordInput.CharLimit = 128

	m.inputs = [2]textinput.Model{emailInput, passwordInput}
	m.focusIdx = fieldEmail
	if email != "" {
		m.focusIdx = fieldPassword
	}
	m.focusInput()
}

func (m *Model) focusInput() {
	for i := range m.inputs {
		if i == m.focusIdx {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		tickCmd(m.pollTick),
		healthCmd(m.ctx, m.health),
		snapshotCmd(m.session),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(tickCmd(m.pollTick), healthCmd(m.ctx, m.health), snapshotCmd(m.session))

	case snapshotMsg:
		m.applySnapshot(session.Snapshot(msg))
		return m, nil

	case healthMsg:
		m.healthState = msg.state
		m.healthErr = msg.err
		m.lastChecked = msg.at
		return m, nil

	case loginResultMsg:
		m.busy = false
		if !msg.ok {
			m.failure = msg.snapshot.LastError
			if m.failure == nil {
				m.failure = errors.New("sign in failed")
			}
			m.inputs[fieldPassword].SetValue("")
			m.focusIdx = fieldPassword
			m.focusInput()
			return m, nil
		}
		m.failure = nil
		m.notice = "Signed in"
		m.inputs[fieldPassword].SetValue("")
		m.savePrefs()
		m.applySnapshot(msg.snapshot)
		m.currentView = ViewDashboard
		return m, nil

	case refreshResultMsg:
		m.busy = false
		if msg.ok {
			m.notice = "Tokens rotated"
			m.failure = nil
		} else {
			m.notice = ""
			m.failure = errors.New("refresh rejected, sign in again")
		}
		m.applySnapshot(msg.snapshot)
		return m, nil

	case logoutResultMsg:
		m.busy = false
		m.failure = msg.err
		m.notice = "Signed out"
		m.applySnapshot(msg.snapshot)
		m.currentView = ViewLogin
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.currentView == ViewLogin {
		return m.updateInputs(msg)
	}
	return m, nil
}

// applySnapshot updates identity state and switches screens when the session
// appears or disappears.
func (m *Model) applySnapshot(snap session.Snapshot) {
	m.snapshot = snap
	switch {
	case snap.HasIdentity && m.currentView == ViewLogin && !m.busy:
		m.currentView = ViewDashboard
	case !snap.HasIdentity && m.currentView == ViewDashboard:
		m.currentView = ViewLogin
		m.focusInput()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.currentView == ViewLogin {
		return m.handleLoginKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		return m, nil
	case m.busy:
		return m, nil
	case key.Matches(msg, keys.Refresh):
		if m.refresher == nil {
			return m, nil
		}
		m.busy = true
		m.notice = ""
		return m, refreshCmd(m.ctx, m.refresher, m.session)
	case key.Matches(msg, keys.Reload):
		m.busy = true
		return m, hydrateCmd(m.ctx, m.session)
	case key.Matches(msg, keys.Logout):
		m.busy = true
		return m, logoutCmd(m.ctx, m.session)
	}
	return m, nil
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.NextField):
		m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
		m.focusInput()
		return m, nil
	case key.Matches(msg, keys.PrevField):
		m.focusIdx = (m.focusIdx + len(m.inputs) - 1) % len(m.inputs)
		m.focusInput()
		return m, nil
	case msg.String() == "esc":
		return m, tea.Quit
	case key.Matches(msg, keys.Submit):
		if m.busy {
			return m, nil
		}
		email := strings.TrimSpace(m.inputs[fieldEmail].Value())
		password := m.inputs[fieldPassword].Value()
		if email == "" || password == "" {
			m.failure = errors.New("email and password are required")
			return m, nil
		}
		if m.focusIdx == fieldEmail {
			m.focusIdx = fieldPassword
			m.focusInput()
			return m, nil
		}
		m.busy = true
		m.failure = nil
		return m, loginCmd(m.ctx, m.session, email, password)
	}
	return m.updateInputs(msg)
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
	return m, cmd
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, prefs.Prefs{
		Theme:     m.theme.Name,
		LastEmail: strings.TrimSpace(m.inputs[fieldEmail].Value()),
	})
}

// Messages

type tickMsg time.Time

type snapshotMsg session.Snapshot

type healthMsg struct {
	state string
	err   error
	at    time.Time
}

type loginResultMsg struct {
	ok       bool
	snapshot session.Snapshot
}

type refreshResultMsg struct {
	ok       bool
	snapshot session.Snapshot
}

type logoutResultMsg struct {
	err      error
	snapshot session.Snapshot
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func snapshotCmd(s Session) tea.Cmd {
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotMsg(s.Snapshot())
	}
}

func healthCmd(ctx context.Context, h HealthChecker) tea.Cmd {
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		health, err := h.Healthz(ctx)
		if err != nil {
			return healthMsg{state: "down", err: err, at: time.Now()}
		}
		state, _ := health["status"].(string)
		if state == "" {
			state = "ok"
		}
		return healthMsg{state: state, at: time.Now()}
	}
}

func loginCmd(ctx context.Context, s Session, email, password string) tea.Cmd {
	return func() tea.Msg {
		ok := s.Login(ctx, email, password)
		return loginResultMsg{ok: ok, snapshot: s.Snapshot()}
	}
}

func hydrateCmd(ctx context.Context, s Session) tea.Cmd {
	return func() tea.Msg {
		_, ok := s.Hydrate(ctx)
		return refreshResultMsg{ok: ok, snapshot: s.Snapshot()}
	}
}

func refreshCmd(ctx context.Context, r Refresher, s Session) tea.Cmd {
	return func() tea.Msg {
		ok := r.Refresh(ctx)
		if ok {
			// Re-read claims so the expiry reflects the new access token.
			s.Hydrate(ctx)
		}
		return refreshResultMsg{ok: ok, snapshot: s.Snapshot()}
	}
}

func logoutCmd(ctx context.Context, s Session) tea.Cmd {
	return func() tea.Msg {
		err := s.Logout(ctx)
		return logoutResultMsg{err: err, snapshot: s.Snapshot()}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	if opts.Session == nil {
		return errors.New("console requires a session")
	}
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
