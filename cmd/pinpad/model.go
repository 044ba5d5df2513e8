package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/clock"
	"github.com/spec-kit/fieldops-console/internal/console"
)

// consoleApp is the set of console components one keypad session drives.
type consoleApp struct {
	session   *console.Session
	bootstrap *console.Bootstrap
	resolver  *console.Resolver
	keypad    *console.Keypad
	login     *console.PINLogin
	gate      *console.Gate
	rotation  *console.Rotation
	watchdog  *console.Watchdog
}

func newConsole(remote console.Remote, clk clock.Clock, staleMonths int, logger *zap.Logger) *consoleApp {
	session := console.NewSession()
	bootstrap := console.NewBootstrap(remote, session, logger)
	keypad := console.NewKeypad(console.LoginMinDigits)
	return &consoleApp{
		session:   session,
		bootstrap: bootstrap,
		resolver:  console.NewResolver(remote),
		keypad:    keypad,
		login:     console.NewPINLogin(remote, bootstrap, keypad),
		gate:      console.NewGate(session),
		rotation:  console.NewRotation(remote, session, clk, console.DefaultRotationDelay),
		watchdog:  console.NewWatchdog(remote, session, clk, staleMonths),
	}
}

type screen int

const (
	screenResolving screen = iota
	screenPIN
	screenRotate
	screenHome
	screenBlocked
)

type (
	resolvedMsg struct {
		resolution *console.Resolution
		err        error
	}
	verifiedMsg struct {
		pin    string
		result *console.LoginResult
		err    error
	}
	rotatedMsg struct {
		target string
		err    error
	}
	watchdogMsg struct {
		decision console.Decision
		err      error
	}
	loggedOutMsg struct{ err error }
)

const (
	fieldCurrent = iota
	fieldNew
	fieldConfirm
)

var fieldLabels = [3]string{"Current PIN", "New PIN", "Confirm PIN"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	maskStyle   = lipgloss.NewStyle().Bold(true).Padding(1, 2)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	focusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	frameStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 3)
)

type model struct {
	ctx  context.Context
	link console.Link
	app  *consoleApp

	screen     screen
	resolution *console.Resolution
	route      string
	banner     string
	notice     string
	busy       bool

	fields [3]string
	focus  int
}

func newModel(ctx context.Context, link console.Link, app *consoleApp) model {
	return model{ctx: ctx, link: link, app: app, screen: screenResolving}
}

func (m model) Init() tea.Cmd {
	return m.resolveCmd()
}

func (m model) resolveCmd() tea.Cmd {
	return func() tea.Msg {
		res, err := m.app.resolver.Resolve(m.ctx, m.link)
		return resolvedMsg{resolution: res, err: err}
	}
}

func (m model) verifyCmd(sub console.Submission) tea.Cmd {
	return func() tea.Msg {
		result, err := m.app.login.Verify(m.ctx, sub)
		return verifiedMsg{pin: sub.PIN, result: result, err: err}
	}
}

func (m model) rotateCmd(form console.RotationForm) tea.Cmd {
	return func() tea.Msg {
		target, err := m.app.rotation.Submit(m.ctx, form)
		return rotatedMsg{target: target, err: err}
	}
}

func (m model) watchdogCmd() tea.Cmd {
	return func() tea.Msg {
		decision, err := m.app.watchdog.Check(m.ctx)
		return watchdogMsg{decision: decision, err: err}
	}
}

func (m model) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		return loggedOutMsg{err: m.app.bootstrap.Logout(m.ctx)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.screen {
		case screenPIN:
			return m.handlePINKeys(msg)
		case screenRotate:
			return m.handleRotateKeys(msg)
		case screenHome:
			return m.handleHomeKeys(msg)
		case screenBlocked:
			if msg.String() == "q" || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
		}
		return m, nil

	case resolvedMsg:
		if msg.err != nil {
			m.screen = screenBlocked
			m.banner = console.Reason(msg.err)
			return m, nil
		}
		m.resolution = msg.resolution
		m.app.login.SetResolution(msg.resolution)
		m.screen = screenPIN
		return m, nil

	case verifiedMsg:
		if errors.Is(msg.err, console.ErrAbandoned) {
			return m, nil
		}
		if msg.err != nil {
			m.notice = console.Reason(msg.err)
			return m, nil
		}
		m.fields = [3]string{msg.pin, "", ""}
		if len(msg.pin) != console.MaxPINDigits {
			m.fields[fieldCurrent] = ""
		}
		return m.navigate(msg.result.Next(), "")

	case rotatedMsg:
		m.busy = false
		if msg.err != nil {
			m.notice = console.Reason(msg.err)
			if errors.Is(msg.err, console.ErrNoSession) || errors.Is(msg.err, console.ErrSessionTerminated) {
				return m.signedOut(m.notice)
			}
			return m, nil
		}
		m.fields = [3]string{}
		return m.navigate(msg.target, "PIN updated.")

	case watchdogMsg:
		if msg.decision.Kind == console.Redirect {
			return m.navigate(msg.decision.Target, msg.decision.Message)
		}
		return m, nil

	case loggedOutMsg:
		if msg.err != nil {
			return m.signedOut("Signed out locally. " + console.Reason(msg.err))
		}
		return m.signedOut("Signed out.")
	}
	return m, nil
}

// navigate runs path through the route gate and switches screens accordingly.
func (m model) navigate(path, notice string) (tea.Model, tea.Cmd) {
	decision := m.app.gate.Check(path)
	m.notice = notice
	if decision.Message != "" {
		m.notice = decision.Message
	}
	if decision.Kind == console.Redirect {
		path = decision.Target
	}
	switch path {
	case console.RouteEntry:
		return m.signedOut(m.notice)
	case console.RouteChangePIN:
		m.screen = screenRotate
		m.focus = fieldCurrent
		if m.fields[fieldCurrent] != "" {
			m.focus = fieldNew
		}
		return m, nil
	case console.RouteUnauthorized:
		m.screen = screenHome
		m.route = path
		m.notice = "You do not have access to that screen."
		return m, nil
	}
	m.screen = screenHome
	m.route = path
	if decision.Kind == console.Wait {
		return m, nil
	}
	return m, m.watchdogCmd()
}

func (m model) signedOut(notice string) (tea.Model, tea.Cmd) {
	m.app.keypad.Reset()
	m.app.keypad.SetResolved(m.resolution != nil)
	m.screen = screenPIN
	m.route = ""
	m.notice = notice
	m.fields = [3]string{}
	return m, nil
}

func (m model) handlePINKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keypad := m.app.keypad
	switch msg.Type {
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if r > 127 {
				continue
			}
			m.notice = ""
			if sub, ok := keypad.Digit(byte(r)); ok {
				return m, m.verifyCmd(sub)
			}
		}
	case tea.KeyBackspace:
		keypad.Backspace()
	case tea.KeyEsc:
		keypad.Clear()
	case tea.KeyEnter:
		if sub, ok := keypad.Submit(); ok {
			return m, m.verifyCmd(sub)
		}
	}
	return m, nil
}

func (m model) handleRotateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if r >= '0' && r <= '9' && len(m.fields[m.focus]) < console.MaxPINDigits {
				m.fields[m.focus] += string(r)
			}
		}
	case tea.KeyBackspace:
		if f := m.fields[m.focus]; f != "" {
			m.fields[m.focus] = f[:len(f)-1]
		}
	case tea.KeyTab, tea.KeyDown:
		m.focus = (m.focus + 1) % len(m.fields)
	case tea.KeyShiftTab, tea.KeyUp:
		m.focus = (m.focus + len(m.fields) - 1) % len(m.fields)
	case tea.KeyEnter:
		if m.focus < fieldConfirm {
			m.focus++
			return m, nil
		}
		form := console.RotationForm{
			CurrentPIN: m.fields[fieldCurrent],
			NewPIN:     m.fields[fieldNew],
			ConfirmPIN: m.fields[fieldConfirm],
		}
		if err := console.ValidateRotationForm(form); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.busy = true
		m.notice = "Updating PIN..."
		return m, m.rotateCmd(form)
	}
	return m, nil
}

func (m model) handleHomeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "l":
		return m, m.logoutCmd()
	case "r":
		return m.navigate(m.route, "")
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	switch m.screen {
	case screenResolving:
		b.WriteString(faintStyle.Render("Resolving " + m.link.Path() + "..."))
	case screenBlocked:
		b.WriteString(errorStyle.Render(m.banner))
		b.WriteString("\n\n" + faintStyle.Render("Check the link and try again. q to quit."))
	case screenPIN:
		b.WriteString(m.pinView())
	case screenRotate:
		b.WriteString(m.rotateView())
	case screenHome:
		b.WriteString(m.homeView())
	}
	return frameStyle.Render(b.String()) + "\n"
}

func (m model) pinView() string {
	view := m.app.keypad.View()
	var b strings.Builder
	if m.resolution != nil {
		b.WriteString(titleStyle.Render(m.resolution.TenantName) + "\n")
	}
	b.WriteString(m.resolution.Greeting() + "\n")
	b.WriteString(maskStyle.Render(strings.Join(strings.Split(view.Mask, ""), " ")) + "\n")

	switch view.State {
	case console.KeypadSubmitting:
		b.WriteString(faintStyle.Render("Checking..."))
	case console.KeypadLocked:
		b.WriteString(errorStyle.Render(view.Reason))
	case console.KeypadRejected:
		line := view.Reason
		if view.AttemptsRemaining != nil {
			line += fmt.Sprintf(" (%d attempts remaining)", *view.AttemptsRemaining)
		}
		b.WriteString(errorStyle.Render(line))
	default:
		if m.notice != "" {
			b.WriteString(noticeStyle.Render(m.notice))
		}
	}
	hint := "digits to enter, backspace to delete, esc to clear"
	if view.CanSubmit {
		hint = "enter to sign in, " + hint
	}
	b.WriteString("\n\n" + faintStyle.Render(hint))
	return b.String()
}

func (m model) rotateView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Change PIN") + "\n\n")
	for i, label := range fieldLabels {
		line := fmt.Sprintf("%-12s %s", label, console.Mask(len(m.fields[i])))
		if i == m.focus {
			line = focusStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice))
	}
	b.WriteString("\n\n" + faintStyle.Render("tab to switch fields, enter to continue"))
	return b.String()
}

func (m model) homeView() string {
	snap := m.app.session.Snapshot()
	var b strings.Builder
	b.WriteString(titleStyle.Render(snap.Profile.DisplayName) + faintStyle.Render(" "+string(snap.Profile.Role)) + "\n\n")
	b.WriteString("Screen: " + m.route + "\n")
	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice))
	}
	b.WriteString("\n\n" + faintStyle.Render("r to re-enter, l to sign out, q to quit"))
	return b.String()
}
