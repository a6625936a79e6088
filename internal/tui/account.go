package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bookbazaar/bazaar/internal/auth"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

type authMode int

const (
	modeSignIn authMode = iota
	modeSignUp
)

// Account inputs. Username is only shown in sign-up mode.
const (
	acctEmail = iota
	acctPassword
	acctUsername
	numAcctInputs
)

// sessionChangedMsg announces a new session (or nil after sign-out) to every view.
type sessionChangedMsg struct {
	sess *domain.Session
	note string
}

type signedUpMsg struct {
	user *domain.User
	err  error
}

type signInFailedMsg struct {
	err error
}

type accountModel struct {
	auth      *auth.Service
	sess      *domain.Session
	mode      authMode
	inputs    [numAcctInputs]textinput.Model
	focus     int
	focused   bool
	busy      bool
	err       error
	statusMsg string
	spinner   spinner.Model
	width     int
}

func newAccountModel(as *auth.Service) accountModel {
	m := accountModel{auth: as}
	placeholders := [numAcctInputs]string{"you@college.edu", "password", "username"}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 120
		ti.Prompt = ""
		ti.Width = 36
		m.inputs[i] = ti
	}
	m.inputs[acctPassword].EchoMode = textinput.EchoPassword
	m.inputs[acctPassword].EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle
	m.spinner = sp
	return m
}

func (m accountModel) fields() int {
	if m.mode == modeSignUp {
		return numAcctInputs
	}
	return acctUsername
}

// focusForm puts the cursor in the form so typing goes to the inputs.
func (m accountModel) focusForm() (accountModel, tea.Cmd) {
	if m.sess != nil {
		return m, nil
	}
	m.focused = true
	return m, m.inputs[m.focus].Focus()
}

func (m accountModel) blurForm() accountModel {
	m.focused = false
	m.inputs[m.focus].Blur()
	return m
}

func (m accountModel) setFocus(i int) (accountModel, tea.Cmd) {
	m.inputs[m.focus].Blur()
	n := m.fields()
	m.focus = (i + n) % n
	return m, m.inputs[m.focus].Focus()
}

func (m accountModel) signIn() tea.Cmd {
	as := m.auth
	email := strings.TrimSpace(m.inputs[acctEmail].Value())
	password := m.inputs[acctPassword].Value()
	return func() tea.Msg {
		sess, err := as.SignIn(context.Background(), email, password)
		if err != nil {
			return signInFailedMsg{err: err}
		}
		return sessionChangedMsg{sess: sess, note: "signed in as " + sess.User.DisplayName()}
	}
}

func (m accountModel) signUp() tea.Cmd {
	as := m.auth
	email := strings.TrimSpace(m.inputs[acctEmail].Value())
	password := m.inputs[acctPassword].Value()
	username := strings.TrimSpace(m.inputs[acctUsername].Value())
	return func() tea.Msg {
		u, err := as.SignUp(context.Background(), email, password, username)
		return signedUpMsg{user: u, err: err}
	}
}

func (m accountModel) signOut() tea.Cmd {
	as, sess := m.auth, m.sess
	return func() tea.Msg {
		note := "signed out"
		if err := as.SignOut(context.Background(), sess); err != nil {
			note = "signed out locally"
		}
		return sessionChangedMsg{sess: nil, note: note}
	}
}

func (m accountModel) Update(msg tea.Msg) (accountModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case sessionChangedMsg:
		m.busy = false
		m.sess = msg.sess
		m.statusMsg = msg.note
		m.err = nil
		m = m.blurForm()
		if msg.sess != nil {
			m.inputs[acctPassword].SetValue("")
		}
		return m, nil

	case signInFailedMsg:
		m.busy = false
		m.err = msg.err
		m.inputs[acctPassword].SetValue("")
		return m.setFocus(acctPassword)

	case signedUpMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.mode = modeSignIn
		m.inputs[acctPassword].SetValue("")
		m.inputs[acctUsername].SetValue("")
		m.statusMsg = fmt.Sprintf("account created for %s. confirm your email, then sign in.", msg.user.Email)
		return m.setFocus(acctPassword)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		if m.sess != nil {
			if msg.String() == "o" {
				m.busy = true
				return m, tea.Batch(m.spinner.Tick, m.signOut())
			}
			return m, nil
		}
		if !m.focused {
			switch msg.String() {
			case "enter", "i":
				return m.focusForm()
			case "s":
				m.mode = 1 - m.mode
				m.focus = acctEmail
				return m.focusForm()
			}
			return m, nil
		}
		return m.updateForm(msg)
	}

	if m.focused {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m accountModel) updateForm(msg tea.KeyMsg) (accountModel, tea.Cmd) {
	m.err = nil
	switch msg.String() {
	case "esc":
		return m.blurForm(), nil
	case "tab", "down":
		return m.setFocus(m.focus + 1)
	case "shift+tab", "up":
		return m.setFocus(m.focus - 1)
	case "ctrl+t":
		m.mode = 1 - m.mode
		if m.focus >= m.fields() {
			return m.setFocus(acctEmail)
		}
		return m, nil
	case "enter":
		if m.focus < m.fields()-1 {
			return m.setFocus(m.focus + 1)
		}
		return m.submit()
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m accountModel) submit() (accountModel, tea.Cmd) {
	if strings.TrimSpace(m.inputs[acctEmail].Value()) == "" || m.inputs[acctPassword].Value() == "" {
		m.err = auth.ErrCredentialsRequired
		return m, nil
	}
	if m.mode == modeSignUp && strings.TrimSpace(m.inputs[acctUsername].Value()) == "" {
		m.err = auth.ErrUsernameRequired
		return m, nil
	}
	m.busy = true
	m.statusMsg = ""
	if m.mode == modeSignUp {
		return m, tea.Batch(m.spinner.Tick, m.signUp())
	}
	return m, tea.Batch(m.spinner.Tick, m.signIn())
}

func (m accountModel) View() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.sess != nil {
		u := m.sess.User
		b.WriteString("  " + selectedStyle.Render(u.DisplayName()) + "\n")
		b.WriteString("  " + dimStyle.Render(u.Email) + "\n\n")
		if !m.sess.ExpiresAt.IsZero() {
			b.WriteString("  " + metaStyle.Render("session valid until "+m.sess.ExpiresAt.Local().Format("Jan 2 15:04")) + "\n")
		}
		b.WriteString("  " + dimStyle.Render("o to sign out") + "\n")
	} else {
		title := "Sign in"
		alt := "no account? s to sign up"
		if m.mode == modeSignUp {
			title = "Create an account"
			alt = "have an account? s to sign in"
		}
		b.WriteString("  " + selectedStyle.Render(title) + "  " + metaStyle.Render(alt) + "\n\n")
		labels := [numAcctInputs]string{"email", "password", "username"}
		for i := 0; i < m.fields(); i++ {
			b.WriteString(m.label(labels[i], m.focused && m.focus == i) + m.inputs[i].View() + "\n")
		}
		if !m.focused {
			b.WriteString("\n  " + dimStyle.Render("enter to start typing") + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.busy:
		b.WriteString("  " + m.spinner.View() + dimStyle.Render(" working...") + "\n")
	case m.err != nil:
		msg := m.err.Error()
		if errors.Is(m.err, auth.ErrSessionIssue) {
			msg = auth.ErrSessionIssue.Error()
		}
		b.WriteString("  " + errStyle.Render(msg) + "\n")
	case m.statusMsg != "":
		b.WriteString("  " + okStyle.Render(m.statusMsg) + "\n")
	}
	return b.String()
}

func (m accountModel) label(label string, focused bool) string {
	padded := fmt.Sprintf("%-10s", label)
	if focused {
		return "  " + inputPromptStyle.Render("▸ "+padded)
	}
	return "    " + dimStyle.Render(padded)
}

func (m accountModel) helpKeys() string {
	switch {
	case m.sess != nil:
		return helpEntry("o", "sign out")
	case m.focused:
		return helpEntry("tab", "next") + "  " + helpEntry("enter", "submit") + "  " + helpEntry("ctrl+t", "sign in/up") + "  " + helpEntry("esc", "nav")
	}
	return helpEntry("enter", "type") + "  " + helpEntry("s", "sign in/up")
}
