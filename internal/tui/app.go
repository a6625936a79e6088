package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/bookbazaar/bazaar/internal/auth"
	"github.com/bookbazaar/bazaar/internal/market"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

// sessionCheckInterval is how often the access token's expiry is checked.
const sessionCheckInterval = 30 * time.Second

type sessionTickMsg time.Time

// sessionRefreshedMsg carries a renewed session for user; sess is nil when the
// refresh token was rejected.
type sessionRefreshedMsg struct {
	user uuid.UUID
	sess *domain.Session
	err  error
}

type view int

const (
	viewMarket view = iota
	viewSell
	viewDashboard
	viewAccount
	viewCheckout
)

// App is the root Bubbletea model. It owns the session and hands it to
// every view through sessionChangedMsg.
type App struct {
	svc        *market.Service
	authSvc    *auth.Service
	sess       *domain.Session
	view       view
	pending    view // destination after a gated redirect to the account view
	hasPending bool
	refreshing bool
	browse     browseModel
	sell       sellModel
	dash       dashboardModel
	account    accountModel
	checkout   checkoutModel
	status     string
	width      int
	height     int
}

// NewApp creates a new TUI application.
func NewApp(svc *market.Service, as *auth.Service) App {
	return App{
		svc:     svc,
		authSvc: as,
		browse:  newBrowseModel(svc),
		sell:    newSellModel(svc),
		dash:    newDashboardModel(svc),
		account: newAccountModel(as),
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.browse.Init(), a.restore(), tickSession())
}

func tickSession() tea.Cmd {
	return tea.Tick(sessionCheckInterval, func(t time.Time) tea.Msg {
		return sessionTickMsg(t)
	})
}

// refreshSession renews the session in the background once it is due.
func (a App) refreshSession() (App, tea.Cmd) {
	if a.sess == nil || a.authSvc == nil || a.refreshing || !a.authSvc.NeedsRefresh(a.sess) {
		return a, nil
	}
	a.refreshing = true
	as, sess := a.authSvc, a.sess
	return a, func() tea.Msg {
		fresh, err := as.Refresh(context.Background(), sess)
		return sessionRefreshedMsg{user: sess.User.ID, sess: fresh, err: err}
	}
}

// renewSession swaps in new tokens for the same user without resetting views.
func (a App) renewSession(sess *domain.Session) (App, tea.Cmd) {
	a.sess = sess
	a.browse.sess = sess
	a.sell.sess = sess
	a.account.sess = sess
	if a.checkout.sess != nil {
		a.checkout.sess = sess
	}
	var cmd tea.Cmd
	a.dash, cmd = a.dash.renew(sess)
	return a, cmd
}

// restore loads the persisted session, refreshing it when expired.
func (a App) restore() tea.Cmd {
	as := a.authSvc
	if as == nil {
		return nil
	}
	return func() tea.Msg {
		sess, err := as.Restore(context.Background())
		if err != nil {
			return sessionChangedMsg{note: "could not restore session: " + err.Error()}
		}
		if sess == nil {
			return sessionChangedMsg{}
		}
		return sessionChangedMsg{sess: sess, note: "welcome back, " + sess.User.DisplayName()}
	}
}

// Close releases the realtime feed.
func (a App) Close() {
	a.dash.close()
}

func gated(v view) bool {
	return v == viewSell || v == viewDashboard || v == viewCheckout
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + tabs(1) + status(1) + help(1) = 5 lines
		bodyMsg := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 5}
		a.browse, _ = a.browse.Update(bodyMsg)
		a.sell, _ = a.sell.Update(bodyMsg)
		a.dash, _ = a.dash.Update(bodyMsg)
		a.account, _ = a.account.Update(bodyMsg)
		a.checkout, _ = a.checkout.Update(bodyMsg)
		return a, nil

	case sessionChangedMsg:
		return a.setSession(msg)

	case sessionTickMsg:
		var cmd tea.Cmd
		a, cmd = a.refreshSession()
		return a, tea.Batch(cmd, tickSession())

	case sessionRefreshedMsg:
		a.refreshing = false
		if a.sess == nil || a.sess.User.ID != msg.user {
			return a, nil
		}
		if msg.err != nil {
			a.status = "could not refresh session, retrying"
			return a, nil
		}
		if msg.sess == nil {
			return a.setSession(sessionChangedMsg{note: "session expired, sign in again"})
		}
		return a.renewSession(msg.sess)

	case buyListingMsg:
		if a.sess == nil {
			return a.redirectToAccount(viewMarket, "sign in to place an order")
		}
		a.checkout = newCheckoutModel(a.svc, a.sess, msg.listing)
		a.checkout, _ = a.checkout.Update(tea.WindowSizeMsg{Width: a.width, Height: a.height - 5})
		a.view = viewCheckout
		a.status = ""
		return a, a.checkout.Init()

	case listingsLoadedMsg:
		var cmd tea.Cmd
		a.browse, cmd = a.browse.Update(msg)
		return a, cmd

	case listingCreatedMsg:
		var cmd tea.Cmd
		a.sell, cmd = a.sell.Update(msg)
		if msg.err != nil {
			return a, cmd
		}
		var dashCmd tea.Cmd
		a.dash, dashCmd = a.dash.reload()
		return a, tea.Batch(cmd, a.browse.load(), dashCmd)

	case listingDeletedMsg:
		var cmd tea.Cmd
		a.dash, cmd = a.dash.Update(msg)
		a.browse, _ = a.browse.Update(msg)
		return a, cmd

	case orderPlacedMsg:
		var cmd tea.Cmd
		a.checkout, cmd = a.checkout.Update(msg)
		if a.checkout.placed == nil {
			return a, cmd
		}
		var dashCmd tea.Cmd
		a.dash, dashCmd = a.dash.reload()
		return a, tea.Batch(cmd, dashCmd)

	case dashboardLoadedMsg, feedOpenedMsg, notificationMsg, feedClosedMsg, orderUpdatedMsg, notificationsReadMsg:
		var cmd tea.Cmd
		a.dash, cmd = a.dash.Update(msg)
		return a, cmd

	case signInFailedMsg, signedUpMsg:
		var cmd tea.Cmd
		a.account, cmd = a.account.Update(msg)
		return a, cmd

	case spinner.TickMsg:
		// Each spinner ignores ticks carrying another spinner's ID.
		var cmds [5]tea.Cmd
		a.browse, cmds[0] = a.browse.Update(msg)
		a.sell, cmds[1] = a.sell.Update(msg)
		a.dash, cmds[2] = a.dash.Update(msg)
		a.account, cmds[3] = a.account.Update(msg)
		a.checkout, cmds[4] = a.checkout.Update(msg)
		return a, tea.Batch(cmds[:]...)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if !a.isEditing() {
			switch msg.String() {
			case "q":
				return a, tea.Quit
			case "1":
				return a.switchTo(viewMarket)
			case "2":
				return a.switchTo(viewSell)
			case "3":
				return a.switchTo(viewDashboard)
			case "4":
				return a.switchTo(viewAccount)
			}
		}
		a.status = ""
	}

	var cmd tea.Cmd
	switch a.view {
	case viewMarket:
		a.browse, cmd = a.browse.Update(msg)
	case viewSell:
		a.sell, cmd = a.sell.Update(msg)
		if a.sell.cancelled {
			a.sell.cancelled = false
			a.view = viewMarket
		}
	case viewDashboard:
		a.dash, cmd = a.dash.Update(msg)
	case viewAccount:
		a.account, cmd = a.account.Update(msg)
	case viewCheckout:
		a.checkout, cmd = a.checkout.Update(msg)
		if a.checkout.closed {
			a.view = viewMarket
		}
	}
	return a, cmd
}

func (a App) switchTo(v view) (tea.Model, tea.Cmd) {
	if a.view == v {
		return a, nil
	}
	if gated(v) && a.sess == nil {
		return a.redirectToAccount(v, "sign in to continue")
	}
	a.view = v
	a.status = ""
	switch v {
	case viewSell:
		return a, a.sell.Init()
	case viewDashboard:
		var cmd tea.Cmd
		a.dash, cmd = a.dash.reload()
		return a, cmd
	}
	return a, nil
}

func (a App) redirectToAccount(after view, why string) (tea.Model, tea.Cmd) {
	a.view = viewAccount
	a.pending = after
	a.hasPending = true
	a.status = why
	var cmd tea.Cmd
	a.account, cmd = a.account.focusForm()
	return a, cmd
}

// setSession records the new session and broadcasts it to every view.
func (a App) setSession(msg sessionChangedMsg) (tea.Model, tea.Cmd) {
	a.sess = msg.sess
	var cmds [4]tea.Cmd
	a.browse, cmds[0] = a.browse.Update(msg)
	a.sell, cmds[1] = a.sell.Update(msg)
	a.dash, cmds[2] = a.dash.Update(msg)
	a.account, cmds[3] = a.account.Update(msg)

	switch {
	case msg.sess != nil && a.hasPending:
		a.view = a.pending
		a.hasPending = false
		a.status = msg.note
	case msg.sess == nil && gated(a.view):
		a.view = viewAccount
	}
	return a, tea.Batch(cmds[:]...)
}

func (a App) isEditing() bool {
	switch a.view {
	case viewMarket:
		return a.browse.searching
	case viewSell, viewCheckout:
		return true
	case viewAccount:
		return a.account.focused
	}
	return false
}

func (a App) View() string {
	// Header: centered logo, signed-in line below
	logo := logoStyle.Render("bazaar") + " " + metaStyle.Render("buy . sell . swap books")
	var who string
	if a.sess != nil {
		who = normalStyle.Render("@" + a.sess.User.DisplayName())
		if n := a.dash.unread(); n > 0 {
			who += "  " + unreadDotStyle.Render("●") + dimStyle.Render(fmt.Sprintf(" %d unread", n))
		}
	} else {
		who = dimStyle.Render("not signed in")
	}
	header := center(logo, a.width) + "\n" + center(who, a.width)

	type tabEntry struct {
		key  string
		name string
		v    view
	}
	tabs := []tabEntry{
		{"1", "Market", viewMarket},
		{"2", "Sell", viewSell},
		{"3", "Dashboard", viewDashboard},
		{"4", "Account", viewAccount},
	}

	colWidth := a.width / len(tabs)
	var tabBar strings.Builder
	for _, t := range tabs {
		active := t.v == a.view || (t.v == viewMarket && a.view == viewCheckout)
		var label string
		if active {
			label = accentStyle.Render(t.key) + " " + selectedStyle.Underline(true).Render(t.name)
		} else {
			label = metaStyle.Render(t.key) + " " + dimStyle.Render(t.name)
		}
		if t.v == viewDashboard && a.dash.unread() > 0 {
			label += " " + unreadDotStyle.Render("●")
		}
		labelWidth := lipgloss.Width(label)
		leftPad := (colWidth - labelWidth) / 2
		if leftPad < 0 {
			leftPad = 0
		}
		rightPad := colWidth - labelWidth - leftPad
		if rightPad < 0 {
			rightPad = 0
		}
		tabBar.WriteString(strings.Repeat(" ", leftPad) + label + strings.Repeat(" ", rightPad))
	}

	var body, help string
	switch a.view {
	case viewMarket:
		body = a.browse.View()
		switch {
		case a.browse.searching:
			help = " " + helpEntry("type", "filter") + "  " + helpEntry("enter", "done") + "  " + helpEntry("esc", "clear")
		case a.browse.detail:
			help = " " + helpEntry("1-4", "tabs") + "  " + helpEntry("b", "buy") + "  " + helpEntry("o", "photo") + "  " + helpEntry("esc", "back") + "  " + helpEntry("q", "quit")
		default:
			help = " " + helpEntry("1-4", "tabs") + "  " + helpEntry("j/k", "nav") + "  " + helpEntry("/", "search") + "  " + helpEntry("c", "category") + "  " + helpEntry("enter", "view") + "  " + helpEntry("b", "buy") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("q", "quit")
		}
	case viewSell:
		body = a.sell.View()
		help = " " + a.sell.helpKeys()
	case viewDashboard:
		body = a.dash.View()
		help = " " + helpEntry("1-4", "tabs") + "  " + a.dash.helpKeys() + "  " + helpEntry("q", "quit")
	case viewAccount:
		body = a.account.View()
		if a.account.focused {
			help = " " + a.account.helpKeys()
		} else {
			help = " " + helpEntry("1-4", "tabs") + "  " + a.account.helpKeys() + "  " + helpEntry("q", "quit")
		}
	case viewCheckout:
		body = a.checkout.View()
		help = " " + a.checkout.helpKeys()
	}

	statusBar := ""
	if a.status != "" {
		statusBar = " " + searchStyle.Render(a.status)
	}

	// Chrome budget: header(2) + tabs(1) + status(1) + help(1) = 5 lines + body
	chrome := 5
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", header, tabBar.String(), body, statusBar, help)
}

func center(s string, width int) string {
	pad := (width - lipgloss.Width(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}
