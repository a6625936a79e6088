package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/bookbazaar/bazaar/internal/market"
	"github.com/bookbazaar/bazaar/pkg/client"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

type dashTab int

const (
	tabListings dashTab = iota
	tabOrders
	tabNotifications
	numDashTabs
)

var dashTabNames = [numDashTabs]string{"my listings", "orders", "notifications"}

// statusKeys maps order action keys to the status they request.
var statusKeys = map[string]domain.OrderStatus{
	"a": domain.StatusConfirmed,
	"x": domain.StatusCancelled,
	"c": domain.StatusCompleted,
}

var statusVerbs = map[domain.OrderStatus]string{
	domain.StatusConfirmed: "accept",
	domain.StatusCancelled: "decline",
	domain.StatusCompleted: "complete",
}

// Results carry the user they were fetched for; the dashboard drops any that
// arrive after the session changed hands.
type dashboardLoadedMsg struct {
	user     uuid.UUID
	dash     *market.Dashboard
	flushed  market.FlushResult
	flushErr error
	err      error
}

type listingDeletedMsg struct {
	user uuid.UUID
	id   uuid.UUID
	err  error
}

type orderUpdatedMsg struct {
	user  uuid.UUID
	order *domain.Order
	err   error
}

// notificationsReadMsg reports a mark-read; id is uuid.Nil for "all".
type notificationsReadMsg struct {
	user uuid.UUID
	id   uuid.UUID
	err  error
}

type feedOpenedMsg struct {
	user uuid.UUID
	feed *client.NotificationFeed
	err  error
}

type notificationMsg struct {
	feed *client.NotificationFeed
	n    domain.Notification
}

type feedClosedMsg struct {
	feed *client.NotificationFeed
	err  error
}

type dashboardModel struct {
	svc           *market.Service
	sess          *domain.Session
	tab           dashTab
	cursors       [numDashTabs]int
	listings      []domain.Listing
	orders        []domain.Order
	notifications []domain.Notification
	summary       domain.Summary
	loaded        bool
	loading       bool
	err           error
	confirmDelete bool
	feed          *client.NotificationFeed
	subscribing   bool
	statusMsg     string
	spinner       spinner.Model
	width         int
	height        int
}

func newDashboardModel(svc *market.Service) dashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle
	return dashboardModel{svc: svc, spinner: sp}
}

// reload starts a full fetch unless one is already running.
func (m dashboardModel) reload() (dashboardModel, tea.Cmd) {
	if m.sess == nil || m.loading {
		return m, nil
	}
	m.loading = true
	return m, tea.Batch(m.spinner.Tick, m.load())
}

// load replays queued notifications before fetching, so a recovered
// connection clears degraded orders on the next refresh.
func (m dashboardModel) load() tea.Cmd {
	svc, sess := m.svc, m.sess
	return func() tea.Msg {
		ctx := context.Background()
		flushed, flushErr := svc.FlushOutbox(ctx, sess)
		d, err := svc.Dashboard(ctx, sess)
		return dashboardLoadedMsg{user: sess.User.ID, dash: d, flushed: flushed, flushErr: flushErr, err: err}
	}
}

// subscribe opens the realtime feed unless one is open or on its way.
func (m dashboardModel) subscribe() (dashboardModel, tea.Cmd) {
	if m.sess == nil || m.feed != nil || m.subscribing {
		return m, nil
	}
	m.subscribing = true
	svc, sess := m.svc, m.sess
	return m, func() tea.Msg {
		feed, err := svc.Subscribe(context.Background(), sess)
		return feedOpenedMsg{user: sess.User.ID, feed: feed, err: err}
	}
}

// renew adopts refreshed tokens for the same user. An open feed joined with the
// old token is reopened.
func (m dashboardModel) renew(sess *domain.Session) (dashboardModel, tea.Cmd) {
	m.sess = sess
	if m.feed == nil {
		return m, nil
	}
	m.close()
	return m.subscribe()
}

// owns reports whether a result fetched for user belongs to this session.
func (m dashboardModel) owns(user uuid.UUID) bool {
	return m.sess != nil && m.sess.User.ID == user
}

// waitForNotification blocks on the feed until the next insert arrives
// or the feed ends.
func waitForNotification(feed *client.NotificationFeed) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-feed.C()
		if !ok {
			return feedClosedMsg{feed: feed, err: feed.Err()}
		}
		return notificationMsg{feed: feed, n: n}
	}
}

// unread returns the unread notification count for the header badge.
func (m dashboardModel) unread() int {
	return m.summary.Unread
}

// close stops the realtime feed, if any.
func (m *dashboardModel) close() {
	if m.feed != nil {
		m.feed.Close() //nolint:errcheck
		m.feed = nil
	}
}

func (m *dashboardModel) resummarize() {
	if m.sess == nil {
		m.summary = domain.Summary{}
		return
	}
	m.summary = domain.Summarize(m.sess.User.ID, m.listings, m.orders, m.notifications)
}

func (m dashboardModel) rows() int {
	switch m.tab {
	case tabListings:
		return len(m.listings)
	case tabOrders:
		return len(m.orders)
	case tabNotifications:
		return len(m.notifications)
	}
	return 0
}

func (m *dashboardModel) clampCursor() {
	n := m.rows()
	if m.cursors[m.tab] >= n {
		m.cursors[m.tab] = n - 1
	}
	if m.cursors[m.tab] < 0 {
		m.cursors[m.tab] = 0
	}
}

func (m dashboardModel) Update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case sessionChangedMsg:
		m.close()
		fresh := newDashboardModel(m.svc)
		fresh.width, fresh.height = m.width, m.height
		fresh.sess = msg.sess
		if msg.sess == nil {
			return fresh, nil
		}
		fresh, load := fresh.reload()
		fresh, sub := fresh.subscribe()
		return fresh, tea.Batch(load, sub)

	case dashboardLoadedMsg:
		if !m.owns(msg.user) {
			return m, nil
		}
		m.loading = false
		m.loaded = true
		m.err = msg.err
		if msg.err == nil && msg.dash != nil {
			m.listings = msg.dash.Listings
			m.orders = msg.dash.Orders
			m.notifications = msg.dash.Notifications
			m.summary = msg.dash.Summary
			m.clampCursor()
		}
		if msg.flushed.Delivered > 0 {
			m.statusMsg = fmt.Sprintf("delivered %d queued notification(s)", msg.flushed.Delivered)
		}
		return m, nil

	case feedOpenedMsg:
		if !m.owns(msg.user) {
			if msg.feed != nil {
				msg.feed.Close() //nolint:errcheck
			}
			return m, nil
		}
		m.subscribing = false
		if msg.err != nil {
			m.statusMsg = "live updates unavailable"
			return m, nil
		}
		if m.feed != nil && m.feed != msg.feed {
			m.feed.Close() //nolint:errcheck
		}
		m.feed = msg.feed
		return m, waitForNotification(m.feed)

	case notificationMsg:
		if msg.feed != m.feed {
			return m, nil
		}
		seen := false
		for _, n := range m.notifications {
			if n.ID == msg.n.ID {
				seen = true
				break
			}
		}
		if !seen {
			m.notifications = append([]domain.Notification{msg.n}, m.notifications...)
			m.resummarize()
		}
		m.statusMsg = "new: " + msg.n.Title
		return m, waitForNotification(m.feed)

	case feedClosedMsg:
		if msg.feed != m.feed || m.feed == nil {
			return m, nil
		}
		m.feed = nil
		m.statusMsg = "live updates stopped. r to refresh"
		return m, nil

	case listingDeletedMsg:
		if !m.owns(msg.user) {
			return m, nil
		}
		if msg.err != nil {
			m.statusMsg = "delete failed: " + msg.err.Error()
			return m, nil
		}
		kept := m.listings[:0:0]
		for _, l := range m.listings {
			if l.ID != msg.id {
				kept = append(kept, l)
			}
		}
		m.listings = kept
		m.clampCursor()
		m.resummarize()
		m.statusMsg = "listing deleted"
		return m, nil

	case orderUpdatedMsg:
		if !m.owns(msg.user) {
			return m, nil
		}
		if msg.err != nil {
			m.statusMsg = "update failed: " + msg.err.Error()
			return m, nil
		}
		for i := range m.orders {
			if m.orders[i].ID == msg.order.ID {
				m.orders[i] = *msg.order
			}
		}
		m.resummarize()
		m.statusMsg = "order " + string(msg.order.Status)
		return m, nil

	case notificationsReadMsg:
		if !m.owns(msg.user) {
			return m, nil
		}
		if msg.err != nil {
			m.statusMsg = "mark read failed: " + msg.err.Error()
			return m, nil
		}
		for i := range m.notifications {
			if msg.id == uuid.Nil || m.notifications[i].ID == msg.id {
				m.notifications[i].Read = true
			}
		}
		m.resummarize()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m dashboardModel) updateKeys(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	key := msg.String()
	if m.confirmDelete {
		m.confirmDelete = false
		if key == "y" {
			return m, m.deleteSelected()
		}
		m.statusMsg = "delete cancelled"
		return m, nil
	}

	m.statusMsg = ""
	switch key {
	case "tab", "l", "right":
		m.tab = (m.tab + 1) % numDashTabs
		m.clampCursor()
		return m, nil
	case "shift+tab", "h", "left":
		m.tab = (m.tab - 1 + numDashTabs) % numDashTabs
		m.clampCursor()
		return m, nil
	case "j", "down":
		if m.cursors[m.tab] < m.rows()-1 {
			m.cursors[m.tab]++
		}
		return m, nil
	case "k", "up":
		if m.cursors[m.tab] > 0 {
			m.cursors[m.tab]--
		}
		return m, nil
	case "r":
		var load, sub tea.Cmd
		m, load = m.reload()
		m, sub = m.subscribe()
		return m, tea.Batch(load, sub)
	}

	switch m.tab {
	case tabListings:
		if key == "d" && m.rows() > 0 {
			m.confirmDelete = true
		}
	case tabOrders:
		if target, ok := statusKeys[key]; ok {
			return m.updateStatus(target)
		}
		if key == "p" {
			m.copyPhone()
		}
	case tabNotifications:
		switch key {
		case "enter", "m":
			return m, m.markSelectedRead()
		case "A":
			return m, m.markAllRead()
		}
	}
	return m, nil
}

func (m dashboardModel) selectedOrder() (domain.Order, bool) {
	i := m.cursors[tabOrders]
	if i < 0 || i >= len(m.orders) {
		return domain.Order{}, false
	}
	return m.orders[i], true
}

func (m dashboardModel) isSeller(o domain.Order) bool {
	return m.sess != nil && o.Role(m.sess.User.ID) == "seller"
}

// updateStatus only offers moves the transition table allows for the seller.
func (m dashboardModel) updateStatus(target domain.OrderStatus) (dashboardModel, tea.Cmd) {
	o, ok := m.selectedOrder()
	if !ok {
		return m, nil
	}
	if !m.isSeller(o) {
		m.statusMsg = "only the seller can update this order"
		return m, nil
	}
	if !domain.CanTransition(o.Status, target) {
		m.statusMsg = fmt.Sprintf("cannot %s a %s order", statusVerbs[target], o.Status)
		return m, nil
	}
	svc, sess := m.svc, m.sess
	return m, func() tea.Msg {
		updated, err := svc.UpdateOrderStatus(context.Background(), sess, o, string(target))
		return orderUpdatedMsg{user: sess.User.ID, order: updated, err: err}
	}
}

func (m *dashboardModel) copyPhone() {
	o, ok := m.selectedOrder()
	if !ok {
		return
	}
	if !m.isSeller(o) || o.Phone == "" {
		m.statusMsg = "no buyer phone to copy"
		return
	}
	if err := clipboard.WriteAll(o.Phone); err != nil {
		m.statusMsg = "clipboard unavailable: " + err.Error()
		return
	}
	m.statusMsg = "copied buyer phone"
}

func (m dashboardModel) deleteSelected() tea.Cmd {
	i := m.cursors[tabListings]
	if i < 0 || i >= len(m.listings) {
		return nil
	}
	l := m.listings[i]
	svc, sess := m.svc, m.sess
	return func() tea.Msg {
		err := svc.DeleteListing(context.Background(), sess, l)
		return listingDeletedMsg{user: sess.User.ID, id: l.ID, err: err}
	}
}

func (m dashboardModel) markSelectedRead() tea.Cmd {
	i := m.cursors[tabNotifications]
	if i < 0 || i >= len(m.notifications) || m.notifications[i].Read {
		return nil
	}
	id := m.notifications[i].ID
	svc, sess := m.svc, m.sess
	return func() tea.Msg {
		err := svc.MarkNotificationRead(context.Background(), sess, id)
		return notificationsReadMsg{user: sess.User.ID, id: id, err: err}
	}
}

func (m dashboardModel) markAllRead() tea.Cmd {
	if m.summary.Unread == 0 {
		return nil
	}
	svc, sess := m.svc, m.sess
	return func() tea.Msg {
		err := svc.MarkAllRead(context.Background(), sess)
		return notificationsReadMsg{user: sess.User.ID, id: uuid.Nil, err: err}
	}
}

func (m dashboardModel) View() string {
	if m.sess == nil {
		return "\n  " + dimStyle.Render("sign in to see your dashboard")
	}
	if !m.loaded {
		return "\n  " + m.spinner.View() + dimStyle.Render(" loading dashboard...")
	}
	if m.err != nil {
		return "\n  " + errStyle.Render("error: "+m.err.Error()) + "\n  " + dimStyle.Render("r to retry")
	}

	var b strings.Builder
	b.WriteString("\n")

	// Summary line
	s := m.summary
	parts := []string{
		fmt.Sprintf("%d listed", s.Listings),
		fmt.Sprintf("%d selling", s.Selling),
		fmt.Sprintf("%d buying", s.Buying),
	}
	line := " " + metaStyle.Render(strings.Join(parts, " . "))
	if s.PendingToReply > 0 {
		line += metaStyle.Render(" . ") + searchStyle.Render(fmt.Sprintf("%d awaiting reply", s.PendingToReply))
	}
	if s.Earned > 0 {
		line += metaStyle.Render(" . ") + priceStyle.Render(domain.FormatAmount(s.Earned)+" earned")
	}
	if m.loading {
		line += "  " + m.spinner.View()
	}
	if m.feed != nil {
		line += "  " + okStyle.Render("● live")
	}
	b.WriteString(line + "\n\n")

	// Sub-tabs
	var tabs []string
	for i, name := range dashTabNames {
		label := name
		if dashTab(i) == tabNotifications && s.Unread > 0 {
			label += fmt.Sprintf(" (%d)", s.Unread)
		}
		if dashTab(i) == m.tab {
			tabs = append(tabs, selectedStyle.Underline(true).Render(label))
		} else {
			tabs = append(tabs, dimStyle.Render(label))
		}
	}
	b.WriteString(" " + strings.Join(tabs, "   ") + "\n\n")

	switch m.tab {
	case tabListings:
		b.WriteString(m.viewListings())
	case tabOrders:
		b.WriteString(m.viewOrders())
	case tabNotifications:
		b.WriteString(m.viewNotifications())
	}

	if m.confirmDelete {
		b.WriteString("\n " + errStyle.Render("delete this listing? y to confirm") + "\n")
	} else if m.statusMsg != "" {
		b.WriteString("\n " + okStyle.Render(m.statusMsg) + "\n")
	}
	return b.String()
}

func (m dashboardModel) window(total, perRow int) (int, int) {
	maxVisible := (m.height - 10) / perRow
	if maxVisible < 1 {
		maxVisible = 1
	}
	cur := m.cursors[m.tab]
	start := 0
	if cur >= maxVisible {
		start = cur - maxVisible + 1
	}
	end := start + maxVisible
	if end > total {
		end = total
	}
	return start, end
}

func (m dashboardModel) cursorPrefix(i int) string {
	if i == m.cursors[m.tab] {
		return accentStyle.Render("▸") + " "
	}
	return "  "
}

func (m dashboardModel) viewListings() string {
	if len(m.listings) == 0 {
		return "  " + dimStyle.Render("you have no listings. press 2 to sell a book.") + "\n"
	}
	var b strings.Builder
	start, end := m.window(len(m.listings), 1)
	for i := start; i < end; i++ {
		l := m.listings[i]
		style := normalStyle
		if i == m.cursors[tabListings] {
			style = selectedStyle
		}
		b.WriteString(m.cursorPrefix(i) + style.Render(truncStr(l.Title, m.width-40)) + "  " + priceLabel(l) +
			"  " + metaStyle.Render(formatTime(l.CreatedAt)) + "\n")
	}
	return b.String()
}

func (m dashboardModel) viewOrders() string {
	if len(m.orders) == 0 {
		return "  " + dimStyle.Render("no orders yet.") + "\n"
	}
	var b strings.Builder
	start, end := m.window(len(m.orders), 1)
	for i := start; i < end; i++ {
		o := m.orders[i]
		style := normalStyle
		if i == m.cursors[tabOrders] {
			style = selectedStyle
		}
		role := "buying"
		if m.isSeller(o) {
			role = "selling"
		}
		amount := swapStyle.Render("Swap")
		if o.Amount != nil {
			amount = priceStyle.Render(domain.FormatAmount(*o.Amount))
		}
		row := m.cursorPrefix(i) + StatusBadge(o.Status) + " " + style.Render(truncStr(o.Title(), m.width-46)) +
			"  " + amount + "  " + metaStyle.Render(role)
		if o.Degraded {
			row += " " + searchStyle.Render("⚠")
		}
		b.WriteString(row + "\n")
	}

	// Detail of the selected order
	o, ok := m.selectedOrder()
	if !ok {
		return b.String()
	}
	b.WriteString("\n" + separator(m.width) + "\n")
	if author := o.AuthorName(); author != "" {
		b.WriteString("  " + dimStyle.Render("by "+author) + "\n")
	}
	b.WriteString("  " + dimStyle.Render(o.PaymentMethod.Label()+" . "+formatTime(o.CreatedAt)) + "\n")
	if o.Degraded {
		b.WriteString("  " + searchStyle.Render("seller notification pending delivery") + "\n")
	}
	if m.isSeller(o) {
		addr := strings.Join([]string{o.Line, o.City, o.State, o.Pincode}, ", ")
		b.WriteString("  " + sectionHeaderStyle.Render("ship to ") + normalStyle.Render(truncStr(addr, m.width-12)) + "\n")
		b.WriteString("  " + sectionHeaderStyle.Render("phone   ") + normalStyle.Render(o.Phone) + "\n")
		var actions []string
		for _, next := range domain.NextStatuses(o.Status) {
			for k, st := range statusKeys {
				if st == next {
					actions = append(actions, helpEntry(k, statusVerbs[next]))
				}
			}
		}
		if len(actions) > 0 {
			b.WriteString("  " + strings.Join(actions, "  ") + "\n")
		}
	}
	return b.String()
}

func (m dashboardModel) viewNotifications() string {
	if len(m.notifications) == 0 {
		return "  " + dimStyle.Render("no notifications.") + "\n"
	}
	var b strings.Builder
	start, end := m.window(len(m.notifications), 2)
	for i := start; i < end; i++ {
		n := m.notifications[i]
		dot := "  "
		if !n.Read {
			dot = unreadDotStyle.Render("●") + " "
		}
		style := dimStyle
		if !n.Read {
			style = normalStyle
		}
		if i == m.cursors[tabNotifications] {
			style = selectedStyle
		}
		b.WriteString(m.cursorPrefix(i) + dot + style.Render(n.Title) + "  " + metaStyle.Render(formatTime(n.CreatedAt)) + "\n")
		b.WriteString("      " + dimStyle.Render(truncStr(oneLine(n.Message), m.width-8)) + "\n")
	}
	return b.String()
}

func (m dashboardModel) helpKeys() string {
	base := helpEntry("tab", "section") + "  " + helpEntry("j/k", "nav") + "  " + helpEntry("r", "refresh")
	switch m.tab {
	case tabListings:
		return base + "  " + helpEntry("d", "delete")
	case tabOrders:
		return base + "  " + helpEntry("a/x/c", "status") + "  " + helpEntry("p", "copy phone")
	case tabNotifications:
		return base + "  " + helpEntry("enter", "read") + "  " + helpEntry("A", "read all")
	}
	return base
}
