package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bookbazaar/bazaar/internal/market"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

// Checkout inputs, in tab order. The payment toggle follows the last input.
const (
	addrLine = iota
	addrCity
	addrState
	addrPincode
	addrPhone
	numAddrInputs
	fieldPayment = numAddrInputs
)

type orderPlacedMsg struct {
	order *domain.Order
	err   error
}

type checkoutModel struct {
	svc        *market.Service
	sess       *domain.Session
	listing    domain.Listing
	inputs     [numAddrInputs]textinput.Model
	focus      int
	payment    domain.PaymentMethod
	submitting bool
	placed     *domain.Order
	warning    string
	closed     bool
	err        error
	spinner    spinner.Model
	width      int
}

func newCheckoutModel(svc *market.Service, sess *domain.Session, l domain.Listing) checkoutModel {
	m := checkoutModel{svc: svc, sess: sess, listing: l, payment: domain.PaymentCash}
	placeholders := [numAddrInputs]string{"House, street, area", "City", "State", "6-digit pincode", "Phone number"}
	limits := [numAddrInputs]int{200, 60, 60, 10, 15}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = limits[i]
		ti.Prompt = ""
		ti.Width = 40
		m.inputs[i] = ti
	}
	m.inputs[addrLine].Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle
	m.spinner = sp
	return m
}

func (m checkoutModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m checkoutModel) checkout() market.Checkout {
	return market.Checkout{
		Address: domain.Address{
			Line:    m.inputs[addrLine].Value(),
			City:    m.inputs[addrCity].Value(),
			State:   m.inputs[addrState].Value(),
			Pincode: m.inputs[addrPincode].Value(),
			Phone:   m.inputs[addrPhone].Value(),
		},
		PaymentMethod: m.payment,
	}
}

func (m checkoutModel) place() tea.Cmd {
	svc, sess, l, co := m.svc, m.sess, m.listing, m.checkout()
	return func() tea.Msg {
		o, err := svc.PlaceOrder(context.Background(), sess, l, co)
		return orderPlacedMsg{order: o, err: err}
	}
}

func (m checkoutModel) setFocus(i int) (checkoutModel, tea.Cmd) {
	if m.focus < numAddrInputs {
		m.inputs[m.focus].Blur()
	}
	n := numAddrInputs + 1
	m.focus = (i + n) % n
	if m.focus < numAddrInputs {
		return m, m.inputs[m.focus].Focus()
	}
	return m, nil
}

func (m checkoutModel) Update(msg tea.Msg) (checkoutModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case orderPlacedMsg:
		m.submitting = false
		switch {
		case msg.err == nil:
			m.placed = msg.order
		case errors.Is(msg.err, market.ErrNotificationDeferred) && msg.order != nil:
			// The order exists; only the seller notification is queued.
			m.placed = msg.order
			m.warning = "the seller could not be notified yet. it will be retried automatically."
		default:
			m.err = msg.err
		}
		return m, nil

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		if m.placed != nil {
			// Any key leaves the confirmation screen.
			m.closed = true
			return m, nil
		}
		m.err = nil
		switch msg.String() {
		case "esc":
			m.closed = true
			return m, nil
		case "tab", "down":
			return m.setFocus(m.focus + 1)
		case "shift+tab", "up":
			return m.setFocus(m.focus - 1)
		case "ctrl+s":
			return m.submit()
		case "enter":
			if m.focus < fieldPayment {
				return m.setFocus(m.focus + 1)
			}
			return m.submit()
		}
		if m.focus == fieldPayment {
			switch msg.String() {
			case " ", "space", "left", "right", "h", "l":
				if m.payment == domain.PaymentCash {
					m.payment = domain.PaymentOnline
				} else {
					m.payment = domain.PaymentCash
				}
			}
			return m, nil
		}
	}

	if m.focus < numAddrInputs {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m checkoutModel) submit() (checkoutModel, tea.Cmd) {
	if err := m.checkout().Validate(); err != nil {
		m.err = err
		return m, nil
	}
	m.submitting = true
	return m, tea.Batch(m.spinner.Tick, m.place())
}

func (m checkoutModel) View() string {
	var b strings.Builder
	b.WriteString("\n")
	l := m.listing
	action := "Buy"
	if l.IsSwap {
		action = "Swap for"
	}
	b.WriteString("  " + selectedStyle.Render(action+" "+l.Title) + "  " + priceLabel(l) + "\n")
	b.WriteString("  " + dimStyle.Render("by "+l.Author))
	if seller := l.SellerName(); seller != "" {
		b.WriteString(metaStyle.Render(" . sold by @" + seller))
	}
	b.WriteString("\n\n")

	if m.placed != nil {
		b.WriteString("  " + okStyle.Render("order placed!") + " " + StatusBadge(m.placed.Status) + "\n")
		b.WriteString("  " + dimStyle.Render(fmt.Sprintf("payment: %s", m.placed.PaymentMethod.Label())) + "\n")
		if m.warning != "" {
			b.WriteString("\n  " + searchStyle.Render(m.warning) + "\n")
		}
		b.WriteString("\n  " + metaStyle.Render("track it from the dashboard. press any key to continue.") + "\n")
		return b.String()
	}

	b.WriteString("  " + sectionHeaderStyle.Render("delivery details") + "\n")
	labels := [numAddrInputs]string{"address", "city", "state", "pincode", "phone"}
	for i := range m.inputs {
		b.WriteString(m.label(labels[i], m.focus == i) + m.inputs[i].View() + "\n")
	}
	b.WriteString("\n  " + sectionHeaderStyle.Render("payment") + "\n")
	b.WriteString(m.label("method", m.focus == fieldPayment) + "‹ " + normalStyle.Render(m.payment.Label()) + " ›\n")

	b.WriteString("\n")
	switch {
	case m.submitting:
		b.WriteString("  " + m.spinner.View() + dimStyle.Render(" placing order...") + "\n")
	case m.err != nil:
		b.WriteString("  " + errStyle.Render(m.err.Error()) + "\n")
	}
	return b.String()
}

func (m checkoutModel) label(label string, focused bool) string {
	padded := fmt.Sprintf("%-9s", label)
	if focused {
		return "  " + inputPromptStyle.Render("▸ "+padded)
	}
	return "    " + dimStyle.Render(padded)
}

func (m checkoutModel) helpKeys() string {
	if m.placed != nil {
		return helpEntry("any key", "continue")
	}
	return helpEntry("tab", "next") + "  " + helpEntry("←/→", "payment") + "  " + helpEntry("ctrl+s", "place order") + "  " + helpEntry("esc", "cancel")
}
