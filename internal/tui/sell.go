package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bookbazaar/bazaar/internal/market"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

type sellStep int

const (
	stepDetails sellStep = iota
	stepPricing
	stepPhoto
	stepReview
)

// Detail inputs.
const (
	inputTitle = iota
	inputAuthor
	inputDescription
	numDetailInputs
)

// Pricing fields.
const (
	pricingCategory = iota
	pricingCondition
	pricingSwap
	pricingPrice
	numPricingFields
)

type listingCreatedMsg struct {
	listing *domain.Listing
	err     error
}

type sellModel struct {
	svc        *market.Service
	sess       *domain.Session
	step       sellStep
	inputs     [numDetailInputs]textinput.Model
	focus      int
	category   int
	condition  int
	swap       bool
	price      textinput.Model
	priceFocus int
	picker     filepicker.Model
	picking    bool
	photoPath  string
	submitting bool
	cancelled  bool
	err        error
	statusMsg  string
	spinner    spinner.Model
	width      int
	height     int
}

func newSellModel(svc *market.Service) sellModel {
	m := sellModel{svc: svc}
	placeholders := [numDetailInputs]string{"Title of the book", "Author", "Description (optional, markdown)"}
	limits := [numDetailInputs]int{120, 80, 1000}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = limits[i]
		ti.Prompt = ""
		ti.Width = 50
		m.inputs[i] = ti
	}
	m.inputs[inputTitle].Focus()

	m.price = textinput.New()
	m.price.Placeholder = "e.g. 250"
	m.price.CharLimit = 10
	m.price.Prompt = "₹ "
	m.price.Width = 12

	m.category = indexOf(domain.Categories, domain.DefaultCategory)
	m.condition = indexOf(domain.Conditions, domain.DefaultCondition)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle
	m.spinner = sp

	m.picker = newPhotoPicker()
	return m
}

func newPhotoPicker() filepicker.Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	if home, err := os.UserHomeDir(); err == nil {
		fp.CurrentDirectory = home
	}
	fp.Height = 10
	return fp
}

func indexOf(values []string, v string) int {
	for i, s := range values {
		if s == v {
			return i
		}
	}
	return 0
}

func (m sellModel) Init() tea.Cmd {
	return textinput.Blink
}

// draft assembles the listing draft from the form state.
func (m sellModel) draft() (domain.ListingDraft, error) {
	d := domain.NewListingDraft()
	d.Title = strings.TrimSpace(m.inputs[inputTitle].Value())
	d.Author = strings.TrimSpace(m.inputs[inputAuthor].Value())
	d.Description = strings.TrimSpace(m.inputs[inputDescription].Value())
	d.Category = domain.Categories[m.category]
	d.Condition = domain.Conditions[m.condition]
	d.IsSwap = m.swap
	if !m.swap {
		p, err := domain.ParsePrice(m.price.Value())
		if err != nil {
			return d, err
		}
		d.Price = p
	}
	return d, d.Validate()
}

func (m sellModel) submit() tea.Cmd {
	svc := m.svc
	sess := m.sess
	draft, _ := m.draft()
	path := m.photoPath
	return func() tea.Msg {
		var img *market.Image
		if path != "" {
			opened, closer, err := market.OpenImage(path)
			if err != nil {
				return listingCreatedMsg{err: err}
			}
			defer closer.Close() //nolint:errcheck
			img = opened
		}
		l, err := svc.CreateListing(context.Background(), sess, draft, img)
		return listingCreatedMsg{listing: l, err: err}
	}
}

func (m sellModel) reset() sellModel {
	fresh := newSellModel(m.svc)
	fresh.sess = m.sess
	fresh.width = m.width
	fresh.height = m.height
	fresh.picker.Height = m.picker.Height
	return fresh
}

func (m sellModel) Update(msg tea.Msg) (sellModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 8; h > 3 {
			m.picker.Height = h
		}
		return m, nil

	case sessionChangedMsg:
		m.sess = msg.sess
		return m, nil

	case listingCreatedMsg:
		m.submitting = false
		if msg.err != nil {
			m.err = msg.err
			m.statusMsg = ""
			return m, nil
		}
		m = m.reset()
		m.statusMsg = fmt.Sprintf("listed %q", msg.listing.Title)
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
		m.err = nil
		switch m.step {
		case stepDetails:
			return m.updateDetails(msg)
		case stepPricing:
			return m.updatePricing(msg)
		case stepPhoto:
			return m.updatePhoto(msg)
		case stepReview:
			return m.updateReview(msg)
		}
	}

	// Directory reads and other picker-internal messages.
	if m.picking {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	// Cursor blink for the focused input.
	var cmd tea.Cmd
	switch m.step {
	case stepDetails:
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	case stepPricing:
		m.price, cmd = m.price.Update(msg)
	}
	return m, cmd
}

func (m sellModel) focusDetail(i int) (sellModel, tea.Cmd) {
	m.inputs[m.focus].Blur()
	m.focus = (i + numDetailInputs) % numDetailInputs
	return m, m.inputs[m.focus].Focus()
}

func (m sellModel) updateDetails(msg tea.KeyMsg) (sellModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.cancelled = true
		return m, nil
	case "tab", "down":
		return m.focusDetail(m.focus + 1)
	case "shift+tab", "up":
		return m.focusDetail(m.focus - 1)
	case "enter":
		if m.focus < numDetailInputs-1 {
			return m.focusDetail(m.focus + 1)
		}
		if strings.TrimSpace(m.inputs[inputTitle].Value()) == "" {
			m.err = domain.ErrTitleRequired
			return m.focusDetail(inputTitle)
		}
		if strings.TrimSpace(m.inputs[inputAuthor].Value()) == "" {
			m.err = domain.ErrAuthorRequired
			return m.focusDetail(inputAuthor)
		}
		m.inputs[m.focus].Blur()
		m.step = stepPricing
		m.priceFocus = pricingCategory
		m.statusMsg = ""
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m sellModel) pricingFields() int {
	if m.swap {
		return numPricingFields - 1
	}
	return numPricingFields
}

func (m sellModel) focusPricing(i int) (sellModel, tea.Cmd) {
	n := m.pricingFields()
	m.priceFocus = (i + n) % n
	if m.priceFocus == pricingPrice {
		return m, m.price.Focus()
	}
	m.price.Blur()
	return m, nil
}

func (m sellModel) updatePricing(msg tea.KeyMsg) (sellModel, tea.Cmd) {
	key := msg.String()
	switch key {
	case "esc":
		m.price.Blur()
		m.step = stepDetails
		return m, m.inputs[m.focus].Focus()
	case "tab", "down":
		return m.focusPricing(m.priceFocus + 1)
	case "shift+tab", "up":
		return m.focusPricing(m.priceFocus - 1)
	case "enter":
		if _, err := m.draft(); err != nil {
			m.err = err
			return m, nil
		}
		m.price.Blur()
		m.step = stepPhoto
		return m, nil
	}

	switch m.priceFocus {
	case pricingCategory:
		m.category = cycle(m.category, len(domain.Categories), key)
	case pricingCondition:
		m.condition = cycle(m.condition, len(domain.Conditions), key)
	case pricingSwap:
		if key == " " || key == "space" || key == "left" || key == "right" || key == "h" || key == "l" {
			m.swap = !m.swap
			if m.swap {
				m.price.SetValue("")
			}
		}
	case pricingPrice:
		var cmd tea.Cmd
		m.price, cmd = m.price.Update(msg)
		return m, cmd
	}
	return m, nil
}

// cycle moves an option index left or right, wrapping at both ends.
func cycle(i, n int, key string) int {
	switch key {
	case "left", "h":
		return (i - 1 + n) % n
	case "right", "l", " ", "space":
		return (i + 1) % n
	}
	return i
}

func (m sellModel) updatePhoto(msg tea.KeyMsg) (sellModel, tea.Cmd) {
	if m.picking {
		if msg.String() == "esc" {
			m.picking = false
			return m, nil
		}
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		if didSelect, path := m.picker.DidSelectFile(msg); didSelect {
			m.photoPath = path
			m.picking = false
		}
		if didSelect, path := m.picker.DidSelectDisabledFile(msg); didSelect {
			m.err = fmt.Errorf("%s: %w", path, market.ErrUnsupportedImage)
		}
		return m, cmd
	}

	switch msg.String() {
	case "esc":
		m.step = stepPricing
		return m.focusPricing(m.priceFocus)
	case "p":
		m.picking = true
		return m, m.picker.Init()
	case "x":
		m.photoPath = ""
	case "enter":
		m.step = stepReview
	}
	return m, nil
}

func (m sellModel) updateReview(msg tea.KeyMsg) (sellModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.step = stepPhoto
	case "enter", "ctrl+s":
		if _, err := m.draft(); err != nil {
			m.err = err
			return m, nil
		}
		m.submitting = true
		m.statusMsg = ""
		return m, tea.Batch(m.spinner.Tick, m.submit())
	}
	return m, nil
}

func (m sellModel) View() string {
	var b strings.Builder
	b.WriteString("\n")

	steps := []string{"details", "pricing", "photo", "review"}
	var crumbs []string
	for i, s := range steps {
		if sellStep(i) == m.step {
			crumbs = append(crumbs, accentStyle.Render(s))
		} else {
			crumbs = append(crumbs, metaStyle.Render(s))
		}
	}
	b.WriteString("  " + selectedStyle.Render("Sell a book") + "  " + strings.Join(crumbs, metaStyle.Render(" › ")) + "\n\n")

	switch m.step {
	case stepDetails:
		labels := [numDetailInputs]string{"title", "author", "description"}
		for i := range m.inputs {
			b.WriteString(m.fieldLabel(labels[i], m.focus == i) + m.inputs[i].View() + "\n")
		}
	case stepPricing:
		b.WriteString(m.fieldLabel("category", m.priceFocus == pricingCategory) +
			"‹ " + CategoryStyle(domain.Categories[m.category]).Render(domain.Categories[m.category]) + " ›\n")
		b.WriteString(m.fieldLabel("condition", m.priceFocus == pricingCondition) +
			"‹ " + normalStyle.Render(domain.Conditions[m.condition]) + " ›\n")
		kind := priceStyle.Render("sell for a price")
		if m.swap {
			kind = swapStyle.Render("swap only")
		}
		b.WriteString(m.fieldLabel("type", m.priceFocus == pricingSwap) + "‹ " + kind + " ›\n")
		if !m.swap {
			b.WriteString(m.fieldLabel("price", m.priceFocus == pricingPrice) + m.price.View() + "\n")
		}
	case stepPhoto:
		if m.picking {
			b.WriteString("  " + dimStyle.Render("choose a photo ("+strings.Join(m.picker.AllowedTypes, " ")+")") + "\n")
			b.WriteString(m.picker.View() + "\n")
		} else if m.photoPath != "" {
			b.WriteString("  " + sectionHeaderStyle.Render("photo  ") + normalStyle.Render(m.photoPath) + "\n")
		} else {
			b.WriteString("  " + dimStyle.Render("no photo selected. p to pick one, enter to continue without.") + "\n")
		}
	case stepReview:
		d, _ := m.draft()
		l := domain.Listing{Title: d.Title, IsSwap: d.IsSwap, Price: d.Price}
		b.WriteString("  " + selectedStyle.Render(d.Title) + "  " + priceLabel(l) + "\n")
		b.WriteString("  " + dimStyle.Render("by "+d.Author) + "\n")
		b.WriteString("  " + CategoryStyle(d.Category).Render(d.Category) + metaStyle.Render(" . "+d.Condition) + "\n")
		if d.Description != "" {
			b.WriteString("  " + normalStyle.Render(truncStr(oneLine(d.Description), m.width-4)) + "\n")
		}
		photo := "none"
		if m.photoPath != "" {
			photo = m.photoPath
		}
		b.WriteString("  " + sectionHeaderStyle.Render("photo ") + dimStyle.Render(photo) + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.submitting:
		b.WriteString("  " + m.spinner.View() + dimStyle.Render(" listing your book...") + "\n")
	case m.err != nil:
		b.WriteString("  " + errStyle.Render(m.err.Error()) + "\n")
	case m.statusMsg != "":
		b.WriteString("  " + okStyle.Render(m.statusMsg) + "\n")
	}
	return b.String()
}

func (m sellModel) fieldLabel(label string, focused bool) string {
	padded := fmt.Sprintf("%-12s", label)
	if focused {
		return "  " + inputPromptStyle.Render("▸ "+padded)
	}
	return "    " + dimStyle.Render(padded)
}

func (m sellModel) helpKeys() string {
	switch {
	case m.picking:
		return helpEntry("j/k", "nav") + "  " + helpEntry("enter", "choose") + "  " + helpEntry("esc", "close")
	case m.step == stepPhoto:
		return helpEntry("p", "pick") + "  " + helpEntry("x", "clear") + "  " + helpEntry("enter", "next") + "  " + helpEntry("esc", "back")
	case m.step == stepReview:
		return helpEntry("enter", "publish") + "  " + helpEntry("esc", "back")
	case m.step == stepPricing:
		return helpEntry("tab", "next") + "  " + helpEntry("←/→", "change") + "  " + helpEntry("enter", "next") + "  " + helpEntry("esc", "back")
	}
	return helpEntry("tab", "next") + "  " + helpEntry("enter", "next") + "  " + helpEntry("esc", "cancel")
}
