package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/bookbazaar/bazaar/internal/browser"
	"github.com/bookbazaar/bazaar/internal/market"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

// listingsLoadedMsg carries the result of a full listing fetch.
type listingsLoadedMsg struct {
	listings []domain.Listing
	err      error
}

// buyListingMsg asks the App to open checkout for a listing.
type buyListingMsg struct {
	listing domain.Listing
}

// browseCategories is the category cycle of the market view, "All" first.
var browseCategories = append([]string{domain.CategoryAll}, domain.Categories...)

type browseModel struct {
	svc       *market.Service
	sess      *domain.Session
	all       []domain.Listing
	visible   []domain.Listing
	cursor    int
	query     string
	searching bool
	category  int
	loaded    bool
	err       error
	detail    bool
	statusMsg string
	spinner   spinner.Model
	width     int
	height    int
}

func newBrowseModel(svc *market.Service) browseModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle
	return browseModel{svc: svc, spinner: sp}
}

func (m browseModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m browseModel) load() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		listings, err := svc.Listings(context.Background())
		return listingsLoadedMsg{listings: listings, err: err}
	}
}

func (m browseModel) selected() (domain.Listing, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return domain.Listing{}, false
	}
	return m.visible[m.cursor], true
}

func (m *browseModel) refilter() {
	m.visible = domain.FilterListings(m.all, m.query, browseCategories[m.category])
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m browseModel) ownListing(l domain.Listing) bool {
	return m.sess != nil && m.sess.User.ID == l.UserID
}

func (m browseModel) Update(msg tea.Msg) (browseModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case sessionChangedMsg:
		m.sess = msg.sess

	case listingsLoadedMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err == nil {
			m.all = msg.listings
			m.refilter()
		}
		return m, nil

	case listingDeletedMsg:
		// The dashboard removed a listing; drop it here without refetching.
		if msg.err == nil {
			kept := m.all[:0:0]
			for _, l := range m.all {
				if l.ID != msg.id {
					kept = append(kept, l)
				}
			}
			m.all = kept
			m.refilter()
		}
		return m, nil

	case spinner.TickMsg:
		if m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		if m.detail {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m browseModel) updateSearch(msg tea.KeyMsg) (browseModel, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
	case "esc":
		m.searching = false
		m.query = ""
		m.refilter()
	default:
		m.query = editRune(m.query, msg.String())
		m.refilter()
	}
	return m, nil
}

func (m browseModel) updateList(msg tea.KeyMsg) (browseModel, tea.Cmd) {
	m.statusMsg = ""
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "/":
		m.searching = true
	case "c":
		m.category = (m.category + 1) % len(browseCategories)
		m.refilter()
	case "r":
		m.loaded = false
		return m, tea.Batch(m.spinner.Tick, m.load())
	case "enter":
		if _, ok := m.selected(); ok {
			m.detail = true
		}
	case "b":
		return m.buy()
	case "o":
		return m.openImage()
	}
	return m, nil
}

func (m browseModel) updateDetail(msg tea.KeyMsg) (browseModel, tea.Cmd) {
	m.statusMsg = ""
	switch msg.String() {
	case "esc", "backspace":
		m.detail = false
	case "b":
		return m.buy()
	case "o":
		return m.openImage()
	}
	return m, nil
}

func (m browseModel) buy() (browseModel, tea.Cmd) {
	l, ok := m.selected()
	if !ok {
		return m, nil
	}
	if m.ownListing(l) {
		m.statusMsg = "that's your own listing"
		return m, nil
	}
	return m, func() tea.Msg { return buyListingMsg{listing: l} }
}

func (m browseModel) openImage() (browseModel, tea.Cmd) {
	l, ok := m.selected()
	if !ok {
		return m, nil
	}
	if l.ImageURL == nil || *l.ImageURL == "" {
		m.statusMsg = "no photo for this listing"
		return m, nil
	}
	if err := browser.Open(*l.ImageURL); err != nil {
		m.statusMsg = "could not open photo: " + err.Error()
		return m, nil
	}
	m.statusMsg = "opened photo in browser"
	return m, nil
}

func (m browseModel) View() string {
	if !m.loaded {
		return "\n  " + m.spinner.View() + dimStyle.Render(" loading listings...")
	}
	if m.err != nil {
		return "\n  " + errStyle.Render("error: "+m.err.Error()) + "\n  " + dimStyle.Render("r to retry")
	}
	if m.detail {
		return m.viewDetail()
	}

	var b strings.Builder
	b.WriteString("\n")

	// Filter line
	cat := browseCategories[m.category]
	filter := " " + dimStyle.Render("category ") + CategoryStyle(cat).Render(cat)
	if m.searching {
		filter += "  " + searchStyle.Render("/ "+m.query+"█")
	} else if m.query != "" {
		filter += "  " + dimStyle.Render("search ") + normalStyle.Render(m.query)
	}
	filter += "  " + metaStyle.Render(fmt.Sprintf("%d of %d", len(m.visible), len(m.all)))
	b.WriteString(filter + "\n\n")

	if len(m.visible) == 0 {
		if len(m.all) == 0 {
			b.WriteString("  " + dimStyle.Render("no books listed yet. press 2 to sell one.") + "\n")
		} else {
			b.WriteString("  " + dimStyle.Render("no books match your search.") + "\n")
		}
		return b.String()
	}

	titleWidth := m.width - 44
	if titleWidth < 16 {
		titleWidth = 16
	}

	// Rows per listing: 2 lines + blank
	maxVisible := (m.height - 6) / 3
	if maxVisible < 1 {
		maxVisible = 1
	}
	start := 0
	if m.cursor >= maxVisible {
		start = m.cursor - maxVisible + 1
	}
	end := start + maxVisible
	if end > len(m.visible) {
		end = len(m.visible)
	}

	for i := start; i < end; i++ {
		l := m.visible[i]
		prefix := "  "
		titleStyle := normalStyle
		if i == m.cursor {
			prefix = accentStyle.Render("▸") + " "
			titleStyle = selectedStyle
		}
		line := prefix + titleStyle.Render(truncStr(l.Title, titleWidth)) + "  " + priceLabel(l)
		if m.ownListing(l) {
			line += "  " + metaStyle.Render("(yours)")
		}
		b.WriteString(line + "\n")

		meta := "    " + dimStyle.Render(truncStr(l.Author, 24)) + metaStyle.Render(" . ") +
			CategoryStyle(l.Category).Render(l.Category) + metaStyle.Render(" . "+l.Condition)
		if seller := l.SellerName(); seller != "" {
			meta += metaStyle.Render(" . @" + seller)
		}
		if ts := formatTime(l.CreatedAt); ts != "" {
			meta += metaStyle.Render(" . " + ts)
		}
		b.WriteString(meta + "\n\n")
	}

	if m.statusMsg != "" {
		b.WriteString(" " + okStyle.Render(m.statusMsg) + "\n")
	}
	return b.String()
}

func (m browseModel) viewDetail() string {
	l, ok := m.selected()
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + selectedStyle.Render(l.Title) + "  " + priceLabel(l) + "\n")
	b.WriteString("  " + dimStyle.Render("by "+l.Author) + "\n\n")
	b.WriteString("  " + sectionHeaderStyle.Render("category   ") + CategoryStyle(l.Category).Render(l.Category) + "\n")
	b.WriteString("  " + sectionHeaderStyle.Render("condition  ") + normalStyle.Render(l.Condition) + "\n")
	if seller := l.SellerName(); seller != "" {
		b.WriteString("  " + sectionHeaderStyle.Render("seller     ") + normalStyle.Render("@"+seller) + "\n")
	}
	if l.ImageURL != nil && *l.ImageURL != "" {
		b.WriteString("  " + sectionHeaderStyle.Render("photo      ") + dimStyle.Render("o to open") + "\n")
	}
	b.WriteString("\n" + separator(m.width) + "\n")

	if desc := strings.TrimSpace(l.Description); desc != "" {
		b.WriteString(renderDescription(desc, m.width))
	} else {
		b.WriteString("  " + dimStyle.Render("no description") + "\n")
	}

	if m.ownListing(l) {
		b.WriteString("\n  " + metaStyle.Render("this is your listing. manage it from the dashboard.") + "\n")
	}
	if m.statusMsg != "" {
		b.WriteString("\n " + okStyle.Render(m.statusMsg) + "\n")
	}
	return b.String()
}

// renderDescription renders listing markdown for the terminal, falling back
// to plain wrapped text when the renderer fails.
func renderDescription(desc string, width int) string {
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		if out, err := r.Render(desc); err == nil {
			return out
		}
	}
	return "  " + normalStyle.Render(oneLine(desc)) + "\n"
}
