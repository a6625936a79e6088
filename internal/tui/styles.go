package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bookbazaar/bazaar/pkg/domain"
)

var (
	// Base styles, bazaar neutral palette
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	// Help bar
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	// Search / accent
	searchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f59e0b")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#4ade80"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e06060"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f0944a"))

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f59e0b")).
			Bold(true)

	priceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ade80")).
			Bold(true)

	swapStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c084e0")).
			Bold(true)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#606878"))

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#f0944a")).
				Bold(true)

	unreadDotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f87171"))

	categoryColors = map[string]lipgloss.Color{
		"Engineering":       lipgloss.Color("#60a0e0"),
		"Arts":              lipgloss.Color("#c084e0"),
		"Science":           lipgloss.Color("#3ecce4"),
		"Commerce":          lipgloss.Color("#d4a844"),
		"Competitive Exams": lipgloss.Color("#f0944a"),
		"Literature":        lipgloss.Color("#b080d0"),
		"Other":             lipgloss.Color("#8890a0"),
	}

	statusColors = map[domain.OrderStatus]lipgloss.Color{
		domain.StatusPending:   lipgloss.Color("#facc15"),
		domain.StatusConfirmed: lipgloss.Color("#60a5fa"),
		domain.StatusCompleted: lipgloss.Color("#4ade80"),
		domain.StatusCancelled: lipgloss.Color("#f87171"),
	}
)

// CategoryStyle returns a bold style colored for the given listing category.
func CategoryStyle(category string) lipgloss.Style {
	if c, ok := categoryColors[category]; ok {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#606878")).Bold(true)
}

// StatusBadge renders an order status as a short colored label.
func StatusBadge(s domain.OrderStatus) string {
	c, ok := statusColors[s]
	if !ok {
		c = lipgloss.Color("#8890a0")
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render("[" + string(s) + "]")
}

// priceLabel renders the price column of a listing.
func priceLabel(l domain.Listing) string {
	if l.IsSwap || l.Price == nil {
		return swapStyle.Render("Swap")
	}
	return priceStyle.Render(l.PriceLabel())
}

// helpEntry renders a single "key label" pair for help bars.
func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}
