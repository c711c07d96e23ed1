package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/pickflix/internal/domain"
	"github.com/mmcdole/pickflix/internal/picker"
	"github.com/mmcdole/pickflix/internal/tui/styles"
)

// defaultWidth is used until the first WindowSizeMsg arrives
const defaultWidth = 80

// View renders the application
func (m Model) View() string {
	width := m.Width
	if width <= 0 {
		width = defaultWidth
	}

	sections := []string{
		m.renderHeader(width),
		m.renderCurrent(width),
		m.renderStatus(width),
	}
	if m.Confirming {
		sections = append(sections, m.renderConfirm())
	}
	sections = append(sections, m.renderHistory(width), m.renderHelp())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(width int) string {
	title := styles.TitleStyle.Render("pickflix")
	badge := styles.DimBadgeStyle.Render(m.State.Mode.String())
	if m.State.Mode == domain.ModeShared {
		badge = styles.BadgeStyle.Render("shared")
	}

	counts := styles.DimStyle.Render(fmt.Sprintf("%d/%d picked", m.State.HistorySize, m.State.Total))
	left := title + " " + badge
	gap := width - lipgloss.Width(left) - lipgloss.Width(counts)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + counts
}

func (m Model) renderCurrent(width int) string {
	cardWidth := width - 4
	if cardWidth < 20 {
		cardWidth = 20
	}

	movie := m.State.Current
	if movie == nil {
		body := styles.DimStyle.Render("No movie picked yet.")
		return styles.CardStyle.Width(cardWidth).Render(body)
	}

	lines := []string{
		styles.TitleStyle.Render(styles.Truncate(movie.Title, cardWidth-4)),
		styles.SubtitleStyle.Render(movie.Subtitle()),
		"",
		fmt.Sprintf("Runtime      %s", movie.Runtime),
		fmt.Sprintf("Certificate  %s", movie.CertificateLabel()),
		fmt.Sprintf("IMDb         %.1f", movie.IMDbRating),
		fmt.Sprintf("Metascore    %s", movie.MetascoreLabel()),
		fmt.Sprintf("Votes        %s", movie.Votes),
	}
	body := strings.Join(lines, "\n")

	if movie.ID == m.highlightID {
		return styles.FreshCardStyle.Width(cardWidth).Render(body)
	}
	return styles.CardStyle.Width(cardWidth).Render(body)
}

func (m Model) renderStatus(width int) string {
	msg := styles.Truncate(m.State.Message, width-2)

	var line string
	switch m.State.Status {
	case picker.StatusSyncing:
		line = m.Spinner.View() + " " + styles.AccentStyle.Render(msg)
	case picker.StatusError, picker.StatusUnavailable:
		line = styles.ErrorStyle.Render(msg)
	case picker.StatusExhausted:
		line = styles.AccentStyle.Render(msg)
	case picker.StatusReady:
		line = styles.SuccessStyle.Render(msg)
	default:
		line = styles.SubtitleStyle.Render(msg)
	}

	if m.Notice != "" {
		line += "\n" + styles.AccentStyle.Render(m.Notice)
	}
	if m.State.WeakRandom {
		line += "\n" + styles.DimStyle.Render("Secure randomness unavailable; using seeded fallback.")
	}
	return line
}

func (m Model) renderConfirm() string {
	prompt := fmt.Sprintf("Clear all %d picks? ", m.State.HistorySize)
	if m.State.Mode == domain.ModeShared {
		prompt = fmt.Sprintf("Clear all %d shared picks for everyone? ", m.State.HistorySize)
	}
	return styles.ModalStyle.Render(prompt + renderBinding(Keys.Confirm) + " " + renderBinding(Keys.Deny))
}

// renderHistory lists prior picks below the current one, newest first,
// cut to the rows the terminal has left.
func (m Model) renderHistory(width int) string {
	if len(m.State.History) <= 1 {
		return ""
	}

	rows := len(m.State.History) - 1
	if m.Height > 0 {
		// header, card, status, help and borders take roughly 16 rows
		avail := m.Height - 16
		if avail < 1 {
			avail = 1
		}
		if rows > avail {
			rows = avail
		}
	}

	lines := []string{styles.HistoryHeadStyle.Render("Previously picked")}
	for _, movie := range m.State.History[1 : rows+1] {
		head, summary := historyParts(movie, width-2)
		lines = append(lines, styles.HistoryItemStyle.Render(head+styles.DimStyle.Render(summary)))
	}
	if hidden := len(m.State.History) - 1 - rows; hidden > 0 {
		lines = append(lines, styles.HistoryItemStyle.Render(styles.DimStyle.Render(fmt.Sprintf("... %d more", hidden))))
	}
	return strings.Join(lines, "\n")
}

// historyParts splits a history row into its id/title head and its summary,
// both cut as plain text so styling never lands inside a truncated string.
func historyParts(movie domain.Movie, width int) (head, summary string) {
	head = fmt.Sprintf("#%-4d %s  ", movie.ID, movie.Title)
	if lipgloss.Width(head) >= width {
		return styles.Truncate(head, width), ""
	}
	return head, styles.Truncate(movie.Summary(), width-lipgloss.Width(head))
}

func (m Model) renderHelp() string {
	items := []struct {
		binding key.Binding
		enabled bool
	}{
		{Keys.Generate, m.State.CanPick},
		{Keys.Clear, m.State.CanClear},
		{Keys.Refresh, !m.State.Busy},
		{Keys.Quit, true},
	}

	var parts []string
	for _, item := range items {
		if item.enabled {
			parts = append(parts, renderBinding(item.binding))
		}
	}
	return strings.Join(parts, "  ")
}

func renderBinding(b key.Binding) string {
	h := b.Help()
	return styles.HelpKeyStyle.Render(h.Key) + " " + styles.HelpDescStyle.Render(h.Desc)
}
