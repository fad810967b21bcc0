package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/rocky/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Padding(0, 1)

	yearStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("236")).
			Padding(0, 1).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	monthTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))

	monthStyle = lipgloss.NewStyle().
			Padding(0, 2, 1, 0)

	todayStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	cursorStyle = lipgloss.NewStyle().
			Reverse(true)

	missingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Faint(true)

	dangerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	docStyle = lipgloss.NewStyle().Padding(1, 2)
)

var moodColors = map[models.DayColor]lipgloss.Color{
	models.ColorGreen:   lipgloss.Color("34"),
	models.ColorYellow:  lipgloss.Color("178"),
	models.ColorRed:     lipgloss.Color("160"),
	models.ColorNeutral: lipgloss.Color("244"),
}

func moodStyle(c models.DayColor) lipgloss.Style {
	bg, ok := moodColors[c]
	if !ok {
		bg = moodColors[models.ColorNeutral]
	}
	return lipgloss.NewStyle().Background(bg).Foreground(lipgloss.Color("0"))
}

func dot(c models.DayColor) string {
	fg, ok := moodColors[c]
	if !ok {
		fg = moodColors[models.ColorNeutral]
	}
	return lipgloss.NewStyle().Foreground(fg).Render("●")
}
