package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/models"
	"github.com/julianstephens/rocky/internal/session"
	"github.com/julianstephens/rocky/internal/stats"
)

const monthsPerRow = 3

const weekdayHeader = "Mo Tu We Th Fr Sa Su"

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateEditDay, StateGoals:
		content = docStyle.Render(m.form.View())
	default:
		content = docStyle.Render(m.viewCalendar())
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewHeader(),
		content,
		m.viewFooter(),
		m.help.View(m),
	)
}

func (m Model) viewHeader() string {
	doc := m.session.Document()
	counts := stats.CountColors(stats.YearEntries(doc, m.year))

	prev, next := "‹", "›"
	if m.year <= constants.MinYear {
		prev = " "
	}
	if m.year >= dates.CurrentYear(m.now()) {
		next = " "
	}

	return lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render(constants.AppName),
		mutedStyle.Render(prev),
		yearStyle.Render(strconv.Itoa(m.year)),
		mutedStyle.Render(next),
		mutedStyle.Render(fmt.Sprintf("  %3.0f%% of the year  ", dates.YearProgress(m.year, m.now()))),
		fmt.Sprintf("%s %d  %s %d  %s %d",
			dot(models.ColorGreen), counts.Green,
			dot(models.ColorYellow), counts.Yellow,
			dot(models.ColorRed), counts.Red),
	)
}

func (m Model) viewCalendar() string {
	doc := m.session.Document()
	now := m.now()
	months := dates.YearMonthsClamped(m.year, constants.MinDateKey, dates.TodayKey(now))
	if len(months) == 0 {
		return mutedStyle.Render("Nothing to show for this year yet.")
	}

	var rows []string
	for i := 0; i < len(months); i += monthsPerRow {
		end := i + monthsPerRow
		if end > len(months) {
			end = len(months)
		}
		blocks := make([]string, 0, monthsPerRow)
		for _, month := range months[i:end] {
			blocks = append(blocks, monthStyle.Render(m.renderMonth(month, doc)))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, blocks...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderMonth lays out one month as Monday-first week rows.
func (m Model) renderMonth(month dates.Month, doc models.Document) string {
	now := m.now()
	today := dates.TodayKey(now)

	var b strings.Builder
	b.WriteString(monthTitleStyle.Render(month.Label))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(weekdayHeader))
	b.WriteString("\n")

	col := dates.Weekday(month.Days[0])
	b.WriteString(strings.Repeat("   ", col))
	for _, key := range month.Days {
		b.WriteString(m.renderDay(key, doc, today))
		col++
		if col == 7 {
			b.WriteString("\n")
			col = 0
		} else {
			b.WriteString(" ")
		}
	}
	return strings.TrimRight(b.String(), "\n ")
}

func (m Model) renderDay(key string, doc models.Document, today string) string {
	label := fmt.Sprintf("%2d", dates.FromDateKey(key).Day())

	var style lipgloss.Style
	if day, ok := doc.Day(key); ok && day.HasText() {
		style = moodStyle(day.Color)
	} else if dates.IsDateMissingEntry(key, doc, m.now(), constants.MinDateKey) {
		style = missingStyle
	} else if ok {
		style = moodStyle(day.Color).Faint(true)
	} else {
		style = lipgloss.NewStyle()
	}
	if key == today {
		style = style.Inherit(todayStyle)
	}
	if key == m.cursor {
		style = style.Inherit(cursorStyle)
	}
	return style.Render(label)
}

func (m Model) viewFooter() string {
	var lines []string

	doc := m.session.Document()
	day, ok := doc.Day(m.cursor)
	weekday := dates.FromDateKey(m.cursor).Weekday().String()
	selected := fmt.Sprintf("%s %s", m.cursor, weekday)
	if ok {
		selected += fmt.Sprintf("  %s %s", dot(day.Color), day.Color)
		if day.HasText() {
			selected += "  " + firstLine(day.Text)
		}
		if active := stats.GoalsActiveOn(doc, m.cursor); len(active) > 0 {
			done := 0
			for _, g := range active {
				if day.HasGoal(g.ID) {
					done++
				}
			}
			selected += mutedStyle.Render(fmt.Sprintf("  goals %d/%d", done, len(active)))
		}
	} else if m.cursor == dates.TodayKey(m.now()) {
		selected += mutedStyle.Render("  press enter to write today's entry")
	}
	lines = append(lines, selected)

	lines = append(lines, m.viewStatus())
	if m.notice != "" {
		lines = append(lines, warningStyle.Render(m.notice))
	}
	if m.formErr != "" {
		lines = append(lines, dangerStyle.Render(m.formErr))
	}
	return lipgloss.NewStyle().Padding(0, 2).Render(strings.Join(lines, "\n"))
}

func (m Model) viewStatus() string {
	switch m.status {
	case session.StatusSaved:
		return okStyle.Render("● " + string(m.status))
	case session.StatusError:
		msg := "● " + string(m.status)
		if m.saveErr != nil {
			msg += ": " + m.saveErr.Error()
		}
		return dangerStyle.Render(msg)
	case session.StatusSaving:
		return warningStyle.Render("● " + string(m.status))
	}
	return mutedStyle.Render("● " + string(m.status))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
