package days

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/models"
	"github.com/julianstephens/rocky/internal/stats"
)

var (
	moodStyles = map[models.DayColor]lipgloss.Style{
		models.ColorGreen:   lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		models.ColorYellow:  lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		models.ColorRed:     lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
		models.ColorNeutral: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Faint(true)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	blockStyle   = lipgloss.NewStyle().PaddingRight(3)
)

// plainMarks are used instead of colors with --plain.
var plainMarks = map[models.DayColor]string{
	models.ColorGreen:   " G",
	models.ColorYellow:  " Y",
	models.ColorRed:     " R",
	models.ColorNeutral: " N",
}

type CalendarCmd struct {
	Year  int  `arg:"" optional:"" help:"Year to show (defaults to the current year)."`
	Plain bool `help:"Print letters instead of colors (G, Y, R, N; ! for a missing day)."`
}

func (c *CalendarCmd) Run(ctx *cli.Context) error {
	now := ctx.Now()
	year := c.Year
	if year == 0 {
		year = dates.CurrentYear(now)
	}
	if year < constants.MinYear || year > dates.CurrentYear(now) {
		return fmt.Errorf("year must be between %d and %d", constants.MinYear, dates.CurrentYear(now))
	}

	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	doc := sess.Document()

	months := dates.YearMonthsClamped(year, constants.MinDateKey, dates.TodayKey(now))
	var rows []string
	for i := 0; i < len(months); i += 3 {
		end := min(i+3, len(months))
		blocks := make([]string, 0, 3)
		for _, m := range months[i:end] {
			blocks = append(blocks, blockStyle.Render(c.renderMonth(m, doc, now)))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, blocks...))
	}

	summary := stats.Summarize(doc, year, now)
	ctx.Printf("%d  %.0f%% of the year  %d entries  %d missing\n\n", year, summary.Progress, summary.Entries, summary.Missing)
	ctx.Println(lipgloss.JoinVertical(lipgloss.Left, rows...))
	ctx.Printf("\ngreen %d  yellow %d  red %d  neutral %d\n",
		summary.Colors.Green, summary.Colors.Yellow, summary.Colors.Red, summary.Colors.Neutral)
	return nil
}

func (c *CalendarCmd) renderMonth(month dates.Month, doc models.Document, now time.Time) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(month.Label))
	b.WriteString("\nMo Tu We Th Fr Sa Su\n")

	col := dates.Weekday(month.Days[0])
	b.WriteString(strings.Repeat("   ", col))
	for _, key := range month.Days {
		b.WriteString(c.renderDay(key, doc, now))
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

func (c *CalendarCmd) renderDay(key string, doc models.Document, now time.Time) string {
	label := fmt.Sprintf("%2d", dates.FromDateKey(key).Day())
	day, ok := doc.Day(key)
	missing := dates.IsDateMissingEntry(key, doc, now, constants.MinDateKey)

	if c.Plain {
		switch {
		case ok && day.HasText():
			return plainMarks[day.Color]
		case missing:
			return " !"
		}
		return " ."
	}

	switch {
	case ok && day.HasText():
		return moodStyles[day.Color].Render(label)
	case missing:
		return missingStyle.Render(label)
	}
	return label
}
