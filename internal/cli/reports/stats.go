package reports

import (
	"encoding/json"
	"fmt"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/stats"
)

type goalReport struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Done     int     `json:"done"`
	Eligible int     `json:"eligible"`
	Percent  float64 `json:"percent"`
	Streak   int     `json:"streak"`
	Archived bool    `json:"archived"`
}

type yearReport struct {
	Year     int               `json:"year"`
	Progress float64           `json:"progress"`
	Entries  int               `json:"entries"`
	Missing  int               `json:"missing"`
	Colors   stats.ColorCounts `json:"colors"`
	Goals    []goalReport      `json:"goals"`
}

type StatsCmd struct {
	Year int  `arg:"" optional:"" help:"Year to summarize (defaults to the current year)."`
	JSON bool `help:"Print the report as JSON."`
}

func (c *StatsCmd) Run(ctx *cli.Context) error {
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
	today := ctx.Today()

	summary := stats.Summarize(doc, year, now)
	report := yearReport{
		Year:     summary.Year,
		Progress: summary.Progress,
		Entries:  summary.Entries,
		Missing:  summary.Missing,
		Colors:   summary.Colors,
		Goals:    []goalReport{},
	}
	for _, g := range doc.Goals {
		completion := stats.GoalCompletion(doc, g.ID, year, today)
		if completion.Eligible == 0 {
			continue
		}
		report.Goals = append(report.Goals, goalReport{
			ID:       g.ID,
			Title:    g.Title,
			Done:     completion.Done,
			Eligible: completion.Eligible,
			Percent:  completion.Percent(),
			Streak:   stats.CurrentStreak(doc, g.ID, today),
			Archived: g.ArchivedAsOf(today),
		})
	}

	if c.JSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		ctx.Println(string(data))
		return nil
	}

	ctx.Printf("Year %d (%.1f%% elapsed)\n\n", report.Year, report.Progress)
	ctx.Printf("Entries:  %d\n", report.Entries)
	ctx.Printf("Missing:  %d\n", report.Missing)
	ctx.Printf("Moods:    green %d, yellow %d, red %d, neutral %d\n",
		report.Colors.Green, report.Colors.Yellow, report.Colors.Red, report.Colors.Neutral)

	if len(report.Goals) == 0 {
		return nil
	}
	ctx.Println()
	ctx.Println("Goals:")
	for _, g := range report.Goals {
		suffix := ""
		if g.Archived {
			suffix = " [archived]"
		}
		ctx.Printf("  %-24s %3d/%-3d %5.1f%%  streak %d%s\n", g.Title, g.Done, g.Eligible, g.Percent, g.Streak, suffix)
	}
	return nil
}
