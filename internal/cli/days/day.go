package days

import (
	"fmt"
	"strings"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/models"
	"github.com/julianstephens/rocky/internal/session"
	"github.com/julianstephens/rocky/internal/stats"
)

const summaryWidth = 60

type DayShowCmd struct {
	Date string `arg:"" optional:"" help:"Day to show (YYYY-MM-DD, today, yesterday)."`
}

func (c *DayShowCmd) Run(ctx *cli.Context) error {
	key, err := ctx.ParseDate(c.Date)
	if err != nil {
		return err
	}
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	doc := sess.Document()

	weekday := dates.FromDateKey(key).Weekday()
	ctx.Printf("%s (%s)\n", key, weekday)
	day, ok := doc.Day(key)
	if !ok {
		ctx.Println("No entry.")
		if dates.IsDateMissingEntry(key, doc, ctx.Now(), constants.MinDateKey) {
			ctx.Printf("Add one with: rocky day set %s --text \"...\"\n", key)
		}
		return nil
	}

	ctx.Printf("Mood:  %s\n", day.Color)
	if day.HasText() {
		ctx.Printf("Text:  %s\n", day.Text)
	}
	if day.DiaryEntry != nil {
		ctx.Println()
		ctx.Println(*day.DiaryEntry)
	}

	active := stats.GoalsActiveOn(doc, key)
	if len(active) > 0 {
		ctx.Println()
		ctx.Println("Goals:")
		for _, g := range active {
			mark := " "
			if day.HasGoal(g.ID) {
				mark = "✓"
			}
			ctx.Printf("  [%s] %s\n", mark, g.Title)
		}
	}
	return nil
}

type DaySetCmd struct {
	Date  string    `arg:"" optional:"" help:"Day to edit (YYYY-MM-DD, today, yesterday)."`
	Text  *string   `short:"t" help:"One-line summary of the day."`
	Color *string   `short:"c" help:"Mood color: green, yellow, red or neutral."`
	Diary *string   `short:"d" help:"Longer diary entry. Pass an empty string to clear it."`
	Goals *[]string `short:"g" help:"Replace the completed goals (ids or titles)." sep:","`
}

func (c *DaySetCmd) Run(ctx *cli.Context) error {
	key, err := ctx.ParseDate(c.Date)
	if err != nil {
		return err
	}
	if c.Text == nil && c.Color == nil && c.Diary == nil && c.Goals == nil {
		return fmt.Errorf("nothing to change; pass --text, --color, --diary or --goals")
	}
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}

	patch := session.DayPatch{Text: c.Text, DiaryEntry: c.Diary}
	if c.Color != nil {
		color := models.DayColor(strings.ToLower(strings.TrimSpace(*c.Color)))
		patch.Color = &color
	}
	if c.Goals != nil {
		doc := sess.Document()
		ids := make([]string, 0, len(*c.Goals))
		for _, ref := range *c.Goals {
			if strings.TrimSpace(ref) == "" {
				continue
			}
			g, err := cli.ResolveGoal(doc, ref)
			if err != nil {
				return err
			}
			ids = append(ids, g.ID)
		}
		patch.CompletedGoals = &ids
	}

	if err := sess.UpsertDay(key, patch); err != nil {
		return err
	}
	if err := ctx.Commit(); err != nil {
		return err
	}
	ctx.Printf("✓ Saved %s\n", key)
	return nil
}

type DayListCmd struct {
	Year    int  `help:"Year to list (defaults to the current year)."`
	Missing bool `help:"List past days that have no entry instead."`
}

func (c *DayListCmd) Run(ctx *cli.Context) error {
	now := ctx.Now()
	year := c.Year
	if year == 0 {
		year = dates.CurrentYear(now)
	}
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	doc := sess.Document()

	if c.Missing {
		missing := stats.MissingDays(doc, year, now)
		if len(missing) == 0 {
			ctx.Printf("No missing days in %d.\n", year)
			return nil
		}
		ctx.Printf("Missing entries in %d (%d):\n", year, len(missing))
		for _, key := range missing {
			ctx.Printf("  %s  %s\n", key, dates.FromDateKey(key).Weekday().String()[:3])
		}
		return nil
	}

	entries := stats.YearEntries(doc, year)
	if len(entries) == 0 {
		ctx.Printf("No entries in %d.\n", year)
		return nil
	}
	for _, d := range entries {
		goals := ""
		if n := len(d.CompletedGoals); n > 0 {
			goals = fmt.Sprintf("  [%d goal(s)]", n)
		}
		ctx.Printf("%s  %-7s %s%s\n", d.Date, d.Color, summary(d.Text), goals)
	}
	return nil
}

func summary(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i] + "…"
	}
	if r := []rune(text); len(r) > summaryWidth {
		text = string(r[:summaryWidth-1]) + "…"
	}
	return text
}
