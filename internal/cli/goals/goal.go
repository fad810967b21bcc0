package goals

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/session"
	"github.com/julianstephens/rocky/internal/stats"
)

type GoalAddCmd struct {
	Title       string  `arg:"" help:"Goal title."`
	Description *string `short:"d" help:"Optional description."`
	Start       string  `short:"s" help:"First day the goal is tracked (YYYY-MM-DD, today, yesterday)."`
}

func (c *GoalAddCmd) Run(ctx *cli.Context) error {
	start, err := ctx.ParseDate(c.Start)
	if err != nil {
		return err
	}
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	goal, err := sess.AddGoal(session.GoalInput{
		Title:       c.Title,
		Description: c.Description,
		StartDate:   start,
	})
	if err != nil {
		return err
	}
	if err := ctx.Commit(); err != nil {
		return err
	}
	ctx.Printf("Added goal: %s (%s), starting %s\n", goal.Title, goal.ID, goal.StartDate)
	return nil
}

type GoalListCmd struct {
	All  bool `short:"a" help:"Include archived goals."`
	Year int  `help:"Year used for completion rates (defaults to the current year)."`
}

func (c *GoalListCmd) Run(ctx *cli.Context) error {
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	doc := sess.Document()
	today := ctx.Today()
	year := c.Year
	if year == 0 {
		year = dates.CurrentYear(ctx.Now())
	}

	active := stats.ActiveGoals(doc, today)
	archived := stats.ArchivedGoals(doc, today)
	if len(active) == 0 && (!c.All || len(archived) == 0) {
		ctx.Println("No goals found.")
		return nil
	}

	for _, g := range active {
		completion := stats.GoalCompletion(doc, g.ID, year, today)
		ctx.Printf("%s  %s\n", g.ID, g.Title)
		ctx.Printf("    since %s  %d/%d days (%.0f%%)  streak %d\n",
			g.StartDate, completion.Done, completion.Eligible, completion.Percent(),
			stats.CurrentStreak(doc, g.ID, today))
	}
	if c.All && len(archived) > 0 {
		ctx.Println()
		ctx.Println("Archived:")
		for _, g := range archived {
			ctx.Printf("%s  %s  [completed %s]\n", g.ID, g.Title, *g.CompletedAt)
		}
	}
	return nil
}

type GoalEditCmd struct {
	Goal        string  `arg:"" help:"Goal id or title."`
	Title       *string `short:"t" help:"New title."`
	Description *string `short:"d" help:"New description. Pass an empty string to clear it."`
	Start       *string `short:"s" help:"New start date (YYYY-MM-DD)."`
}

func (c *GoalEditCmd) Run(ctx *cli.Context) error {
	if c.Title == nil && c.Description == nil && c.Start == nil {
		return fmt.Errorf("nothing to change; pass --title, --description or --start")
	}
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	goal, err := cli.ResolveGoal(sess.Document(), c.Goal)
	if err != nil {
		return err
	}

	patch := session.GoalPatch{Title: c.Title, Description: c.Description}
	if c.Start != nil {
		start, err := ctx.ParseDate(*c.Start)
		if err != nil {
			return err
		}
		patch.StartDate = &start
	}
	if err := sess.UpdateGoal(goal.ID, patch); err != nil {
		return err
	}
	if err := ctx.Commit(); err != nil {
		return err
	}
	ctx.Printf("Updated goal: %s\n", goal.ID)
	return nil
}

type GoalArchiveCmd struct {
	Goal string `arg:"" help:"Goal id or title."`
	On   string `help:"Completion day (defaults to today)."`
}

func (c *GoalArchiveCmd) Run(ctx *cli.Context) error {
	on, err := ctx.ParseDate(c.On)
	if err != nil {
		return err
	}
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	goal, err := cli.ResolveGoal(sess.Document(), c.Goal)
	if err != nil {
		return err
	}
	if err := sess.ArchiveGoal(goal.ID, on); err != nil {
		return err
	}
	if err := ctx.Commit(); err != nil {
		return err
	}
	ctx.Printf("Archived goal: %s (completed %s)\n", goal.Title, on)
	return nil
}

type GoalUnarchiveCmd struct {
	Goal string `arg:"" help:"Goal id or title."`
}

func (c *GoalUnarchiveCmd) Run(ctx *cli.Context) error {
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	goal, err := cli.ResolveGoal(sess.Document(), c.Goal)
	if err != nil {
		return err
	}
	if goal.CompletedAt == nil {
		ctx.Printf("Goal %s is not archived.\n", goal.Title)
		return nil
	}
	if err := sess.UnarchiveGoal(goal.ID); err != nil {
		return err
	}
	if err := ctx.Commit(); err != nil {
		return err
	}
	ctx.Printf("Restored goal: %s\n", goal.Title)
	return nil
}

type GoalDeleteCmd struct {
	Goal string `arg:"" help:"Goal id or title."`
	Yes  bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *GoalDeleteCmd) Run(ctx *cli.Context) error {
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	doc := sess.Document()
	goal, err := cli.ResolveGoal(doc, c.Goal)
	if err != nil {
		return err
	}

	if !c.Yes {
		marked := 0
		for _, d := range doc.Days {
			if d.HasGoal(goal.ID) {
				marked++
			}
		}
		ctx.Printf("Delete %q and its %d completion mark(s)? [y/N]: ", goal.Title, marked)
		response, err := bufio.NewReader(ctx.In).ReadString('\n')
		if err != nil && response == "" {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			ctx.Println("Delete cancelled.")
			return nil
		}
	}

	if err := sess.DeleteGoal(goal.ID); err != nil {
		return err
	}
	if err := ctx.Commit(); err != nil {
		return err
	}
	ctx.Printf("Deleted goal: %s\n", goal.Title)
	return nil
}

type GoalMarkCmd struct {
	Goal string `arg:"" help:"Goal id or title."`
	Date string `arg:"" optional:"" help:"Day to toggle (defaults to today)."`
}

func (c *GoalMarkCmd) Run(ctx *cli.Context) error {
	key, err := ctx.ParseDate(c.Date)
	if err != nil {
		return err
	}
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	goal, err := cli.ResolveGoal(sess.Document(), c.Goal)
	if err != nil {
		return err
	}
	if err := sess.ToggleGoal(key, goal.ID); err != nil {
		return err
	}
	if err := ctx.Commit(); err != nil {
		return err
	}

	day, _ := sess.Document().Day(key)
	if day.HasGoal(goal.ID) {
		ctx.Printf("✓ %s done on %s\n", goal.Title, key)
	} else {
		ctx.Printf("○ %s cleared on %s\n", goal.Title, key)
	}
	return nil
}

type GoalLogCmd struct {
	Goal string `arg:"" help:"Goal id or title."`
	Days int    `default:"14" help:"Number of days to show."`
}

func (c *GoalLogCmd) Run(ctx *cli.Context) error {
	if c.Days <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	doc := sess.Document()
	goal, err := cli.ResolveGoal(doc, c.Goal)
	if err != nil {
		return err
	}

	today := ctx.Today()
	ctx.Printf("%s (last %d days)\n\n", goal.Title, c.Days)
	for i := c.Days - 1; i >= 0; i-- {
		key := dates.AddDays(today, -i)
		mark := " "
		if goal.ActiveOn(key) {
			mark = "·"
			if day, ok := doc.Day(key); ok && day.HasGoal(goal.ID) {
				mark = "✓"
			}
		}
		ctx.Printf("  %s  %s\n", key, mark)
	}
	ctx.Printf("\nCurrent streak: %d\n", stats.CurrentStreak(doc, goal.ID, today))
	return nil
}
