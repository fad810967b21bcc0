package stats

import (
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/models"
)

// ColorCounts tallies day colors. Neutral days are counted separately and
// left out of Total.
type ColorCounts struct {
	Red     int `json:"red"`
	Yellow  int `json:"yellow"`
	Green   int `json:"green"`
	Neutral int `json:"neutral"`
}

// Total returns the number of red, yellow and green days
func (c ColorCounts) Total() int {
	return c.Red + c.Yellow + c.Green
}

// Completion describes how often a goal was done while it was active
type Completion struct {
	Done     int
	Eligible int
}

// Percent returns Done as a percentage of Eligible, or 0 when nothing was eligible
func (c Completion) Percent() float64 {
	if c.Eligible == 0 {
		return 0
	}
	return float64(c.Done) / float64(c.Eligible) * 100
}

// CountColors tallies the colors of days.
func CountColors(days []models.DayEntry) ColorCounts {
	var out ColorCounts
	for _, d := range days {
		switch d.Color {
		case models.ColorRed:
			out.Red++
		case models.ColorYellow:
			out.Yellow++
		case models.ColorGreen:
			out.Green++
		case models.ColorNeutral:
			out.Neutral++
		}
	}
	return out
}

// YearEntries returns the days of doc that fall in year.
func YearEntries(doc models.Document, year int) []models.DayEntry {
	prefix := strconv.Itoa(year) + "-"
	var out []models.DayEntry
	for _, d := range doc.Days {
		if strings.HasPrefix(d.Date, prefix) {
			out = append(out, d)
		}
	}
	return out
}

// ActiveGoals returns goals that are not archived as of today.
func ActiveGoals(doc models.Document, today string) []models.Goal {
	var out []models.Goal
	for _, g := range doc.Goals {
		if !g.ArchivedAsOf(today) {
			out = append(out, g)
		}
	}
	return out
}

// ArchivedGoals returns goals completed before today.
func ArchivedGoals(doc models.Document, today string) []models.Goal {
	var out []models.Goal
	for _, g := range doc.Goals {
		if g.ArchivedAsOf(today) {
			out = append(out, g)
		}
	}
	return out
}

// GoalsActiveOn returns the goals being tracked on dateKey.
func GoalsActiveOn(doc models.Document, dateKey string) []models.Goal {
	var out []models.Goal
	for _, g := range doc.Goals {
		if g.ActiveOn(dateKey) {
			out = append(out, g)
		}
	}
	return out
}

// GoalCompletion counts the days of year up to today on which the goal was
// active, and how many of those it was marked done.
func GoalCompletion(doc models.Document, goalID string, year int, today string) Completion {
	var c Completion
	goal, ok := doc.Goal(goalID)
	if !ok {
		return c
	}
	for _, m := range dates.YearMonths(year) {
		for _, key := range m.Days {
			if key > today || !goal.ActiveOn(key) {
				continue
			}
			c.Eligible++
			if day, ok := doc.Day(key); ok && day.HasGoal(goalID) {
				c.Done++
			}
		}
	}
	return c
}

// CurrentStreak counts consecutive days ending today (or yesterday, when
// today is not ticked yet) on which the goal was done.
func CurrentStreak(doc models.Document, goalID string, today string) int {
	key := today
	if day, ok := doc.Day(key); !ok || !day.HasGoal(goalID) {
		key = dates.AddDays(today, -1)
	}
	streak := 0
	for {
		day, ok := doc.Day(key)
		if !ok || !day.HasGoal(goalID) {
			return streak
		}
		streak++
		key = dates.AddDays(key, -1)
	}
}

// MissingDays lists the days of year with no usable entry, from the first
// trackable day up to yesterday.
func MissingDays(doc models.Document, year int, now time.Time) []string {
	var out []string
	for _, m := range dates.YearMonths(year) {
		for _, key := range m.Days {
			if dates.IsDateMissingEntry(key, doc, now, constants.MinDateKey) {
				out = append(out, key)
			}
		}
	}
	return out
}

// YearSummary aggregates the statistics shown for one year
type YearSummary struct {
	Year     int
	Entries  int
	Colors   ColorCounts
	Missing  int
	Progress float64
}

// Summarize builds the summary for year as of now.
func Summarize(doc models.Document, year int, now time.Time) YearSummary {
	entries := YearEntries(doc, year)
	return YearSummary{
		Year:     year,
		Entries:  len(entries),
		Colors:   CountColors(entries),
		Missing:  len(MissingDays(doc, year, now)),
		Progress: dates.YearProgress(year, now),
	}
}
