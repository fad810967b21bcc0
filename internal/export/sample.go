package export

import (
	"time"

	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/models"
)

// Sample builds a small development document relative to now: two goals
// and the last seven days.
func Sample(now time.Time) models.Document {
	today := dates.TodayKey(now)
	dayN := func(n int) string { return dates.AddDays(today, -n) }
	created := now.UTC().Format("2006-01-02T15:04:05.000Z07:00")

	doc := models.NewDocument()
	doc.Goals = []models.Goal{
		{ID: "g_hydrate", Title: "Hydrate (8 cups)", StartDate: dayN(14), CreatedAt: models.StringPtr(created)},
		{ID: "g_code", Title: "Code 30 minutes", StartDate: dayN(6), CreatedAt: models.StringPtr(created)},
	}

	type sampleDay struct {
		n     int
		text  string
		color models.DayColor
		goals []string
	}
	for _, d := range []sampleDay{
		{6, "Started tracking. Felt good.", models.ColorGreen, []string{"g_hydrate"}},
		{5, "Long day, low energy.", models.ColorYellow, []string{"g_hydrate"}},
		{4, "Great focus, shipped a feature!", models.ColorGreen, []string{"g_hydrate", "g_code"}},
		{3, "Stalled a bit; need rest.", models.ColorYellow, nil},
		{2, "Tough day.", models.ColorRed, []string{"g_hydrate"}},
		{1, "Solid progress on goals.", models.ColorGreen, []string{"g_hydrate", "g_code"}},
		{0, "Steady and calm.", models.ColorGreen, []string{"g_hydrate"}},
	} {
		doc.Days = append(doc.Days, models.DayEntry{
			Date:           dayN(d.n),
			Text:           d.text,
			Color:          d.color,
			CompletedGoals: d.goals,
		})
	}
	return doc
}
