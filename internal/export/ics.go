package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/models"
)

// ICSOptions narrows what goes into the feed.
type ICSOptions struct {
	// Year limits the feed to one year; zero exports every day.
	Year int
	// Stamp is written as DTSTAMP; zero means time.Now.
	Stamp time.Time
}

var moodLabels = map[models.DayColor]string{
	models.ColorGreen:   "Good day",
	models.ColorYellow:  "Okay day",
	models.ColorRed:     "Hard day",
	models.ColorNeutral: "Day",
}

// ICS writes one all-day VEVENT per day entry.
func ICS(w io.Writer, doc models.Document, opts ICSOptions) (int, error) {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(fmt.Sprintf("-//%s//%s//EN", constants.AppName, constants.Version))
	cal.SetName(constants.AppName + " diary")

	titles := make(map[string]string, len(doc.Goals))
	for _, g := range doc.Goals {
		titles[g.ID] = g.Title
	}

	count := 0
	prefix := ""
	if opts.Year != 0 {
		prefix = fmt.Sprintf("%04d-", opts.Year)
	}
	for _, day := range doc.Days {
		if !strings.HasPrefix(day.Date, prefix) {
			continue
		}
		start := dates.FromDateKey(day.Date)
		if start.IsZero() {
			continue
		}

		ev := cal.AddEvent(fmt.Sprintf("%s-%s@%s", constants.AppName, day.Date, constants.AppName))
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(start)
		ev.SetAllDayEndAt(start.AddDate(0, 0, 1))
		ev.SetSummary(summary(day))

		if day.DiaryEntry != nil && strings.TrimSpace(*day.DiaryEntry) != "" {
			ev.SetDescription(strings.TrimSpace(*day.DiaryEntry))
		}
		var done []string
		for _, id := range day.CompletedGoals {
			if title, ok := titles[id]; ok {
				done = append(done, title)
			}
		}
		if len(done) > 0 {
			ev.SetProperty(ical.ComponentPropertyCategories, strings.Join(done, ","))
		}
		count++
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return 0, fmt.Errorf("failed to write calendar: %w", err)
	}
	return count, nil
}

func summary(day models.DayEntry) string {
	label, ok := moodLabels[day.Color]
	if !ok {
		label = moodLabels[models.ColorNeutral]
	}
	text := strings.TrimSpace(day.Text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	if text == "" {
		return label
	}
	return label + ": " + text
}
