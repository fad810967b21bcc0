// Package dates turns wall-clock times into the YYYY-MM-DD keys used by the
// document and derives the month, week and year views built on top of them.
//
// Every function that depends on "now" takes it as an argument so callers
// decide which clock and timezone apply.
package dates

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/models"
)

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var shortMonths = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Month is one month of a calendar year with its day keys in order.
type Month struct {
	Month int
	Label string
	Days  []string
}

// ToDateKey formats the local calendar day of t.
func ToDateKey(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// TodayKey returns the date key for the calendar day of now.
func TodayKey(now time.Time) string {
	return ToDateKey(now)
}

// FromDateKey returns local midnight for key.
// A malformed key yields the zero time; check with IsDateKey first.
func FromDateKey(key string) time.Time {
	t, err := time.ParseInLocation(constants.DateFormat, key, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsDateKey reports whether s is a canonical, zero-padded key for a real
// calendar day.
func IsDateKey(s string) bool {
	if !dateKeyPattern.MatchString(s) {
		return false
	}
	t, err := time.Parse(constants.DateFormat, s)
	if err != nil {
		return false
	}
	return t.Format(constants.DateFormat) == s
}

// MonthLabel returns the short English label for a month, e.g. "Jan 2025".
func MonthLabel(year, month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("%d-%02d", year, month)
	}
	return fmt.Sprintf("%s %d", shortMonths[month-1], year)
}

// MonthLength returns the number of days in month (1-12) of year.
func MonthLength(year, month int) int {
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthDays returns every date key of the month in order.
func MonthDays(year, month int) []string {
	n := MonthLength(year, month)
	days := make([]string, 0, n)
	for d := 1; d <= n; d++ {
		days = append(days, fmt.Sprintf("%04d-%02d-%02d", year, month, d))
	}
	return days
}

// YearMonths returns all twelve months of year.
func YearMonths(year int) []Month {
	months := make([]Month, 0, 12)
	for m := 1; m <= 12; m++ {
		months = append(months, Month{Month: m, Label: MonthLabel(year, m), Days: MonthDays(year, m)})
	}
	return months
}

// YearMonthsClamped returns the months of year restricted to days in
// [minKey, maxKey]. Months left without days are dropped.
func YearMonthsClamped(year int, minKey, maxKey string) []Month {
	var out []Month
	for _, m := range YearMonths(year) {
		var days []string
		for _, d := range m.Days {
			if d >= minKey && d <= maxKey {
				days = append(days, d)
			}
		}
		if len(days) == 0 {
			continue
		}
		m.Days = days
		out = append(out, m)
	}
	return out
}

// mondayOffset converts Go's Sunday-first weekday to a Monday-first index.
func mondayOffset(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// Weekday returns the Monday-first index (0-6) of the day key, or -1 when
// the key is malformed.
func Weekday(key string) int {
	if !IsDateKey(key) {
		return -1
	}
	return mondayOffset(FromDateKey(key).Weekday())
}

// WeekNumber returns the Monday-first week of the year containing t.
// Week 1 is the (possibly partial) week holding January 1.
func WeekNumber(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	adjusted := t.YearDay() + mondayOffset(jan1.Weekday())
	return int(math.Ceil(float64(adjusted) / 7))
}

// TotalWeeksInYear returns the number of weeks shown for year. A trailing
// week that spills into the next year is not counted, so the result is
// never 53.
func TotalWeeksInYear(year int) int {
	w := WeekNumber(time.Date(year, time.December, 31, 0, 0, 0, 0, time.Local))
	if w == 1 || w > 52 {
		return 52
	}
	return w
}

// YearProgress returns how much of year has elapsed as of now, in [0, 100].
func YearProgress(year int, now time.Time) float64 {
	current := now.Year()
	switch {
	case year < current:
		return 100
	case year > current:
		return 0
	}
	loc := now.Location()
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
	elapsed := now.Sub(start).Milliseconds()
	total := end.Sub(start).Milliseconds()
	return float64(elapsed) / float64(total) * 100
}

// IsDateMissingEntry reports whether key is a past day in [minKey, today)
// with no entry or only whitespace text. Today is never missing.
func IsDateMissingEntry(key string, doc models.Document, now time.Time, minKey string) bool {
	if !IsDateKey(key) || key < minKey || key >= TodayKey(now) {
		return false
	}
	day, ok := doc.Day(key)
	if !ok {
		return true
	}
	return strings.TrimSpace(day.Text) == ""
}

// AddDays shifts a date key by n calendar days.
func AddDays(key string, n int) string {
	t := FromDateKey(key)
	if t.IsZero() {
		return key
	}
	return ToDateKey(t.AddDate(0, 0, n))
}

// CurrentYear returns the calendar year of now.
func CurrentYear(now time.Time) int {
	return now.Year()
}

// ClampToMinYear raises year to MinYear when it is earlier.
func ClampToMinYear(year int) int {
	if year < constants.MinYear {
		return constants.MinYear
	}
	return year
}

// ClampYear restricts year to [MinYear, current year].
func ClampYear(year int, now time.Time) int {
	year = ClampToMinYear(year)
	if cur := CurrentYear(now); year > cur {
		return cur
	}
	return year
}

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == constants.DefaultTimezone {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// NowIn returns the current time in the specified timezone.
func NowIn(timezone string) (time.Time, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return time.Now().In(loc), nil
}
