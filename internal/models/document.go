package models

import (
	"sort"
	"strings"

	"github.com/julianstephens/rocky/internal/constants"
)

type DayColor string

const (
	ColorRed     DayColor = "red"
	ColorYellow  DayColor = "yellow"
	ColorGreen   DayColor = "green"
	ColorNeutral DayColor = "neutral"
)

// Colors lists every color a stored day may carry.
var Colors = []DayColor{ColorRed, ColorYellow, ColorGreen, ColorNeutral}

// Valid reports whether c is one of the known day colors.
func (c DayColor) Valid() bool {
	for _, known := range Colors {
		if c == known {
			return true
		}
	}
	return false
}

type DayEntry struct {
	Date           string   `json:"date"` // YYYY-MM-DD
	Text           string   `json:"text"`
	DiaryEntry     *string  `json:"diaryEntry,omitempty"`
	Color          DayColor `json:"color"`
	CompletedGoals []string `json:"completedGoals,omitempty"`
	CreatedAt      *string  `json:"createdAt,omitempty"` // RFC3339 timestamp
	UpdatedAt      *string  `json:"updatedAt,omitempty"` // RFC3339 timestamp
}

// HasText reports whether the entry carries any non-whitespace text.
func (d DayEntry) HasText() bool {
	return strings.TrimSpace(d.Text) != ""
}

// HasGoal reports whether goalID is marked complete on this day.
func (d DayEntry) HasGoal(goalID string) bool {
	for _, id := range d.CompletedGoals {
		if id == goalID {
			return true
		}
	}
	return false
}

type Goal struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	StartDate   string  `json:"startDate"`             // YYYY-MM-DD
	CompletedAt *string `json:"completedAt,omitempty"` // YYYY-MM-DD
	CreatedAt   *string `json:"createdAt,omitempty"`
	UpdatedAt   *string `json:"updatedAt,omitempty"`
}

// ActiveOn reports whether the goal is being tracked on the given day.
// Date keys compare correctly as strings.
func (g Goal) ActiveOn(dateKey string) bool {
	if dateKey < g.StartDate {
		return false
	}
	return g.CompletedAt == nil || dateKey <= *g.CompletedAt
}

// ArchivedAsOf reports whether the goal was completed strictly before today.
func (g Goal) ArchivedAsOf(today string) bool {
	return g.CompletedAt != nil && *g.CompletedAt < today
}

// Document is the single persisted unit holding all user data.
type Document struct {
	Version int        `json:"version"`
	Days    []DayEntry `json:"days"`
	Goals   []Goal     `json:"goals"`
}

// NewDocument returns an empty document at the current schema version.
func NewDocument() Document {
	return Document{
		Version: constants.DocumentVersion,
		Days:    []DayEntry{},
		Goals:   []Goal{},
	}
}

// IsEmpty reports whether the document holds neither days nor goals.
func (d Document) IsEmpty() bool {
	return len(d.Days) == 0 && len(d.Goals) == 0
}

// Day returns the entry for dateKey, if present. Days need not be sorted.
func (d Document) Day(dateKey string) (DayEntry, bool) {
	i := d.DayIndex(dateKey)
	if i < 0 {
		return DayEntry{}, false
	}
	return d.Days[i], true
}

// DayIndex returns the position of dateKey in Days or -1.
func (d Document) DayIndex(dateKey string) int {
	i := sort.Search(len(d.Days), func(i int) bool { return d.Days[i].Date >= dateKey })
	if i < len(d.Days) && d.Days[i].Date == dateKey {
		return i
	}
	// Days may be unsorted if the caller built the document by hand.
	for j := range d.Days {
		if d.Days[j].Date == dateKey {
			return j
		}
	}
	return -1
}

// Goal returns the goal with the given id, if present.
func (d Document) Goal(id string) (Goal, bool) {
	for _, g := range d.Goals {
		if g.ID == id {
			return g, true
		}
	}
	return Goal{}, false
}

// GoalIDs returns the set of goal ids in the document.
func (d Document) GoalIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(d.Goals))
	for _, g := range d.Goals {
		ids[g.ID] = struct{}{}
	}
	return ids
}

// SortDays orders Days ascending by date key.
func (d *Document) SortDays() {
	sort.SliceStable(d.Days, func(i, j int) bool { return d.Days[i].Date < d.Days[j].Date })
}

// Clone returns a deep copy so callers can mutate it freely.
func (d Document) Clone() Document {
	out := Document{
		Version: d.Version,
		Days:    make([]DayEntry, len(d.Days)),
		Goals:   make([]Goal, len(d.Goals)),
	}
	for i, day := range d.Days {
		out.Days[i] = day.clone()
	}
	for i, g := range d.Goals {
		out.Goals[i] = g.clone()
	}
	return out
}

func (d DayEntry) clone() DayEntry {
	out := d
	out.DiaryEntry = cloneString(d.DiaryEntry)
	out.CreatedAt = cloneString(d.CreatedAt)
	out.UpdatedAt = cloneString(d.UpdatedAt)
	if d.CompletedGoals != nil {
		out.CompletedGoals = append([]string(nil), d.CompletedGoals...)
	}
	return out
}

func (g Goal) clone() Goal {
	out := g
	out.Description = cloneString(g.Description)
	out.CompletedAt = cloneString(g.CompletedAt)
	out.CreatedAt = cloneString(g.CreatedAt)
	out.UpdatedAt = cloneString(g.UpdatedAt)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
