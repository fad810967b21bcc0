package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/models"
	"github.com/julianstephens/rocky/internal/session"
)

type SessionState int

const (
	StateCalendar SessionState = iota
	StateEditDay
	StateGoals
)

const statusInterval = 500 * time.Millisecond

type DayFormModel struct {
	Text       string
	DiaryEntry string
	Color      models.DayColor
}

type GoalsFormModel struct {
	Selected []string
}

type statusTickMsg time.Time

type Model struct {
	session *session.Session
	now     func() time.Time

	state    SessionState
	keys     KeyMap
	help     help.Model
	form     *huh.Form
	dayForm  *DayFormModel
	goalForm *GoalsFormModel

	year   int
	cursor string

	status   session.Status
	saveErr  error
	notice   string
	formErr  string
	quitting bool
	width    int
	height   int
}

// Option customizes a Model.
type Option func(*Model)

// WithClock replaces time.Now; tests pin the calendar with it.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		m.now = now
	}
}

// NewModel opens the calendar on today. report is the outcome of the
// session's initial load and only feeds the footer notice.
func NewModel(sess *session.Session, report session.LoadReport, opts ...Option) Model {
	m := Model{
		session: sess,
		now:     time.Now,
		state:   StateCalendar,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		status:  session.StatusReady,
	}
	for _, opt := range opts {
		opt(&m)
	}

	switch {
	case report.Legacy:
		m.notice = "Migrated to new format"
	case report.Fallback:
		m.notice = "Stored data was invalid; started with an empty diary"
	case len(report.Warnings) > 0:
		m.notice = "Loaded with warnings; run 'rocky validate' for details"
	}

	now := m.now()
	m.year = dates.ClampYear(dates.CurrentYear(now), now)
	m.cursor = m.clampCursor(dates.TodayKey(now))
	return m
}

func (m Model) Init() tea.Cmd {
	return statusTick()
}

func statusTick() tea.Cmd {
	return tea.Tick(statusInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

func (m Model) ShortHelp() []key.Binding {
	return m.keys.ShortHelp()
}

func (m Model) FullHelp() [][]key.Binding {
	return m.keys.FullHelp()
}

// Year returns the year on screen.
func (m Model) Year() int {
	return m.year
}

// Cursor returns the selected date key.
func (m Model) Cursor() string {
	return m.cursor
}

// State returns the current screen.
func (m Model) State() SessionState {
	return m.state
}

// bounds returns the first and last selectable day of the current year.
func (m Model) bounds() (string, string) {
	today := dates.TodayKey(m.now())
	first := time.Date(m.year, time.January, 1, 0, 0, 0, 0, time.Local)
	last := time.Date(m.year, time.December, 31, 0, 0, 0, 0, time.Local)
	lo, hi := dates.ToDateKey(first), dates.ToDateKey(last)
	if lo < constants.MinDateKey {
		lo = constants.MinDateKey
	}
	if hi > today {
		hi = today
	}
	return lo, hi
}

func (m Model) clampCursor(key string) string {
	lo, hi := m.bounds()
	switch {
	case key < lo:
		return lo
	case key > hi:
		return hi
	}
	return key
}

func (m *Model) moveCursor(days int) {
	m.cursor = m.clampCursor(dates.AddDays(m.cursor, days))
}

// setYear switches years keeping the cursor on the same month and day
// where that day is selectable.
func (m *Model) setYear(year int) {
	now := m.now()
	year = dates.ClampYear(year, now)
	if year == m.year {
		return
	}
	cur := dates.FromDateKey(m.cursor)
	m.year = year
	day := cur.Day()
	if n := dates.MonthLength(year, int(cur.Month())); day > n {
		day = n
	}
	moved := time.Date(year, cur.Month(), day, 0, 0, 0, 0, time.Local)
	m.cursor = m.clampCursor(dates.ToDateKey(moved))
}
