package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/models"
	"github.com/julianstephens/rocky/internal/session"
	"github.com/julianstephens/rocky/internal/stats"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
	case statusTickMsg:
		m.status, m.saveErr = m.session.Status()
		return m, statusTick()
	}

	if m.state == StateEditDay || m.state == StateGoals {
		return m.updateForm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(keyMsg, m.keys.PrevYear):
		m.setYear(m.year - 1)
	case key.Matches(keyMsg, m.keys.NextYear):
		m.setYear(m.year + 1)
	case key.Matches(keyMsg, m.keys.Left):
		m.moveCursor(-1)
	case key.Matches(keyMsg, m.keys.Right):
		m.moveCursor(1)
	case key.Matches(keyMsg, m.keys.Up):
		m.moveCursor(-7)
	case key.Matches(keyMsg, m.keys.Down):
		m.moveCursor(7)
	case key.Matches(keyMsg, m.keys.Today):
		now := m.now()
		m.year = dates.ClampYear(dates.CurrentYear(now), now)
		m.cursor = m.clampCursor(dates.TodayKey(now))
	case key.Matches(keyMsg, m.keys.Enter):
		cmd := m.openDayForm()
		return m, cmd
	case key.Matches(keyMsg, m.keys.Goals):
		cmd := m.openGoalsForm()
		return m, cmd
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		m.state = StateCalendar
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		var err error
		if m.state == StateEditDay {
			err = m.applyDayForm()
		} else {
			err = m.applyGoalsForm()
		}
		if err != nil {
			m.formErr = err.Error()
		} else {
			m.formErr = ""
		}
		m.state = StateCalendar
		return m, nil
	case huh.StateAborted:
		m.state = StateCalendar
		return m, nil
	}
	return m, cmd
}

func (m *Model) openDayForm() tea.Cmd {
	day, ok := m.session.Document().Day(m.cursor)
	m.dayForm = &DayFormModel{Color: models.ColorYellow}
	if ok {
		m.dayForm.Text = day.Text
		m.dayForm.Color = day.Color
		if day.DiaryEntry != nil {
			m.dayForm.DiaryEntry = *day.DiaryEntry
		}
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("How was " + m.cursor + "?").
				Value(&m.dayForm.Text),
			huh.NewSelect[models.DayColor]().
				Title("Mood").
				Options(
					huh.NewOption("Good", models.ColorGreen),
					huh.NewOption("Okay", models.ColorYellow),
					huh.NewOption("Hard", models.ColorRed),
					huh.NewOption("Neutral", models.ColorNeutral),
				).
				Value(&m.dayForm.Color),
			huh.NewText().
				Title("Diary entry").
				Value(&m.dayForm.DiaryEntry),
		),
	)
	m.state = StateEditDay
	return m.form.Init()
}

func (m *Model) applyDayForm() error {
	patch := session.DayPatch{
		Text:       &m.dayForm.Text,
		DiaryEntry: &m.dayForm.DiaryEntry,
		Color:      &m.dayForm.Color,
	}
	return m.session.UpsertDay(m.cursor, patch)
}

func (m *Model) openGoalsForm() tea.Cmd {
	doc := m.session.Document()
	active := stats.GoalsActiveOn(doc, m.cursor)
	if len(active) == 0 {
		m.formErr = fmt.Sprintf("No goals active on %s; add one with 'rocky goal add'", m.cursor)
		return nil
	}

	day, _ := doc.Day(m.cursor)
	m.goalForm = &GoalsFormModel{}
	options := make([]huh.Option[string], 0, len(active))
	for _, g := range active {
		done := day.HasGoal(g.ID)
		if done {
			m.goalForm.Selected = append(m.goalForm.Selected, g.ID)
		}
		options = append(options, huh.NewOption(g.Title, g.ID).Selected(done))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Goals done on " + m.cursor).
				Options(options...).
				Value(&m.goalForm.Selected),
		),
	)
	m.state = StateGoals
	return m.form.Init()
}

// applyGoalsForm toggles every active goal whose state changed.
func (m *Model) applyGoalsForm() error {
	doc := m.session.Document()
	day, _ := doc.Day(m.cursor)
	selected := make(map[string]bool, len(m.goalForm.Selected))
	for _, id := range m.goalForm.Selected {
		selected[id] = true
	}
	for _, g := range stats.GoalsActiveOn(doc, m.cursor) {
		if selected[g.ID] == day.HasGoal(g.ID) {
			continue
		}
		if err := m.session.ToggleGoal(m.cursor, g.ID); err != nil {
			return err
		}
	}
	return nil
}
