// Package session owns the in-memory document and its autosave pipeline.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/logger"
	"github.com/julianstephens/rocky/internal/models"
	"github.com/julianstephens/rocky/internal/storage"
	"github.com/julianstephens/rocky/internal/validation"
)

var (
	ErrInvalidDate  = errors.New("invalid date key")
	ErrInvalidColor = errors.New("invalid day color")
	ErrUnknownGoal  = errors.New("unknown goal")
	ErrEmptyTitle   = errors.New("goal title cannot be empty")
	ErrClosed       = errors.New("session is closed")
)

// timestampLayout matches JavaScript's Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

const saveTimeout = 30 * time.Second

type Status string

const (
	StatusReady  Status = "Ready"
	StatusSaving Status = "Saving"
	StatusSaved  Status = "Saved"
	StatusError  Status = "Error saving"
)

// LoadReport describes how the document was obtained.
type LoadReport struct {
	// Found is false when the backend held nothing yet.
	Found bool
	// Fallback is set when the stored data failed validation and the
	// empty document is in use instead.
	Fallback bool
	// Legacy is set when the stored data was the old {message} demo shape.
	Legacy   bool
	Warnings []string
	Errors   []string
}

// DayPatch holds the fields to change on a day. Nil fields are left alone.
type DayPatch struct {
	Text           *string
	DiaryEntry     *string
	Color          *models.DayColor
	CompletedGoals *[]string
}

// GoalInput describes a new goal. An empty StartDate means today.
type GoalInput struct {
	Title       string
	Description *string
	StartDate   string
	CompletedAt *string
}

// GoalPatch holds the fields to change on a goal. Nil fields are left alone.
type GoalPatch struct {
	Title       *string
	Description *string
	StartDate   *string
	CompletedAt *string
}

type Session struct {
	mu       sync.Mutex
	provider storage.Provider
	doc      models.Document

	status  Status
	lastErr error

	debounce time.Duration
	timer    *time.Timer
	dirty    bool
	// stored is set once the provider is known to hold a non-empty
	// document. Until then the empty document is never written.
	stored   bool
	saving   bool
	pending  bool
	closed   bool
	saveDone chan struct{}

	now         func() time.Time
	newID       func() string
	onSaveError func(error)
}

type Option func(*Session)

// WithDebounce sets the quiet period before an autosave.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		s.debounce = d
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithIDGenerator overrides goal id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) {
		s.newID = fn
	}
}

// WithOnSaveError registers a callback for failed saves.
func WithOnSaveError(fn func(error)) Option {
	return func(s *Session) {
		s.onSaveError = fn
	}
}

func New(provider storage.Provider, opts ...Option) *Session {
	s := &Session{
		provider: provider,
		doc:      models.NewDocument(),
		status:   StatusReady,
		debounce: constants.SaveDebounce,
		now:      time.Now,
		newID:    func() string { return "g_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads and validates the stored document. Any failure leaves the
// empty document in place; I/O errors are also returned.
func (s *Session) Load(ctx context.Context) (LoadReport, error) {
	var report LoadReport
	raw, err := s.provider.Load(ctx)
	if err != nil {
		s.replace(models.NewDocument(), false)
		if errors.Is(err, storage.ErrNotFound) {
			return report, nil
		}
		report.Fallback = true
		return report, fmt.Errorf("failed to load document: %w", err)
	}
	report.Found = true

	result, err := validation.ValidateJSON(raw)
	if err != nil {
		s.replace(models.NewDocument(), false)
		report.Fallback = true
		report.Errors = []string{err.Error()}
		return report, nil
	}

	report.Warnings = result.Warnings
	if !result.OK {
		report.Fallback = true
		report.Errors = result.Errors
		report.Legacy = isLegacy(raw)
		s.replace(models.NewDocument(), false)
		logger.Warn("Stored document failed validation", "errors", len(result.Errors))
		return report, nil
	}

	report.Legacy = result.Data.IsEmpty() && isLegacy(raw)
	s.replace(result.Data, false)
	logger.Debug("Document loaded", "days", len(result.Data.Days), "goals", len(result.Data.Goals))
	return report, nil
}

func isLegacy(raw json.RawMessage) bool {
	var demo struct {
		Message *string `json:"message"`
	}
	return json.Unmarshal(raw, &demo) == nil && demo.Message != nil && *demo.Message != ""
}

// Replace swaps in a whole document and schedules a save.
func (s *Session) Replace(doc models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	doc = doc.Clone()
	doc.SortDays()
	s.doc = doc
	s.touchLocked()
	return nil
}

func (s *Session) replace(doc models.Document, dirty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.dirty = dirty
	s.stored = !doc.IsEmpty()
}

// Document returns a copy of the current document.
func (s *Session) Document() models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Status returns the save status and the last save error, if any.
func (s *Session) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastErr
}

// Today returns today's date key by the session clock.
func (s *Session) Today() string {
	return dates.TodayKey(s.now())
}

func (s *Session) timestamp() *string {
	ts := s.now().UTC().Format(timestampLayout)
	return &ts
}

// UpsertDay applies patch to the day, creating it with the default yellow
// color if it does not exist.
func (s *Session) UpsertDay(key string, patch DayPatch) error {
	if !dates.IsDateKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, key)
	}
	if patch.Color != nil && !patch.Color.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidColor, *patch.Color)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if patch.CompletedGoals != nil {
		for _, id := range *patch.CompletedGoals {
			if _, ok := s.doc.Goal(id); !ok {
				return fmt.Errorf("%w: %s", ErrUnknownGoal, id)
			}
		}
	}

	i := s.doc.DayIndex(key)
	if i < 0 {
		day := models.DayEntry{Date: key, Color: models.ColorYellow, CreatedAt: s.timestamp()}
		applyDayPatch(&day, patch)
		day.UpdatedAt = s.timestamp()
		s.insertDayLocked(day)
	} else {
		applyDayPatch(&s.doc.Days[i], patch)
		s.doc.Days[i].UpdatedAt = s.timestamp()
	}
	s.touchLocked()
	return nil
}

func applyDayPatch(day *models.DayEntry, patch DayPatch) {
	if patch.Text != nil {
		day.Text = *patch.Text
	}
	if patch.DiaryEntry != nil {
		if *patch.DiaryEntry == "" {
			day.DiaryEntry = nil
		} else {
			day.DiaryEntry = models.StringPtr(*patch.DiaryEntry)
		}
	}
	if patch.Color != nil {
		day.Color = *patch.Color
	}
	if patch.CompletedGoals != nil {
		day.CompletedGoals = dedupe(*patch.CompletedGoals)
	}
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Session) insertDayLocked(day models.DayEntry) {
	i := sort.Search(len(s.doc.Days), func(i int) bool { return s.doc.Days[i].Date >= day.Date })
	s.doc.Days = append(s.doc.Days, models.DayEntry{})
	copy(s.doc.Days[i+1:], s.doc.Days[i:])
	s.doc.Days[i] = day
}

// ToggleGoal flips the goal's completion on a day. A missing day is
// created green with the goal completed.
func (s *Session) ToggleGoal(key, goalID string) error {
	if !dates.IsDateKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.doc.Goal(goalID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGoal, goalID)
	}

	i := s.doc.DayIndex(key)
	if i < 0 {
		s.insertDayLocked(models.DayEntry{
			Date:           key,
			Color:          models.ColorGreen,
			CompletedGoals: []string{goalID},
			CreatedAt:      s.timestamp(),
			UpdatedAt:      s.timestamp(),
		})
		s.touchLocked()
		return nil
	}

	day := &s.doc.Days[i]
	if day.HasGoal(goalID) {
		day.CompletedGoals = without(day.CompletedGoals, goalID)
	} else {
		day.CompletedGoals = append(day.CompletedGoals, goalID)
	}
	day.UpdatedAt = s.timestamp()
	s.touchLocked()
	return nil
}

func without(ids []string, drop string) []string {
	var out []string
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

// AddGoal creates a goal with a fresh "g_" id.
func (s *Session) AddGoal(in GoalInput) (models.Goal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Goal{}, ErrEmptyTitle
	}
	start := strings.TrimSpace(in.StartDate)
	if start == "" {
		start = s.Today()
	}
	if !dates.IsDateKey(start) {
		return models.Goal{}, fmt.Errorf("%w: start date %q", ErrInvalidDate, start)
	}
	if in.CompletedAt != nil && !dates.IsDateKey(*in.CompletedAt) {
		return models.Goal{}, fmt.Errorf("%w: completion date %q", ErrInvalidDate, *in.CompletedAt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.Goal{}, ErrClosed
	}

	goal := models.Goal{
		ID:        s.newID(),
		Title:     title,
		StartDate: start,
		CreatedAt: s.timestamp(),
		UpdatedAt: s.timestamp(),
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) != "" {
		goal.Description = models.StringPtr(strings.TrimSpace(*in.Description))
	}
	if in.CompletedAt != nil {
		goal.CompletedAt = models.StringPtr(*in.CompletedAt)
	}
	s.doc.Goals = append(s.doc.Goals, goal)
	s.touchLocked()
	return goal, nil
}

// UpdateGoal applies patch to the goal. An empty CompletedAt clears it.
func (s *Session) UpdateGoal(id string, patch GoalPatch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return ErrEmptyTitle
	}
	if patch.StartDate != nil && !dates.IsDateKey(*patch.StartDate) {
		return fmt.Errorf("%w: start date %q", ErrInvalidDate, *patch.StartDate)
	}
	if patch.CompletedAt != nil && *patch.CompletedAt != "" && !dates.IsDateKey(*patch.CompletedAt) {
		return fmt.Errorf("%w: completion date %q", ErrInvalidDate, *patch.CompletedAt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	g := s.goalLocked(id)
	if g == nil {
		return fmt.Errorf("%w: %s", ErrUnknownGoal, id)
	}

	if patch.Title != nil {
		g.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		if d := strings.TrimSpace(*patch.Description); d != "" {
			g.Description = &d
		} else {
			g.Description = nil
		}
	}
	if patch.StartDate != nil {
		g.StartDate = *patch.StartDate
	}
	if patch.CompletedAt != nil {
		if *patch.CompletedAt == "" {
			g.CompletedAt = nil
		} else {
			g.CompletedAt = models.StringPtr(*patch.CompletedAt)
		}
	}
	g.UpdatedAt = s.timestamp()
	s.touchLocked()
	return nil
}

func (s *Session) goalLocked(id string) *models.Goal {
	for i := range s.doc.Goals {
		if s.doc.Goals[i].ID == id {
			return &s.doc.Goals[i]
		}
	}
	return nil
}

// ArchiveGoal marks the goal completed on the given day, or today when on
// is empty.
func (s *Session) ArchiveGoal(id, on string) error {
	if on == "" {
		on = s.Today()
	}
	return s.UpdateGoal(id, GoalPatch{CompletedAt: &on})
}

// UnarchiveGoal clears the goal's completion date.
func (s *Session) UnarchiveGoal(id string) error {
	empty := ""
	return s.UpdateGoal(id, GoalPatch{CompletedAt: &empty})
}

// DeleteGoal removes the goal and every completion that references it.
func (s *Session) DeleteGoal(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.goalLocked(id) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownGoal, id)
	}

	goals := s.doc.Goals[:0]
	for _, g := range s.doc.Goals {
		if g.ID != id {
			goals = append(goals, g)
		}
	}
	s.doc.Goals = goals
	for i := range s.doc.Days {
		if s.doc.Days[i].HasGoal(id) {
			s.doc.Days[i].CompletedGoals = without(s.doc.Days[i].CompletedGoals, id)
		}
	}
	s.touchLocked()
	return nil
}

// touchLocked marks the document dirty and re-arms the debounce timer.
func (s *Session) touchLocked() {
	s.dirty = true
	if !s.saving {
		s.setStatusLocked(StatusSaving)
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.autosave)
		return
	}
	s.timer.Reset(s.debounce)
}

func (s *Session) setStatusLocked(status Status) {
	if s.status == status {
		return
	}
	s.status = status
}

func (s *Session) autosave() {
	s.mu.Lock()
	if s.saving {
		s.pending = true
		s.mu.Unlock()
		return
	}
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	if s.doc.IsEmpty() && !s.stored {
		logger.Debug("Autosave skipped: empty document")
		s.dirty = false
		s.setStatusLocked(StatusReady)
		s.mu.Unlock()
		return
	}
	snapshot := s.beginSaveLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	err := s.provider.Save(ctx, snapshot)
	s.finishSave(snapshot, err)
}

func (s *Session) beginSaveLocked() models.Document {
	s.saving = true
	s.dirty = false
	s.saveDone = make(chan struct{})
	return s.doc.Clone()
}

func (s *Session) finishSave(snapshot models.Document, err error) {
	s.mu.Lock()
	s.saving = false
	s.lastErr = err
	close(s.saveDone)
	if err != nil {
		// Keep the changes pending so Flush can retry them.
		s.dirty = true
		s.setStatusLocked(StatusError)
		logger.Error("Autosave failed", "error", err)
	} else {
		if !snapshot.IsEmpty() {
			s.stored = true
		}
		s.setStatusLocked(StatusSaved)
	}
	rerun := s.pending && s.dirty && !s.closed
	s.pending = false
	onErr := s.onSaveError
	s.mu.Unlock()

	if err != nil && onErr != nil {
		onErr(err)
	}
	if rerun {
		s.autosave()
	}
}

// Flush stops the debounce timer, waits for an in-flight save and then
// saves any remaining changes. The empty document is only saved when it
// replaces one that was stored before.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	for s.saving {
		done := s.saveDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}

	if !s.dirty || (s.doc.IsEmpty() && !s.stored) {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.beginSaveLocked()
	s.mu.Unlock()

	err := s.provider.Save(ctx, snapshot)
	s.finishSave(snapshot, err)
	return err
}

// Close flushes pending changes and rejects further mutations. The
// provider is left open for its owner to close.
func (s *Session) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}
