package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/models"
)

// Result is the outcome of validating one raw value. On failure Data is the
// zero value and Errors lists every problem found.
type Result[T any] struct {
	OK       bool
	Data     T
	Warnings []string
	Errors   []string
}

// HasWarnings returns true if normalization changed anything
func (r Result[T]) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// FormatReport returns a human-readable report of errors and warnings
func (r Result[T]) FormatReport() string {
	var b strings.Builder
	if r.OK {
		b.WriteString("Document is valid.\n")
	} else {
		b.WriteString("Document is invalid:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func failed[T any](errs []string) Result[T] {
	return Result[T]{OK: false, Errors: errs}
}

// Validator normalizes raw documents into models.Document
type Validator struct {
	version      VersionPolicy
	defaultColor models.DayColor
}

// Option configures a Validator
type Option func(*Validator)

// WithVersionPolicy replaces the default lenient v1 version handling
func WithVersionPolicy(p VersionPolicy) Option {
	return func(v *Validator) {
		v.version = p
	}
}

// WithDefaultColor sets the color given to days with a missing or unknown color
func WithDefaultColor(c models.DayColor) Option {
	return func(v *Validator) {
		if c.Valid() {
			v.defaultColor = c
		}
	}
}

// New creates a new Validator
func New(opts ...Option) *Validator {
	v := &Validator{
		version:      LenientV1{},
		defaultColor: models.ColorYellow,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var defaultValidator = New()

// ValidateAppData validates raw with the default Validator.
func ValidateAppData(raw any) Result[models.Document] {
	return defaultValidator.ValidateAppData(raw)
}

// ValidateGoal validates one raw goal record.
func ValidateGoal(raw any) Result[models.Goal] {
	return defaultValidator.ValidateGoal(raw)
}

// ValidateDay validates one raw day record. When knownGoalIDs is non-nil,
// completed goal ids outside the set are dropped with a warning.
func ValidateDay(raw any, knownGoalIDs map[string]struct{}) Result[models.DayEntry] {
	return defaultValidator.ValidateDay(raw, knownGoalIDs)
}

// ValidateJSON decodes data and validates the result. Only malformed JSON
// is returned as an error; schema problems are reported in the Result.
func ValidateJSON(data []byte) (Result[models.Document], error) {
	return defaultValidator.ValidateJSON(data)
}

// ValidateJSON decodes data and validates the result.
func (v *Validator) ValidateJSON(data []byte) (Result[models.Document], error) {
	var raw any
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return Result[models.Document]{}, fmt.Errorf("failed to parse document: %w", err)
		}
	}
	return v.ValidateAppData(raw), nil
}

// ValidateGoal checks required fields and collects every error at once.
func (v *Validator) ValidateGoal(raw any) Result[models.Goal] {
	obj := asObject(raw)
	var errs []string

	id := trimmedString(obj, "id")
	if id == "" {
		errs = append(errs, "goal.id missing")
	}
	title := trimmedString(obj, "title")
	if title == "" {
		errs = append(errs, "goal.title missing")
	}

	startDate, _ := obj["startDate"].(string)
	if !dates.IsDateKey(startDate) {
		errs = append(errs, "goal.startDate invalid")
	}

	var completedAt *string
	if val, ok := obj["completedAt"]; ok && val != nil {
		if s, isStr := val.(string); isStr && dates.IsDateKey(s) {
			completedAt = &s
		} else {
			errs = append(errs, "goal.completedAt invalid")
		}
	}

	if len(errs) > 0 {
		return failed[models.Goal](errs)
	}

	return Result[models.Goal]{
		OK: true,
		Data: models.Goal{
			ID:          id,
			Title:       title,
			StartDate:   startDate,
			CompletedAt: completedAt,
			Description: optionalString(obj, "description"),
			CreatedAt:   optionalString(obj, "createdAt"),
			UpdatedAt:   optionalString(obj, "updatedAt"),
		},
	}
}

// ValidateDay checks the date and normalizes everything else.
func (v *Validator) ValidateDay(raw any, knownGoalIDs map[string]struct{}) Result[models.DayEntry] {
	obj := asObject(raw)
	var warnings []string

	date, _ := obj["date"].(string)
	if !dates.IsDateKey(date) {
		return failed[models.DayEntry]([]string{"day.date invalid"})
	}

	text, _ := obj["text"].(string)

	color := v.defaultColor
	if s, ok := obj["color"].(string); ok && models.DayColor(s).Valid() {
		color = models.DayColor(s)
	} else {
		warnings = append(warnings, fmt.Sprintf("day.color normalized to %s", v.defaultColor))
	}

	rawGoals, ok := obj["completedGoals"]
	if !ok {
		rawGoals = obj["completedHabits"]
	}
	completed := uniqueStrings(rawGoals)
	if knownGoalIDs != nil {
		filtered := make([]string, 0, len(completed))
		for _, id := range completed {
			if _, known := knownGoalIDs[id]; known {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) != len(completed) {
			warnings = append(warnings, "day.completedGoals contained unknown goal ids")
		}
		completed = filtered
	}
	if len(completed) == 0 {
		completed = nil
	}

	return Result[models.DayEntry]{
		OK: true,
		Data: models.DayEntry{
			Date:           date,
			Text:           text,
			DiaryEntry:     optionalString(obj, "diaryEntry"),
			Color:          color,
			CompletedGoals: completed,
			CreatedAt:      optionalString(obj, "createdAt"),
			UpdatedAt:      optionalString(obj, "updatedAt"),
		},
		Warnings: warnings,
	}
}

// ValidateAppData validates a whole document. Every goal and day is checked
// before deciding; any error fails the call and no document is returned.
// Duplicate goals keep the first occurrence, duplicate days keep the last.
func (v *Validator) ValidateAppData(raw any) Result[models.Document] {
	obj := asObject(raw)
	var errs, warnings []string

	rawVersion, present := obj["version"]
	version, versionWarnings := v.version.Reconcile(rawVersion, present)
	warnings = append(warnings, versionWarnings...)

	rawGoals, ok := obj["goals"].([]any)
	if !ok {
		rawGoals, _ = obj["habits"].([]any)
	}
	goals := make([]models.Goal, 0, len(rawGoals))
	known := make(map[string]struct{}, len(rawGoals))
	for i, rg := range rawGoals {
		res := v.ValidateGoal(rg)
		if !res.OK {
			errs = append(errs, tagAll(fmt.Sprintf("goals[%d]", i), res.Errors)...)
			continue
		}
		if _, dup := known[res.Data.ID]; dup {
			warnings = append(warnings, fmt.Sprintf("duplicate goal.id %s; keeping first", res.Data.ID))
			continue
		}
		known[res.Data.ID] = struct{}{}
		goals = append(goals, res.Data)
	}

	rawDays, _ := obj["days"].([]any)
	byDate := make(map[string]models.DayEntry, len(rawDays))
	for i, rd := range rawDays {
		res := v.ValidateDay(rd, known)
		if !res.OK {
			errs = append(errs, tagAll(fmt.Sprintf("days[%d]", i), res.Errors)...)
			continue
		}
		warnings = append(warnings, tagAll(fmt.Sprintf("days[%d]", i), res.Warnings)...)
		if _, dup := byDate[res.Data.Date]; dup {
			warnings = append(warnings, fmt.Sprintf("duplicate day %s; keeping last occurrence", res.Data.Date))
		}
		byDate[res.Data.Date] = res.Data
	}

	if len(errs) > 0 {
		return failed[models.Document](errs)
	}

	days := make([]models.DayEntry, 0, len(byDate))
	for _, d := range byDate {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })

	return Result[models.Document]{
		OK:       true,
		Data:     models.Document{Version: version, Days: days, Goals: goals},
		Warnings: warnings,
	}
}

// asObject treats nil and non-object input as an empty object.
func asObject(raw any) map[string]any {
	if obj, ok := raw.(map[string]any); ok {
		return obj
	}
	return map[string]any{}
}

func trimmedString(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func optionalString(obj map[string]any, key string) *string {
	if s, ok := obj[key].(string); ok {
		return &s
	}
	return nil
}

// uniqueStrings keeps the first occurrence of each string element and
// skips anything that is not a string.
func uniqueStrings(raw any) []string {
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	seen := make(map[string]struct{}, len(arr))
	for _, el := range arr {
		s, ok := el.(string)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func tagAll(prefix string, msgs []string) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = prefix + ": " + m
	}
	return out
}
