package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGoalActiveOn(t *testing.T) {
	done := "2025-03-10"
	tests := []struct {
		name string
		goal Goal
		date string
		want bool
	}{
		{"before start", Goal{StartDate: "2025-03-01"}, "2025-02-28", false},
		{"on start", Goal{StartDate: "2025-03-01"}, "2025-03-01", true},
		{"open ended", Goal{StartDate: "2025-03-01"}, "2030-01-01", true},
		{"on completion day", Goal{StartDate: "2025-03-01", CompletedAt: &done}, "2025-03-10", true},
		{"after completion", Goal{StartDate: "2025-03-01", CompletedAt: &done}, "2025-03-11", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.goal.ActiveOn(tt.date); got != tt.want {
				t.Errorf("ActiveOn(%s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestGoalArchivedAsOf(t *testing.T) {
	done := "2025-03-10"
	g := Goal{StartDate: "2025-03-01", CompletedAt: &done}

	if g.ArchivedAsOf("2025-03-10") {
		t.Error("goal completing today should still be current")
	}
	if !g.ArchivedAsOf("2025-03-11") {
		t.Error("goal completed yesterday should be archived")
	}
	if (Goal{StartDate: "2025-03-01"}).ArchivedAsOf("2099-01-01") {
		t.Error("goal without completion should never be archived")
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	diary := "long form"
	doc := Document{
		Version: 1,
		Days:    []DayEntry{{Date: "2025-01-01", Text: "a", Color: ColorGreen, DiaryEntry: &diary, CompletedGoals: []string{"g1"}}},
		Goals:   []Goal{{ID: "g1", Title: "Walk", StartDate: "2025-01-01"}},
	}

	clone := doc.Clone()
	clone.Days[0].CompletedGoals[0] = "changed"
	*clone.Days[0].DiaryEntry = "changed"
	clone.Goals[0].Title = "changed"

	if doc.Days[0].CompletedGoals[0] != "g1" {
		t.Error("clone shares completedGoals slice with original")
	}
	if *doc.Days[0].DiaryEntry != "long form" {
		t.Error("clone shares diaryEntry pointer with original")
	}
	if doc.Goals[0].Title != "Walk" {
		t.Error("clone shares goals slice with original")
	}
}

func TestDocumentDayLookup(t *testing.T) {
	doc := Document{Days: []DayEntry{{Date: "2025-01-01"}, {Date: "2025-01-03"}, {Date: "2025-01-05"}}}

	if _, ok := doc.Day("2025-01-03"); !ok {
		t.Error("expected to find 2025-01-03")
	}
	if _, ok := doc.Day("2025-01-04"); ok {
		t.Error("did not expect to find 2025-01-04")
	}

	unsorted := Document{Days: []DayEntry{{Date: "2025-02-01"}, {Date: "2025-01-01"}}}
	if i := unsorted.DayIndex("2025-01-01"); i != 1 {
		t.Errorf("DayIndex on unsorted days = %d, want 1", i)
	}
}

func TestDocumentJSONFieldNames(t *testing.T) {
	doc := NewDocument()
	doc.Days = append(doc.Days, DayEntry{Date: "2025-01-01", Text: "hi", Color: ColorRed})
	doc.Goals = append(doc.Goals, Goal{ID: "g1", Title: "Read", StartDate: "2025-01-01"})

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)

	for _, want := range []string{`"version":1`, `"days":[`, `"goals":[`, `"startDate":"2025-01-01"`, `"color":"red"`} {
		if !strings.Contains(s, want) {
			t.Errorf("encoded document %s missing %s", s, want)
		}
	}
	for _, absent := range []string{"completedGoals", "diaryEntry", "completedAt", "description"} {
		if strings.Contains(s, absent) {
			t.Errorf("encoded document should omit %s: %s", absent, s)
		}
	}
}

func TestDayColorValid(t *testing.T) {
	for _, c := range Colors {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if DayColor("blue").Valid() {
		t.Error("blue should not be valid")
	}
}
