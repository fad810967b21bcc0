package errors

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "simple error",
			err:      errors.New("storage not loaded"),
			expected: "Error: storage not loaded",
		},
		{
			name:     "with hint",
			err:      WithHint(errors.New("document is invalid"), "Run 'rocky validate' for details."),
			expected: "Error: document is invalid\n       Run 'rocky validate' for details.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Format(tt.err); result != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestHintSurvivesWrapping(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("failed to save: %w", WithHint(base, "check permissions"))

	if got := Hint(err); got != "check permissions" {
		t.Errorf("Hint = %q", got)
	}
	if !errors.Is(err, base) {
		t.Error("hinted error should unwrap to its cause")
	}
	if WithHint(nil, "x") != nil {
		t.Error("WithHint(nil) should be nil")
	}
}

func TestFormatf(t *testing.T) {
	if got := Formatf("goal %s not found", "g1"); got != "Error: goal g1 not found" {
		t.Errorf("Formatf = %q", got)
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	if code := Report(&buf, nil); code != 0 || buf.Len() != 0 {
		t.Errorf("Report(nil) = %d, wrote %q", code, buf.String())
	}
	if code := Report(&buf, errors.New("bad")); code != 1 {
		t.Errorf("Report(err) = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "Error: bad") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
