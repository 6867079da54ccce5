package javatime

import (
	"testing"
	"time"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"yyyy-MM-dd", "2006-01-02"},
		{"HH:mm:ss", "15:04:05"},
		{"yyyy-MM-dd HH:mm:ssZZZZZ", "2006-01-02 15:04:05-07:00"},
		{"yyyy-MM-dd'T'HH:mm:ss.SSSXXX", "2006-01-02T15:04:05.000Z07:00"},
		{"dd/MMM/yy h:mm a", "02/Jan/06 3:04 PM"},
		{"EEEE, d MMMM yyyy", "Monday, 2 January 2006"},
		{"''yyyy''", "'2006'"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := Layout(tt.pattern)
			if err != nil {
				t.Fatalf("Layout(%q) error = %v", tt.pattern, err)
			}
			if got != tt.want {
				t.Errorf("Layout(%q) = %q, want %q", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestLayout_Rejects(t *testing.T) {
	for _, pattern := range []string{"GGGG", "yyyy-MM-dd'T", "ssSSS"} {
		t.Run(pattern, func(t *testing.T) {
			if _, err := Layout(pattern); err == nil {
				t.Errorf("Layout(%q) error = nil, want error", pattern)
			}
		})
	}
}

func TestParseAndFormat(t *testing.T) {
	if _, err := Parse("yyyy-MM-dd", "2024-02-29"); err != nil {
		t.Errorf("Parse() error = %v", err)
	}
	if _, err := Parse("yyyy-MM-dd", "2024-13-01"); err == nil {
		t.Error("Parse() accepted month 13")
	}
	if _, err := Parse("HH:mm:ss", "not a time"); err == nil || err.Error() != "Unable to parse the date: not a time" {
		t.Errorf("Parse() error = %v", err)
	}

	ts := time.Date(2021, time.March, 4, 17, 5, 9, 0, time.UTC)
	got, err := Format("yyyy-MM-dd'T'HH:mm:ss", ts)
	if err != nil {
		t.Fatal(err)
	}
	if got != "2021-03-04T17:05:09" {
		t.Errorf("Format() = %q, want 2021-03-04T17:05:09", got)
	}
}
