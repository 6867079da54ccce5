// internal/generators/expressions_test.go
package generators

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pact-foundation/pactengine/internal/types"
)

// Wednesday
var exprBase = time.Date(2024, time.March, 13, 10, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

func TestExecuteDateExpression(t *testing.T) {
	tests := []struct {
		expr string
		base time.Time
		want time.Time
	}{
		{"", exprBase, exprBase},
		{"today", exprBase, exprBase},
		{"now", exprBase, exprBase},
		{"+1 day", exprBase, day(2024, time.March, 14)},
		{"- 3 days", exprBase, day(2024, time.March, 10)},
		{"yesterday", exprBase, day(2024, time.March, 12)},
		{"tomorrow + 2 weeks", exprBase, day(2024, time.March, 28)},
		{"yesterday - 1 month", exprBase, day(2024, time.February, 12)},
		{"today + 1 year - 2 days", exprBase, day(2025, time.March, 11)},
		{"next monday", exprBase, day(2024, time.March, 18)},
		{"next wednesday", exprBase, day(2024, time.March, 20)},
		{"last friday", exprBase, day(2024, time.March, 8)},
		{"last wed", exprBase, day(2024, time.March, 6)},
		{"next monday + 2 days", exprBase, day(2024, time.March, 20)},
		{"next fortnight", exprBase, day(2024, time.March, 27)},
		{"next month", exprBase, day(2024, time.April, 13)},
		{"last year", exprBase, day(2023, time.March, 13)},
		{"next january", exprBase, day(2025, time.January, 1)},
		{"last march", exprBase, day(2023, time.March, 1)},
		{"next may", exprBase, day(2024, time.May, 1)},
		{"Tomorrow", exprBase, day(2024, time.March, 14)},
		{"+1 month", day(2024, time.January, 31), day(2024, time.February, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ExecuteDateExpression(tt.base, tt.expr)
			if err != nil {
				t.Fatalf("ExecuteDateExpression(%q) error = %v", tt.expr, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ExecuteDateExpression(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestExecuteDateExpression_WeekdayIsStrict(t *testing.T) {
	monday := day(2024, time.March, 11)
	got, err := ExecuteDateExpression(monday, "next monday")
	if err != nil {
		t.Fatal(err)
	}
	if want := day(2024, time.March, 18); !got.Equal(want) {
		t.Errorf("next monday from a Monday = %v, want %v", got, want)
	}

	friday := day(2024, time.March, 15)
	got, err = ExecuteDateExpression(friday, "last friday")
	if err != nil {
		t.Fatal(err)
	}
	if want := day(2024, time.March, 8); !got.Equal(want) {
		t.Errorf("last friday from a Friday = %v, want %v", got, want)
	}
}

func TestExecuteDateExpression_Errors(t *testing.T) {
	tests := []struct {
		expr    string
		wantMsg string
	}{
		{"+1 parsecs", "Error parsing expression: Was expecting a duration type at index 3"},
		{"next blah", "Error parsing expression: Was expecting an offset type at index 5"},
		{"today blah", "Error parsing expression: Unexpected characters 'blah' at index 6"},
		{"+ days", "Error parsing expression: Was expecting an integer at index 2"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ExecuteDateExpression(exprBase, tt.expr)
			if err == nil {
				t.Fatalf("ExecuteDateExpression(%q) error = nil, want error", tt.expr)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("ExecuteDateExpression(%q) error = %q, want %q", tt.expr, err.Error(), tt.wantMsg)
			}
			if !errors.Is(err, types.ErrInvalidExpression) {
				t.Errorf("errors.Is(err, ErrInvalidExpression) = false")
			}
		})
	}
}

func TestExecuteTimeExpression(t *testing.T) {
	at := func(h, m, s int) time.Time {
		return time.Date(2024, time.March, 13, h, m, s, 0, time.UTC)
	}
	tests := []struct {
		expr string
		want time.Time
	}{
		{"", exprBase},
		{"now", exprBase},
		{"midnight", at(0, 0, 0)},
		{"noon", at(12, 0, 0)},
		{"3 o'clock pm", at(15, 0, 0)},
		{"3 o'clock am", at(3, 0, 0)},
		{"12 o'clock am", at(0, 0, 0)},
		{"2 o'clock", at(14, 0, 0)},
		{"now + 1 hour", at(11, 30, 0)},
		{"+ 30 minutes", at(11, 0, 0)},
		{"next hour", at(11, 30, 0)},
		{"last minute", at(10, 29, 0)},
		{"midnight + 90 seconds", at(0, 1, 30)},
		{"noon - 500 milliseconds", at(11, 59, 59).Add(500 * time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ExecuteTimeExpression(exprBase, tt.expr)
			if err != nil {
				t.Fatalf("ExecuteTimeExpression(%q) error = %v", tt.expr, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ExecuteTimeExpression(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestExecuteTimeExpression_Errors(t *testing.T) {
	tests := []struct {
		expr    string
		wantMsg string
	}{
		{"13 o'clock", "Error parsing expression: Hour must be between 1 and 12, got 13"},
		{"3 oclock", "Error parsing expression: Was expecting a clock hour at index 2"},
		{"noon + 2 fortnights", "Error parsing expression: Was expecting a duration type at index 9"},
		{"next day", "Error parsing expression: Was expecting an offset type at index 5"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ExecuteTimeExpression(exprBase, tt.expr)
			if err == nil || err.Error() != tt.wantMsg {
				t.Errorf("ExecuteTimeExpression(%q) error = %v, want %q", tt.expr, err, tt.wantMsg)
			}
		})
	}
}

func TestExecuteDateTimeExpression(t *testing.T) {
	tests := []struct {
		expr string
		want time.Time
	}{
		{"tomorrow @ noon", time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)},
		{"next friday @ 3 o'clock pm + 15 minutes", time.Date(2024, time.March, 15, 15, 15, 0, 0, time.UTC)},
		{"@ midnight", time.Date(2024, time.March, 13, 0, 0, 0, 0, time.UTC)},
		{"+2 days", day(2024, time.March, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ExecuteDateTimeExpression(exprBase, tt.expr)
			if err != nil {
				t.Fatalf("ExecuteDateTimeExpression(%q) error = %v", tt.expr, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ExecuteDateTimeExpression(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

// Property: "+N days" and "-N days" are plain calendar arithmetic.
func TestExecuteDateExpression_PropertyDayOffsets(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("+N days adds N calendar days", prop.ForAll(
		func(n int, backwards bool) bool {
			expr := fmt.Sprintf("+%d days", n)
			want := exprBase.AddDate(0, 0, n)
			if backwards {
				expr = fmt.Sprintf("-%d days", n)
				want = exprBase.AddDate(0, 0, -n)
			}
			got, err := ExecuteDateExpression(exprBase, expr)
			return err == nil && got.Equal(want)
		},
		gen.IntRange(0, 5000),
		gen.Bool(),
	))

	properties.Property("next weekday is strictly in the future and within a week", prop.ForAll(
		func(offset int, wd int) bool {
			base := exprBase.AddDate(0, 0, offset)
			name := []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}[wd]
			got, err := ExecuteDateExpression(base, "next "+name)
			if err != nil {
				return false
			}
			diff := got.Sub(base)
			return got.Weekday() == time.Weekday(wd) && diff > 0 && diff <= 7*24*time.Hour
		},
		gen.IntRange(-400, 400),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}
