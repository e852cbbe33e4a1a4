package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDateFromLocator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		locator string
		want    time.Time
		ok      bool
	}{
		{"rr_results_2023jan13", day(2023, time.January, 13), true},
		{"rr_results_2025nov07", day(2025, time.November, 7), true},
		{"RR_Results 2024Jan05.pdf", day(2024, time.January, 5), true},
		{"results/rr_results_2022dec30", day(2022, time.December, 30), true},
		{"187.pdf", time.Time{}, false},
		{"rr_results_2023xyz13", time.Time{}, false},
		// Feb 30 does not exist; the token must not round-trip.
		{"rr_results_2023feb30", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := DateFromLocator(tt.locator)
		assert.Equal(t, tt.ok, ok, "locator %q", tt.locator)
		if tt.ok {
			assert.Equal(t, tt.want, got, "locator %q", tt.locator)
		}
	}
}

func TestDateFromText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want time.Time
		ok   bool
	}{
		{"long form", "Round Robin Results for January 13, 2023", day(2023, time.January, 13), true},
		{"long form with ordinal", "Results from March 3rd, 2021", day(2021, time.March, 3), true},
		{"compact", "file 2024Jan05 follows", day(2024, time.January, 5), true},
		{"spaced", "Round Robin Results for 2025 Nov 7", day(2025, time.November, 7), true},
		{"slash", "Results 1/13/2023", day(2023, time.January, 13), true},
		{"dash", "Results 13-1-2023", day(2023, time.January, 13), true},
		{"none", "no usable tokens here", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := DateFromText(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDateFromTextOnlySearchesHead(t *testing.T) {
	t.Parallel()

	// A date buried past the header region belongs to match notes, not the
	// tournament.
	text := strings.Repeat("x", 600) + " January 13, 2023"
	_, ok := DateFromText(text)
	assert.False(t, ok)
}

func TestDateFromTextPrefersLongForm(t *testing.T) {
	t.Parallel()

	got, ok := DateFromText("January 13, 2023 (file rr_results_2023jan20)")
	assert.True(t, ok)
	assert.Equal(t, day(2023, time.January, 13), got)
}
