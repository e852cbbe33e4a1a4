package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date token shapes seen across years of result documents. Order matters:
// the long written form is tried before the compact filename form because
// compact tokens also appear inside unrelated identifiers.
var (
	longDateRe    = regexp.MustCompile(`([A-Za-z]+)\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})`)
	compactDateRe = regexp.MustCompile(`(?i)(\d{4})([a-z]{3})(\d{2})`)
	spacedDateRe  = regexp.MustCompile(`(\d{4})\s+([A-Za-z]{3,9})\s+(\d{1,2})`)
	slashDateRe   = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	dashDateRe    = regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`)
)

var monthsByName = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

func monthByName(name string) (time.Month, bool) {
	m, ok := monthsByName[strings.ToLower(name)]
	return m, ok
}

func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if year < 1990 || year > 2100 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// DateFromLocator extracts the compact YYYYmonDD token embedded in dated
// filenames (rr_results_2025nov07, RR_Results 2024Jan05.pdf).
func DateFromLocator(locator string) (time.Time, bool) {
	m := compactDateRe.FindStringSubmatch(locator)
	if m == nil {
		return time.Time{}, false
	}
	return dateFromCompact(m)
}

// DateFromText mines a tournament date out of document content. Only the
// head of the text is searched: dates further down belong to match notes,
// not the tournament header.
func DateFromText(text string) (time.Time, bool) {
	head := text
	if len(head) > 500 {
		head = head[:500]
	}

	if m := longDateRe.FindStringSubmatch(head); m != nil {
		if month, ok := monthByName(m[1]); ok {
			day, _ := strconv.Atoi(m[2])
			year, _ := strconv.Atoi(m[3])
			if d, ok := makeDate(year, month, day); ok {
				return d, true
			}
		}
	}
	if m := compactDateRe.FindStringSubmatch(head); m != nil {
		if d, ok := dateFromCompact(m); ok {
			return d, true
		}
	}
	if m := spacedDateRe.FindStringSubmatch(head); m != nil {
		if month, ok := monthByName(m[2]); ok {
			year, _ := strconv.Atoi(m[1])
			day, _ := strconv.Atoi(m[3])
			if d, ok := makeDate(year, month, day); ok {
				return d, true
			}
		}
	}
	if m := slashDateRe.FindStringSubmatch(head); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 {
			if d, ok := makeDate(year, time.Month(month), day); ok {
				return d, true
			}
		}
	}
	if m := dashDateRe.FindStringSubmatch(head); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 {
			if d, ok := makeDate(year, time.Month(month), day); ok {
				return d, true
			}
		}
	}
	return time.Time{}, false
}

func dateFromCompact(m []string) (time.Time, bool) {
	month, ok := monthByName(m[2])
	if !ok {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[3])
	return makeDate(year, month, day)
}
