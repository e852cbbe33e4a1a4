// Package validator checks canonical tournament documents for completeness
// against the expected round robin match counts.
package validator

import (
	"fmt"

	"github.com/ttstats/rrimport/internal/rr"
)

// DefaultThreshold is the fraction of expected matches that must have been
// parsed for a document to be accepted. It is a policy knob, not a derived
// value; earlier revisions of the source data ran at 0.2.
const DefaultThreshold = 0.5

// Outcome is the validator's verdict for one document.
type Outcome struct {
	Status     rr.ParsingStatus
	Diagnostic string
	Expected   int
	Parsed     int
}

// OK reports whether the document may be imported as a success.
func (o Outcome) OK() bool { return o.Status == rr.StatusSuccess }

// Validate computes the parsed-vs-expected match fraction across all
// groups. A document with no groups or no players at all is a parse
// failure, not a validation failure; below-threshold completeness is a
// validation failure with a diagnostic naming the shortfall.
func Validate(res *rr.Results, threshold float64) Outcome {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if res == nil || len(res.Groups) == 0 {
		return Outcome{Status: rr.StatusParsingFailed, Diagnostic: "document contains no groups"}
	}

	expected, parsed, players := 0, 0, 0
	for _, g := range res.Groups {
		players += len(g.Players)
		expected += rr.ExpectedMatches(len(g.Players))
		parsed += len(g.Matches)
	}
	if players == 0 {
		return Outcome{Status: rr.StatusParsingFailed, Diagnostic: "document contains no players"}
	}
	if expected == 0 {
		return Outcome{
			Status:     rr.StatusParsingFailed,
			Diagnostic: "no group has enough players for any match",
		}
	}

	fraction := float64(parsed) / float64(expected)
	if fraction < threshold {
		return Outcome{
			Status: rr.StatusValidationFailed,
			Diagnostic: fmt.Sprintf(
				"parsed %d of %d expected matches (%.0f%%, threshold %.0f%%)",
				parsed, expected, fraction*100, threshold*100,
			),
			Expected: expected,
			Parsed:   parsed,
		}
	}
	return Outcome{Status: rr.StatusSuccess, Expected: expected, Parsed: parsed}
}
