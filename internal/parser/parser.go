// Package parser normalizes raw result documents into the canonical
// tournament form. Extraction is tiered: each tier is tried in order and
// the next is attempted only when the previous produced nothing at all.
package parser

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ttstats/rrimport/internal/metrics"
	"github.com/ttstats/rrimport/internal/rr"
)

// Parser converts raw bytes into rr.Results. It is a pure transform; all
// I/O happens in the fetcher.
type Parser struct {
	logger *zap.Logger
}

// New constructs a Parser.
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

type strategy struct {
	name string
	run  func() []rr.Group
}

// Parse normalizes a document of the declared kind. A nil group slice from
// every tier is a ParseError; partially populated groups are not, missing
// optional fields simply stay unset.
func (p *Parser) Parse(data []byte, kind rr.DocumentKind, locator string) (*rr.Results, error) {
	switch kind {
	case rr.KindHTML:
		return p.parseHTML(data, locator)
	case rr.KindPDF, rr.KindLegacyPDF:
		return p.parsePDF(data, kind, locator)
	default:
		return nil, &rr.ParseError{Reason: "unknown document kind " + string(kind)}
	}
}

func (p *Parser) parseHTML(data []byte, locator string) (*rr.Results, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &rr.ParseError{Reason: "invalid html", Err: err}
	}

	groups := p.runStrategies(locator, []strategy{
		{name: "bracket", run: func() []rr.Group { return groupsFromBrackets(doc) }},
		{name: "loose_markup", run: func() []rr.Group { return groupsFromLooseMarkup(doc) }},
		{name: "raw_text", run: func() []rr.Group { return groupsFromText(doc.Text()) }},
	})
	if len(groups) == 0 {
		return nil, &rr.ParseError{Reason: "no round robin groups found in html document"}
	}

	info := htmlTournamentInfo(doc)
	if info.Date.IsZero() {
		if d, ok := DateFromLocator(locator); ok {
			info.Date = d
		} else if d, ok := DateFromText(doc.Text()); ok {
			info.Date = d
		}
	}
	if info.Date.IsZero() {
		return nil, &rr.ParseError{Reason: "no tournament date in html document or locator"}
	}

	return &rr.Results{Tournament: info, Groups: groups}, nil
}

func (p *Parser) parsePDF(data []byte, kind rr.DocumentKind, locator string) (*rr.Results, error) {
	text, err := pdfText(data)
	if err != nil {
		return nil, &rr.ParseError{Reason: "pdf text extraction failed", Err: err}
	}

	groups := p.runStrategies(locator, []strategy{
		{name: "pdf_text", run: func() []rr.Group { return groupsFromText(text) }},
	})
	if len(groups) == 0 {
		return nil, &rr.ParseError{Reason: "no round robin groups found in pdf text"}
	}

	var date time.Time
	if kind == rr.KindPDF {
		if d, ok := DateFromLocator(locator); ok {
			date = d
		}
	}
	// Legacy PDFs carry no filename date; the content is the only source.
	if date.IsZero() {
		if d, ok := DateFromText(text); ok {
			date = d
		}
	}
	if date.IsZero() {
		return nil, &rr.ParseError{Reason: "no tournament date in pdf content or locator"}
	}

	return &rr.Results{
		Tournament: rr.TournamentInfo{Name: pdfTournamentName(text), Date: date},
		Groups:     groups,
	}, nil
}

func (p *Parser) runStrategies(locator string, strategies []strategy) []rr.Group {
	for _, s := range strategies {
		groups := s.run()
		if len(groups) == 0 {
			continue
		}
		p.logger.Debug("extraction tier matched",
			zap.String("tier", s.name),
			zap.String("locator", locator),
			zap.Int("groups", len(groups)),
		)
		metrics.ObserveExtractionTier(s.name)
		return groups
	}
	return nil
}

// MineDate extracts only the tournament date, used by the orchestrator's
// legacy-PDF pre-step so undated candidates can be date-filtered before
// the full pipeline runs.
func (p *Parser) MineDate(data []byte, kind rr.DocumentKind) (time.Time, bool) {
	switch kind {
	case rr.KindHTML:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
		if err != nil {
			return time.Time{}, false
		}
		return DateFromText(doc.Text())
	default:
		text, err := pdfText(data)
		if err != nil {
			return time.Time{}, false
		}
		return DateFromText(text)
	}
}

func htmlTournamentInfo(doc *goquery.Document) rr.TournamentInfo {
	info := rr.TournamentInfo{}
	h1 := doc.Find("h1").First()
	if h1.Length() > 0 {
		info.Name = rr.DisplayName(h1.Text())
		// Headers read "Round Robin Results for 2025 Nov 7".
		if d, ok := DateFromText(info.Name); ok {
			info.Date = d
		}
	}
	return info
}

func pdfTournamentName(text string) string {
	for _, raw := range strings.SplitN(text, "\n", 5) {
		line := rr.DisplayName(raw)
		if line != "" && !textGroupRe.MatchString(line) {
			return line
		}
	}
	return ""
}
