// Package index discovers result documents by scraping the results page
// and classifying each link by its locator shape.
package index

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ttstats/rrimport/internal/parser"
	"github.com/ttstats/rrimport/internal/rr"
)

// Locator shapes accumulated over the years of the results page:
// extensionless HTML documents ("rr_results_2023jan13"), dated PDFs
// ("RR_Results 2023Jan13.pdf", sometimes with the underscore escaped as
// %5F), and the oldest era of bare numbered PDFs ("187.pdf") whose dates
// live only in the document content.
var (
	htmlLocatorRe      = regexp.MustCompile(`(?i)rr_results_\d{4}[a-z]{3}\d{1,2}$`)
	datedPDFLocatorRe  = regexp.MustCompile(`(?i)rr[_ ]results[_ ]?\d{4}[a-z]{3}\d{1,2}\.(pdf|html)$`)
	legacyPDFLocatorRe = regexp.MustCompile(`^\d+\.pdf$`)
)

// Index lists import candidates from the results page.
type Index struct {
	fetcher rr.Fetcher
	page    string
	logger  *zap.Logger
}

var _ rr.Index = (*Index)(nil)

// New constructs an Index that scrapes the given results page locator.
func New(fetcher rr.Fetcher, page string, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{fetcher: fetcher, page: page, logger: logger}
}

// ListCandidates fetches the results page and returns every recognized
// document link, deduplicated and ordered newest first. Legacy PDFs carry
// no date yet and sort last.
func (i *Index) ListCandidates(ctx context.Context) ([]rr.Candidate, error) {
	data, err := i.fetcher.Fetch(ctx, i.page, rr.KindHTML)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &rr.ParseError{Reason: "invalid results page html", Err: err}
	}

	seen := make(map[string]struct{})
	var candidates []rr.Candidate
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		cand, ok := Classify(href)
		if !ok {
			return
		}
		if _, dup := seen[cand.Locator]; dup {
			return
		}
		seen[cand.Locator] = struct{}{}
		cand.Display = rr.DisplayName(sel.Text())
		candidates = append(candidates, cand)
	})

	sort.SliceStable(candidates, func(a, b int) bool {
		da, db := candidates[a].Date, candidates[b].Date
		if da.IsZero() != db.IsZero() {
			return !da.IsZero()
		}
		return da.After(db)
	})

	i.logger.Debug("results page scraped",
		zap.String("page", i.page),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// Classify maps one link locator to a candidate, or reports that the link
// is not a result document.
func Classify(href string) (rr.Candidate, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return rr.Candidate{}, false
	}
	locator := normalizeLocator(href)
	name := locator[strings.LastIndex(locator, "/")+1:]

	switch {
	case htmlLocatorRe.MatchString(name):
		cand := rr.Candidate{Locator: locator, Kind: rr.KindHTML}
		if d, ok := parser.DateFromLocator(name); ok {
			cand.Date = d
		}
		return cand, true
	case datedPDFLocatorRe.MatchString(name):
		kind := rr.KindPDF
		if strings.HasSuffix(strings.ToLower(name), ".html") {
			kind = rr.KindHTML
		}
		cand := rr.Candidate{Locator: locator, Kind: kind}
		if d, ok := parser.DateFromLocator(name); ok {
			cand.Date = d
		}
		return cand, true
	case legacyPDFLocatorRe.MatchString(name):
		return rr.Candidate{Locator: locator, Kind: rr.KindLegacyPDF}, true
	default:
		return rr.Candidate{}, false
	}
}

// normalizeLocator undoes percent escapes so "RR%5FResults%202023Jan13.pdf"
// classifies the same as its plain spelling.
func normalizeLocator(href string) string {
	if unescaped, err := url.QueryUnescape(href); err == nil {
		return unescaped
	}
	return href
}
