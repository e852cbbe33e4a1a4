package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ttstats/rrimport/internal/rr"
)

// groupsFromLooseMarkup is the middle HTML tier for pages that dropped the
// bracket layout but still tag groups with "#N" header nodes. Each header's
// enclosing container is flattened to text lines and handed to the same
// line extraction the raw-text tier uses.
func groupsFromLooseMarkup(doc *goquery.Document) []rr.Group {
	var blocks []string

	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Clone().Children().Remove().End().Text())
		if !groupHeaderRe.MatchString(text) {
			return
		}
		container := s.Parent()
		if container.Length() == 0 {
			return
		}
		blocks = append(blocks, text+"\n"+nodeLines(container))
	})

	if len(blocks) == 0 {
		return nil
	}

	groups := groupsFromText(strings.Join(blocks, "\n"))
	return dedupeGroups(groups)
}

// nodeLines renders a container's leaf text nodes one per line so row-like
// markup becomes line-oriented text.
func nodeLines(container *goquery.Selection) string {
	var b strings.Builder
	container.Find("div").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" || groupHeaderRe.MatchString(text) {
			return
		}
		b.WriteString(text)
		b.WriteByte('\n')
	})
	return b.String()
}

// dedupeGroups keeps the first occurrence of each group number. Nested
// containers can surface the same header twice.
func dedupeGroups(groups []rr.Group) []rr.Group {
	seen := make(map[int]struct{}, len(groups))
	out := groups[:0]
	for _, g := range groups {
		if _, dup := seen[g.Number]; dup {
			continue
		}
		seen[g.Number] = struct{}{}
		out = append(out, g)
	}
	return out
}
