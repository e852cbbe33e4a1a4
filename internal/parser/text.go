package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ttstats/rrimport/internal/rr"
)

// Raw-text extraction: the last tier for HTML documents and the only tier
// for PDF text. Line shapes learned from years of format drift.
var (
	textGroupRe = regexp.MustCompile(`^#\s*(\d+)`)

	// Player rows: "3 | Smith, John 1820 1835", "3Smith, John 1820 1835",
	// or a bare "Smith, John 1820 1835" (number assigned by position).
	textPlayerRes = []*regexp.Regexp{
		regexp.MustCompile(`^(\d+)\s*\|\s*([A-Z][A-Za-z\s,.'-]+?)\s+(\d{3,4})\s+(\d{3,4})\b`),
		regexp.MustCompile(`^(\d+)\s+([A-Z][A-Za-z\s,.'-]+?)\s+(\d{3,4})\s+(\d{3,4})\b`),
		regexp.MustCompile(`^(\d+)([A-Z][A-Za-z\s,.'-]+?)\s+(\d{3,4})\s+(\d{3,4})\b`),
	}
	textPlayerNamelessRe = regexp.MustCompile(`^([A-Z][A-Za-z\s,.'-]+?)\s+(\d{3,4})\s+(\d{3,4})\b`)

	// Match rows: "Smith, John vs Lee, Kim 3-1" / "Smith vs. Lee 3:1".
	textMatchRe = regexp.MustCompile(`(?i)^(.*?\S)\s+vs\.?\s+(\S.*?)\s+(\d+)\s*[-:]\s*(\d+)\s*$`)
)

func groupsFromText(text string) []rr.Group {
	lines := strings.Split(text, "\n")

	var groups []rr.Group
	var current *rr.Group
	var matchLines [][]string

	flush := func() {
		if current == nil {
			return
		}
		attachTextMatches(current, matchLines)
		if len(current.Players) > 0 {
			groups = append(groups, *current)
		}
		current = nil
		matchLines = nil
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := textGroupRe.FindStringSubmatch(line); m != nil {
			flush()
			num, _ := strconv.Atoi(m[1])
			current = &rr.Group{Number: num, Name: "#" + m[1]}
			continue
		}
		if current == nil {
			continue
		}

		if m := textMatchRe.FindStringSubmatch(line); m != nil {
			matchLines = append(matchLines, m)
			continue
		}
		if p, ok := playerFromTextLine(line, len(current.Players)+1); ok {
			current.Players = append(current.Players, p)
		}
	}
	flush()

	return groups
}

func playerFromTextLine(line string, fallbackNumber int) (rr.PlayerLine, bool) {
	for _, re := range textPlayerRes {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		pre, _ := strconv.Atoi(m[3])
		post, _ := strconv.Atoi(m[4])
		return rr.PlayerLine{
			Number:     num,
			Name:       rr.DisplayName(m[2]),
			RatingPre:  &pre,
			RatingPost: &post,
		}, true
	}
	if m := textPlayerNamelessRe.FindStringSubmatch(line); m != nil {
		pre, _ := strconv.Atoi(m[2])
		post, _ := strconv.Atoi(m[3])
		return rr.PlayerLine{
			Number:     fallbackNumber,
			Name:       rr.DisplayName(m[1]),
			RatingPre:  &pre,
			RatingPost: &post,
		}, true
	}
	return rr.PlayerLine{}, false
}

// attachTextMatches resolves "A vs B" lines against the group's player list
// and orients each match so side A is the lower-numbered player.
func attachTextMatches(group *rr.Group, matchLines [][]string) {
	byKey := make(map[string]rr.PlayerLine, len(group.Players))
	for _, p := range group.Players {
		byKey[rr.NormalizeName(p.Name)] = p
	}

	seen := make(map[[2]int]struct{})
	for _, m := range matchLines {
		a, okA := lookupPlayer(byKey, m[1])
		b, okB := lookupPlayer(byKey, m[2])
		if !okA || !okB || a.Number == b.Number {
			continue
		}
		scoreA, _ := strconv.Atoi(m[3])
		scoreB, _ := strconv.Atoi(m[4])
		if a.Number > b.Number {
			a, b = b, a
			scoreA, scoreB = scoreB, scoreA
		}
		key := [2]int{a.Number, b.Number}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		group.Matches = append(group.Matches, rr.Match{
			PlayerANumber: a.Number,
			PlayerBNumber: b.Number,
			PlayerAName:   a.Name,
			PlayerBName:   b.Name,
			ScoreA:        scoreA,
			ScoreB:        scoreB,
		})
	}
}

// lookupPlayer matches a name token from a match line to a parsed player,
// falling back to surname-only comparison since match lines often shorten
// "Smith, John" to "Smith".
func lookupPlayer(byKey map[string]rr.PlayerLine, name string) (rr.PlayerLine, bool) {
	key := rr.NormalizeName(name)
	if p, ok := byKey[key]; ok {
		return p, true
	}
	for full, p := range byKey {
		surname := strings.TrimSuffix(strings.SplitN(full, ",", 2)[0], " ")
		if surname == key {
			return p, true
		}
	}
	return rr.PlayerLine{}, false
}
