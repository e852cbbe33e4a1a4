package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ttstats/rrimport/internal/rr"
)

var groupHeaderRe = regexp.MustCompile(`^#\s*(\d+)$`)

// groupsFromBrackets is the structured HTML tier. Result pages render each
// group as a div.bracket laid out with column divs: col-1 holds the player
// number, sibling columns carry name, ratings, per-opponent game scores and
// bonus columns, each tagged with a stable class.
func groupsFromBrackets(doc *goquery.Document) []rr.Group {
	var groups []rr.Group
	doc.Find("div.bracket").Each(func(_ int, bracket *goquery.Selection) {
		if g, ok := groupFromBracket(bracket); ok {
			groups = append(groups, g)
		}
	})
	return groups
}

func groupFromBracket(bracket *goquery.Selection) (rr.Group, bool) {
	name, number, ok := bracketHeader(bracket)
	if !ok {
		return rr.Group{}, false
	}

	players := bracketPlayers(bracket)
	if len(players) == 0 {
		return rr.Group{}, false
	}

	return rr.Group{
		Number:  number,
		Name:    name,
		Players: players,
		Matches: bracketMatches(bracket, players),
	}, true
}

func bracketHeader(bracket *goquery.Selection) (string, int, bool) {
	var name string
	bracket.Find("div.row-header").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.HasPrefix(text, "#") {
			name = text
			return false
		}
		return true
	})
	if name == "" {
		return "", 0, false
	}
	m := groupHeaderRe.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	number, _ := strconv.Atoi(m[1])
	return name, number, true
}

func bracketPlayers(bracket *goquery.Selection) []rr.PlayerLine {
	var players []rr.PlayerLine
	bracket.Find("div.col-1").Each(func(_ int, col *goquery.Selection) {
		number, ok := playerNumber(col)
		if !ok {
			return
		}
		line := rr.PlayerLine{Number: number}
		populated := false

		// Walk sibling columns until the next player's col-1.
		for cur := col.Next(); cur.Length() > 0; cur = cur.Next() {
			if cur.HasClass("col-1") {
				break
			}
			row := cur.Find("div.row").First()
			if row.Length() == 0 {
				continue
			}
			text := strings.TrimSpace(row.Text())
			switch {
			case cur.HasClass("names"):
				line.Name = rr.DisplayName(text)
				populated = true
			case cur.HasClass("rating-pre"):
				line.RatingPre = parseUint(text)
			case cur.HasClass("rating-post"):
				line.RatingPost = parseUint(text)
			case cur.HasClass("matches-won"):
				line.MatchesWon = parseUint(text)
			case cur.HasClass("games-won"):
				line.GamesWon = parseUint(text)
			case cur.HasClass("rating-change") && !cur.HasClass("rating-change-vs"):
				line.RatingChange = parseSigned(text)
			case cur.HasClass("bonus-points"):
				line.BonusPoints = parseUint(text)
			case cur.HasClass("total-change"):
				line.ChangeWithBonus = parseSigned(text)
			}
		}
		if populated && line.Name != "" {
			players = append(players, line)
		}
	})
	return players
}

// bracketMatches reads each player's games column. The score cells are
// ordered by opponent number; a cell holds two div.num values, one game
// count per side. Walkover cells ("+") and empty cells are skipped. A match
// is emitted only from the lower-numbered side so each pairing appears once.
func bracketMatches(bracket *goquery.Selection, players []rr.PlayerLine) []rr.Match {
	byNumber := make(map[int]rr.PlayerLine, len(players))
	for _, p := range players {
		byNumber[p.Number] = p
	}

	var matches []rr.Match
	bracket.Find("div.col-1").Each(func(_ int, col *goquery.Selection) {
		number, ok := playerNumber(col)
		if !ok {
			return
		}
		if _, known := byNumber[number]; !known {
			return
		}
		gamesCol := findGamesColumn(col)
		if gamesCol == nil {
			return
		}
		gameRow := gamesCol.Find("div.row").First()
		if gameRow.Length() == 0 {
			return
		}
		gameRow.Find("div.score").Each(func(oppIdx int, score *goquery.Selection) {
			if score.HasClass("empty") {
				return
			}
			nums := score.Find("div.num")
			if nums.Length() < 2 {
				return
			}
			aText := strings.TrimSpace(nums.Eq(0).Text())
			bText := strings.TrimSpace(nums.Eq(1).Text())
			if aText == "" || bText == "" || aText == "+" || bText == "+" {
				return
			}
			scoreA, errA := strconv.Atoi(aText)
			scoreB, errB := strconv.Atoi(bText)
			if errA != nil || errB != nil {
				return
			}
			opponent := oppIdx + 1
			opp, known := byNumber[opponent]
			if !known || number >= opponent {
				return
			}
			matches = append(matches, rr.Match{
				PlayerANumber: number,
				PlayerBNumber: opponent,
				PlayerAName:   byNumber[number].Name,
				PlayerBName:   opp.Name,
				ScoreA:        scoreA,
				ScoreB:        scoreB,
			})
		})
	})
	return matches
}

func playerNumber(col *goquery.Selection) (int, bool) {
	row := col.Find("div.row").First()
	if row.Length() == 0 || row.Find("div.row-header").Length() > 0 {
		return 0, false
	}
	number, err := strconv.Atoi(strings.TrimSpace(row.Text()))
	if err != nil || number <= 0 {
		return 0, false
	}
	return number, true
}

func findGamesColumn(col *goquery.Selection) *goquery.Selection {
	for cur := col.Next(); cur.Length() > 0; cur = cur.Next() {
		if cur.HasClass("games") && !cur.HasClass("games-won") {
			return cur
		}
		if cur.HasClass("col-1") {
			break
		}
	}
	return nil
}

func parseUint(text string) *int {
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func parseSigned(text string) *int {
	n, err := strconv.Atoi(strings.TrimPrefix(text, "+"))
	if err != nil {
		return nil
	}
	return &n
}
