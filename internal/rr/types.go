// Package rr defines core types shared across the import pipeline.
package rr

import (
	"strings"
	"time"
)

// DocumentKind classifies a source document by its locator shape.
type DocumentKind string

// Document kinds discovered on the results index.
const (
	KindHTML      DocumentKind = "html"
	KindPDF       DocumentKind = "pdf"
	KindLegacyPDF DocumentKind = "pdf_legacy"
)

// ParsingStatus records how completely a tournament document was converted
// into rows. It is persisted on the tournament itself so failed documents
// stay visible for re-import.
type ParsingStatus string

// Parsing status values persisted on tournament rows.
const (
	StatusPending          ParsingStatus = "pending"
	StatusSuccess          ParsingStatus = "success"
	StatusParsingFailed    ParsingStatus = "parsing_failed"
	StatusValidationFailed ParsingStatus = "validation_failed"
	StatusDBError          ParsingStatus = "db_error"
)

// Candidate is one document discovered on the results index. Date is zero
// for legacy PDFs until it has been mined from the document content.
type Candidate struct {
	Locator string
	Kind    DocumentKind
	Date    time.Time
	Display string
}

// Results is the canonical tournament document: the normalized intermediate
// form every source format is parsed into.
type Results struct {
	Tournament TournamentInfo
	Groups     []Group
}

// TournamentInfo carries the identity fields extracted from a document.
type TournamentInfo struct {
	Name string
	Date time.Time
}

// Group is one round robin group: players who all play each other once.
type Group struct {
	Number  int
	Name    string
	Players []PlayerLine
	Matches []Match
}

// PlayerLine is one player's row in a group grid. Stat fields are pointers
// because older documents omit them; absent stays absent.
type PlayerLine struct {
	Number          int
	Name            string
	RatingPre       *int
	RatingPost      *int
	RatingChange    *int
	MatchesWon      *int
	GamesWon        *int
	BonusPoints     *int
	ChangeWithBonus *int
}

// Match is one head-to-head result inside a group. Player sides are the
// grid numbers; side A is always the lower-numbered player.
type Match struct {
	PlayerANumber int
	PlayerBNumber int
	PlayerAName   string
	PlayerBName   string
	ScoreA        int
	ScoreB        int
}

// TournamentRow is a persisted tournament record.
type TournamentRow struct {
	ID         int64
	Date       time.Time
	Name       string
	SourceURL  string
	Status     ParsingStatus
	Diagnostic string
}

// ImportPlan is a fully resolved write set for one tournament, applied by
// the store in a single transaction.
type ImportPlan struct {
	TournamentID int64
	Name         string
	SourceURL    string
	Status       ParsingStatus
	Groups       []GroupPlan
}

// GroupPlan is the resolved write set for one group.
type GroupPlan struct {
	Number  int
	Name    string
	Players []PlayerPlan
	Matches []MatchPlan
}

// PlayerPlan ties a resolved player identity to its per-tournament stats.
type PlayerPlan struct {
	PlayerID int64
	Line     PlayerLine
}

// MatchPlan is a match with both sides resolved. WinnerID is nil for draws.
type MatchPlan struct {
	PlayerAID int64
	PlayerBID int64
	ScoreA    int
	ScoreB    int
	WinnerID  *int64
}

// ImportCounts summarizes the rows written by one import transaction.
type ImportCounts struct {
	Groups  int
	Players int
	Matches int
}

// Winner derives the winning side from scores. It is the only place winner
// identity comes from; stored winners are never set independently of scores.
func Winner(playerAID, playerBID int64, scoreA, scoreB int) *int64 {
	switch {
	case scoreA > scoreB:
		return &playerAID
	case scoreB > scoreA:
		return &playerBID
	default:
		return nil
	}
}

// NormalizeName produces the case-insensitive identity key for a player
// name: trimmed, inner whitespace collapsed, lowercased.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// DisplayName trims and collapses whitespace but keeps the original casing.
func DisplayName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// ExpectedMatches is the complete round robin match count for n players.
func ExpectedMatches(players int) int {
	if players < 2 {
		return 0
	}
	return players * (players - 1) / 2
}
