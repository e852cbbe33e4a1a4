package rr

import (
	"context"
	"time"
)

// Fetcher retrieves the raw bytes of a document given its locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string, kind DocumentKind) ([]byte, error)
}

// Index discovers candidate documents from the results listing.
type Index interface {
	ListCandidates(ctx context.Context) ([]Candidate, error)
}

// Store is the relational persistence boundary. Get-or-create methods rely
// on storage uniqueness constraints as the final arbiter: Insert* methods
// report created=false when a concurrent writer won the race, and callers
// re-read.
type Store interface {
	FindPlayer(ctx context.Context, nameKey string) (int64, bool, error)
	InsertPlayer(ctx context.Context, name, nameKey string) (int64, bool, error)

	FindTournament(ctx context.Context, date time.Time) (*TournamentRow, error)
	InsertTournament(ctx context.Context, row TournamentRow) (int64, bool, error)
	SetTournamentOutcome(ctx context.Context, id int64, status ParsingStatus, diagnostic string) error
	SetTournamentSource(ctx context.Context, id int64, sourceURL string) error

	ImportedDates(ctx context.Context, since time.Time) (map[string]struct{}, error)
	ApplyImport(ctx context.Context, plan ImportPlan) (ImportCounts, error)
}

// Refresher rebuilds derived read-side views after a commit. Failures are
// warnings, never import failures.
type Refresher interface {
	RefreshRankings(ctx context.Context) error
	RefreshMatchStats(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
