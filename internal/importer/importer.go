// Package importer runs one document through the full pipeline: parse,
// validate, resolve identities, and apply the resolved rows in a single
// transaction.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ttstats/rrimport/internal/parser"
	"github.com/ttstats/rrimport/internal/resolver"
	"github.com/ttstats/rrimport/internal/rr"
	"github.com/ttstats/rrimport/internal/validator"
)

// Status classifies one document's import outcome for run accounting.
type Status string

// Import outcomes.
const (
	StatusImported Status = "imported"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Result is the outcome of importing one document.
type Result struct {
	Locator      string
	Date         time.Time
	Status       Status
	TournamentID int64
	Counts       rr.ImportCounts
	Err          error
}

// Importer coordinates parse, validation, resolution and the final write.
type Importer struct {
	parser    *parser.Parser
	resolver  *resolver.Resolver
	store     rr.Store
	refresher rr.Refresher
	threshold float64
	logger    *zap.Logger
}

// New constructs an Importer. threshold <= 0 selects the default match
// completeness threshold.
func New(
	p *parser.Parser,
	r *resolver.Resolver,
	store rr.Store,
	refresher rr.Refresher,
	threshold float64,
	logger *zap.Logger,
) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = validator.DefaultThreshold
	}
	return &Importer{
		parser:    p,
		resolver:  r,
		store:     store,
		refresher: refresher,
		threshold: threshold,
		logger:    logger,
	}
}

// Import runs one fetched document through the pipeline. A tournament that
// already holds the success outcome is skipped unless force is set; force
// re-imports over the existing rows. Failures on a resolvable date are
// recorded on the tournament row so they stay visible for re-import.
func (i *Importer) Import(ctx context.Context, cand rr.Candidate, data []byte, force bool) Result {
	res, err := i.parser.Parse(data, cand.Kind, cand.Locator)
	if err != nil {
		date := cand.Date
		if date.IsZero() {
			if d, ok := parser.DateFromLocator(cand.Locator); ok {
				date = d
			}
		}
		i.recordFailure(ctx, date, cand, rr.StatusParsingFailed, err.Error())
		return Result{Locator: cand.Locator, Date: date, Status: StatusFailed, Err: err}
	}

	date := res.Tournament.Date
	row, err := i.resolver.ResolveTournament(ctx, date, res.Tournament.Name, cand.Locator)
	if err != nil {
		return Result{Locator: cand.Locator, Date: date, Status: StatusFailed, Err: err}
	}

	if resolver.AlreadyImported(row) && !force {
		// Older success rows predate source tracking; backfill the
		// locator while we are looking at the document anyway.
		if row.SourceURL == "" && cand.Locator != "" {
			if err := i.store.SetTournamentSource(ctx, row.ID, cand.Locator); err != nil {
				i.logger.Warn("source backfill failed",
					zap.String("locator", cand.Locator), zap.Error(err))
			}
		}
		return Result{Locator: cand.Locator, Date: date, Status: StatusSkipped, TournamentID: row.ID}
	}

	outcome := validator.Validate(res, i.threshold)
	if !outcome.OK() {
		if err := i.store.SetTournamentOutcome(ctx, row.ID, outcome.Status, outcome.Diagnostic); err != nil {
			i.logger.Warn("outcome record failed",
				zap.String("locator", cand.Locator), zap.Error(err))
		}
		return Result{
			Locator:      cand.Locator,
			Date:         date,
			Status:       StatusFailed,
			TournamentID: row.ID,
			Err:          &rr.ValidationError{Problems: []string{outcome.Diagnostic}},
		}
	}

	plan, err := i.buildPlan(ctx, row.ID, cand.Locator, res)
	if err != nil {
		i.recordOutcome(ctx, row.ID, cand.Locator, rr.StatusDBError, err.Error())
		return Result{Locator: cand.Locator, Date: date, Status: StatusFailed, TournamentID: row.ID, Err: err}
	}

	counts, err := i.store.ApplyImport(ctx, plan)
	if err != nil {
		i.recordOutcome(ctx, row.ID, cand.Locator, rr.StatusDBError, err.Error())
		return Result{Locator: cand.Locator, Date: date, Status: StatusFailed, TournamentID: row.ID, Err: err}
	}

	i.refresh(ctx)

	i.logger.Info("tournament imported",
		zap.String("locator", cand.Locator),
		zap.Time("date", date),
		zap.Int("groups", counts.Groups),
		zap.Int("players", counts.Players),
		zap.Int("matches", counts.Matches),
	)
	return Result{
		Locator:      cand.Locator,
		Date:         date,
		Status:       StatusImported,
		TournamentID: row.ID,
		Counts:       counts,
	}
}

// RecordFetchFailure marks a dated candidate as failed when its document
// could not be retrieved at all. Undated candidates leave no row; there is
// no identity to hang the failure on.
func (i *Importer) RecordFetchFailure(ctx context.Context, cand rr.Candidate, fetchErr error) {
	i.recordFailure(ctx, cand.Date, cand, rr.StatusParsingFailed, fetchErr.Error())
}

func (i *Importer) recordFailure(ctx context.Context, date time.Time, cand rr.Candidate, status rr.ParsingStatus, diagnostic string) {
	if date.IsZero() {
		return
	}
	row, err := i.resolver.ResolveTournament(ctx, date, cand.Display, cand.Locator)
	if err != nil {
		i.logger.Warn("failure record failed",
			zap.String("locator", cand.Locator), zap.Error(err))
		return
	}
	// Never downgrade a completed import because a later fetch broke.
	if resolver.AlreadyImported(row) {
		return
	}
	i.recordOutcome(ctx, row.ID, cand.Locator, status, diagnostic)
}

func (i *Importer) recordOutcome(ctx context.Context, id int64, locator string, status rr.ParsingStatus, diagnostic string) {
	if err := i.store.SetTournamentOutcome(ctx, id, status, diagnostic); err != nil {
		i.logger.Warn("outcome record failed",
			zap.String("locator", locator), zap.Error(err))
	}
}

// buildPlan resolves every player and match side to stored identities.
func (i *Importer) buildPlan(ctx context.Context, tournamentID int64, locator string, res *rr.Results) (rr.ImportPlan, error) {
	plan := rr.ImportPlan{
		TournamentID: tournamentID,
		Name:         res.Tournament.Name,
		SourceURL:    locator,
		Status:       rr.StatusSuccess,
	}

	for _, group := range res.Groups {
		gp := rr.GroupPlan{Number: group.Number, Name: group.Name}
		byNumber := make(map[int]int64, len(group.Players))

		for _, line := range group.Players {
			id, err := i.resolver.ResolvePlayer(ctx, line.Name)
			if err != nil {
				return rr.ImportPlan{}, fmt.Errorf("resolve player %q: %w", line.Name, err)
			}
			byNumber[line.Number] = id
			gp.Players = append(gp.Players, rr.PlayerPlan{PlayerID: id, Line: line})
		}

		for _, match := range group.Matches {
			aID, okA := byNumber[match.PlayerANumber]
			bID, okB := byNumber[match.PlayerBNumber]
			if !okA || !okB {
				// A match line referencing a player absent from the
				// grid is noise from a degraded extraction tier.
				i.logger.Debug("dropping match with unknown player number",
					zap.Int("group", group.Number),
					zap.Int("player_a", match.PlayerANumber),
					zap.Int("player_b", match.PlayerBNumber),
				)
				continue
			}
			gp.Matches = append(gp.Matches, rr.MatchPlan{
				PlayerAID: aID,
				PlayerBID: bID,
				ScoreA:    match.ScoreA,
				ScoreB:    match.ScoreB,
				WinnerID:  rr.Winner(aID, bID, match.ScoreA, match.ScoreB),
			})
		}
		plan.Groups = append(plan.Groups, gp)
	}
	return plan, nil
}

// refresh rebuilds the derived views after a committed import. The rows are
// already durable, so refresh failures are logged and swallowed.
func (i *Importer) refresh(ctx context.Context) {
	if i.refresher == nil {
		return
	}
	if err := i.refresher.RefreshRankings(ctx); err != nil {
		i.logger.Warn("rankings view refresh failed", zap.Error(err))
	}
	if err := i.refresher.RefreshMatchStats(ctx); err != nil {
		i.logger.Warn("match stats view refresh failed", zap.Error(err))
	}
}

// IsValidationFailure reports whether an import error was a completeness
// rejection rather than an infrastructure fault.
func IsValidationFailure(err error) bool {
	var v *rr.ValidationError
	return errors.As(err, &v)
}
