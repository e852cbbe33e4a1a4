// Package resolver maps document identities onto stored ones. Get-or-create
// races between concurrent workers are settled by the storage layer's
// uniqueness constraints; the resolver's job is the normalization and the
// re-read after losing a race, never an in-process lock.
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ttstats/rrimport/internal/rr"
)

// Resolver resolves players and tournaments against the store. A small
// per-run cache short-circuits repeat lookups of the same player, which are
// common since regulars appear in most tournaments.
type Resolver struct {
	store  rr.Store
	logger *zap.Logger

	mu      sync.Mutex
	players map[string]int64
}

// New constructs a Resolver.
func New(store rr.Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:   store,
		logger:  logger,
		players: make(map[string]int64),
	}
}

// ResolvePlayer returns the identity for a player name, creating the row if
// no case-insensitive match exists. When the insert loses a race to another
// worker the constraint rejects it and the winner's row is re-read.
func (r *Resolver) ResolvePlayer(ctx context.Context, name string) (int64, error) {
	key := rr.NormalizeName(name)
	if key == "" {
		return 0, fmt.Errorf("player name is empty")
	}

	r.mu.Lock()
	id, cached := r.players[key]
	r.mu.Unlock()
	if cached {
		return id, nil
	}

	id, err := r.resolvePlayerSlow(ctx, rr.DisplayName(name), key)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.players[key] = id
	r.mu.Unlock()
	return id, nil
}

func (r *Resolver) resolvePlayerSlow(ctx context.Context, display, key string) (int64, error) {
	if id, ok, err := r.store.FindPlayer(ctx, key); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}

	id, created, err := r.store.InsertPlayer(ctx, display, key)
	if err != nil {
		return 0, err
	}
	if created {
		return id, nil
	}

	// Lost the race: a concurrent worker inserted this name between our
	// read and write. The constraint held, so the row exists now.
	r.logger.Debug("player insert lost race, re-reading", zap.String("player", display))
	id, ok, err := r.store.FindPlayer(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &rr.DBError{Op: "resolve player", Err: fmt.Errorf("player %q missing after conflict", display)}
	}
	return id, nil
}

// ResolveTournament gets or creates the tournament row for a date. The
// returned row reflects what is stored now, including a terminal success
// outcome from an earlier run, which callers use as the idempotency guard.
func (r *Resolver) ResolveTournament(ctx context.Context, date time.Time, name, sourceURL string) (*rr.TournamentRow, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("tournament date is zero")
	}
	date = date.Truncate(24 * time.Hour)

	if row, err := r.store.FindTournament(ctx, date); err != nil {
		return nil, err
	} else if row != nil {
		return row, nil
	}

	row := rr.TournamentRow{Date: date, Name: name, SourceURL: sourceURL}
	id, created, err := r.store.InsertTournament(ctx, row)
	if err != nil {
		return nil, err
	}
	if created {
		row.ID = id
		return &row, nil
	}

	r.logger.Debug("tournament insert lost race, re-reading", zap.Time("date", date))
	existing, err := r.store.FindTournament(ctx, date)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, &rr.DBError{Op: "resolve tournament", Err: fmt.Errorf("tournament %s missing after conflict", date.Format("2006-01-02"))}
	}
	return existing, nil
}

// AlreadyImported reports whether a resolved tournament row carries the
// terminal success outcome.
func AlreadyImported(row *rr.TournamentRow) bool {
	return row != nil && row.Status == rr.StatusSuccess
}
