package postgres

import (
	"context"

	"github.com/ttstats/rrimport/internal/rr"
)

var _ rr.Refresher = (*Store)(nil)

// RefreshRankings rebuilds the player rankings materialized view. The view
// is derived data, so callers treat failures as warnings rather than
// rolling back the import that triggered the refresh.
func (s *Store) RefreshRankings(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `SELECT refresh_player_rankings_view()`); err != nil {
		return &rr.DBError{Op: "refresh rankings view", Err: err}
	}
	return nil
}

// RefreshMatchStats rebuilds the per-player match statistics view.
func (s *Store) RefreshMatchStats(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `SELECT refresh_player_match_stats_view()`); err != nil {
		return &rr.DBError{Op: "refresh match stats view", Err: err}
	}
	return nil
}
