// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ttstats/rrimport/internal/rr"
)

// Config controls the Postgres connection pool backing the store.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// dbConn is the subset of *pgxpool.Pool the store needs. pgxmock satisfies
// the same surface, which is how the tests run without a database.
type dbConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// Store persists tournaments, groups, matches and player records.
type Store struct {
	pool dbConn
}

var _ rr.Store = (*Store)(nil)

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool dbConn) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Ping verifies the database is reachable. The ops readiness probe uses it.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &rr.DBError{Op: "ping", Err: err}
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// FindPlayer looks a player up by normalized name key.
func (s *Store) FindPlayer(ctx context.Context, nameKey string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM players WHERE name_normalized = $1`, nameKey).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &rr.DBError{Op: "find player", Err: err}
	}
	return id, true, nil
}

// InsertPlayer inserts a player row. When another writer already holds the
// name key the insert is a no-op and created is false; callers re-read.
func (s *Store) InsertPlayer(ctx context.Context, name, nameKey string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO players (name, name_normalized)
		VALUES ($1, $2)
		ON CONFLICT (name_normalized) DO NOTHING
		RETURNING id`, name, nameKey).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &rr.DBError{Op: "insert player", Err: err}
	}
	return id, true, nil
}

// FindTournament returns the tournament on a date, or nil when none exists.
func (s *Store) FindTournament(ctx context.Context, date time.Time) (*rr.TournamentRow, error) {
	var (
		row        rr.TournamentRow
		name       *string
		sourceURL  *string
		diagnostic *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, date, name, source_url, parsing_status, parsing_diagnostic
		FROM tournaments
		WHERE date = $1`, date).Scan(&row.ID, &row.Date, &name, &sourceURL, &row.Status, &diagnostic)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &rr.DBError{Op: "find tournament", Err: err}
	}
	if name != nil {
		row.Name = *name
	}
	if sourceURL != nil {
		row.SourceURL = *sourceURL
	}
	if diagnostic != nil {
		row.Diagnostic = *diagnostic
	}
	return &row, nil
}

// InsertTournament inserts a tournament shell in the pending state. The date
// constraint arbitrates concurrent inserts the same way player names do.
func (s *Store) InsertTournament(ctx context.Context, row rr.TournamentRow) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tournaments (date, name, source_url, parsing_status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date) DO NOTHING
		RETURNING id`,
		row.Date, nullable(row.Name), nullable(row.SourceURL), rr.StatusPending).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &rr.DBError{Op: "insert tournament", Err: err}
	}
	return id, true, nil
}

// SetTournamentOutcome records a terminal parsing status and diagnostic.
func (s *Store) SetTournamentOutcome(ctx context.Context, id int64, status rr.ParsingStatus, diagnostic string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tournaments
		SET parsing_status = $1, parsing_diagnostic = $2
		WHERE id = $3`, status, nullable(diagnostic), id)
	if err != nil {
		return &rr.DBError{Op: "set tournament outcome", Err: err}
	}
	return nil
}

// SetTournamentSource backfills a missing source locator on an existing row.
func (s *Store) SetTournamentSource(ctx context.Context, id int64, sourceURL string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tournaments
		SET source_url = $1
		WHERE id = $2 AND source_url IS NULL`, sourceURL, id)
	if err != nil {
		return &rr.DBError{Op: "set tournament source", Err: err}
	}
	return nil
}

// ImportedDates returns the dates of successfully imported tournaments on or
// after the given day, keyed by ISO date string.
func (s *Store) ImportedDates(ctx context.Context, since time.Time) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date FROM tournaments
		WHERE parsing_status = $1 AND date >= $2`, rr.StatusSuccess, since)
	if err != nil {
		return nil, &rr.DBError{Op: "list imported dates", Err: err}
	}
	defer rows.Close()

	dates := make(map[string]struct{})
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, &rr.DBError{Op: "scan imported date", Err: err}
		}
		dates[d.Format("2006-01-02")] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, &rr.DBError{Op: "list imported dates", Err: err}
	}
	return dates, nil
}

// ApplyImport writes a fully resolved tournament in one transaction: the
// tournament outcome, then groups, then matches, stats and rating history.
// Either everything lands or nothing does.
func (s *Store) ApplyImport(ctx context.Context, plan rr.ImportPlan) (rr.ImportCounts, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return rr.ImportCounts{}, &rr.DBError{Op: "begin import", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	counts, err := applyImportTx(ctx, tx, plan)
	if err != nil {
		return rr.ImportCounts{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return rr.ImportCounts{}, &rr.DBError{Op: "commit import", Err: err}
	}
	return counts, nil
}

func applyImportTx(ctx context.Context, tx pgx.Tx, plan rr.ImportPlan) (rr.ImportCounts, error) {
	var counts rr.ImportCounts

	_, err := tx.Exec(ctx, `
		UPDATE tournaments
		SET name = COALESCE($1, name),
		    source_url = COALESCE($2, source_url),
		    parsing_status = $3,
		    parsing_diagnostic = NULL
		WHERE id = $4`,
		nullable(plan.Name), nullable(plan.SourceURL), plan.Status, plan.TournamentID)
	if err != nil {
		return counts, &rr.DBError{Op: "update tournament", Err: err}
	}

	for _, group := range plan.Groups {
		groupID, err := upsertGroup(ctx, tx, plan.TournamentID, group)
		if err != nil {
			return counts, err
		}
		counts.Groups++

		for _, player := range group.Players {
			if err := upsertStats(ctx, tx, plan.TournamentID, groupID, player); err != nil {
				return counts, err
			}
			if player.Line.RatingPost != nil {
				if err := insertHistory(ctx, tx, plan.TournamentID, player); err != nil {
					return counts, err
				}
			}
			counts.Players++
		}

		for _, match := range group.Matches {
			if err := insertMatch(ctx, tx, plan.TournamentID, groupID, match); err != nil {
				return counts, err
			}
			counts.Matches++
		}
	}
	return counts, nil
}

func upsertGroup(ctx context.Context, tx pgx.Tx, tournamentID int64, group rr.GroupPlan) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO tournament_groups (tournament_id, group_number, group_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (tournament_id, group_number) DO UPDATE
		SET group_name = EXCLUDED.group_name
		RETURNING id`,
		tournamentID, group.Number, nullable(group.Name)).Scan(&id)
	if err != nil {
		return 0, &rr.DBError{Op: "upsert group", Err: err}
	}
	return id, nil
}

func upsertStats(ctx context.Context, tx pgx.Tx, tournamentID, groupID int64, player rr.PlayerPlan) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO player_tournament_stats (
			player_id, tournament_id, group_id,
			rating_pre, rating_post, rating_change,
			matches_won, games_won, bonus_points, change_w_bonus
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (player_id, tournament_id, group_id) DO UPDATE
		SET rating_pre = EXCLUDED.rating_pre,
		    rating_post = EXCLUDED.rating_post,
		    rating_change = EXCLUDED.rating_change,
		    matches_won = EXCLUDED.matches_won,
		    games_won = EXCLUDED.games_won,
		    bonus_points = EXCLUDED.bonus_points,
		    change_w_bonus = EXCLUDED.change_w_bonus`,
		player.PlayerID, tournamentID, groupID,
		player.Line.RatingPre, player.Line.RatingPost, player.Line.RatingChange,
		player.Line.MatchesWon, player.Line.GamesWon, player.Line.BonusPoints,
		player.Line.ChangeWithBonus)
	if err != nil {
		return &rr.DBError{Op: "upsert player stats", Err: err}
	}
	return nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, tournamentID int64, player rr.PlayerPlan) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO player_rating_history (player_id, tournament_id, rating)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, tournament_id) DO NOTHING`,
		player.PlayerID, tournamentID, player.Line.RatingPost)
	if err != nil {
		return &rr.DBError{Op: "insert rating history", Err: err}
	}
	return nil
}

func insertMatch(ctx context.Context, tx pgx.Tx, tournamentID, groupID int64, match rr.MatchPlan) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO matches (
			tournament_id, group_id,
			player1_id, player2_id,
			player1_score, player2_score,
			winner_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (tournament_id, group_id, player1_id, player2_id) DO NOTHING`,
		tournamentID, groupID,
		match.PlayerAID, match.PlayerBID,
		match.ScoreA, match.ScoreB,
		match.WinnerID)
	if err != nil {
		return &rr.DBError{Op: "insert match", Err: err}
	}
	return nil
}

// nullable maps an empty string to NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
