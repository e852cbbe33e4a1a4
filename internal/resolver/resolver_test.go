package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttstats/rrimport/internal/rr"
)

// fakeStore is an in-memory rr.Store that can simulate losing the insert
// race to a concurrent worker.
type fakeStore struct {
	players     map[string]int64
	tournaments map[string]*rr.TournamentRow
	nextID      int64

	// when set, inserts report created=false and the row appears as if a
	// concurrent worker had written it.
	loseRace bool

	findPlayerCalls int
	insertCalls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:     make(map[string]int64),
		tournaments: make(map[string]*rr.TournamentRow),
		nextID:      100,
	}
}

func (f *fakeStore) FindPlayer(_ context.Context, nameKey string) (int64, bool, error) {
	f.findPlayerCalls++
	id, ok := f.players[nameKey]
	return id, ok, nil
}

func (f *fakeStore) InsertPlayer(_ context.Context, _, nameKey string) (int64, bool, error) {
	f.insertCalls++
	f.nextID++
	f.players[nameKey] = f.nextID
	if f.loseRace {
		return 0, false, nil
	}
	return f.nextID, true, nil
}

func (f *fakeStore) FindTournament(_ context.Context, date time.Time) (*rr.TournamentRow, error) {
	row := f.tournaments[date.Format("2006-01-02")]
	return row, nil
}

func (f *fakeStore) InsertTournament(_ context.Context, row rr.TournamentRow) (int64, bool, error) {
	f.nextID++
	row.ID = f.nextID
	f.tournaments[row.Date.Format("2006-01-02")] = &row
	if f.loseRace {
		return 0, false, nil
	}
	return row.ID, true, nil
}

func (f *fakeStore) SetTournamentOutcome(context.Context, int64, rr.ParsingStatus, string) error {
	return nil
}

func (f *fakeStore) SetTournamentSource(context.Context, int64, string) error { return nil }

func (f *fakeStore) ImportedDates(context.Context, time.Time) (map[string]struct{}, error) {
	return nil, nil
}

func (f *fakeStore) ApplyImport(context.Context, rr.ImportPlan) (rr.ImportCounts, error) {
	return rr.ImportCounts{}, nil
}

func TestResolvePlayerCreatesOnce(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := New(store, nil)

	id1, err := r.ResolvePlayer(context.Background(), "Jane Doe")
	require.NoError(t, err)

	// Same player under a different spelling of the same name.
	id2, err := r.ResolvePlayer(context.Background(), "  jane   DOE ")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, store.insertCalls)
}

func TestResolvePlayerCachesLookups(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.players["jane doe"] = 7
	r := New(store, nil)

	for i := 0; i < 3; i++ {
		id, err := r.ResolvePlayer(context.Background(), "Jane Doe")
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
	}
	assert.Equal(t, 1, store.findPlayerCalls)
}

func TestResolvePlayerLosesRace(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.loseRace = true
	r := New(store, nil)

	id, err := r.ResolvePlayer(context.Background(), "Jane Doe")
	require.NoError(t, err)

	// The re-read after the conflict must return the winner's row.
	assert.Equal(t, store.players["jane doe"], id)
	assert.Equal(t, 2, store.findPlayerCalls)
}

func TestResolvePlayerRejectsEmptyName(t *testing.T) {
	t.Parallel()

	r := New(newFakeStore(), nil)
	_, err := r.ResolvePlayer(context.Background(), "   ")
	assert.Error(t, err)
}

func TestResolveTournamentCreates(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := New(store, nil)

	date := time.Date(2023, time.January, 13, 0, 0, 0, 0, time.UTC)
	row, err := r.ResolveTournament(context.Background(), date, "Friday Round Robin", "rr_results_2023jan13")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.NotZero(t, row.ID)
	assert.False(t, AlreadyImported(row))
}

func TestResolveTournamentReturnsExisting(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	date := time.Date(2023, time.January, 13, 0, 0, 0, 0, time.UTC)
	store.tournaments["2023-01-13"] = &rr.TournamentRow{ID: 42, Date: date, Status: rr.StatusSuccess}
	r := New(store, nil)

	row, err := r.ResolveTournament(context.Background(), date, "ignored", "ignored")
	require.NoError(t, err)
	assert.Equal(t, int64(42), row.ID)
	assert.True(t, AlreadyImported(row))
}

func TestResolveTournamentLosesRace(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.loseRace = true
	r := New(store, nil)

	date := time.Date(2023, time.January, 13, 0, 0, 0, 0, time.UTC)
	row, err := r.ResolveTournament(context.Background(), date, "Friday Round Robin", "")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.NotZero(t, row.ID)
}
