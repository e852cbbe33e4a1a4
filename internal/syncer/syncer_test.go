package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttstats/rrimport/internal/archive"
	archivememory "github.com/ttstats/rrimport/internal/archive/memory"
	"github.com/ttstats/rrimport/internal/importer"
	"github.com/ttstats/rrimport/internal/parser"
	"github.com/ttstats/rrimport/internal/resolver"
	"github.com/ttstats/rrimport/internal/rr"
)

type fakeIndex struct {
	candidates []rr.Candidate
}

func (f *fakeIndex) ListCandidates(context.Context) ([]rr.Candidate, error) {
	return f.candidates, nil
}

type fakeFetcher struct {
	docs map[string][]byte
	fail map[string]bool

	mu      sync.Mutex
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, locator string, _ rr.DocumentKind) ([]byte, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, locator)
	f.mu.Unlock()

	if f.fail[locator] {
		return nil, &rr.FetchError{Locator: locator, Err: assert.AnError}
	}
	data, ok := f.docs[locator]
	if !ok {
		return nil, &rr.FetchError{Locator: locator, Err: assert.AnError}
	}
	return data, nil
}

func (f *fakeFetcher) fetchedLocators() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

// memStore is a mutex-guarded in-memory rr.Store safe for concurrent
// workers.
type memStore struct {
	mu          sync.Mutex
	players     map[string]int64
	tournaments map[string]*rr.TournamentRow
	nextID      int64
	importedSet map[string]struct{}
	applied     int
}

func newMemStore(importedDates ...string) *memStore {
	set := make(map[string]struct{}, len(importedDates))
	for _, d := range importedDates {
		set[d] = struct{}{}
	}
	return &memStore{
		players:     make(map[string]int64),
		tournaments: make(map[string]*rr.TournamentRow),
		nextID:      100,
		importedSet: set,
	}
}

func (m *memStore) FindPlayer(_ context.Context, nameKey string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.players[nameKey]
	return id, ok, nil
}

func (m *memStore) InsertPlayer(_ context.Context, _, nameKey string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.players[nameKey] = m.nextID
	return m.nextID, true, nil
}

func (m *memStore) FindTournament(_ context.Context, date time.Time) (*rr.TournamentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tournaments[date.Format("2006-01-02")], nil
}

func (m *memStore) InsertTournament(_ context.Context, row rr.TournamentRow) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	row.ID = m.nextID
	row.Status = rr.StatusPending
	m.tournaments[row.Date.Format("2006-01-02")] = &row
	return row.ID, true, nil
}

func (m *memStore) SetTournamentOutcome(_ context.Context, id int64, status rr.ParsingStatus, diagnostic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.tournaments {
		if row.ID == id {
			row.Status = status
			row.Diagnostic = diagnostic
		}
	}
	return nil
}

func (m *memStore) SetTournamentSource(context.Context, int64, string) error { return nil }

func (m *memStore) ImportedDates(context.Context, time.Time) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{}, len(m.importedSet))
	for d := range m.importedSet {
		out[d] = struct{}{}
	}
	return out, nil
}

func (m *memStore) ApplyImport(_ context.Context, plan rr.ImportPlan) (rr.ImportCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied++
	counts := rr.ImportCounts{Groups: len(plan.Groups)}
	for _, g := range plan.Groups {
		counts.Players += len(g.Players)
		counts.Matches += len(g.Matches)
	}
	return counts, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func resultDoc(longDate string) []byte {
	return []byte(`<html><body><h1>Round Robin Results for ` + longDate + `</h1><pre>
#1
1 Doe, Jane 1500 1512
2 Roe, John 1400 1395
Doe vs Roe 3-1
</pre></body></html>`)
}

func newTestSyncer(idx rr.Index, f rr.Fetcher, store rr.Store, arc archive.Store, cfg Config) *Syncer {
	p := parser.New(nil)
	imp := importer.New(p, resolver.New(store, nil), store, nil, 0, nil)
	clock := fixedClock{now: time.Date(2023, time.January, 20, 18, 0, 0, 0, time.UTC)}
	return New(idx, f, p, imp, store, clock, arc, cfg, nil)
}

func TestRunPartialFailure(t *testing.T) {
	t.Parallel()

	day := func(d int) time.Time {
		return time.Date(2023, time.January, d, 0, 0, 0, 0, time.UTC)
	}
	idx := &fakeIndex{candidates: []rr.Candidate{
		{Locator: "rr_results_2023jan20", Kind: rr.KindHTML, Date: day(20)},
		{Locator: "rr_results_2023jan19", Kind: rr.KindHTML, Date: day(19)},
		{Locator: "rr_results_2023jan13", Kind: rr.KindHTML, Date: day(13)},
		// Already imported: filtered without a fetch.
		{Locator: "rr_results_2023jan06", Kind: rr.KindHTML, Date: day(6)},
		// Before the 14-day window: dropped entirely.
		{Locator: "rr_results_2022dec30", Kind: rr.KindHTML, Date: time.Date(2022, time.December, 30, 0, 0, 0, 0, time.UTC)},
	}}
	fetcher := &fakeFetcher{
		docs: map[string][]byte{
			"rr_results_2023jan20": resultDoc("January 20, 2023"),
			"rr_results_2023jan13": resultDoc("January 13, 2023"),
		},
		fail: map[string]bool{"rr_results_2023jan19": true},
	}
	store := newMemStore("2023-01-06")
	arc := archivememory.New()

	s := newTestSyncer(idx, fetcher, store, arc, Config{Workers: 2, LookbackDays: 14})
	summary, err := s.Run(context.Background())

	// One broken document fails the run but never blocks the rest.
	require.ErrorIs(t, err, ErrPartialFailure)
	assert.Equal(t, 5, summary.Discovered)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, store.applied)
	assert.NotEmpty(t, summary.RunID)

	// The already-imported and out-of-window candidates were never fetched.
	assert.NotContains(t, fetcher.fetchedLocators(), "rr_results_2023jan06")
	assert.NotContains(t, fetcher.fetchedLocators(), "rr_results_2022dec30")

	// The fetch failure left a visible failed tournament row.
	row := store.tournaments["2023-01-19"]
	require.NotNil(t, row)
	assert.Equal(t, rr.StatusParsingFailed, row.Status)

	// Both fetched documents were archived under their locator keys.
	assert.Equal(t, 2, arc.Len())
	archived, ok := arc.Get("rr_results_2023jan20")
	require.True(t, ok)
	assert.Equal(t, resultDoc("January 20, 2023"), archived)
}

func TestRunAllSuccess(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{candidates: []rr.Candidate{
		{Locator: "rr_results_2023jan20", Kind: rr.KindHTML, Date: time.Date(2023, time.January, 20, 0, 0, 0, 0, time.UTC)},
	}}
	fetcher := &fakeFetcher{docs: map[string][]byte{
		"rr_results_2023jan20": resultDoc("January 20, 2023"),
	}}
	store := newMemStore()

	s := newTestSyncer(idx, fetcher, store, nil, Config{})
	summary, err := s.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Zero(t, summary.Failed)
}

func TestRunMinesDatesForUndatedCandidates(t *testing.T) {
	t.Parallel()

	// An undated document whose content dates it before the window: it
	// must be fetched once, then skipped without touching the store.
	idx := &fakeIndex{candidates: []rr.Candidate{
		{Locator: "old_results", Kind: rr.KindHTML},
	}}
	fetcher := &fakeFetcher{docs: map[string][]byte{
		"old_results": resultDoc("January 2, 2023"),
	}}
	store := newMemStore()

	s := newTestSyncer(idx, fetcher, store, nil, Config{LookbackDays: 14})
	summary, err := s.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, store.applied)
	assert.Contains(t, fetcher.fetchedLocators(), "old_results")
}

func TestWindowStart(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Date(2023, time.January, 20, 18, 30, 0, 0, time.UTC)}
	s := New(nil, nil, nil, nil, nil, clock, nil, Config{LookbackDays: 14}, nil)
	assert.Equal(t, time.Date(2023, time.January, 6, 0, 0, 0, 0, time.UTC), s.windowStart())

	explicit := time.Date(2022, time.June, 1, 12, 0, 0, 0, time.UTC)
	s = New(nil, nil, nil, nil, nil, clock, nil, Config{Start: explicit}, nil)
	assert.Equal(t, time.Date(2022, time.June, 1, 0, 0, 0, 0, time.UTC), s.windowStart())
}
