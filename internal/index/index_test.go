package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttstats/rrimport/internal/rr"
)

type stubFetcher struct {
	data []byte
	err  error
}

func (s *stubFetcher) Fetch(context.Context, string, rr.DocumentKind) ([]byte, error) {
	return s.data, s.err
}

const resultsPage = `<html><body>
<a href="rr_results_2023jan20">Jan 20 Results</a>
<a href="rr_results_2023jan13">Jan 13 Results</a>
<a href="RR_Results 2022Dec16.pdf">Dec 16 Results</a>
<a href="RR%5FResults%202022Dec09.pdf">Dec 9 Results</a>
<a href="187.pdf">Old Results</a>
<a href="rr_results_2023jan13">Jan 13 Duplicate</a>
<a href="about.html">About the club</a>
<a href="mailto:club@example.org">Contact</a>
</body></html>`

func TestListCandidates(t *testing.T) {
	t.Parallel()

	idx := New(&stubFetcher{data: []byte(resultsPage)}, "results.html", nil)

	candidates, err := idx.ListCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 5)

	// Newest first, undated legacy PDFs last.
	assert.Equal(t, "rr_results_2023jan20", candidates[0].Locator)
	assert.Equal(t, "rr_results_2023jan13", candidates[1].Locator)
	assert.Equal(t, "RR_Results 2022Dec16.pdf", candidates[2].Locator)
	assert.Equal(t, "RR_Results 2022Dec09.pdf", candidates[3].Locator)
	assert.Equal(t, "187.pdf", candidates[4].Locator)

	assert.Equal(t, rr.KindHTML, candidates[0].Kind)
	assert.Equal(t, rr.KindPDF, candidates[2].Kind)
	assert.Equal(t, rr.KindLegacyPDF, candidates[4].Kind)

	assert.Equal(t, time.Date(2023, time.January, 20, 0, 0, 0, 0, time.UTC), candidates[0].Date)
	assert.True(t, candidates[4].Date.IsZero())
	assert.Equal(t, "Jan 20 Results", candidates[0].Display)
}

func TestListCandidatesFetchError(t *testing.T) {
	t.Parallel()

	idx := New(&stubFetcher{err: &rr.FetchError{Locator: "results.html", Err: assert.AnError}}, "results.html", nil)

	_, err := idx.ListCandidates(context.Background())
	require.Error(t, err)

	var fetchErr *rr.FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		href string
		kind rr.DocumentKind
		ok   bool
	}{
		{"rr_results_2023jan13", rr.KindHTML, true},
		{"results/rr_results_2023jan13", rr.KindHTML, true},
		{"RR_Results 2024Jan05.pdf", rr.KindPDF, true},
		{"rr_results_2024jan05.pdf", rr.KindPDF, true},
		{"RR_Results 2024Jan05.html", rr.KindHTML, true},
		{"RR%5FResults%202024Jan05.pdf", rr.KindPDF, true},
		{"187.pdf", rr.KindLegacyPDF, true},
		{"about.html", "", false},
		{"rr_results_index", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		cand, ok := Classify(tt.href)
		assert.Equal(t, tt.ok, ok, "href %q", tt.href)
		if tt.ok {
			assert.Equal(t, tt.kind, cand.Kind, "href %q", tt.href)
		}
	}
}
