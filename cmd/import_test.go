package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttstats/rrimport/internal/rr"
)

func TestResolveCandidateClassifies(t *testing.T) {
	t.Parallel()

	cand, err := resolveCandidate("rr_results_2023jan13", "", "")
	require.NoError(t, err)
	assert.Equal(t, rr.KindHTML, cand.Kind)
	assert.Equal(t, time.Date(2023, time.January, 13, 0, 0, 0, 0, time.UTC), cand.Date)
}

func TestResolveCandidateExplicitKindAndDate(t *testing.T) {
	t.Parallel()

	cand, err := resolveCandidate("/tmp/results.pdf", "pdf_legacy", "2019-05-03")
	require.NoError(t, err)
	assert.Equal(t, rr.KindLegacyPDF, cand.Kind)
	assert.Equal(t, time.Date(2019, time.May, 3, 0, 0, 0, 0, time.UTC), cand.Date)
}

func TestResolveCandidateUnclassifiable(t *testing.T) {
	t.Parallel()

	_, err := resolveCandidate("mystery.bin", "", "")
	assert.Error(t, err)

	_, err = resolveCandidate("mystery.bin", "spreadsheet", "")
	assert.Error(t, err)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["sync"])
	assert.True(t, names["import"])
}
