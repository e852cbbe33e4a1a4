package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutWritesDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := store.Put(context.Background(), "2023/rr_results_2023jan13.html", "text/html", []byte("<html/>"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "2023", "rr_results_2023jan13.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html/>", string(data))
}

func TestPutRejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.html", "", []byte("x"))
	require.Error(t, err)

	_, err = store.Put(context.Background(), "  ", "", []byte("x"))
	require.Error(t, err)
}

func TestNewCreatesBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "archive", "rr")
	_, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = New(Config{BaseDir: ""})
	assert.Error(t, err)
}
