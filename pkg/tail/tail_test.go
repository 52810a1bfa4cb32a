package tail_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/host-collector/pkg/tail"
)

func appendTo(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFollower_StartsAtEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "old line\n")

	f := tail.NewFollower(path)
	lines, err := f.ReadLines()
	require.NoError(t, err)
	assert.Empty(t, lines)

	appendTo(t, path, "one\ntwo\npart")
	lines, err = f.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)

	appendTo(t, path, "ial\n")
	lines, err = f.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"partial"}, lines)
}

func TestFollower_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendTo(t, path, "a long first line\n")

	f := tail.NewFollower(path)
	f.FromStart = true
	lines, err := f.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"a long first line"}, lines)

	require.NoError(t, os.WriteFile(path, []byte("new\n"), 0644))
	lines, err = f.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, lines)
}

func TestFollower_MissingFile(t *testing.T) {
	_, err := tail.NewFollower(filepath.Join(t.TempDir(), "nope.log")).ReadLines()
	assert.Error(t, err)
}
