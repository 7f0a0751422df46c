package unipatch_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmercer/unipatch"
	"github.com/jmercer/unipatch/internal/testutil"
)

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestFixtures_AutofixWarningCounts(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		wantErrors   int
		wantWarnings int
	}{
		{"absolute path stripped on both sides", "testdata/autofix/absolute_path.patch", 0, 2},
		{"parent-escaping source clamped", "testdata/autofix/parent_escape.patch", 0, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set, err := unipatch.FromBytes(mustRead(t, tc.path))
			require.NoError(t, err)
			assert.Equal(t, tc.wantErrors, set.Errors())
			assert.Equal(t, tc.wantWarnings, set.Warnings())
		})
	}
}

func TestFixtures_BadHunkHeaderIsFatal(t *testing.T) {
	set, err := unipatch.FromBytes(mustRead(t, "testdata/failing/bad_hunk_header.patch"))
	require.NoError(t, err)
	assert.Equal(t, 1, set.Errors())
}

func TestFixtures_CreateWritesNewFile(t *testing.T) {
	fs := testutil.NewMockFileSystem()
	set, err := unipatch.FromBytes(mustRead(t, "testdata/create.patch"))
	require.NoError(t, err)
	require.True(t, set.Patches()[0].IsCreation())

	require.NoError(t, set.Apply(unipatch.Options{Root: "/root", FS: fs}))

	got, err := fs.ReadFile("/root/greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", string(got))
}

func TestFixtures_DeleteRemovesFile(t *testing.T) {
	fs := testutil.NewMockFileSystem()
	fs.AddFile("/root/obsolete.txt", []byte("obsolete content\n"))

	set, err := unipatch.FromBytes(mustRead(t, "testdata/delete.patch"))
	require.NoError(t, err)
	require.True(t, set.Patches()[0].IsDeletion())

	require.NoError(t, set.Apply(unipatch.Options{Root: "/root", FS: fs}))
	assert.False(t, fs.FileExists("/root/obsolete.txt"))
}

func TestFixtures_FuzzyContextToleratesRenamedNeighbours(t *testing.T) {
	fs := testutil.NewMockFileSystem()
	fs.AddFile("/root/drifted.txt", mustRead(t, "testdata/fuzzy_context.before.txt"))

	set, err := unipatch.FromBytes(mustRead(t, "testdata/fuzzy_context.patch"))
	require.NoError(t, err)

	require.NoError(t, set.Apply(unipatch.Options{Root: "/root", FS: fs}))

	got, err := fs.ReadFile("/root/drifted.txt")
	require.NoError(t, err)
	assert.Equal(t, "prelude\nline one\nline two changed\nline three\ntrailer\n", string(got))
}
