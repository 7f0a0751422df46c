package matcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmercer/unipatch/matcher"
	"github.com/jmercer/unipatch/patchset"
)

func lines(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s + "\n")
	}
	return out
}

func TestLocate_ExactAtDeclaredOffset(t *testing.T) {
	file := lines("a", "b", "c", "d")
	want := lines("b", "c")

	r, err := matcher.Locate(want, file, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Offset)
	assert.Equal(t, matcher.Exact, r.Strategy)
}

func TestLocate_ShiftedWhenFileGrew(t *testing.T) {
	file := lines("x", "a", "b", "c", "d")
	want := lines("c", "d")

	r, err := matcher.Locate(want, file, 1) // declared assumed offset 1, actually at 3
	require.NoError(t, err)
	assert.Equal(t, 3, r.Offset)
	assert.Equal(t, matcher.Shifted, r.Strategy)
}

func TestLocate_ShiftedPrefersClosestOffset(t *testing.T) {
	file := lines("p", "q", "target", "r", "s", "target", "t")
	want := lines("target")

	r, err := matcher.Locate(want, file, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Offset)
}

func TestLocate_FuzzyTrimsEdges(t *testing.T) {
	file := lines("unrelated-before", "a", "b", "c", "unrelated-after")
	want := lines("X", "a", "b", "c", "Y") // edges don't match; middle does

	r, err := matcher.Locate(want, file, 0)
	require.NoError(t, err)
	assert.Equal(t, matcher.Fuzzy, r.Strategy)
	assert.Equal(t, 1, r.TrimTop)
	assert.Equal(t, 1, r.TrimBottom)
}

func TestLocate_WhitespaceInsensitiveFallback(t *testing.T) {
	file := [][]byte{[]byte("foo   bar\n")}
	want := [][]byte{[]byte("foo bar\n")}

	r, err := matcher.Locate(want, file, 0)
	require.NoError(t, err)
	assert.Equal(t, matcher.Whitespace, r.Strategy)
}

func TestLocate_NoMatch(t *testing.T) {
	file := lines("a", "b", "c")
	want := lines("nope")

	_, err := matcher.Locate(want, file, 0)
	assert.ErrorIs(t, err, matcher.ErrNoMatch)
}

func TestLocate_EmptyWantMatchesAtDeclaredOffset(t *testing.T) {
	file := lines("a", "b")
	r, err := matcher.Locate(nil, file, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Offset)
}

func TestPreImagePostImage_RoundTrip(t *testing.T) {
	h := &patchset.Hunk{
		StartSrc: 1, LinesSrc: 2,
		StartTgt: 1, LinesTgt: 2,
		Text: []patchset.HunkLine{
			{Kind: patchset.Context, Raw: []byte("same\n")},
			{Kind: patchset.Remove, Raw: []byte("old\n")},
			{Kind: patchset.Add, Raw: []byte("new\n")},
		},
	}

	pre := matcher.PreImageLines(h, false)
	require.Len(t, pre, 2)
	assert.Equal(t, "same\n", string(pre[0]))
	assert.Equal(t, "old\n", string(pre[1]))

	post := matcher.PostImageLines(h, false)
	require.Len(t, post, 2)
	assert.Equal(t, "new\n", string(post[1]))

	// reversed roles swap which side counts as pre/post
	revPre := matcher.PreImageLines(h, true)
	assert.Equal(t, "new\n", string(revPre[1]))
}

func TestPreImagePostImage_NoNewlineMarkerAttachesToItsOwnSide(t *testing.T) {
	// Source's last line ("old") has no trailing newline; target's last
	// line ("new") does. The marker in h.Text sits right after the
	// Remove line, so it must strip only the pre-image's tail, never
	// the post-image's context line.
	h := &patchset.Hunk{
		StartSrc: 1, LinesSrc: 2,
		StartTgt: 1, LinesTgt: 2,
		Text: []patchset.HunkLine{
			{Kind: patchset.Context, Raw: []byte("ctx1\n")},
			{Kind: patchset.Remove, Raw: []byte("old\n")},
			{Kind: patchset.NoNewline, Raw: []byte("No newline at end of file\n")},
			{Kind: patchset.Add, Raw: []byte("new\n")},
		},
	}

	pre := matcher.PreImageLines(h, false)
	require.Len(t, pre, 2)
	assert.Equal(t, "ctx1\n", string(pre[0]))
	assert.Equal(t, "old", string(pre[1]), "marker must strip the removed line's own newline")

	post := matcher.PostImageLines(h, false)
	require.Len(t, post, 2)
	assert.Equal(t, "ctx1\n", string(post[0]), "marker on the removed side must not touch the context line")
	assert.Equal(t, "new\n", string(post[1]), "added line keeps its own trailing newline untouched")
}

func TestPreImagePostImage_NoNewlineMarkerOnAddedSide(t *testing.T) {
	// Mirror case: target's last line has no trailing newline, source's
	// does. The marker follows the Add line this time.
	h := &patchset.Hunk{
		StartSrc: 1, LinesSrc: 2,
		StartTgt: 1, LinesTgt: 2,
		Text: []patchset.HunkLine{
			{Kind: patchset.Context, Raw: []byte("ctx1\n")},
			{Kind: patchset.Remove, Raw: []byte("old\n")},
			{Kind: patchset.Add, Raw: []byte("new\n")},
			{Kind: patchset.NoNewline, Raw: []byte("No newline at end of file\n")},
		},
	}

	pre := matcher.PreImageLines(h, false)
	require.Len(t, pre, 2)
	assert.Equal(t, "old\n", string(pre[1]), "marker on the added side must not touch the removed line")

	post := matcher.PostImageLines(h, false)
	require.Len(t, post, 2)
	assert.Equal(t, "new", string(post[1]), "marker must strip the added line's own newline")
}

func TestCheck_NeedsPatchAlreadyAppliedMismatch(t *testing.T) {
	h := &patchset.Hunk{
		StartSrc: 1, LinesSrc: 1,
		StartTgt: 1, LinesTgt: 1,
		Text: []patchset.HunkLine{
			{Kind: patchset.Remove, Raw: []byte("old\n")},
			{Kind: patchset.Add, Raw: []byte("new\n")},
		},
	}

	state, r := matcher.Check(h, lines("old"), false)
	assert.Equal(t, matcher.NeedsPatch, state)
	assert.NotNil(t, r)

	state, _ = matcher.Check(h, lines("new"), false)
	assert.Equal(t, matcher.AlreadyApplied, state)

	state, _ = matcher.Check(h, lines("totally-unrelated"), false)
	assert.Equal(t, matcher.Mismatch, state)
}
