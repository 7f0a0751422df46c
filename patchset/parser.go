package patchset

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/jmercer/unipatch/linereader"
)

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@[ \t]?(.*)$`)

// Parse reads a unified-diff byte stream and builds a PatchSet. It
// collects diagnostics and keeps going past recoverable defects so a
// single pass produces a full batch report; it returns a non-nil error
// only when the stream is unreadable, is context-diff (non-unified)
// input, or contains no recognisable "---"/"+++" pair at all.
func Parse(r io.Reader) (*PatchSet, error) {
	lr := linereader.New(r)

	first, err := lr.PeekLine()
	if err != nil {
		return nil, &ParseError{Message: "empty or unreadable input"}
	}
	if bytes.HasPrefix(bytes.TrimRight(first, "\r\n"), []byte("*** ")) {
		return nil, &ParseError{Message: "context-diff input is not supported"}
	}

	ps := New()
	for {
		patch, perr := parseOnePatch(lr, ps)
		if perr == io.EOF {
			break
		}
		if perr != nil {
			ps.fail(ps.Len(), "parse-error", perr.Error())
			resync(lr)
			if _, peekErr := lr.PeekLine(); peekErr != nil {
				break
			}
			continue
		}

		ps.noteDialect(patch.Type)
		normalisePatch(ps, patch)
		ps.append(patch)
	}

	if ps.Len() == 0 {
		return nil, &ParseError{Message: "no recognisable --- / +++ pair found"}
	}
	return ps, nil
}

// FromBytes is a convenience wrapper around Parse for an in-memory
// buffer.
func FromBytes(buf []byte) (*PatchSet, error) {
	return Parse(bytes.NewReader(buf))
}

func parseOnePatch(lr *linereader.Reader, ps *PatchSet) (*Patch, error) {
	header, dialect, sourceLine, err := readHeader(lr)
	if err == io.EOF {
		return nil, io.EOF
	}

	targetLine, err := lr.NextLine()
	if err != nil || !bytes.HasPrefix(targetLine, []byte("+++ ")) {
		return nil, fmt.Errorf("expected +++ line following ---")
	}

	idx := ps.Len()
	source := trimFilenameField(sourceLine[4:])
	target := trimFilenameField(targetLine[4:])
	patch := &Patch{Source: source, Target: target, Header: header, Type: dialect}

	for {
		peek, peekErr := lr.PeekLine()
		if peekErr != nil {
			break
		}
		trimmed := bytes.TrimRight(peek, "\r\n")
		if bytes.HasPrefix(trimmed, []byte("--- ")) {
			break
		}
		if !bytes.HasPrefix(trimmed, []byte("@@")) {
			break
		}
		lr.NextLine()

		hunk, herr := parseHunkHeader(peek)
		if herr != nil {
			ps.fail(idx, "bad-hunk-header", herr.Error())
			resync(lr)
			continue
		}
		if berr := readHunkBody(lr, hunk); berr != nil {
			ps.fail(idx, "missing-hunk-line", berr.Error())
			resync(lr)
			continue
		}
		patch.Hunks = append(patch.Hunks, hunk)
	}

	return patch, nil
}

// readHeader accumulates lines until the "--- " line that starts the
// filenames section, detecting dialect framing as it goes.
func readHeader(lr *linereader.Reader) ([][]byte, Dialect, []byte, error) {
	var header [][]byte
	dialect := PLAIN
	pendingIndex := false

	for {
		line, err := lr.NextLine()
		if err != nil {
			return header, dialect, nil, io.EOF
		}
		if bytes.HasPrefix(line, []byte("--- ")) {
			return header, dialect, line, nil
		}

		trimmed := bytes.TrimRight(line, "\r\n")
		switch {
		case bytes.HasPrefix(trimmed, []byte("Index: ")):
			pendingIndex = true
		case pendingIndex && isAllEquals(trimmed):
			dialect = SVN
			pendingIndex = false
		case bytes.HasPrefix(trimmed, []byte("diff --git ")):
			dialect = GIT
			pendingIndex = false
		case bytes.HasPrefix(trimmed, []byte("diff -r ")) && looksLikeHgRevision(trimmed):
			dialect = HG
			pendingIndex = false
		case bytes.Equal(trimmed, []byte("# HG changeset patch")):
			dialect = HG
			pendingIndex = false
		default:
			pendingIndex = false
		}
		header = append(header, line)
	}
}

func isAllEquals(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c != '=' {
			return false
		}
	}
	return true
}

var hgRevisionRe = regexp.MustCompile(`^diff -r [0-9a-fA-F]+`)

func looksLikeHgRevision(b []byte) bool {
	return hgRevisionRe.Match(b)
}

func trimFilenameField(b []byte) []byte {
	b = bytes.TrimRight(b, "\r\n")
	if i := bytes.IndexByte(b, '\t'); i >= 0 {
		b = b[:i]
	}
	return bytes.TrimRight(b, " ")
}

func parseHunkHeader(line []byte) (*Hunk, error) {
	trimmed := bytes.TrimRight(line, "\r\n")
	m := hunkHeaderRe.FindSubmatch(trimmed)
	if m == nil {
		return nil, fmt.Errorf("unparseable hunk header: %q", trimmed)
	}

	startSrc, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid hunk source start: %w", err)
	}
	linesSrc := 1
	if len(m[2]) > 0 {
		linesSrc, err = strconv.Atoi(string(m[2]))
		if err != nil {
			return nil, fmt.Errorf("invalid hunk source count: %w", err)
		}
	}
	startTgt, err := strconv.Atoi(string(m[3]))
	if err != nil {
		return nil, fmt.Errorf("invalid hunk target start: %w", err)
	}
	linesTgt := 1
	if len(m[4]) > 0 {
		linesTgt, err = strconv.Atoi(string(m[4]))
		if err != nil {
			return nil, fmt.Errorf("invalid hunk target count: %w", err)
		}
	}

	return &Hunk{
		StartSrc: startSrc,
		LinesSrc: linesSrc,
		StartTgt: startTgt,
		LinesTgt: linesTgt,
		Desc:     append([]byte(nil), m[5]...),
	}, nil
}

// readHunkBody consumes exactly the lines belonging to hunk, classifying
// each by its leading byte, until the declared source/target line
// counts are both satisfied or a recognisable boundary is reached.
func readHunkBody(lr *linereader.Reader, hunk *Hunk) error {
	srcRead, tgtRead := 0, 0
	for srcRead < hunk.LinesSrc || tgtRead < hunk.LinesTgt {
		peek, err := lr.PeekLine()
		if err != nil {
			break // end of stream; the count check below decides if that's fine
		}
		if looksLikeBoundary(peek) {
			break
		}
		line, _ := lr.NextLine()
		kind, payload := classifyHunkLine(line)
		hunk.Text = append(hunk.Text, HunkLine{Kind: kind, Raw: payload})
		switch kind {
		case Context:
			srcRead++
			tgtRead++
		case Add:
			tgtRead++
		case Remove:
			srcRead++
		}
	}
	// A "\ No newline at end of file" marker after the last counted line
	// still belongs to this hunk.
	if peek, err := lr.PeekLine(); err == nil && len(peek) > 0 && peek[0] == '\\' {
		line, _ := lr.NextLine()
		hunk.Text = append(hunk.Text, HunkLine{Kind: NoNewline, Raw: line[1:]})
	}

	actualSrc, actualTgt := hunkCounts(hunk)
	if abs(actualSrc-hunk.LinesSrc) > 1 || abs(actualTgt-hunk.LinesTgt) > 1 {
		return fmt.Errorf("hunk body has %d/%d lines, declared %d/%d", actualSrc, actualTgt, hunk.LinesSrc, hunk.LinesTgt)
	}
	return nil
}

func classifyHunkLine(line []byte) (LineKind, []byte) {
	if len(line) == 0 {
		return Context, line
	}
	switch line[0] {
	case ' ':
		return Context, line[1:]
	case '+':
		return Add, line[1:]
	case '-':
		return Remove, line[1:]
	case '\\':
		return NoNewline, line[1:]
	default:
		return Context, line
	}
}

func looksLikeBoundary(line []byte) bool {
	trimmed := bytes.TrimRight(line, "\r\n")
	switch {
	case bytes.HasPrefix(trimmed, []byte("@@")):
		return true
	case bytes.HasPrefix(trimmed, []byte("--- ")):
		return true
	case bytes.HasPrefix(trimmed, []byte("diff --git ")):
		return true
	case bytes.HasPrefix(trimmed, []byte("diff -r ")):
		return true
	case bytes.HasPrefix(trimmed, []byte("Index: ")):
		return true
	case bytes.Equal(trimmed, []byte("# HG changeset patch")):
		return true
	}
	return false
}

// resync skips lines until the next recognisable boundary, so parsing
// can continue after a defective hunk or header.
func resync(lr *linereader.Reader) {
	for {
		peek, err := lr.PeekLine()
		if err != nil {
			return
		}
		if looksLikeBoundary(peek) {
			return
		}
		lr.NextLine()
	}
}

func hunkCounts(h *Hunk) (src, tgt int) {
	for _, l := range h.Text {
		switch l.Kind {
		case Context:
			src++
			tgt++
		case Add:
			tgt++
		case Remove:
			src++
		}
	}
	return src, tgt
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
