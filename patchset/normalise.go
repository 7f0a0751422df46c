package patchset

import (
	"bytes"
	"fmt"

	"github.com/jmercer/unipatch/pathops"
)

// normalisePatch autofixes the defects a freshly parsed Patch commonly
// carries: absolute or parent-escaping paths, a source/target basename
// mismatch, single-line hunk count drift, and trailing whitespace that
// would otherwise defeat exact matching. Every fix increments
// ps.Warnings and is recorded as a Diagnostic.
func normalisePatch(ps *PatchSet, p *Patch) {
	idx := ps.Len()

	if !IsDevNull(p.Source) {
		p.Source = normaliseOnePath(ps, idx, p.Source)
	}
	if !IsDevNull(p.Target) {
		p.Target = normaliseOnePath(ps, idx, p.Target)
	}

	if !IsDevNull(p.Source) && !IsDevNull(p.Target) && !bytes.Equal(pathops.Basename(p.Source), pathops.Basename(p.Target)) {
		ps.warn(idx, "name-mismatch", fmt.Sprintf("source %q and target %q disagree; using source", p.Source, p.Target))
	}

	for _, h := range p.Hunks {
		reconcileCounts(ps, idx, h)
		flagTrailingWhitespace(ps, idx, h)
	}
}

func normaliseOnePath(ps *PatchSet, idx int, p []byte) []byte {
	if pathops.IsAbsolute(p) {
		p = pathops.StripAbsolute(p)
		ps.warn(idx, "absolute-path", fmt.Sprintf("stripped absolute path to %q", p))
	}

	normalised := pathops.Normalise(p)
	if bytes.HasPrefix(normalised, []byte("..")) {
		clamped := clampEscape(normalised)
		ps.warn(idx, "parent-escape", fmt.Sprintf("clamped parent-escaping path to %q", clamped))
		return clamped
	}
	return p
}

// clampEscape drops every leading ".." segment, leaving the longest
// safe suffix of an already-normalised path.
func clampEscape(p []byte) []byte {
	parts := bytes.Split(p, []byte("/"))
	for len(parts) > 0 && bytes.Equal(parts[0], []byte("..")) {
		parts = parts[1:]
	}
	return bytes.Join(parts, []byte("/"))
}

func reconcileCounts(ps *PatchSet, idx int, h *Hunk) {
	actualSrc, actualTgt := hunkCounts(h)
	if actualSrc != h.LinesSrc && abs(actualSrc-h.LinesSrc) == 1 {
		ps.warn(idx, "hunk-count", fmt.Sprintf("adjusted declared source line count %d to %d", h.LinesSrc, actualSrc))
		h.LinesSrc = actualSrc
	}
	if actualTgt != h.LinesTgt && abs(actualTgt-h.LinesTgt) == 1 {
		ps.warn(idx, "hunk-count", fmt.Sprintf("adjusted declared target line count %d to %d", h.LinesTgt, actualTgt))
		h.LinesTgt = actualTgt
	}
}

// flagTrailingWhitespace warns once per hunk when a context or add line
// carries trailing whitespace that an exact comparison would choke on;
// the matcher falls back to a whitespace-insensitive comparison for
// such hunks.
func flagTrailingWhitespace(ps *PatchSet, idx int, h *Hunk) {
	for _, l := range h.Text {
		if l.Kind != Add && l.Kind != Context {
			continue
		}
		trimmed := bytes.TrimRight(l.Raw, "\r\n")
		if len(trimmed) > 0 && (trimmed[len(trimmed)-1] == ' ' || trimmed[len(trimmed)-1] == '\t') {
			ps.warn(idx, "trailing-whitespace", "trailing whitespace found in hunk context/add line")
			return
		}
	}
}
