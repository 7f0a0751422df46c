package matcher

import (
	"bytes"

	"github.com/jmercer/unipatch/patchset"
)

// Applicability is the three-way result of asking whether a hunk still
// needs to be applied to a given file: it may need applying, it may
// already be applied (the post-image is already present), or neither
// image matches at all.
type Applicability int

const (
	NeedsPatch Applicability = iota
	AlreadyApplied
	Mismatch
)

func (a Applicability) String() string {
	switch a {
	case AlreadyApplied:
		return "already-applied"
	case Mismatch:
		return "mismatch"
	default:
		return "needs-patch"
	}
}

// PreImageLines returns the lines a hunk expects to find before it is
// applied (context + removed lines), or after it is applied if reverse
// is true (context + added lines, i.e. the hunk's own post-image).
func PreImageLines(h *patchset.Hunk, reverse bool) [][]byte {
	return selectLines(h, reverse, false)
}

// PostImageLines returns the lines a hunk produces once applied
// (context + added), or the original lines if reverse is true.
func PostImageLines(h *patchset.Hunk, reverse bool) [][]byte {
	return selectLines(h, reverse, true)
}

// selectLines walks a hunk's body picking context lines plus whichever
// side (remove or add) is relevant, honouring reverse (which swaps the
// add/remove roles) and post (pre-image vs post-image). A NoNewline
// marker strips the trailing newline from the line it immediately
// follows in h.Text — but only when that line was itself selected into
// out; a marker following a line of the other (unselected) side belongs
// to the other image and must not touch this one's last appended line.
func selectLines(h *patchset.Hunk, reverse, post bool) [][]byte {
	removeKind, addKind := patchset.Remove, patchset.Add
	if reverse {
		removeKind, addKind = patchset.Add, patchset.Remove
	}
	wantKind := removeKind
	if post {
		wantKind = addKind
	}

	var out [][]byte
	prevSelected := false
	for _, l := range h.Text {
		switch l.Kind {
		case patchset.Context:
			out = append(out, l.Raw)
			prevSelected = true
		case patchset.NoNewline:
			if prevSelected {
				if n := len(out); n > 0 {
					out[n-1] = bytes.TrimRight(out[n-1], "\r\n")
				}
			}
			prevSelected = false
		default:
			prevSelected = l.Kind == wantKind
			if prevSelected {
				out = append(out, l.Raw)
			}
		}
	}
	return out
}

// Check compares a hunk's pre- and post-images against file (already
// sliced to the hunk's declared offset window is NOT required; Check
// searches the whole file) to decide whether the hunk still needs
// applying, is already applied, or matches neither image.
func Check(h *patchset.Hunk, file [][]byte, reverse bool) (Applicability, *Result) {
	pre := PreImageLines(h, reverse)
	declared := h.StartSrc - 1
	if reverse {
		declared = h.StartTgt - 1
	}
	if r, err := Locate(pre, file, declared); err == nil {
		return NeedsPatch, r
	}

	post := PostImageLines(h, reverse)
	if r, err := Locate(post, file, declared); err == nil {
		return AlreadyApplied, r
	}

	return Mismatch, nil
}
