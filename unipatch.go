// Package unipatch parses, applies and reverts unified diffs against a
// real or simulated filesystem. It is a thin facade over patchset (the
// data model and parser), matcher (drift-tolerant hunk location),
// applier (filesystem mutation) and diffstat (summary rendering) —
// the shape spec.md's external interface describes, kept as a single
// entry point so a caller never has to import the subpackages
// directly for ordinary use.
package unipatch

import (
	"io"

	"github.com/jmercer/unipatch/applier"
	"github.com/jmercer/unipatch/diffstat"
	"github.com/jmercer/unipatch/matcher"
	"github.com/jmercer/unipatch/patchevents"
	"github.com/jmercer/unipatch/patchset"
)

// Dialect re-exports patchset.Dialect so callers need not import the
// subpackage just to inspect Set.Dialect.
type Dialect = patchset.Dialect

const (
	PLAIN = patchset.PLAIN
	GIT   = patchset.GIT
	HG    = patchset.HG
	SVN   = patchset.SVN
	MIXED = patchset.MIXED
)

// Applicability re-exports matcher.Applicability, the three-way result
// of CanPatch.
type Applicability = matcher.Applicability

const (
	NeedsPatch     = matcher.NeedsPatch
	AlreadyApplied = matcher.AlreadyApplied
	Mismatch       = matcher.Mismatch
)

// Set wraps a parsed patchset.PatchSet with the filesystem-facing
// operations spec.md describes: Apply, Revert, CanPatch and Diffstat.
// Parsing itself stays a pure function of the input bytes; only these
// methods touch a FileSystem.
type Set struct {
	ps *patchset.PatchSet
}

// Parse reads a unified-diff byte stream from r and returns the parsed
// Set, or an error if the stream is unreadable or unrecognisable.
func Parse(r io.Reader) (*Set, error) {
	ps, err := patchset.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Set{ps: ps}, nil
}

// FromBytes is Parse for an in-memory buffer.
func FromBytes(buf []byte) (*Set, error) {
	ps, err := patchset.FromBytes(buf)
	if err != nil {
		return nil, err
	}
	return &Set{ps: ps}, nil
}

// Errors returns the number of fatal parse-time defects encountered.
func (s *Set) Errors() int { return s.ps.Errors }

// Warnings returns the number of autofixes applied while parsing.
func (s *Set) Warnings() int { return s.ps.Warnings }

// Valid reports whether parsing encountered zero fatal errors.
func (s *Set) Valid() bool { return s.ps.Valid() }

// Type returns the dialect detected while parsing: PLAIN unless every
// patch in the set carried the same VCS framing, in which case that
// dialect, or MIXED if they disagreed.
func (s *Set) Type() Dialect { return s.ps.Dialect }

// Patches returns the parsed patches, in file order.
func (s *Set) Patches() []*patchset.Patch { return s.ps.Patches() }

// Diagnostics returns every autofix and fatal defect recorded while
// parsing, in the order encountered.
func (s *Set) Diagnostics() []patchset.Diagnostic { return s.ps.Diagnostics }

// Options configures Apply, Revert and CanPatch. Root is the directory
// patched paths are resolved under; Strip removes that many leading
// path components from each patch's declared path before joining under
// Root, matching python-patch-ng's apply(strip=, root=) composition.
type Options struct {
	Root  string
	Strip int
	// FS overrides the filesystem used; a nil FS uses the real OS
	// filesystem rooted at Root.
	FS applier.FileSystem
	// Sink receives progress events; a nil Sink discards them.
	Sink patchevents.Sink
}

func (s *Set) newApplier(opts Options) (*applier.Applier, applier.Options) {
	fs := opts.FS
	if fs == nil {
		fs = applier.NewRealFileSystem()
	}
	return applier.New(fs, opts.Sink), applier.Options{Root: opts.Root, Strip: opts.Strip}
}

// Apply applies every patch in the set under opts.Root.
func (s *Set) Apply(opts Options) error {
	a, aopts := s.newApplier(opts)
	return a.Apply(s.ps, aopts)
}

// Revert undoes every patch in the set under opts.Root, swapping each
// hunk's add/remove roles and coordinates.
func (s *Set) Revert(opts Options) error {
	a, aopts := s.newApplier(opts)
	return a.Revert(s.ps, aopts)
}

// CanPatch reports, per patch, whether it still needs applying, is
// already applied, or matches neither image, without touching the
// filesystem beyond reading.
func (s *Set) CanPatch(opts Options) ([]Applicability, error) {
	a, aopts := s.newApplier(opts)
	return a.CanPatch(s.ps, aopts)
}

// Diffstat renders the set's per-file change summary.
func (s *Set) Diffstat() string {
	return diffstat.Render(s.ps)
}
