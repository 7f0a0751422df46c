// Package applier turns a parsed patchset.PatchSet into filesystem
// changes: creating, deleting and rewriting files, with atomic writes
// and a three-way dry-run check, generalising the teacher's
// pkg/operations package (which applied a single hard-coded diff
// dialect directly against os calls) into a FileSystem-abstracted,
// matcher-backed engine that tolerates drifted source files.
package applier

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/jmercer/unipatch/matcher"
	"github.com/jmercer/unipatch/patchevents"
	"github.com/jmercer/unipatch/patchset"
	"github.com/jmercer/unipatch/pathops"
)

// Options configures a single Apply or Revert call. Strip and Root
// compose exactly as python-patch-ng's apply(strip=, root=) did: strip
// is applied to the patch-declared path before joining under root.
// Neither is global process state.
type Options struct {
	Root    string
	Strip   int
	Reverse bool
}

// Applier applies or reverts a PatchSet against a FileSystem, emitting
// one patchevents.Event per patch to Sink.
type Applier struct {
	FS   FileSystem
	Sink patchevents.Sink
}

// New returns an Applier backed by fs. A nil sink is replaced with
// patchevents.DiscardSink{}.
func New(fs FileSystem, sink patchevents.Sink) *Applier {
	if sink == nil {
		sink = patchevents.DiscardSink{}
	}
	return &Applier{FS: fs, Sink: sink}
}

// Apply applies every patch in ps under opts.Root (after opts.Strip
// leading path components), forward by default or in reverse when
// opts.Reverse is set. A failure on one patch leaves that patch's file
// untouched and does not stop the others: every patch in ps is
// attempted, and Apply returns a non-nil error (aggregating every
// per-patch failure) only if at least one patch failed.
func (a *Applier) Apply(ps *patchset.PatchSet, opts Options) error {
	var failures []error
	for i, p := range ps.Patches() {
		if err := a.applyOne(i, p, opts); err != nil {
			failures = append(failures, err)
			a.Sink.Notify(patchevents.Event{Kind: patchevents.Failed, Path: string(p.EffectivePath()), Message: err.Error()})
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("applier: %d of %d patch(es) failed: %w", len(failures), ps.Len(), errors.Join(failures...))
	}
	return nil
}

// Revert is Apply with opts.Reverse forced true, provided separately
// because "revert" is the natural verb at call sites.
func (a *Applier) Revert(ps *patchset.PatchSet, opts Options) error {
	opts.Reverse = true
	return a.Apply(ps, opts)
}

func (a *Applier) applyOne(idx int, p *patchset.Patch, opts Options) error {
	path, err := a.resolvePath(p, opts)
	if err != nil {
		return fmt.Errorf("applier: patch %d: %w", idx, err)
	}

	switch {
	case p.IsCreation():
		return a.applyCreation(p, path, opts.Reverse)
	case p.IsDeletion():
		return a.applyDeletion(p, path, opts.Reverse)
	default:
		return a.applyModification(p, path, opts.Reverse)
	}
}

func (a *Applier) resolvePath(p *patchset.Patch, opts Options) (string, error) {
	stripped := pathops.StripComponents(p.EffectivePath(), opts.Strip)
	return pathops.JoinUnder(opts.Root, stripped)
}

func (a *Applier) applyCreation(p *patchset.Patch, path string, reverse bool) error {
	if reverse {
		if err := a.FS.Remove(path); err != nil && !os.IsNotExist(err) {
			return &IOError{Op: "reverting creation of", Path: path, Err: err}
		}
		a.Sink.Notify(patchevents.Event{Kind: patchevents.Reverted, Path: path, Message: "removed"})
		return nil
	}

	if existing, err := a.FS.ReadFile(path); err == nil && len(existing) > 0 {
		return &IOError{Op: "creating", Path: path, Err: ErrAlreadyExists}
	}

	content := joinHunkLines(p.Hunks, matcher.PostImageLines, false)
	if err := a.FS.WriteFileAtomic(path, content, 0o644); err != nil {
		return &IOError{Op: "creating", Path: path, Err: err}
	}
	a.Sink.Notify(patchevents.Event{Kind: patchevents.Created, Path: path})
	return nil
}

func (a *Applier) applyDeletion(p *patchset.Patch, path string, reverse bool) error {
	if reverse {
		content := joinHunkLines(p.Hunks, matcher.PreImageLines, false)
		if err := a.FS.WriteFileAtomic(path, content, 0o644); err != nil {
			return &IOError{Op: "reverting deletion of", Path: path, Err: err}
		}
		a.Sink.Notify(patchevents.Event{Kind: patchevents.Reverted, Path: path, Message: "recreated"})
		return nil
	}

	existing, err := a.FS.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			a.Sink.Notify(patchevents.Event{Kind: patchevents.Skipped, Path: path, Message: "already deleted"})
			return nil
		}
		return &IOError{Op: "deleting", Path: path, Err: err}
	}
	want := joinHunkLines(p.Hunks, matcher.PreImageLines, false)
	if !bytes.Equal(existing, want) {
		return &IOError{Op: "deleting", Path: path, Err: ErrContentMismatch}
	}

	if err := a.FS.Remove(path); err != nil {
		return &IOError{Op: "deleting", Path: path, Err: err}
	}
	a.Sink.Notify(patchevents.Event{Kind: patchevents.Deleted, Path: path})
	return nil
}

func (a *Applier) applyModification(p *patchset.Patch, path string, reverse bool) error {
	data, err := a.FS.ReadFile(path)
	if err != nil {
		return &IOError{Op: "reading", Path: path, Err: err}
	}

	lines := splitLines(data)
	lines, err = applyHunks(lines, p.Hunks, reverse)
	if err != nil {
		return fmt.Errorf("applier: %s: %w", path, err)
	}

	if err := a.FS.WriteFileAtomic(path, bytes.Join(lines, nil), 0o644); err != nil {
		return &IOError{Op: "writing", Path: path, Err: err}
	}

	kind := patchevents.Modified
	if reverse {
		kind = patchevents.Reverted
	}
	a.Sink.Notify(patchevents.Event{Kind: kind, Path: path})
	return nil
}

// applyHunks applies every hunk of a modify patch to lines in order,
// tracking the cumulative line-count drift each hunk's replacement
// introduces so later hunks' declared offsets stay meaningful.
func applyHunks(lines [][]byte, hunks []*patchset.Hunk, reverse bool) ([][]byte, error) {
	cumulative := 0
	for _, h := range hunks {
		declared := h.StartSrc - 1
		if reverse {
			declared = h.StartTgt - 1
		}
		declared += cumulative

		pre := matcher.PreImageLines(h, reverse)
		post := matcher.PostImageLines(h, reverse)

		res, err := matcher.Locate(pre, lines, declared)
		if err != nil {
			return nil, fmt.Errorf("hunk at %d: %w", h.StartSrc, err)
		}

		var rebuilt [][]byte
		rebuilt = append(rebuilt, lines[:res.Offset]...)
		rebuilt = append(rebuilt, post...)
		rebuilt = append(rebuilt, lines[res.Offset+len(pre):]...)
		lines = rebuilt

		cumulative += len(post) - len(pre)
	}
	return lines, nil
}

func joinHunkLines(hunks []*patchset.Hunk, side func(*patchset.Hunk, bool) [][]byte, reverse bool) []byte {
	var buf bytes.Buffer
	for _, h := range hunks {
		for _, l := range side(h, reverse) {
			buf.Write(l)
		}
	}
	return buf.Bytes()
}

// splitLines breaks data into lines that each retain their original
// terminator (if any), the same shape linereader produces while
// streaming, so hunk-line comparisons can ignore terminators uniformly
// via the matcher package.
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	for len(data) > 0 {
		i := bytes.IndexAny(data, "\r\n")
		if i == -1 {
			lines = append(lines, data)
			break
		}
		end := i + 1
		if data[i] == '\r' && end < len(data) && data[end] == '\n' {
			end++
		}
		lines = append(lines, data[:end])
		data = data[end:]
	}
	return lines
}

// CanPatch reports, for every patch in ps, whether it still needs
// applying, is already applied, or matches neither image — the
// three-way dry-run check described for the can_patch operation.
func (a *Applier) CanPatch(ps *patchset.PatchSet, opts Options) ([]matcher.Applicability, error) {
	results := make([]matcher.Applicability, 0, ps.Len())
	for _, p := range ps.Patches() {
		state, err := a.canPatchOne(p, opts)
		if err != nil {
			return nil, err
		}
		results = append(results, state)
	}
	return results, nil
}

func (a *Applier) canPatchOne(p *patchset.Patch, opts Options) (matcher.Applicability, error) {
	path, err := a.resolvePath(p, opts)
	if err != nil {
		return matcher.Mismatch, err
	}

	switch {
	case p.IsCreation():
		_, err := a.FS.Stat(path)
		if os.IsNotExist(err) {
			return matcher.NeedsPatch, nil
		}
		if err != nil {
			return matcher.Mismatch, err
		}
		existing, err := a.FS.ReadFile(path)
		if err != nil {
			return matcher.Mismatch, err
		}
		want := joinHunkLines(p.Hunks, matcher.PostImageLines, false)
		if bytes.Equal(existing, want) {
			return matcher.AlreadyApplied, nil
		}
		return matcher.Mismatch, nil

	case p.IsDeletion():
		_, err := a.FS.Stat(path)
		if os.IsNotExist(err) {
			return matcher.AlreadyApplied, nil
		}
		if err != nil {
			return matcher.Mismatch, err
		}
		return matcher.NeedsPatch, nil

	default:
		data, err := a.FS.ReadFile(path)
		if err != nil {
			return matcher.Mismatch, err
		}
		lines := splitLines(data)

		overall := matcher.AlreadyApplied
		for _, h := range p.Hunks {
			state, _ := matcher.Check(h, lines, opts.Reverse)
			switch state {
			case matcher.Mismatch:
				return matcher.Mismatch, nil
			case matcher.NeedsPatch:
				if overall == matcher.AlreadyApplied {
					overall = matcher.NeedsPatch
				}
			}
		}
		return overall, nil
	}
}
