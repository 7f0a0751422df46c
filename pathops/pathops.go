// Package pathops normalises and validates the byte-string paths carried
// inside a patch. Patches travel between machines of different operating
// systems, so these operations are deliberately independent of the host's
// path conventions: a path is just a sequence of bytes until join_under
// hands it to the real filesystem.
package pathops

import (
	"bytes"
	"errors"
	"path/filepath"
)

// PathError reports a path that escapes its intended root even after
// stripping and normalisation.
type PathError struct {
	Path string
	Root string
}

func (e *PathError) Error() string {
	return "pathops: path " + e.Path + " escapes root " + e.Root
}

// ErrEscapesRoot is the sentinel wrapped by PathError, for errors.Is checks.
var ErrEscapesRoot = errors.New("path escapes root")

func (e *PathError) Unwrap() error { return ErrEscapesRoot }

// IsAbsolute reports whether p is an absolute path under any of the
// separator conventions a patch might carry: a leading '/', a leading
// '\', or a drive letter ("C:") followed by a separator.
func IsAbsolute(p []byte) bool {
	if len(p) == 0 {
		return false
	}
	if p[0] == '/' || p[0] == '\\' {
		return true
	}
	if len(p) >= 3 && isDriveLetter(p[0]) && p[1] == ':' && (p[2] == '/' || p[2] == '\\') {
		return true
	}
	return false
}

func isDriveLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Normalise performs a purely lexical normalisation of p: backslashes
// become forward slashes, "." segments are dropped, and ".." segments
// are resolved against the accumulated prefix without ever discarding a
// leading ".." that has nothing left to cancel. It never touches the
// filesystem.
func Normalise(p []byte) []byte {
	slashed := bytes.ReplaceAll(p, []byte(`\`), []byte(`/`))
	segments := bytes.Split(slashed, []byte("/"))

	var out [][]byte
	for _, seg := range segments {
		switch {
		case len(seg) == 0 || bytes.Equal(seg, []byte(".")):
			continue
		case bytes.Equal(seg, []byte("..")):
			if len(out) > 0 && !bytes.Equal(out[len(out)-1], []byte("..")) {
				out = out[:len(out)-1]
			} else {
				out = append(out, seg)
			}
		default:
			out = append(out, seg)
		}
	}

	if len(out) == 0 {
		return []byte(".")
	}
	return bytes.Join(out, []byte("/"))
}

// StripAbsolute removes a leading drive letter (if any) and all leading
// separators from an absolute path, returning the relative remainder.
// Relative paths are returned unchanged.
func StripAbsolute(p []byte) []byte {
	if !IsAbsolute(p) {
		return p
	}
	rest := p
	if len(rest) >= 2 && isDriveLetter(rest[0]) && rest[1] == ':' {
		rest = rest[2:]
	}
	i := 0
	for i < len(rest) && (rest[i] == '/' || rest[i] == '\\') {
		i++
	}
	return rest[i:]
}

// Basename returns the final slash- or backslash-separated component of
// p, the same byte-level, host-independent way the rest of this package
// treats separators.
func Basename(p []byte) []byte {
	norm := bytes.ReplaceAll(p, []byte(`\`), []byte("/"))
	parts := bytes.Split(norm, []byte("/"))
	return parts[len(parts)-1]
}

// StripComponents removes the first n slash-separated components of p.
// If p has fewer than n components the result is empty.
func StripComponents(p []byte, n int) []byte {
	if n <= 0 {
		return p
	}
	parts := bytes.Split(p, []byte("/"))
	if n >= len(parts) {
		return nil
	}
	return bytes.Join(parts[n:], []byte("/"))
}

// JoinUnder interprets p as relative to root and returns the resulting
// filesystem path, rejecting any p that would escape root once
// normalised.
func JoinUnder(root string, p []byte) (string, error) {
	normalised := Normalise(p)
	if bytes.HasPrefix(normalised, []byte("..")) {
		return "", &PathError{Path: string(p), Root: root}
	}
	return filepath.Join(root, filepath.FromSlash(string(normalised))), nil
}
