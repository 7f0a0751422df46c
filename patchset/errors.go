package patchset

import "fmt"

// ParseError reports a stream-level defect that prevents producing any
// PatchSet at all: an unreadable stream, a completely unrecognisable
// input, or (for a single-patch stream) a fatally malformed patch.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("patchset: parse error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("patchset: parse error: %s", e.Message)
}
