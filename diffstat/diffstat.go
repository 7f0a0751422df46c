// Package diffstat renders a PatchSet's per-file change summary in the
// classic "N files changed, M insertions(+), K deletions(-)" shape,
// including the net byte delta across every patch.
package diffstat

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jmercer/unipatch/patchset"
	"github.com/jmercer/unipatch/pathops"
)

const maxBarWidth = 60

// fileStat is one patch's contribution to the rendered table.
type fileStat struct {
	name           string
	added, removed int
	byteDelta      int
}

// Render builds the full diffstat report for ps, one line per patch
// followed by a summary footer.
func Render(ps *patchset.PatchSet) string {
	stats := collect(ps)

	widest := 0
	for _, s := range stats {
		if n := s.added + s.removed; n > widest {
			widest = n
		}
	}

	var b strings.Builder
	for _, s := range stats {
		fmt.Fprintf(&b, " %s | %d %s\n", s.name, s.added+s.removed, bar(s.added, s.removed, widest))
	}
	b.WriteString(footer(stats))
	return b.String()
}

func collect(ps *patchset.PatchSet) []fileStat {
	stats := make([]fileStat, 0, ps.Len())
	for _, p := range ps.Patches() {
		s := fileStat{name: string(pathops.Basename(p.EffectivePath()))}
		for _, h := range p.Hunks {
			for _, l := range h.Text {
				switch l.Kind {
				case patchset.Add:
					s.added++
					s.byteDelta += len(bytes.TrimRight(l.Raw, "\r\n"))
				case patchset.Remove:
					s.removed++
					s.byteDelta -= len(bytes.TrimRight(l.Raw, "\r\n"))
				}
			}
		}
		stats = append(stats, s)
	}
	return stats
}

func bar(added, removed, widest int) string {
	if widest == 0 {
		return ""
	}
	scale := 1.0
	if widest > maxBarWidth {
		scale = float64(maxBarWidth) / float64(widest)
	}
	plus := int(float64(added) * scale)
	minus := int(float64(removed) * scale)
	if plus == 0 && added > 0 {
		plus = 1
	}
	if minus == 0 && removed > 0 {
		minus = 1
	}
	return strings.Repeat("+", plus) + strings.Repeat("-", minus)
}

func footer(stats []fileStat) string {
	files := len(stats)
	insertions, deletions, bytesDelta := 0, 0, 0
	for _, s := range stats {
		insertions += s.added
		deletions += s.removed
		bytesDelta += s.byteDelta
	}

	parts := []string{fmt.Sprintf("%d %s changed", files, noun(files, "file", "files"))}
	if insertions > 0 {
		parts = append(parts, fmt.Sprintf("%d %s(+)", insertions, noun(insertions, "insertion", "insertions")))
	}
	if deletions > 0 {
		parts = append(parts, fmt.Sprintf("%d %s(-)", deletions, noun(deletions, "deletion", "deletions")))
	}
	parts = append(parts, fmt.Sprintf("%+d bytes", bytesDelta))

	return strings.Join(parts, ", ")
}

// noun picks singular or plural depending on count.
func noun(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}
