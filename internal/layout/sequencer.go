// Package layout rebuilds a top-to-bottom, left-to-right reading order from
// recognized words whose enumeration order cannot be trusted.
package layout

import (
	"sort"
	"strings"

	"github.com/zombor/dsr-tracker/internal/geometry"
)

// lineBandRatio is the fraction of the median word height under which two
// words count as the same line.
const lineBandRatio = 0.5

// Word is one recognized word in pixel space.
type Word struct {
	Text string        `json:"text"`
	Rect geometry.Rect `json:"rect"`
}

// Line is a run of words sharing a line band, ordered left to right.
type Line struct {
	Words []Word `json:"words"`
}

// Text joins the words of the line with single spaces.
func (l Line) Text() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Sequence orders words into reading order and groups them into lines.
func Sequence(words []Word) []Line {
	if len(words) == 0 {
		return nil
	}
	threshold := lineThreshold(words)

	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Rect, sorted[j].Rect
		if sameLine(a, b, threshold) {
			return a.MinX() < b.MinX()
		}
		return a.MidY() < b.MidY()
	})

	// Each bucket is anchored on its first word, not a running average.
	lines := []Line{{Words: []Word{sorted[0]}}}
	for _, w := range sorted[1:] {
		last := &lines[len(lines)-1]
		if sameLine(last.Words[0].Rect, w.Rect, threshold) {
			last.Words = append(last.Words, w)
			continue
		}
		lines = append(lines, Line{Words: []Word{w}})
	}
	return lines
}

// Text joins the text of every line with newlines.
func Text(lines []Line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text()
	}
	return strings.Join(parts, "\n")
}

func lineThreshold(words []Word) float64 {
	heights := make([]float64, len(words))
	for i, w := range words {
		heights[i] = w.Rect.Height
	}
	sort.Float64s(heights)
	return heights[len(heights)/2] * lineBandRatio
}

func sameLine(a, b geometry.Rect, threshold float64) bool {
	d := a.MidY() - b.MidY()
	if d < 0 {
		d = -d
	}
	return d < threshold
}
