package kindaxml

import (
	"fmt"
	"sort"
)

// Annotation is a (tag, attrs) pair attached to a range of the output
// text, or to a single position for markers. Immutable once emitted.
type Annotation struct {
	// Tag is the tag name that produced the annotation.
	Tag string

	// Attrs is the tag's ordered attribute mapping. May be nil.
	Attrs *Attrs
}

// String renders the annotation as `tag[k="v", ...]`.
func (a Annotation) String() string {
	if a.Attrs.Len() == 0 {
		return a.Tag
	}
	return a.Tag + a.Attrs.String()
}

// span is an internal half-open range of output positions paired with
// one annotation. Zero-length spans never reach the materializer;
// they are emitted as markers instead.
type span struct {
	start, end int
	ann        Annotation
}

// Segment is a run of the output whose every character is covered by
// the same spans. Neighbouring runs merge only when covered by the same
// span instances, so two abutting spans of one tag stay two segments,
// and a marker strictly inside the output always ends one segment and
// starts the next.
type Segment struct {
	// Text is the segment's slice of the output text.
	Text string

	// Annotations lists the covering annotations in span emission
	// order. Nil for unannotated segments.
	Annotations []Annotation
}

// Marker is a zero-width annotation sitting between two adjacent
// segments.
type Marker struct {
	// Pos is the character index into the output text.
	Pos int

	// Annotation is the marker's annotation.
	Annotation Annotation
}

// DiagnosticKind classifies an input anomaly absorbed during parsing.
type DiagnosticKind string

const (
	// DiagTruncatedTag: a tag began validly but input ended before
	// its '>'; the partial tag was discarded.
	DiagTruncatedTag DiagnosticKind = "truncated_tag"

	// DiagStrayClose: a recognized close tag had no matching open and
	// was dropped.
	DiagStrayClose DiagnosticKind = "stray_close"

	// DiagUnclosedQuote: a quoted attribute value was terminated by
	// the tag's '>' or end of input instead of its closing quote.
	DiagUnclosedQuote DiagnosticKind = "unclosed_quote"
)

// Diagnostic is one warning about malformed input that the parser
// absorbed. Pos is a character position in the input string.
// Diagnostics are informational only; they never affect the parse.
type Diagnostic struct {
	Pos  int
	Kind DiagnosticKind
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s@%d", d.Kind, d.Pos)
}

// ParseResult is the output triple of a parse: the plain text with
// all tag syntax resolved, its segmentation under the emitted
// annotations, and the zero-width markers.
//
// Concatenating all segment texts reproduces Text. Markers are sorted
// by position, stable in emission order for equal positions.
type ParseResult struct {
	Text        string
	Segments    []Segment
	Markers     []Marker
	Diagnostics []Diagnostic
}

// materialize converts the engine's internal (output, spans, markers)
// into the final segmentation: breakpoints are collected from every
// span bound and marker position, each resulting interval gets its
// covering annotation sequence, and adjacent intervals with identical
// sequences merge — except across a marker, which always separates
// the segment ending at its position from the one starting there.
func materialize(out []rune, spans []span, markers []Marker, diags []Diagnostic) *ParseResult {
	res := &ParseResult{
		Text:        string(out),
		Markers:     markers,
		Diagnostics: diags,
	}

	sort.SliceStable(res.Markers, func(i, j int) bool {
		return res.Markers[i].Pos < res.Markers[j].Pos
	})

	n := len(out)
	if n == 0 {
		res.Segments = []Segment{{Text: ""}}
		return res
	}

	breaks := collectBreakpoints(n, spans, res.Markers)
	markerAt := make(map[int]bool, len(res.Markers))
	for _, m := range res.Markers {
		markerAt[m.Pos] = true
	}

	// Sweep the intervals, coalescing neighbours with identical
	// annotation sequences. Spans contribute in emission order.
	var (
		segStart = breaks[0]
		covering []int
	)
	for bi := 0; bi+1 < len(breaks); bi++ {
		lo, hi := breaks[bi], breaks[bi+1]
		cur := coveringSpans(spans, lo, hi)
		if bi == 0 {
			covering = cur
			continue
		}
		if !markerAt[lo] && equalInts(covering, cur) {
			continue
		}
		res.Segments = append(res.Segments, makeSegment(out, spans, segStart, lo, covering))
		segStart, covering = lo, cur
	}
	res.Segments = append(res.Segments, makeSegment(out, spans, segStart, n, covering))

	return res
}

// collectBreakpoints returns the sorted unique positions where the
// annotation set can change: span bounds, marker positions, and the
// output's ends.
func collectBreakpoints(n int, spans []span, markers []Marker) []int {
	seen := map[int]bool{0: true, n: true}
	for _, s := range spans {
		seen[s.start] = true
		seen[s.end] = true
	}
	for _, m := range markers {
		if m.Pos > 0 && m.Pos < n {
			seen[m.Pos] = true
		}
	}
	breaks := make([]int, 0, len(seen))
	for b := range seen {
		breaks = append(breaks, b)
	}
	sort.Ints(breaks)
	return breaks
}

// coveringSpans returns the indices of spans that fully cover the
// interval [lo, hi), in emission order.
func coveringSpans(spans []span, lo, hi int) []int {
	var idx []int
	for i, s := range spans {
		if s.start <= lo && s.end >= hi {
			idx = append(idx, i)
		}
	}
	return idx
}

func makeSegment(out []rune, spans []span, start, end int, covering []int) Segment {
	seg := Segment{Text: string(out[start:end])}
	for _, i := range covering {
		seg.Annotations = append(seg.Annotations, spans[i].ann)
	}
	return seg
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
