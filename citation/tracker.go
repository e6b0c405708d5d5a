// Package citation implements the Citation Tracker (§4.7): it accumulates
// web/file search sources across a response's tool calls and rewrites
// assistant text carrying [s:N]...[/s:N] markers into cleaned text plus a
// set of byte-offset UrlCitation annotations.
package citation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type (
	// Source is one accumulated search result a citation marker can
	// reference by index.
	Source struct {
		Title string
		URL   string
	}

	// Annotation is the rewritten-text equivalent of §3's UrlCitation: a
	// byte-offset span into the cleaned text plus the source it cites.
	Annotation struct {
		StartIndex int
		EndIndex   int
		URL        string
		Title      string
	}

	// Tracker is stateful per response: Accumulate is called once per
	// search-tool execution (in execution order, so indices are monotonic),
	// and RewriteAndAnnotate runs once, after the final Generate turn,
	// before the response completes.
	Tracker struct {
		sources []Source
	}
)

// marker matches [s:N]text[/s:N] non-greedily. The closing index is
// captured separately from the opening one so mismatches (closing index
// does not equal the opening index) can be detected and dropped per §4.7.
var marker = regexp.MustCompile(`\[s:(\d+)\](.*?)\[/s:(\d+)\]`)

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// Accumulate appends newSources to the tracker's running list and returns
// baseIndex, the index the first of newSources was assigned — so a caller
// formatting "Source: N" lines for the model can label them starting at
// baseIndex. Indices are cumulative across all searches in one response
// (0, 1, 2, ...), per §4.4 step 3.
func (t *Tracker) Accumulate(newSources []Source) (baseIndex int) {
	baseIndex = len(t.sources)
	t.sources = append(t.sources, newSources...)
	return baseIndex
}

// HasSources reports whether any source has been accumulated yet. The
// response state machine uses this to decide whether this is the first
// successful web search in the response (and so must inject the citation
// instruction addendum, §4.4 step 3).
func (t *Tracker) HasSources() bool {
	return len(t.sources) > 0
}

// RewriteAndAnnotate implements §4.7's single-pass scan: for each matched
// marker, resolve N against the accumulated source list, strip the markers
// from the output, and record a UrlCitation at the byte offsets of the
// cleaned substring. Mismatched open/close indices drop the marker but
// retain the raw enclosed text (§4.7). Indices beyond the accumulated list
// are silently dropped (and reported via the returned dropped slice so
// callers can log them, §4.7 "logged").
func (t *Tracker) RewriteAndAnnotate(text string) (cleaned string, annotations []Annotation, dropped []string) {
	var b strings.Builder
	var anns []Annotation
	last := 0

	for _, loc := range marker.FindAllStringSubmatchIndex(text, -1) {
		matchStart, matchEnd := loc[0], loc[1]
		openStart, openEnd := loc[2], loc[3]
		textStart, textEnd := loc[4], loc[5]
		closeStart, closeEnd := loc[6], loc[7]

		b.WriteString(text[last:matchStart])

		openIdx := text[openStart:openEnd]
		closeIdx := text[closeStart:closeEnd]
		inner := text[textStart:textEnd]

		if openIdx != closeIdx {
			// Mismatched numbers: drop the markers, keep the raw text, no
			// annotation.
			b.WriteString(inner)
			dropped = append(dropped, fmt.Sprintf("mismatched marker indices %s/%s", openIdx, closeIdx))
			last = matchEnd
			continue
		}

		n, err := strconv.Atoi(openIdx)
		if err != nil || n < 0 || n >= len(t.sources) {
			// Out-of-range source index: drop silently per §4.7, but keep
			// the cited text visible rather than losing the sentence.
			b.WriteString(inner)
			dropped = append(dropped, fmt.Sprintf("source index %s out of range", openIdx))
			last = matchEnd
			continue
		}

		start := b.Len()
		b.WriteString(inner)
		end := b.Len()

		src := t.sources[n]
		anns = append(anns, Annotation{StartIndex: start, EndIndex: end, URL: src.URL, Title: src.Title})
		last = matchEnd
	}
	b.WriteString(text[last:])

	anns = dropOverlapping(anns)
	return b.String(), anns, dropped
}

// dropOverlapping enforces §4.7's invariant that annotations are sorted by
// start and non-overlapping: annotations already arrive sorted by start
// index (markers are scanned left to right), so this only needs to drop a
// later annotation whose start falls before the previous one's end.
func dropOverlapping(anns []Annotation) []Annotation {
	if len(anns) < 2 {
		return anns
	}
	out := anns[:1]
	for _, a := range anns[1:] {
		prev := out[len(out)-1]
		if a.StartIndex < prev.EndIndex {
			// Overlaps the previous citation: drop the later one with a
			// warning (the caller logs; dropOverlapping itself is pure).
			continue
		}
		out = append(out, a)
	}
	return out
}
