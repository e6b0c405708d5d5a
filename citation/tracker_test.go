package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_AccumulateReturnsCumulativeBaseIndex(t *testing.T) {
	tr := New()
	assert.False(t, tr.HasSources())

	base := tr.Accumulate([]Source{{Title: "a", URL: "https://a.example"}, {Title: "b", URL: "https://b.example"}})
	assert.Equal(t, 0, base)
	assert.True(t, tr.HasSources())

	base = tr.Accumulate([]Source{{Title: "c", URL: "https://c.example"}})
	assert.Equal(t, 2, base)
}

func TestTracker_RewriteAndAnnotate_SingleMarker(t *testing.T) {
	tr := New()
	tr.Accumulate([]Source{{Title: "Example", URL: "https://example.com"}})

	cleaned, anns, dropped := tr.RewriteAndAnnotate("see [s:0]the docs[/s:0] for details")

	assert.Equal(t, "see the docs for details", cleaned)
	assert.Empty(t, dropped)
	require.Len(t, anns, 1)
	assert.Equal(t, "https://example.com", anns[0].URL)
	assert.Equal(t, "the docs", cleaned[anns[0].StartIndex:anns[0].EndIndex])
}

func TestTracker_RewriteAndAnnotate_MismatchedIndicesDropsMarkerKeepsText(t *testing.T) {
	tr := New()
	tr.Accumulate([]Source{{Title: "a", URL: "https://a.example"}})

	cleaned, anns, dropped := tr.RewriteAndAnnotate("[s:0]hello[/s:1] world")

	assert.Equal(t, "hello world", cleaned)
	assert.Empty(t, anns)
	require.Len(t, dropped, 1)
	assert.Contains(t, dropped[0], "mismatched marker indices")
}

func TestTracker_RewriteAndAnnotate_OutOfRangeIndexDropsSilently(t *testing.T) {
	tr := New()
	tr.Accumulate([]Source{{Title: "a", URL: "https://a.example"}})

	cleaned, anns, dropped := tr.RewriteAndAnnotate("[s:5]ghost source[/s:5] text")

	assert.Equal(t, "ghost source text", cleaned)
	assert.Empty(t, anns)
	require.Len(t, dropped, 1)
	assert.Contains(t, dropped[0], "out of range")
}

func TestTracker_RewriteAndAnnotate_AdjacentAnnotationsAreBothKept(t *testing.T) {
	tr := New()
	tr.Accumulate([]Source{{Title: "a", URL: "https://a.example"}, {Title: "b", URL: "https://b.example"}})

	// Two markers that, after stripping, would produce overlapping spans are
	// not constructible via the regexp itself (markers can't nest), so this
	// runs dropOverlapping on a multi-marker string where the second span
	// starts exactly where the first ends: touching spans do not overlap and
	// both annotations survive.
	cleaned, anns, _ := tr.RewriteAndAnnotate("[s:0]a[/s:0][s:1]b[/s:1]")

	assert.Equal(t, "ab", cleaned)
	require.Len(t, anns, 2)
	assert.Equal(t, 0, anns[0].StartIndex)
	assert.Equal(t, 1, anns[0].EndIndex)
	assert.Equal(t, 1, anns[1].StartIndex)
	assert.Equal(t, 2, anns[1].EndIndex)
}

func TestTracker_RewriteAndAnnotate_NoMarkersPassesThroughUnchanged(t *testing.T) {
	tr := New()
	cleaned, anns, dropped := tr.RewriteAndAnnotate("plain text, no citations here")

	assert.Equal(t, "plain text, no citations here", cleaned)
	assert.Empty(t, anns)
	assert.Empty(t, dropped)
}
