package classify

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formwatch/formwatch/internal/fingerprint"
)

func snapshot(raw string, pages ...string) (fingerprint.Fingerprint, string, []string) {
	text := strings.Join(pages, "\n")
	return fingerprint.Compute([]byte(raw), text, pages), text, pages
}

func TestClassifyFirstVersion(t *testing.T) {
	c := New(Config{}, nil)
	_, text, pages := snapshot("raw", "page one")

	got := c.Classify(nil, fingerprint.Compute([]byte("raw"), text, pages), "", text, nil, pages)
	assert.True(t, got.Changed)
	assert.Equal(t, KindNew, got.Kind)
}

func TestClassifyUnchanged(t *testing.T) {
	c := New(Config{}, nil)
	fp, text, pages := snapshot("raw bytes", "page one content", "page two content")

	got := c.Classify(&fp, fp, text, text, pages, pages)
	assert.False(t, got.Changed)
	assert.Equal(t, KindUnchanged, got.Kind)
	assert.Empty(t, got.AffectedPages)
}

func TestClassifyFormatOnly(t *testing.T) {
	// Re-rendered bytes, identical extracted text.
	c := New(Config{}, nil)
	priorFP, text, pages := snapshot("render-2023", "page one content", "page two content")
	nextFP, _, _ := snapshot("render-2024", "page one content", "page two content")

	got := c.Classify(&priorFP, nextFP, text, text, pages, pages)
	assert.True(t, got.Changed)
	assert.Equal(t, KindFormatOnly, got.Kind)
	assert.True(t, got.BinaryChanged)
	assert.False(t, got.TextChanged)
	assert.Contains(t, got.DiffSummary, "Format-only change")
}

func TestClassifyTextChangedSinglePage(t *testing.T) {
	c := New(Config{}, nil)
	priorFP, priorText, priorPages := snapshot("raw-a",
		"page one is about filing",
		"page two is about service",
		"page three is about custody arrangements",
		"page four is about fees",
		"page five is about signatures",
	)
	nextFP, nextText, nextPages := snapshot("raw-b",
		"page one is about filing",
		"page two is about service",
		"page three now covers completely different visitation schedule rules instead",
		"page four is about fees",
		"page five is about signatures",
	)

	got := c.Classify(&priorFP, nextFP, priorText, nextText, priorPages, nextPages)
	assert.True(t, got.Changed)
	assert.Equal(t, KindTextChanged, got.Kind)
	assert.Equal(t, []int{3}, got.AffectedPages)
	assert.Zero(t, got.PagesAdded)
	assert.Zero(t, got.PagesRemoved)
	assert.NotEmpty(t, got.DiffSummary)
}

func TestClassifySuppressesExtractionNoise(t *testing.T) {
	// One flipped character in a long page: hashes differ, similarity stays
	// above threshold, so no change is reported.
	c := New(Config{}, nil)
	base := strings.Repeat("standard boilerplate clause repeated throughout the form. ", 30)
	variant := base[:100] + "X" + base[101:]

	priorFP, priorText, priorPages := snapshot("same raw", base)
	nextFP, nextText, nextPages := snapshot("same raw", variant)
	require.NotEqual(t, priorFP.TextHash, nextFP.TextHash)

	got := c.Classify(&priorFP, nextFP, priorText, nextText, priorPages, nextPages)
	assert.False(t, got.Changed)
	assert.Equal(t, KindUnchanged, got.Kind)
}

func TestClassifySuppressesNoiseInLargeDocument(t *testing.T) {
	// The similarity verification must keep working far beyond the size of
	// a typical page.
	words := make([]string, 30000)
	for i := range words {
		words[i] = fmt.Sprintf("token%d", i)
	}
	base := strings.Join(words, " ")
	words[100] = "jitter"
	variant := strings.Join(words, " ")

	c := New(Config{}, nil)
	priorFP, priorText, priorPages := snapshot("same raw", base)
	nextFP, nextText, nextPages := snapshot("same raw", variant)
	require.NotEqual(t, priorFP.TextHash, nextFP.TextHash)

	got := c.Classify(&priorFP, nextFP, priorText, nextText, priorPages, nextPages)
	assert.False(t, got.Changed)
	assert.Equal(t, KindUnchanged, got.Kind)
}

func TestClassifyPagesAdded(t *testing.T) {
	c := New(Config{}, nil)
	priorFP, priorText, priorPages := snapshot("raw-a", "page one", "page two")
	nextFP, nextText, nextPages := snapshot("raw-b", "page one", "page two", "brand new instructions page", "brand new signature page")

	got := c.Classify(&priorFP, nextFP, priorText, nextText, priorPages, nextPages)
	assert.True(t, got.Changed)
	assert.Equal(t, KindTextChanged, got.Kind)
	assert.Equal(t, 2, got.PagesAdded)
	assert.Zero(t, got.PagesRemoved)
	assert.Equal(t, []int{3, 4}, got.AffectedPages)
}

func TestClassifyPagesRemoved(t *testing.T) {
	c := New(Config{}, nil)
	priorFP, priorText, priorPages := snapshot("raw-a", "page one", "page two", "page three")
	nextFP, nextText, nextPages := snapshot("raw-b", "page one")

	got := c.Classify(&priorFP, nextFP, priorText, nextText, priorPages, nextPages)
	assert.True(t, got.Changed)
	assert.Equal(t, KindTextChanged, got.Kind)
	assert.Equal(t, 2, got.PagesRemoved)
	assert.Zero(t, got.PagesAdded)
}

func TestClassifyThresholdOverride(t *testing.T) {
	// A permissive page threshold lets genuinely different pages through as
	// unchanged, proving the knob is honored.
	c := New(Config{PageSimilarityThreshold: 0.01, DocSimilarityThreshold: 0.01}, nil)
	priorFP, priorText, priorPages := snapshot("raw-a", "entirely original content here")
	nextFP, nextText, nextPages := snapshot("raw-a", "completely rewritten different words")

	got := c.Classify(&priorFP, nextFP, priorText, nextText, priorPages, nextPages)
	assert.False(t, got.Changed)
}

func TestSummarizeEdgeCases(t *testing.T) {
	c := New(Config{}, nil)
	assert.Equal(t, "No text content to compare", c.summarize("", ""))
	assert.Contains(t, c.summarize("", "fresh content"), "New content added")
	assert.Contains(t, c.summarize("old content", ""), "All content removed")
}

func TestDetailedDiff(t *testing.T) {
	c := New(Config{}, nil)
	diff := c.DetailedDiff("alpha\nbravo\n", "alpha\ncharlie\n")
	assert.Contains(t, diff, "-bravo")
	assert.Contains(t, diff, "+charlie")
}
