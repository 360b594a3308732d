// Package textutil holds the text normalization and similarity primitives
// shared by the fingerprinting, classification and identity-matching layers.
// Normalization is intentionally aggressive: extraction tools produce jitter
// (whitespace runs, invisible characters, curly quotes) that must not count
// as a document change.
package textutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	reInvisible = regexp.MustCompile("[\u200b-\u200f\ufeff]")
	reSpaces    = regexp.MustCompile(`\s+`)
	rePageOfN   = regexp.MustCompile(`(?i)\bpage\s*\d+\s*of\s*\d+\b`)
	reDate      = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	reRevision  = regexp.MustCompile(`(?i)\brev\.?\s*\d{1,2}/\d{2,4}\b`)

	quoteFolder = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
)

// Normalize collapses whitespace runs to single spaces, strips zero-width
// and other invisible characters, folds curly quotes to their ASCII forms
// and lowercases. Two extractions of the same page must normalize to the
// same string.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	s = reInvisible.ReplaceAllString(s, "")
	s = quoteFolder.Replace(s)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// StripVolatile lowercases, collapses whitespace and removes content that
// legitimately differs between otherwise identical revisions: "page N of M"
// footers, bare dates and revision marks. Used when comparing whole
// documents for identity, not when hashing.
func StripVolatile(s string) string {
	s = strings.ToLower(s)
	s = reSpaces.ReplaceAllString(s, " ")
	s = rePageOfN.ReplaceAllString(s, "")
	s = reDate.ReplaceAllString(s, "")
	s = reRevision.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// charSimilarityMaxBytes bounds the char-level diff path. Beyond it the
// char diff either times out internally (collapsing the ratio to ~0) or,
// with the timeout disabled, does not terminate in practical time, so long
// inputs take the word-token path instead.
const charSimilarityMaxBytes = 4096

// Similarity returns a sequence similarity in [0,1]: 2*matched/(len(a)+len(b)).
// Short strings (titles, filenames, single pages) are compared per character;
// longer inputs are compared per whitespace-separated word, which stays
// deterministic at any document size. Both empty is 1.0, exactly one empty
// is 0.0.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	if len(a)+len(b) <= charSimilarityMaxBytes {
		return charSimilarity(a, b)
	}
	return wordSimilarity(a, b)
}

func charSimilarity(a, b string) float64 {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // bounded inputs; determinism over wall clock
	diffs := dmp.DiffMain(a, b, false)
	matched := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += utf8.RuneCountInString(d.Text)
		}
	}
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	return float64(2*matched) / float64(total)
}

func wordSimilarity(a, b string) float64 {
	aWords := strings.Fields(a)
	bWords := strings.Fields(b)
	if len(aWords)+len(bWords) == 0 {
		return 1.0
	}
	return difflib.NewMatcher(aWords, bWords).Ratio()
}

// LineDiff returns the lines added in next and removed from prior.
func LineDiff(prior, next string) (added, removed []string) {
	oldLines := strings.Split(prior, "\n")
	newLines := strings.Split(next, "\n")
	m := difflib.NewMatcher(oldLines, newLines)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'd':
			removed = append(removed, oldLines[op.I1:op.I2]...)
		case 'i':
			added = append(added, newLines[op.J1:op.J2]...)
		case 'r':
			removed = append(removed, oldLines[op.I1:op.I2]...)
			added = append(added, newLines[op.J1:op.J2]...)
		}
	}
	return added, removed
}

// UnifiedDiff renders a unified diff between prior and next and returns the
// added/removed line counts plus a preview capped at maxLines content lines.
func UnifiedDiff(prior, next string, maxLines int) (added, removed int, preview string) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(prior),
		B:        difflib.SplitLines(next),
		FromFile: "previous",
		ToFile:   "current",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil || text == "" {
		return 0, 0, ""
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
			continue
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
		if line != "" {
			kept = append(kept, line)
		}
	}
	if maxLines > 0 && len(kept) > maxLines {
		extra := len(kept) - maxLines
		kept = append(kept[:maxLines], fmt.Sprintf("... and %d more lines", extra))
	}
	return added, removed, strings.Join(kept, "\n")
}

