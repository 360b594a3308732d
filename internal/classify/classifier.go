// Package classify compares two document fingerprints and decides whether,
// and how, the document changed. Hash inequality alone is never trusted for
// semantic changes: page and whole-document text similarity is verified
// before a change is reported, so extraction noise does not surface as a
// false positive.
package classify

import (
	"fmt"
	"log/slog"

	"github.com/formwatch/formwatch/internal/fingerprint"
	"github.com/formwatch/formwatch/internal/textutil"
)

// Kind is the terminal classification of one comparison.
type Kind string

const (
	KindNew         Kind = "new"
	KindUnchanged   Kind = "unchanged"
	KindTextChanged Kind = "text_changed"
	KindFormatOnly  Kind = "format_only"
)

const (
	defaultPageSimilarityThreshold = 0.995
	defaultDocSimilarityThreshold  = 0.995
	defaultDiffPreviewLines        = 20
)

// Classification is the immutable result of one comparison.
type Classification struct {
	Changed       bool   `json:"changed"`
	Kind          Kind   `json:"kind"`
	BinaryChanged bool   `json:"binary_changed"`
	TextChanged   bool   `json:"text_changed"`
	AffectedPages []int  `json:"affected_pages,omitempty"`
	PagesAdded    int    `json:"pages_added"`
	PagesRemoved  int    `json:"pages_removed"`
	DiffSummary   string `json:"diff_summary,omitempty"`
}

// Config tunes the noise-suppression thresholds.
type Config struct {
	// PageSimilarityThreshold: a page whose hash differs is only reported
	// as changed when its normalized text similarity falls below this.
	PageSimilarityThreshold float64
	// DocSimilarityThreshold: a text-hash difference is discarded when
	// whole-document similarity is at or above this.
	DocSimilarityThreshold float64
	// DiffPreviewLines bounds the diff preview in the summary.
	DiffPreviewLines int
}

func (c Config) withDefaults() Config {
	if c.PageSimilarityThreshold <= 0 {
		c.PageSimilarityThreshold = defaultPageSimilarityThreshold
	}
	if c.DocSimilarityThreshold <= 0 {
		c.DocSimilarityThreshold = defaultDocSimilarityThreshold
	}
	if c.DiffPreviewLines <= 0 {
		c.DiffPreviewLines = defaultDiffPreviewLines
	}
	return c
}

// Classifier compares snapshots. Safe for concurrent use; it holds no
// mutable state.
type Classifier struct {
	cfg    Config
	logger *slog.Logger
}

// New builds a Classifier. A zero Config selects the tuned defaults; a nil
// logger selects slog.Default.
func New(cfg Config, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{cfg: cfg.withDefaults(), logger: logger}
}

// Classify compares the next snapshot against the prior one. A nil prior
// means this is the first version ever seen and classifies as new without
// further checks. Document-quality problems never produce an error; they
// are absorbed into the classification.
func (c *Classifier) Classify(
	prior *fingerprint.Fingerprint,
	next fingerprint.Fingerprint,
	priorText, nextText string,
	priorPages, nextPages []string,
) Classification {
	if prior == nil {
		c.logger.Info("first version detected", "kind", KindNew)
		return Classification{Changed: true, Kind: KindNew}
	}

	changedPages := c.comparePages(prior.PageHashes, next.PageHashes, priorPages, nextPages)

	// Cheap exit for the common case: nothing moved at any tier.
	if len(changedPages) == 0 &&
		len(prior.PageHashes) == len(next.PageHashes) &&
		prior.BinaryHash == next.BinaryHash &&
		prior.TextHash == next.TextHash {
		return Classification{Changed: false, Kind: KindUnchanged}
	}

	binaryChanged := prior.BinaryHash != next.BinaryHash
	textChanged := prior.TextHash != next.TextHash

	if textChanged {
		// Second safety net at document scope: a hash mismatch with
		// near-identical normalized text is extraction noise.
		sim := textutil.Similarity(textutil.Normalize(priorText), textutil.Normalize(nextText))
		if sim >= c.cfg.DocSimilarityThreshold {
			c.logger.Debug("text hash mismatch suppressed", "similarity", sim)
			textChanged = false
		}
	}

	switch {
	case textChanged:
		added := max(0, len(next.PageHashes)-len(prior.PageHashes))
		removed := max(0, len(prior.PageHashes)-len(next.PageHashes))
		cls := Classification{
			Changed:       true,
			Kind:          KindTextChanged,
			BinaryChanged: binaryChanged,
			TextChanged:   true,
			AffectedPages: changedPages,
			PagesAdded:    added,
			PagesRemoved:  removed,
			DiffSummary:   c.summarize(priorText, nextText),
		}
		c.logger.Info("change detected",
			"kind", cls.Kind,
			"affected_pages", cls.AffectedPages,
			"pages_added", added,
			"pages_removed", removed)
		return cls

	case binaryChanged:
		c.logger.Info("format-only change detected", "binary_changed", true, "text_changed", false)
		return Classification{
			Changed:       true,
			Kind:          KindFormatOnly,
			BinaryChanged: true,
			DiffSummary:   "Format-only change: binary content changed but extracted text is identical. No semantic changes detected.",
		}

	default:
		return Classification{Changed: false, Kind: KindUnchanged}
	}
}

// comparePages returns the 1-based indices of pages that genuinely changed.
// Equal hashes are skipped outright; a page present on only one side counts
// as changed; a hash mismatch is verified with normalized text similarity
// so extractor jitter on a single page does not flag it.
func (c *Classifier) comparePages(priorHashes, nextHashes []string, priorPages, nextPages []string) []int {
	var changed []int
	maxPages := max(len(priorHashes), len(nextHashes))
	for i := 0; i < maxPages; i++ {
		var oldHash, newHash string
		if i < len(priorHashes) {
			oldHash = priorHashes[i]
		}
		if i < len(nextHashes) {
			newHash = nextHashes[i]
		}
		if oldHash == newHash {
			continue
		}
		if oldHash == "" || newHash == "" {
			// Page added or removed.
			changed = append(changed, i+1)
			continue
		}
		sim := textutil.Similarity(
			textutil.Normalize(pageAt(priorPages, i)),
			textutil.Normalize(pageAt(nextPages, i)),
		)
		if sim < c.cfg.PageSimilarityThreshold {
			changed = append(changed, i+1)
		}
	}
	return changed
}

func pageAt(pages []string, i int) string {
	if i < len(pages) {
		return pages[i]
	}
	return ""
}

// summarize renders a line-level digest of the change: counts of added and
// removed lines plus a bounded diff preview.
func (c *Classifier) summarize(priorText, nextText string) string {
	if priorText == "" && nextText == "" {
		return "No text content to compare"
	}
	if priorText == "" {
		return fmt.Sprintf("New content added (%d characters)", len(nextText))
	}
	if nextText == "" {
		return fmt.Sprintf("All content removed (%d characters)", len(priorText))
	}

	added, removed, preview := textutil.UnifiedDiff(priorText, nextText, c.cfg.DiffPreviewLines)
	if preview == "" {
		return "Text normalized but no line changes"
	}
	return fmt.Sprintf("Lines added: %d, removed: %d\n\nDiff preview:\n%s", added, removed, preview)
}

// DetailedDiff returns the full unified diff between two text versions, for
// collaborators that need more than the bounded summary.
func (c *Classifier) DetailedDiff(priorText, nextText string) string {
	_, _, preview := textutil.UnifiedDiff(priorText, nextText, 0)
	return preview
}
