// Package identity decides whether two document snapshots represent the same
// logical form. Titles govern when both are known, then form numbers, then
// whole-document text similarity, with an optional external similarity
// oracle as a tie-break for the uncertain band. A missing signal is always
// "unknown", never "different".
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/formwatch/formwatch/internal/textutil"
)

// Kind classifies the relationship between two snapshots.
type Kind string

const (
	KindFormNumberMatch Kind = "form_number_match"
	KindSimilarityMatch Kind = "similarity_match"
	KindNewForm         Kind = "new_form"
	KindUncertain       Kind = "uncertain"
)

// Match is the immutable result of one identity comparison. It is only
// meaningful alongside the change classification that triggered it.
type Match struct {
	Kind            Kind     `json:"kind"`
	SimilarityScore float64  `json:"similarity_score"`
	Confidence      float64  `json:"confidence"`
	OldFormNumber   string   `json:"old_form_number,omitempty"`
	NewFormNumber   string   `json:"new_form_number,omitempty"`
	OldTitle        string   `json:"old_title,omitempty"`
	NewTitle        string   `json:"new_title,omitempty"`
	ChangedSections []string `json:"changed_sections,omitempty"`
	Reason          string   `json:"reason"`
}

// SimilarityOracle is an optional external capability consulted only for
// matches that land in the uncertain similarity band. Implementations must
// honor the context deadline. Absence or failure degrades to an uncertain
// match, never to an error.
type SimilarityOracle interface {
	Similarity(ctx context.Context, oldText, newText string) (float64, error)
}

// ConfidenceWeights names the tunable confidence assigned to each decision
// path.
type ConfidenceWeights struct {
	TitleAndNumber float64 `mapstructure:"title_and_number"`
	TitleOnly      float64 `mapstructure:"title_only"`
	NumberMatch    float64 `mapstructure:"number_match"`
	Renamed        float64 `mapstructure:"renamed"`
	NewForm        float64 `mapstructure:"new_form"`
}

// Config tunes the matcher. Zero values select the product-tuned defaults.
type Config struct {
	TitleSimilarityThreshold float64
	HighSimilarityThreshold  float64
	LowSimilarityThreshold   float64
	FormNumberPatterns       []string
	OracleTimeout            time.Duration
	Confidence               ConfidenceWeights
}

func (c Config) withDefaults() Config {
	if c.TitleSimilarityThreshold <= 0 {
		c.TitleSimilarityThreshold = 0.90
	}
	if c.HighSimilarityThreshold <= 0 {
		c.HighSimilarityThreshold = 0.85
	}
	if c.LowSimilarityThreshold <= 0 {
		c.LowSimilarityThreshold = 0.30
	}
	if c.OracleTimeout <= 0 {
		c.OracleTimeout = 10 * time.Second
	}
	w := &c.Confidence
	if w.TitleAndNumber <= 0 {
		w.TitleAndNumber = 0.98
	}
	if w.TitleOnly <= 0 {
		w.TitleOnly = 0.92
	}
	if w.NumberMatch <= 0 {
		w.NumberMatch = 0.95
	}
	if w.Renamed <= 0 {
		w.Renamed = 0.90
	}
	if w.NewForm <= 0 {
		w.NewForm = 0.90
	}
	return c
}

// Input carries both sides of one comparison. Form numbers and titles are
// optional; empty means unknown and the matcher extracts numbers from the
// text itself.
type Input struct {
	OldText       string
	NewText       string
	OldFormNumber string
	NewFormNumber string
	OldTitle      string
	NewTitle      string
}

// Matcher resolves form identity. Safe for concurrent use.
type Matcher struct {
	cfg      Config
	patterns []*regexp.Regexp
	oracle   SimilarityOracle
	logger   *slog.Logger
}

// New builds a Matcher, compiling the form-number pattern cascade. An
// invalid pattern is a caller contract violation and returns an error.
func New(cfg Config, logger *slog.Logger) (*Matcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	patterns, err := compilePatterns(cfg.FormNumberPatterns)
	if err != nil {
		return nil, err
	}
	return &Matcher{cfg: cfg, patterns: patterns, logger: logger}, nil
}

// WithOracle attaches an optional similarity oracle and returns the matcher.
func (m *Matcher) WithOracle(o SimilarityOracle) *Matcher {
	m.oracle = o
	return m
}

// Match classifies the relationship between the prior and new snapshot.
// Invoked only after a change has been classified.
func (m *Matcher) Match(ctx context.Context, in Input) Match {
	oldNum := in.OldFormNumber
	if oldNum == "" {
		oldNum = m.ExtractFormNumber(in.OldText)
	}
	newNum := in.NewFormNumber
	if newNum == "" {
		newNum = m.ExtractFormNumber(in.NewText)
	}

	docSim := textutil.Similarity(
		textutil.StripVolatile(in.OldText),
		textutil.StripVolatile(in.NewText),
	)
	added, removed := textutil.LineDiff(in.OldText, in.NewText)
	sections := changedSections(added, removed)

	m.logger.Info("matching form versions",
		"old_form_number", oldNum,
		"new_form_number", newNum,
		"old_title", in.OldTitle,
		"new_title", in.NewTitle,
		"similarity", docSim)

	base := Match{
		SimilarityScore: docSim,
		OldFormNumber:   oldNum,
		NewFormNumber:   newNum,
		OldTitle:        in.OldTitle,
		NewTitle:        in.NewTitle,
		ChangedSections: sections,
	}

	numbersKnown := oldNum != "" && newNum != ""
	numbersEqual := numbersKnown && strings.EqualFold(oldNum, newNum)
	titlesKnown := in.OldTitle != "" && in.NewTitle != ""
	titlesSimilar := false
	if titlesKnown {
		titleSim := textutil.Similarity(textutil.Normalize(in.OldTitle), textutil.Normalize(in.NewTitle))
		titlesSimilar = titleSim >= m.cfg.TitleSimilarityThreshold
	}

	// Titles govern: a matching title is the strongest "same form" signal
	// and overrides an absent or mismatched number.
	if titlesSimilar {
		if numbersEqual {
			base.Kind = KindFormNumberMatch
			base.Confidence = m.cfg.Confidence.TitleAndNumber
			base.Reason = fmt.Sprintf("Titles and form numbers match: %s", newNum)
			return base
		}
		base.Kind = KindSimilarityMatch
		base.Confidence = m.cfg.Confidence.TitleOnly
		base.Reason = "Titles match"
		return base
	}

	if numbersKnown {
		if numbersEqual {
			if titlesKnown {
				// Same number, meaningfully different name.
				base.Kind = KindSimilarityMatch
				base.Confidence = m.cfg.Confidence.Renamed
				base.Reason = fmt.Sprintf("Form number %s unchanged but title changed: %q vs %q", newNum, in.OldTitle, in.NewTitle)
				return base
			}
			base.Kind = KindFormNumberMatch
			base.Confidence = m.cfg.Confidence.NumberMatch
			base.Reason = fmt.Sprintf("Form numbers match: %s", newNum)
			return base
		}
		base.Kind = KindNewForm
		base.Confidence = m.cfg.Confidence.NewForm
		base.Reason = fmt.Sprintf("Form numbers differ: %s vs %s", oldNum, newNum)
		return base
	}

	// No usable title or number signal; fall back to text similarity.
	switch {
	case docSim >= m.cfg.HighSimilarityThreshold:
		base.Kind = KindSimilarityMatch
		base.Confidence = docSim
		base.Reason = fmt.Sprintf("High text similarity: %.0f%%", docSim*100)
	case docSim < m.cfg.LowSimilarityThreshold:
		base.Kind = KindNewForm
		base.Confidence = 1.0 - docSim
		base.Reason = fmt.Sprintf("Low text similarity: %.0f%%", docSim*100)
	default:
		return m.escalate(ctx, in, base)
	}
	return base
}

// escalate consults the similarity oracle, when configured, for matches in
// the uncertain band. Any oracle failure resolves to uncertain.
func (m *Matcher) escalate(ctx context.Context, in Input, base Match) Match {
	uncertain := func(reason string) Match {
		base.Kind = KindUncertain
		base.Confidence = 0.5
		base.Reason = reason
		return base
	}

	if m.oracle == nil {
		return uncertain(fmt.Sprintf("Moderate similarity (%.0f%%) - manual review recommended", base.SimilarityScore*100))
	}

	octx, cancel := context.WithTimeout(ctx, m.cfg.OracleTimeout)
	defer cancel()
	score, err := m.oracle.Similarity(octx, in.OldText, in.NewText)
	if err != nil {
		m.logger.Warn("similarity oracle failed", "error", err)
		return uncertain(fmt.Sprintf("Moderate similarity (%.0f%%), oracle unavailable - manual review recommended", base.SimilarityScore*100))
	}

	switch {
	case score >= m.cfg.HighSimilarityThreshold:
		base.Kind = KindSimilarityMatch
		base.Confidence = score
		base.Reason = fmt.Sprintf("Similarity oracle score: %.0f%%", score*100)
		return base
	case score < m.cfg.LowSimilarityThreshold:
		base.Kind = KindNewForm
		base.Confidence = 1.0 - score
		base.Reason = fmt.Sprintf("Similarity oracle score: %.0f%%", score*100)
		return base
	default:
		return uncertain(fmt.Sprintf("Oracle score %.0f%% still moderate - manual review recommended", score*100))
	}
}

// DiffSummary renders a human-readable summary of what changed between the
// two text versions.
func (m *Matcher) DiffSummary(oldText, newText string) string {
	added, removed := textutil.LineDiff(oldText, newText)
	sim := textutil.Similarity(textutil.StripVolatile(oldText), textutil.StripVolatile(newText))

	out := fmt.Sprintf("Similarity: %.1f%%\nLines changed: %d", sim*100, len(added)+len(removed))
	out += renderLines("\n\nAdded", "+", added)
	out += renderLines("\n\nRemoved", "-", removed)
	return out
}

func renderLines(header, marker string, lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	const maxShown = 5
	out := fmt.Sprintf("%s (%d lines):", header, len(lines))
	for i, line := range lines {
		if i >= maxShown {
			out += fmt.Sprintf("\n  ... and %d more", len(lines)-maxShown)
			break
		}
		if len(line) > 80 {
			line = line[:80] + "..."
		}
		out += fmt.Sprintf("\n  %s %s", marker, line)
	}
	return out
}
