// Package pipeline glues the stages of one document evaluation together:
// fingerprint the snapshot, classify the change against the prior version,
// and resolve form identity when the change is semantic.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/formwatch/formwatch/internal/classify"
	"github.com/formwatch/formwatch/internal/fingerprint"
	"github.com/formwatch/formwatch/internal/identity"
	"github.com/formwatch/formwatch/internal/telemetry"
)

// Snapshot is one observed version of a document: the raw bytes plus the
// text extracted from them.
type Snapshot struct {
	Raw       []byte
	Text      string
	PageTexts []string
}

// PriorVersion is what was recorded the last time the document was seen.
type PriorVersion struct {
	Fingerprint fingerprint.Fingerprint
	Text        string
	PageTexts   []string
	FormNumber  string
	Title       string
}

// Outcome bundles everything one evaluation produced. Identity is nil unless
// the change was semantic and a prior version existed.
type Outcome struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Change      classify.Classification `json:"change"`
	Identity    *identity.Match         `json:"identity,omitempty"`
}

// Pipeline runs evaluations. Safe for concurrent use.
type Pipeline struct {
	classifier *classify.Classifier
	matcher    *identity.Matcher
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// New builds a Pipeline. Metrics may be nil; the logger defaults to
// slog.Default.
func New(classifier *classify.Classifier, matcher *identity.Matcher, metrics *telemetry.Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{classifier: classifier, matcher: matcher, metrics: metrics, logger: logger}
}

// Evaluate fingerprints the snapshot and classifies it against the prior
// version. Identity matching only runs when text genuinely changed: a new
// document has nothing to match against, and format-only churn cannot alter
// what form the document is.
func (p *Pipeline) Evaluate(ctx context.Context, snap Snapshot, prior *PriorVersion, title string) Outcome {
	fp := fingerprint.Compute(snap.Raw, snap.Text, snap.PageTexts)

	var priorFP *fingerprint.Fingerprint
	var priorText string
	var priorPages []string
	if prior != nil {
		priorFP = &prior.Fingerprint
		priorText = prior.Text
		priorPages = prior.PageTexts
	}

	change := p.classifier.Classify(priorFP, fp, priorText, snap.Text, priorPages, snap.PageTexts)
	p.metrics.ObserveClassification(string(change.Kind))

	out := Outcome{Fingerprint: fp, Change: change}
	if prior == nil || change.Kind != classify.KindTextChanged {
		return out
	}

	match := p.matcher.Match(ctx, identity.Input{
		OldText:       prior.Text,
		NewText:       snap.Text,
		OldFormNumber: prior.FormNumber,
		OldTitle:      prior.Title,
		NewTitle:      title,
	})
	p.metrics.ObserveIdentityMatch(string(match.Kind))
	out.Identity = &match

	p.logger.Info("evaluation complete",
		"change_kind", change.Kind,
		"identity_kind", match.Kind,
		"confidence", match.Confidence)
	return out
}
