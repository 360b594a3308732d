// Package oracle provides similarity-oracle implementations for the identity
// matcher. The bleve oracle is fully local: it builds a throwaway in-memory
// full-text index over the prior text and scores the new text against it.
package oracle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blevesearch/bleve"
)

// Bleve scores text pairs with a mem-only bleve index. Stateless between
// calls; safe for concurrent use.
type Bleve struct {
	logger *slog.Logger
	// queryChars bounds the match query; scoring saturates well below
	// full-document length.
	queryChars int
}

// NewBleve builds a bleve-backed similarity oracle.
func NewBleve(logger *slog.Logger) *Bleve {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bleve{logger: logger, queryChars: 4096}
}

type indexedDoc struct {
	Text string `json:"text"`
}

// Similarity indexes oldText and runs newText as a match query against it.
// The raw tf-idf score is mapped onto (0,1) with s/(s+1); no hit at all is
// 0. The context deadline is honored by the search.
func (b *Bleve) Similarity(ctx context.Context, oldText, newText string) (float64, error) {
	if oldText == "" || newText == "" {
		return 0, nil
	}

	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return 0, fmt.Errorf("create index: %w", err)
	}
	defer idx.Close()

	if err := idx.Index("prior", indexedDoc{Text: oldText}); err != nil {
		return 0, fmt.Errorf("index prior text: %w", err)
	}

	query := newText
	if len(query) > b.queryChars {
		query = query[:b.queryChars]
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("search: %w", err)
	}
	if len(res.Hits) == 0 {
		return 0, nil
	}

	score := res.Hits[0].Score
	sim := score / (score + 1)
	b.logger.Debug("bleve oracle scored pair", "raw_score", score, "similarity", sim)
	return sim, nil
}
