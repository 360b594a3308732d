package relocate

import (
	"context"
	"log/slog"
	"sync"
)

// Request identifies one document to relocate.
type Request struct {
	FailedURL  string
	FormNumber string
	Title      string
	ParentPage string
}

// Outcome pairs a request with its crawl result.
type Outcome struct {
	Request Request
	Result  Result
	Err     error
}

// Pool runs independent relocation crawls concurrently with a bounded number
// of workers. Each individual crawl stays strictly sequential; only crawls
// for different documents overlap.
type Pool struct {
	crawler *Crawler
	workers int
	logger  *slog.Logger
}

// NewPool builds a Pool around a shared Crawler.
func NewPool(crawler *Crawler, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = crawler.cfg.Workers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{crawler: crawler, workers: workers, logger: logger}
}

// Run executes all requests and returns outcomes in request order. It blocks
// until every crawl has finished or the context is cancelled; cancelled
// crawls report their partial results.
func (p *Pool) Run(ctx context.Context, requests []Request) []Outcome {
	outcomes := make([]Outcome, len(requests))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				req := requests[i]
				result, err := p.crawler.FindRelocated(ctx, req.FailedURL, req.FormNumber, req.Title, req.ParentPage)
				outcomes[i] = Outcome{Request: req, Result: result, Err: err}
			}
		}()
	}

	for i := range requests {
		select {
		case jobs <- i:
		case <-ctx.Done():
			outcomes[i] = Outcome{Request: requests[i], Err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()

	p.logger.Info("relocation batch finished", "requests", len(requests), "workers", p.workers)
	return outcomes
}
