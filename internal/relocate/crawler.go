// Package relocate recovers the new URL of a document whose known URL has
// stopped resolving. It first checks the immediate parent directory, then
// walks the site breadth-first under explicit page and depth budgets,
// matching candidate documents by form number with a filename-similarity
// fallback. Traversal state is an explicit FIFO queue plus a visited set;
// one crawl is strictly sequential so the shallowest match is always the
// one reported.
package relocate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/formwatch/formwatch/internal/telemetry"
	"github.com/formwatch/formwatch/internal/textutil"
)

// Config tunes one crawler. Zero durations and strings select defaults.
// MaxPages and MaxDepth are taken literally — zero means no pages / seed
// level only; negative selects the default budget.
type Config struct {
	MaxPages                int
	MaxDepth                int
	RequestTimeout          time.Duration
	PolitenessDelay         time.Duration
	UserAgent               string
	FilenameSimilarityFloor float64
	Workers                 int
}

func (c Config) withDefaults() Config {
	if c.MaxPages < 0 {
		c.MaxPages = 30
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = 3
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.PolitenessDelay <= 0 {
		c.PolitenessDelay = 500 * time.Millisecond
	}
	if c.UserAgent == "" {
		c.UserAgent = "formwatch-relocation/1.0 (+https://formwatch.dev)"
	}
	if c.FilenameSimilarityFloor <= 0 {
		c.FilenameSimilarityFloor = 0.6
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// Result reports one relocation attempt. Finding nothing is a normal
// outcome: Success stays true with an empty MatchedURL. When MatchedURL is
// set it is always one of DiscoveredLinks.
type Result struct {
	Success         bool     `json:"success"`
	DiscoveredLinks []string `json:"discovered_links"`
	MatchedURL      string   `json:"matched_url,omitempty"`
	MatchReason     string   `json:"match_reason,omitempty"`
	PagesCrawled    int      `json:"pages_crawled"`
	SearchPath      []string `json:"search_path,omitempty"`
}

// Crawler runs relocation crawls. One Crawler may serve many concurrent
// crawls; each crawl keeps its own queue and visited set.
type Crawler struct {
	cfg     Config
	client  *http.Client
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// New builds a Crawler.
func New(cfg Config, logger *slog.Logger, metrics *telemetry.Metrics) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Crawler{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logger,
		metrics: metrics,
	}
}

type queueItem struct {
	url   string
	depth int
}

// crawl carries the state of one relocation attempt.
type crawl struct {
	c          *Crawler
	logger     *slog.Logger
	limiter    *rate.Limiter
	formNumber string
	origName   string

	queue      []queueItem
	visited    map[string]struct{}
	discovered map[string]PDFLink
	result     Result

	// Navigation links found on the phase-1 parent page, kept so phase 2 can
	// continue from them when its seed turns out to be that same page.
	parentURL   string
	parentLinks []string
}

// FindRelocated attempts to recover the new URL of a document that stopped
// resolving at failedURL. formNumber and title may be empty; parentPage, when
// set, overrides the derived phase-2 crawl root. The returned error is
// reserved for caller contract violations (an unparseable failed URL);
// network trouble and budget exhaustion are normal data in the Result.
func (c *Crawler) FindRelocated(ctx context.Context, failedURL, formNumber, title, parentPage string) (Result, error) {
	if _, err := url.ParseRequestURI(failedURL); err != nil {
		return Result{}, fmt.Errorf("failed URL %q: %w", failedURL, err)
	}

	origName := filename(failedURL)
	if formNumber == "" {
		formNumber = formNumberFrom(origName)
	}

	cr := &crawl{
		c: c,
		logger: c.logger.With(
			"crawl_id", uuid.NewString(),
			"failed_url", failedURL,
			"form_number", formNumber,
		),
		limiter:    rate.NewLimiter(rate.Every(c.cfg.PolitenessDelay), 1),
		formNumber: formNumber,
		origName:   origName,
		visited:    make(map[string]struct{}),
		discovered: make(map[string]PDFLink),
		result:     Result{Success: true},
	}

	// The known title is advisory only; matching is number-first.
	cr.logger.Info("relocation crawl starting",
		"title", title, "max_pages", c.cfg.MaxPages, "max_depth", c.cfg.MaxDepth)

	if matched := cr.phaseParentDirectory(ctx, failedURL); matched {
		return cr.finish("matched"), nil
	}
	if matched := cr.phaseBFS(ctx, failedURL, parentPage); matched {
		return cr.finish("matched"), nil
	}
	if matched := cr.fallbackFilenameMatch(); matched {
		return cr.finish("matched"), nil
	}

	cr.logger.Info("relocation crawl exhausted without match",
		"pages_crawled", cr.result.PagesCrawled,
		"links_discovered", len(cr.discovered))
	return cr.finish("unmatched"), nil
}

// phaseParentDirectory is the fast path: list the failed URL's parent
// directory and look for an exact form-number match.
func (cr *crawl) phaseParentDirectory(ctx context.Context, failedURL string) bool {
	parent, err := ParentURL(failedURL)
	if err != nil {
		cr.logger.Warn("cannot derive parent directory", "error", err)
		return false
	}

	docLinks, pageLinks, err := cr.visit(ctx, parent)
	if err != nil {
		cr.logger.Warn("parent directory fetch failed", "url", parent, "error", err)
		return false
	}
	cr.parentURL = parent
	cr.parentLinks = pageLinks
	for _, link := range docLinks {
		if cr.matchesTarget(link) {
			cr.result.MatchedURL = link.URL
			cr.result.MatchReason = "form number match in parent directory"
			cr.logger.Info("relocated form found in parent directory", "matched_url", link.URL)
			return true
		}
	}
	return false
}

// phaseBFS walks the site level by level from the base section (or the
// supplied parent page), stopping the instant a document link carries the
// target form number. Level-order processing guarantees the shallowest
// match wins.
func (cr *crawl) phaseBFS(ctx context.Context, failedURL, parentPage string) bool {
	start := parentPage
	if start == "" {
		derived, err := baseSectionURL(failedURL)
		if err != nil {
			cr.logger.Warn("cannot derive base section", "error", err)
			return false
		}
		start = derived
	}
	startURL, err := url.Parse(start)
	if err != nil {
		cr.logger.Warn("invalid crawl root", "url", start, "error", err)
		return false
	}
	host := startURL.Host

	if start == cr.parentURL {
		// Phase 1 already fetched the seed; continue one level below it.
		cr.enqueueAll(cr.parentLinks, 1, host)
	} else {
		cr.queue = append(cr.queue, queueItem{url: startURL.String(), depth: 0})
	}

	for len(cr.queue) > 0 && cr.result.PagesCrawled < cr.c.cfg.MaxPages {
		if ctx.Err() != nil {
			cr.logger.Info("crawl cancelled", "error", ctx.Err())
			return false
		}

		item := cr.queue[0]
		cr.queue = cr.queue[1:]

		if _, seen := cr.visited[item.url]; seen {
			continue
		}
		if item.depth > cr.c.cfg.MaxDepth {
			continue
		}

		docLinks, pageLinks, err := cr.visit(ctx, item.url)
		if err != nil {
			// Unreachable pages are skipped, not fatal.
			cr.logger.Warn("page fetch failed, skipping", "url", item.url, "depth", item.depth, "error", err)
			continue
		}

		for _, link := range docLinks {
			if cr.matchesTarget(link) {
				cr.result.MatchedURL = link.URL
				cr.result.MatchReason = fmt.Sprintf("form number match at depth %d", item.depth)
				cr.logger.Info("relocated form found by crawl",
					"matched_url", link.URL, "depth", item.depth, "pages_crawled", cr.result.PagesCrawled)
				return true
			}
		}

		cr.enqueueAll(pageLinks, item.depth+1, host)
	}
	return false
}

// enqueueAll appends same-host, unvisited pages at the given depth, within
// the depth budget.
func (cr *crawl) enqueueAll(links []string, depth int, host string) {
	if depth > cr.c.cfg.MaxDepth {
		return
	}
	for _, next := range links {
		nu, err := url.Parse(next)
		if err != nil || nu.Host != host {
			continue
		}
		if _, seen := cr.visited[next]; seen {
			continue
		}
		cr.queue = append(cr.queue, queueItem{url: next, depth: depth})
	}
}

// fallbackFilenameMatch compares every discovered filename against the
// original one and accepts the best score above the configured floor.
func (cr *crawl) fallbackFilenameMatch() bool {
	target := normalizedFilename(cr.origName)
	if target == "" {
		return false
	}

	// Sorted order makes the winner among equal scores deterministic.
	urls := make([]string, 0, len(cr.discovered))
	for u := range cr.discovered {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	var bestURL string
	bestScore := 0.0
	for _, u := range urls {
		candidate := normalizedFilename(cr.discovered[u].Filename)
		score := 1.0
		if candidate != target {
			score = textutil.Similarity(target, candidate)
		}
		if score > bestScore {
			bestScore = score
			bestURL = u
		}
	}
	if bestURL == "" || bestScore <= cr.c.cfg.FilenameSimilarityFloor {
		return false
	}

	cr.result.MatchedURL = bestURL
	cr.result.MatchReason = fmt.Sprintf("filename similarity: %.0f%%", bestScore*100)
	cr.logger.Info("relocated form found by filename similarity",
		"matched_url", bestURL, "similarity", bestScore)
	return true
}

// visit fetches one page within the politeness and page budgets, records it
// as crawled, and returns its extracted links. Discovered document links are
// accumulated on the crawl.
func (cr *crawl) visit(ctx context.Context, pageURL string) ([]PDFLink, []string, error) {
	if cr.result.PagesCrawled >= cr.c.cfg.MaxPages {
		return nil, nil, fmt.Errorf("page budget exhausted")
	}
	if err := cr.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	cr.visited[pageURL] = struct{}{}
	cr.result.PagesCrawled++
	cr.result.SearchPath = append(cr.result.SearchPath, pageURL)
	cr.c.metrics.ObserveCrawlPage()

	doc, base, err := cr.c.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}

	docLinks, pageLinks := extractLinks(doc, base)
	for _, link := range docLinks {
		cr.discovered[link.URL] = link
	}
	if len(docLinks) > 0 {
		cr.logger.Debug("document links found", "url", pageURL, "count", len(docLinks))
	}
	return docLinks, pageLinks, nil
}

func (cr *crawl) matchesTarget(link PDFLink) bool {
	return cr.formNumber != "" && link.FormNumber != "" &&
		strings.EqualFold(link.FormNumber, cr.formNumber)
}

func (cr *crawl) finish(outcome string) Result {
	cr.c.metrics.ObserveCrawl(outcome)
	links := make([]string, 0, len(cr.discovered))
	for u := range cr.discovered {
		links = append(links, u)
	}
	sort.Strings(links)
	cr.result.DiscoveredLinks = links
	return cr.result
}

// fetchPage GETs one page and parses it as HTML. Non-HTML responses and
// HTTP errors are returned as errors so the caller can skip the page.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("http status %s", resp.Status)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return nil, nil, fmt.Errorf("not an HTML page: %s", contentType)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}
	base := resp.Request.URL // final URL after redirects
	return doc, base, nil
}

// CheckAvailable probes a URL with a HEAD request; true means the document
// resolves with a 200.
func (c *Crawler) CheckAvailable(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
