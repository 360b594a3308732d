package relocate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite serves canned HTML pages and records which paths were fetched.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched map[string]int
}

func newFakeSite(pages map[string]string) *fakeSite {
	return &fakeSite{pages: pages, fetched: make(map[string]int)}
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.fetched[r.URL.Path]++
	s.mu.Unlock()

	body, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, body)
}

func (s *fakeSite) fetchCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched[path]
}

func testConfig() Config {
	return Config{
		MaxPages:        10,
		MaxDepth:        2,
		PolitenessDelay: time.Millisecond,
	}
}

func TestFindRelocatedInParentDirectory(t *testing.T) {
	site := newFakeSite(map[string]string{
		"/forms/docs/": `<html><body>
			<a href="civ-001-v2.pdf">CIV-001 Petition (revised)</a>
			<a href="unrelated-999.pdf">Other form</a>
		</body></html>`,
	})
	srv := httptest.NewServer(site)
	defer srv.Close()

	c := New(testConfig(), nil, nil)
	result, err := c.FindRelocated(context.Background(), srv.URL+"/forms/docs/civ-001.pdf", "", "", "")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, srv.URL+"/forms/docs/civ-001-v2.pdf", result.MatchedURL)
	assert.Equal(t, "form number match in parent directory", result.MatchReason)
	assert.Equal(t, 1, result.PagesCrawled)
	assert.Contains(t, result.DiscoveredLinks, srv.URL+"/forms/docs/unrelated-999.pdf")
}

func TestFindRelocatedByCrawlShortCircuits(t *testing.T) {
	site := newFakeSite(map[string]string{
		"/forms/": `<html><body>
			<a href="family/">Family forms</a>
			<a href="probate/">Probate forms</a>
		</body></html>`,
		"/forms/family/": `<html><body>
			<a href="mc-030-new.pdf">MC-030 Declaration</a>
			<a href="deep/">More pages</a>
		</body></html>`,
		"/forms/probate/":     `<html><body>nothing here</body></html>`,
		"/forms/family/deep/": `<html><body>should never be reached</body></html>`,
	})
	srv := httptest.NewServer(site)
	defer srv.Close()

	c := New(testConfig(), nil, nil)
	result, err := c.FindRelocated(context.Background(), srv.URL+"/forms/old/mc-030.pdf", "", "", "")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, srv.URL+"/forms/family/mc-030-new.pdf", result.MatchedURL)
	assert.Equal(t, "form number match at depth 1", result.MatchReason)
	// The match at depth 1 stops the crawl before anything deeper or later
	// in the queue is touched.
	assert.Zero(t, site.fetchCount("/forms/family/deep/"))
	assert.Zero(t, site.fetchCount("/forms/probate/"))
}

func TestFindRelocatedZeroPageBudget(t *testing.T) {
	site := newFakeSite(map[string]string{})
	srv := httptest.NewServer(site)
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxPages = 0
	c := New(cfg, nil, nil)

	result, err := c.FindRelocated(context.Background(), srv.URL+"/forms/civ-100.pdf", "", "", "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.MatchedURL)
	assert.Empty(t, result.DiscoveredLinks)
	assert.Zero(t, result.PagesCrawled)
	assert.Zero(t, site.fetchCount("/forms/"))
}

func TestFindRelocatedFilenameFallback(t *testing.T) {
	site := newFakeSite(map[string]string{
		"/forms/": `<html><body>
			<a href="guardianship-packet-v2.pdf">Guardianship packet</a>
		</body></html>`,
	})
	srv := httptest.NewServer(site)
	defer srv.Close()

	c := New(testConfig(), nil, nil)
	result, err := c.FindRelocated(context.Background(), srv.URL+"/forms/guardianship_packet.pdf", "", "", "")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, srv.URL+"/forms/guardianship-packet-v2.pdf", result.MatchedURL)
	assert.Contains(t, result.MatchReason, "filename similarity")
}

func TestFindRelocatedFilenameFallbackTieIsDeterministic(t *testing.T) {
	// Two candidates scoring identically: the lexicographically first URL
	// wins, every run.
	site := newFakeSite(map[string]string{
		"/forms/": `<html><body>
			<a href="b/guardianship-packet.pdf">Copy B</a>
			<a href="a/guardianship-packet.pdf">Copy A</a>
		</body></html>`,
	})
	srv := httptest.NewServer(site)
	defer srv.Close()

	for i := 0; i < 5; i++ {
		c := New(testConfig(), nil, nil)
		result, err := c.FindRelocated(context.Background(), srv.URL+"/forms/guardianship_packet.pdf", "", "", "")
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/forms/a/guardianship-packet.pdf", result.MatchedURL)
	}
}

func TestFindRelocatedNoMatch(t *testing.T) {
	site := newFakeSite(map[string]string{
		"/forms/": `<html><body><a href="totally-unrelated-999.pdf">Other</a></body></html>`,
	})
	srv := httptest.NewServer(site)
	defer srv.Close()

	c := New(testConfig(), nil, nil)
	result, err := c.FindRelocated(context.Background(), srv.URL+"/forms/civ-001.pdf", "", "", "")
	require.NoError(t, err)

	// Finding nothing is a normal outcome, not a failure.
	assert.True(t, result.Success)
	assert.Empty(t, result.MatchedURL)
	assert.Contains(t, result.DiscoveredLinks, srv.URL+"/forms/totally-unrelated-999.pdf")
	assert.NotEmpty(t, result.SearchPath)
}

func TestFindRelocatedBadURL(t *testing.T) {
	c := New(testConfig(), nil, nil)
	_, err := c.FindRelocated(context.Background(), "://not-a-url", "", "", "")
	assert.Error(t, err)
}

func TestFindRelocatedStaysOnHost(t *testing.T) {
	other := httptest.NewServer(newFakeSite(map[string]string{
		"/": `<html><body>off-site</body></html>`,
	}))
	defer other.Close()

	site := newFakeSite(map[string]string{
		"/forms/": fmt.Sprintf(`<html><body>
			<a href="%s/">External link</a>
			<a href="local/">Local section</a>
		</body></html>`, other.URL),
		"/forms/local/": `<html><body>nothing</body></html>`,
	})
	srv := httptest.NewServer(site)
	defer srv.Close()

	c := New(testConfig(), nil, nil)
	_, err := c.FindRelocated(context.Background(), srv.URL+"/forms/mc-999.pdf", "", "", "")
	require.NoError(t, err)
	assert.NotZero(t, site.fetchCount("/forms/local/"))
	assert.Zero(t, newFakeSiteCount(other))
}

func newFakeSiteCount(srv *httptest.Server) int {
	site := srv.Config.Handler.(*fakeSite)
	site.mu.Lock()
	defer site.mu.Unlock()
	total := 0
	for _, n := range site.fetched {
		total += n
	}
	return total
}

func TestCheckAvailable(t *testing.T) {
	site := newFakeSite(map[string]string{"/forms/civ-001.pdf": "content"})
	srv := httptest.NewServer(site)
	defer srv.Close()

	c := New(testConfig(), nil, nil)
	assert.True(t, c.CheckAvailable(context.Background(), srv.URL+"/forms/civ-001.pdf"))
	assert.False(t, c.CheckAvailable(context.Background(), srv.URL+"/forms/gone.pdf"))
}
