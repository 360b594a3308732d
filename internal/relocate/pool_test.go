package relocate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllRequestsInOrder(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>empty directory</body></html>")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Workers = 2
	pool := NewPool(New(cfg, nil, nil), 0, nil)

	var requests []Request
	for i := 0; i < 6; i++ {
		requests = append(requests, Request{
			FailedURL: fmt.Sprintf("%s/forms/batch%d/doc-%03d.pdf", srv.URL, i, i),
		})
	}

	outcomes := pool.Run(context.Background(), requests)
	require.Len(t, outcomes, 6)
	for i, out := range outcomes {
		assert.Equal(t, requests[i], out.Request, "outcomes keep request order")
		assert.NoError(t, out.Err)
		assert.True(t, out.Result.Success)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2), "no more than workers crawls in flight")
}

func TestPoolCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	cfg.Workers = 1
	pool := NewPool(New(cfg, nil, nil), 0, nil)

	outcomes := pool.Run(ctx, []Request{
		{FailedURL: srv.URL + "/forms/mc-001.pdf"},
		{FailedURL: srv.URL + "/forms/mc-002.pdf"},
	})
	require.Len(t, outcomes, 2)
}
