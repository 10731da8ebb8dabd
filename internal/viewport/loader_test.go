package viewport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhilab/heatscope/internal/client"
	"github.com/uhilab/heatscope/internal/models"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []client.DataParams
	respond func(n int, p client.DataParams) (*client.DataResponse, error)
}

func (f *fakeFetcher) GetData(ctx context.Context, p client.DataParams) (*client.DataResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	n := len(f.calls)
	f.mu.Unlock()
	return f.respond(n, p)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) lastCall() client.DataParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func points(uhis ...float64) []models.UHIDataPoint {
	out := make([]models.UHIDataPoint, len(uhis))
	for i, u := range uhis {
		out[i] = models.UHIDataPoint{Latitude: 18.5, Longitude: 73.8, UHIIntensity: u}
	}
	return out
}

func waitResolved(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch to resolve")
	}
}

func TestDebounceCoalescesRapidChanges(t *testing.T) {
	clock := clockwork.NewFakeClock()
	resolved := make(chan struct{}, 4)
	fetcher := &fakeFetcher{
		respond: func(n int, p client.DataParams) (*client.DataResponse, error) {
			return &client.DataResponse{Data: points(6.0), Count: 1}, nil
		},
	}
	l := New(fetcher, WithClock(clock), WithResolved(resolved))

	// Three viewport changes inside the quiet window.
	l.SetViewport(models.Viewport{Center: models.LatLng{Lat: 18.0, Lng: 73.0}, Zoom: 10})
	l.SetViewport(models.Viewport{Center: models.LatLng{Lat: 18.2, Lng: 73.2}, Zoom: 10})
	final := models.Viewport{Center: models.LatLng{Lat: 18.5204, Lng: 73.8567}, Zoom: 12}
	l.SetViewport(final)

	clock.Advance(DefaultDebounce)
	waitResolved(t, resolved)

	require.Equal(t, 1, fetcher.callCount(), "only the final viewport should produce a fetch")

	wantBBox := final.BoundingBox()
	require.NotNil(t, fetcher.lastCall().BBox)
	assert.Equal(t, wantBBox, *fetcher.lastCall().BBox)

	snap := l.Snapshot()
	assert.Equal(t, Loaded, snap.State)
	assert.Len(t, snap.Points, 1)
}

func TestNoFetchBeforeQuietPeriod(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{
		respond: func(n int, p client.DataParams) (*client.DataResponse, error) {
			return &client.DataResponse{}, nil
		},
	}
	l := New(fetcher, WithClock(clock))

	l.SetViewport(models.DefaultViewport)
	clock.Advance(DefaultDebounce - time.Millisecond)

	assert.Equal(t, 0, fetcher.callCount())
}

// blockingFetcher parks each call until the test releases it, so tests
// can control resolution order across overlapping fetches.
type blockingFetcher struct {
	mu    sync.Mutex
	calls []*blockedCall
	ready chan struct{}
}

type blockedCall struct {
	release chan struct{}
	resp    *client.DataResponse
	err     error
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{ready: make(chan struct{}, 8)}
}

func (f *blockingFetcher) GetData(ctx context.Context, p client.DataParams) (*client.DataResponse, error) {
	c := &blockedCall{release: make(chan struct{})}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	f.ready <- struct{}{}

	<-c.release
	return c.resp, c.err
}

func (f *blockingFetcher) call(i int) *blockedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func TestStaleFetchDiscarded(t *testing.T) {
	resolved := make(chan struct{}, 4)
	fetcher := newBlockingFetcher()
	l := New(fetcher, WithDebounce(time.Millisecond), WithResolved(resolved))

	// Fetch #1 starts and blocks.
	go l.LoadNow(context.Background())
	<-fetcher.ready

	// Fetch #2 supersedes it and blocks.
	go l.LoadNow(context.Background())
	<-fetcher.ready

	// Resolve #2 first: its points must win.
	c2 := fetcher.call(1)
	c2.resp = &client.DataResponse{Data: points(9.0, 9.5), Count: 2}
	close(c2.release)
	waitResolved(t, resolved)

	snap := l.Snapshot()
	require.Equal(t, Loaded, snap.State)
	require.Len(t, snap.Points, 2)

	// Fetch #1 resolves late with different data; it must be discarded.
	c1 := fetcher.call(0)
	c1.resp = &client.DataResponse{Data: points(1.0), Count: 1}
	close(c1.release)
	waitResolved(t, resolved)

	snap = l.Snapshot()
	assert.Equal(t, Loaded, snap.State)
	assert.Len(t, snap.Points, 2, "stale fetch must not replace newer points")
	assert.Equal(t, 9.0, snap.Points[0].UHIIntensity)
}

func TestFailedRefreshKeepsLastPoints(t *testing.T) {
	var fail bool
	var mu sync.Mutex
	fetcher := &fakeFetcher{
		respond: func(n int, p client.DataParams) (*client.DataResponse, error) {
			mu.Lock()
			defer mu.Unlock()
			if fail {
				return nil, errors.New("backend unavailable")
			}
			return &client.DataResponse{Data: points(6.0, 7.0), Count: 2}, nil
		},
	}
	l := New(fetcher)

	require.NoError(t, l.LoadNow(context.Background()))
	require.Len(t, l.Snapshot().Points, 2)

	mu.Lock()
	fail = true
	mu.Unlock()

	err := l.LoadNow(context.Background())
	require.Error(t, err)

	snap := l.Snapshot()
	assert.Equal(t, Failed, snap.State)
	assert.Contains(t, snap.Err, "backend unavailable")
	assert.Len(t, snap.Points, 2, "failed refresh must not blank the map")
}

func TestMarkersRespectToggles(t *testing.T) {
	fetcher := &fakeFetcher{
		respond: func(n int, p client.DataParams) (*client.DataResponse, error) {
			return &client.DataResponse{Data: points(13.0), Count: 1}, nil
		},
	}
	l := New(fetcher)
	require.NoError(t, l.LoadNow(context.Background()))

	require.Len(t, l.Markers(), 1)

	l.SetLayerToggles(models.LayerToggles{Humidity: true})
	assert.Empty(t, l.Markers(), "points need UHI or temperature layer to render")
}

func TestLoadNowReleasesFetchContext(t *testing.T) {
	var mu sync.Mutex
	var fetchCtx context.Context
	fetcher := &fakeFetcher{
		respond: func(n int, p client.DataParams) (*client.DataResponse, error) {
			return &client.DataResponse{Data: points(6.0), Count: 1}, nil
		},
	}
	l := New(&ctxCapturingFetcher{inner: fetcher, mu: &mu, ctx: &fetchCtx})

	require.NoError(t, l.LoadNow(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, fetchCtx)
	assert.ErrorIs(t, fetchCtx.Err(), context.Canceled,
		"fetch context must be released once the fetch resolves")
}

type ctxCapturingFetcher struct {
	inner DataFetcher
	mu    *sync.Mutex
	ctx   *context.Context
}

func (f *ctxCapturingFetcher) GetData(ctx context.Context, p client.DataParams) (*client.DataResponse, error) {
	f.mu.Lock()
	*f.ctx = ctx
	f.mu.Unlock()
	return f.inner.GetData(ctx, p)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "failed", Failed.String())
}
