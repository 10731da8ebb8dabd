// Package viewport owns the map viewport state and the debounced,
// cancel-safe loading of UHI data points for it.
package viewport

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/uhilab/heatscope/internal/client"
	"github.com/uhilab/heatscope/internal/layers"
	"github.com/uhilab/heatscope/internal/metrics"
	"github.com/uhilab/heatscope/internal/models"
)

// State is the loader's lifecycle phase. Any state may transition back
// to Loading when a new fetch is issued.
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultDebounce is how long the viewport must stay still before a
// fetch is issued.
const DefaultDebounce = 500 * time.Millisecond

// DataFetcher is the slice of the API client the loader depends on.
type DataFetcher interface {
	GetData(ctx context.Context, p client.DataParams) (*client.DataResponse, error)
}

// Loader turns viewport changes into bounded, debounced data fetches.
// At most one fetch result is ever applied per issued sequence number;
// a fetch that resolves after a newer one has been issued is discarded.
type Loader struct {
	fetcher  DataFetcher
	clock    clockwork.Clock
	debounce time.Duration
	resolved chan<- struct{}

	mu       sync.Mutex
	timer    clockwork.Timer
	viewport models.Viewport
	toggles  models.LayerToggles
	points   []models.UHIDataPoint
	state    State
	errMsg   string
	seq      uint64
	cancel   context.CancelFunc
}

type Option func(*Loader)

// WithClock substitutes the time source, letting tests drive the
// debounce window with a fake clock.
func WithClock(c clockwork.Clock) Option {
	return func(l *Loader) { l.clock = c }
}

func WithDebounce(d time.Duration) Option {
	return func(l *Loader) { l.debounce = d }
}

// WithResolved registers a channel that receives a signal every time a
// fetch resolves, whether applied, discarded or failed. Sends never
// block; give the channel enough buffer for the fetches under test.
func WithResolved(ch chan<- struct{}) Option {
	return func(l *Loader) { l.resolved = ch }
}

func New(fetcher DataFetcher, opts ...Option) *Loader {
	l := &Loader{
		fetcher:  fetcher,
		clock:    clockwork.NewRealClock(),
		debounce: DefaultDebounce,
		viewport: models.DefaultViewport,
		toggles:  models.DefaultLayerToggles,
		state:    Idle,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetViewport records a viewport change and (re)starts the debounce
// timer. Rapid successive changes within the window cancel the pending
// timer; only the final viewport after the quiet period produces a fetch.
func (l *Loader) SetViewport(v models.Viewport) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.viewport = v
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = l.clock.AfterFunc(l.debounce, func() {
		seq, ctx, cancel, vp := l.beginFetch()
		defer cancel()
		l.fetch(ctx, seq, vp)
	})
}

// LoadNow fetches immediately for the current viewport, bypassing the
// debounce window. Used for explicit "load data" actions.
func (l *Loader) LoadNow(ctx context.Context) error {
	l.mu.Lock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.mu.Unlock()

	seq, fetchCtx, cancel, vp := l.beginFetch()
	// Canceling on return releases the monitor goroutine below once the
	// fetch resolves, not just when a newer fetch supersedes it.
	defer cancel()

	// Tie the fetch to the caller's context as well.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-fetchCtx.Done():
		}
	}()
	return l.fetch(fetchCtx, seq, vp)
}

// beginFetch claims the next sequence number, moves to Loading and
// cancels any in-flight fetch it supersedes. The returned cancel func
// must be called when the fetch resolves.
func (l *Loader) beginFetch() (uint64, context.Context, context.CancelFunc, models.Viewport) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.state = Loading
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	return l.seq, ctx, cancel, l.viewport
}

func (l *Loader) fetch(ctx context.Context, seq uint64, vp models.Viewport) error {
	bbox := vp.BoundingBox()
	resp, err := l.fetcher.GetData(ctx, client.DataParams{BBox: &bbox})

	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		l.signalResolved()
	}()

	if seq != l.seq {
		// A newer viewport change superseded this fetch.
		metrics.StaleFetchesDiscarded.Inc()
		log.Printf("loader: discarding stale fetch %d (current %d)", seq, l.seq)
		return nil
	}

	if err != nil {
		// Keep the last good points so a failed refresh never blanks
		// the map.
		l.state = Failed
		l.errMsg = err.Error()
		log.Printf("loader: fetch %d failed: %v", seq, err)
		return err
	}

	l.points = resp.Data
	l.state = Loaded
	l.errMsg = ""
	metrics.DataPointsLoaded.Add(float64(len(resp.Data)))
	log.Printf("loader: fetch %d loaded %d data points", seq, len(resp.Data))
	return nil
}

func (l *Loader) signalResolved() {
	if l.resolved == nil {
		return
	}
	select {
	case l.resolved <- struct{}{}:
	default:
	}
}

// SetLayerToggles replaces the visual layer flags.
func (l *Loader) SetLayerToggles(t models.LayerToggles) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.toggles = t
}

// Snapshot is a read-only copy of the loader state for consumers.
type Snapshot struct {
	State    State
	Viewport models.Viewport
	Toggles  models.LayerToggles
	Points   []models.UHIDataPoint
	Err      string
}

func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	points := make([]models.UHIDataPoint, len(l.points))
	copy(points, l.points)
	return Snapshot{
		State:    l.state,
		Viewport: l.viewport,
		Toggles:  l.toggles,
		Points:   points,
		Err:      l.errMsg,
	}
}

// Markers applies the layer rendering policy to the loaded points.
func (l *Loader) Markers() []layers.Marker {
	snap := l.Snapshot()
	return layers.Markers(snap.Points, snap.Toggles)
}
