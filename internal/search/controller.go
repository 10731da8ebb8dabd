// Package search drives location search and viewport selection.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/uhilab/heatscope/internal/client"
	"github.com/uhilab/heatscope/internal/models"
)

// selectedZoom is the zoom applied when a search result is chosen.
const selectedZoom = 12

// markerRadiusKm is the "selected area" circle radius.
const markerRadiusKm = 5

// Geocoder is the slice of the API client the controller depends on.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*client.GeocodeResponse, error)
}

// ViewportSetter receives the viewport update when a result is selected.
type ViewportSetter interface {
	SetViewport(v models.Viewport)
}

// Controller turns free-text queries into ranked geocode results and,
// on selection, updates the viewport and the selected-area marker.
type Controller struct {
	geocoder Geocoder
	viewport ViewportSetter

	mu        sync.Mutex
	results   []models.GeocodeResult
	marker    *models.AreaMarker
	errMsg    string
	searching bool
}

func New(geocoder Geocoder, viewport ViewportSetter) *Controller {
	return &Controller{geocoder: geocoder, viewport: viewport}
}

// Search geocodes the query and auto-selects the first result when the
// list is non-empty. An empty query (after trimming) is a no-op, not an
// error: no network call, no viewport change.
func (c *Controller) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	c.mu.Lock()
	c.searching = true
	c.mu.Unlock()

	resp, err := c.geocoder.Geocode(ctx, query)

	c.mu.Lock()
	c.searching = false
	if err != nil {
		// The current viewport is left untouched on failure.
		c.errMsg = err.Error()
		c.mu.Unlock()
		return err
	}
	c.results = resp.Results
	c.errMsg = ""
	c.mu.Unlock()

	if len(resp.Results) > 0 {
		return c.Select(0)
	}
	return nil
}

// Select applies result i: viewport jumps to the result at zoom 12 and
// the selected-area marker is placed there with a 5 km radius.
func (c *Controller) Select(i int) error {
	c.mu.Lock()
	if i < 0 || i >= len(c.results) {
		c.mu.Unlock()
		return fmt.Errorf("select result %d: out of range", i)
	}
	r := c.results[i]
	c.marker = &models.AreaMarker{Lat: r.Latitude, Lng: r.Longitude, Radius: markerRadiusKm}
	c.mu.Unlock()

	c.viewport.SetViewport(models.Viewport{
		Center: models.LatLng{Lat: r.Latitude, Lng: r.Longitude},
		Zoom:   selectedZoom,
	})
	return nil
}

func (c *Controller) Results() []models.GeocodeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.GeocodeResult, len(c.results))
	copy(out, c.results)
	return out
}

// Marker returns the selected-area marker, or nil before any selection.
func (c *Controller) Marker() *models.AreaMarker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.marker == nil {
		return nil
	}
	m := *c.marker
	return &m
}

func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

func (c *Controller) Searching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searching
}
