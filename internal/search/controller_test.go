package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhilab/heatscope/internal/client"
	"github.com/uhilab/heatscope/internal/models"
)

type fakeGeocoder struct {
	calls []string
	resp  *client.GeocodeResponse
	err   error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, query string) (*client.GeocodeResponse, error) {
	f.calls = append(f.calls, query)
	return f.resp, f.err
}

type fakeViewport struct {
	set []models.Viewport
}

func (f *fakeViewport) SetViewport(v models.Viewport) {
	f.set = append(f.set, v)
}

func puneResults() *client.GeocodeResponse {
	return &client.GeocodeResponse{
		Results: []models.GeocodeResult{
			{DisplayName: "Pune, Maharashtra", Latitude: 18.5204, Longitude: 73.8567},
			{DisplayName: "Pune Cantonment", Latitude: 18.5018, Longitude: 73.8924},
		},
	}
}

func TestSearchAutoSelectsFirstResult(t *testing.T) {
	geo := &fakeGeocoder{resp: puneResults()}
	vp := &fakeViewport{}
	c := New(geo, vp)

	require.NoError(t, c.Search(context.Background(), "Pune"))

	require.Len(t, vp.set, 1)
	assert.Equal(t, 18.5204, vp.set[0].Center.Lat)
	assert.Equal(t, 12, vp.set[0].Zoom)

	m := c.Marker()
	require.NotNil(t, m)
	assert.Equal(t, 18.5204, m.Lat)
	assert.Equal(t, float64(5), m.Radius)

	assert.Len(t, c.Results(), 2)
}

func TestSearchEmptyQueryIsNoOp(t *testing.T) {
	geo := &fakeGeocoder{resp: puneResults()}
	vp := &fakeViewport{}
	c := New(geo, vp)

	for _, q := range []string{"", "   ", "\t\n"} {
		require.NoError(t, c.Search(context.Background(), q))
	}

	assert.Empty(t, geo.calls, "empty query must not hit the network")
	assert.Empty(t, vp.set)
	assert.Nil(t, c.Marker())
}

func TestSearchFailureLeavesViewport(t *testing.T) {
	geo := &fakeGeocoder{err: errors.New("geocoding unavailable")}
	vp := &fakeViewport{}
	c := New(geo, vp)

	err := c.Search(context.Background(), "Nagpur")
	require.Error(t, err)

	assert.Empty(t, vp.set, "failed search must not move the viewport")
	assert.Contains(t, c.Err(), "geocoding unavailable")
	assert.False(t, c.Searching())
}

func TestSearchNoResults(t *testing.T) {
	geo := &fakeGeocoder{resp: &client.GeocodeResponse{}}
	vp := &fakeViewport{}
	c := New(geo, vp)

	require.NoError(t, c.Search(context.Background(), "zzzzz"))
	assert.Empty(t, vp.set)
	assert.Nil(t, c.Marker())
}

func TestSelectOutOfRange(t *testing.T) {
	geo := &fakeGeocoder{resp: puneResults()}
	vp := &fakeViewport{}
	c := New(geo, vp)
	require.NoError(t, c.Search(context.Background(), "Pune"))

	assert.Error(t, c.Select(5))
	assert.Error(t, c.Select(-1))

	// Selecting the second result moves the viewport again.
	require.NoError(t, c.Select(1))
	require.Len(t, vp.set, 2)
	assert.Equal(t, 18.5018, vp.set[1].Center.Lat)
}
