package strategies

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhilab/heatscope/internal/client"
	"github.com/uhilab/heatscope/internal/models"
)

type fakeStrategyAPI struct {
	staticCalls int
	aiCalls     int
	resp        *client.StrategyResponse
	err         error
}

func (f *fakeStrategyAPI) GetMitigationStrategies(ctx context.Context, req client.StrategyRequest) (*client.StrategyResponse, error) {
	f.staticCalls++
	return f.resp, f.err
}

func (f *fakeStrategyAPI) GetAIStrategies(ctx context.Context, req client.StrategyRequest) (*client.StrategyResponse, error) {
	f.aiCalls++
	return f.resp, f.err
}

func TestFallbackBeforeAnyFetch(t *testing.T) {
	l := New(&fakeStrategyAPI{})

	got := l.Strategies()
	require.Len(t, got, 4)
	assert.Equal(t, "Increase Urban Vegetation Coverage", got[0].Title)
	assert.Equal(t, "high", got[0].Priority)
	assert.False(t, l.Fetched())
}

func TestGenerateReplacesFallback(t *testing.T) {
	api := &fakeStrategyAPI{
		resp: &client.StrategyResponse{
			Strategies: []models.MitigationStrategy{
				{Title: "Shade corridors", Category: "Urban Planning", Priority: "high"},
			},
		},
	}
	l := New(api)

	got, err := l.Generate(context.Background(), client.StrategyRequest{}, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, api.staticCalls)
	assert.Zero(t, api.aiCalls)

	assert.True(t, l.Fetched())
	current := l.Strategies()
	require.Len(t, current, 1)
	assert.Equal(t, "Shade corridors", current[0].Title)
}

func TestGenerateAIEndpoint(t *testing.T) {
	api := &fakeStrategyAPI{resp: &client.StrategyResponse{
		Strategies: []models.MitigationStrategy{{Title: "x"}},
	}}
	l := New(api)

	_, err := l.Generate(context.Background(), client.StrategyRequest{}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, api.aiCalls)
	assert.Zero(t, api.staticCalls)
}

func TestFailedFetchKeepsFetchedStrategies(t *testing.T) {
	api := &fakeStrategyAPI{resp: &client.StrategyResponse{
		Strategies: []models.MitigationStrategy{{Title: "Shade corridors"}},
	}}
	l := New(api)

	_, err := l.Generate(context.Background(), client.StrategyRequest{}, false)
	require.NoError(t, err)

	api.err = errors.New("backend down")
	_, err = l.Generate(context.Background(), client.StrategyRequest{}, false)
	require.Error(t, err)

	current := l.Strategies()
	require.Len(t, current, 1)
	assert.Equal(t, "Shade corridors", current[0].Title, "failure must not clobber fetched strategies")
	assert.Contains(t, l.Err(), "backend down")
}

func TestStrategiesReturnsCopy(t *testing.T) {
	l := New(&fakeStrategyAPI{})

	got := l.Strategies()
	got[0].Title = "mutated"

	again := l.Strategies()
	assert.Equal(t, "Increase Urban Vegetation Coverage", again[0].Title)
}
