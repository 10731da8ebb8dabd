// Package strategies fetches mitigation-strategy lists and supplies the
// built-in fallback set before anything has been fetched.
package strategies

import (
	"context"
	"sync"

	"github.com/uhilab/heatscope/internal/client"
	"github.com/uhilab/heatscope/internal/models"
)

// StrategyAPI is the slice of the backend client the loader depends on.
type StrategyAPI interface {
	GetMitigationStrategies(ctx context.Context, req client.StrategyRequest) (*client.StrategyResponse, error)
	GetAIStrategies(ctx context.Context, req client.StrategyRequest) (*client.StrategyResponse, error)
}

type Loader struct {
	api StrategyAPI

	mu      sync.Mutex
	fetched []models.MitigationStrategy
	busy    bool
	errMsg  string
}

func New(api StrategyAPI) *Loader {
	return &Loader{api: api}
}

// Generate fetches a fresh strategy list. useAI selects the AI-generated
// endpoint over the static one. A failed fetch leaves previously fetched
// strategies intact.
func (l *Loader) Generate(ctx context.Context, req client.StrategyRequest, useAI bool) ([]models.MitigationStrategy, error) {
	l.mu.Lock()
	l.busy = true
	l.mu.Unlock()

	var (
		resp *client.StrategyResponse
		err  error
	)
	if useAI {
		resp, err = l.api.GetAIStrategies(ctx, req)
	} else {
		resp, err = l.api.GetMitigationStrategies(ctx, req)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.busy = false
	if err != nil {
		l.errMsg = err.Error()
		return nil, err
	}
	l.fetched = resp.Strategies
	l.errMsg = ""
	return resp.Strategies, nil
}

// Strategies returns the fetched list, or the built-in fallback when
// nothing has been fetched yet. The fallback is presentational default
// data only; it never overwrites fetched state.
func (l *Loader) Strategies() []models.MitigationStrategy {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.fetched) > 0 {
		out := make([]models.MitigationStrategy, len(l.fetched))
		copy(out, l.fetched)
		return out
	}
	out := make([]models.MitigationStrategy, len(fallbackStrategies))
	copy(out, fallbackStrategies)
	return out
}

// Fetched reports whether the current list came from the network.
func (l *Loader) Fetched() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fetched) > 0
}

func (l *Loader) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.busy
}

func (l *Loader) Err() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errMsg
}

var fallbackStrategies = []models.MitigationStrategy{
	{
		Title:       "Increase Urban Vegetation Coverage",
		Category:    "Green Infrastructure",
		Priority:    "high",
		Explanation: "Expand green spaces by planting native trees and creating urban forests. Target a 25% increase in NDVI across high-risk clusters.",
		Impact:      "Expected UHI reduction: 1.2°C",
	},
	{
		Title:       "Cool Roofs & Reflective Surfaces",
		Category:    "Building Materials",
		Priority:    "high",
		Explanation: "Mandate cool roof installations for new constructions and incentivize retrofits for existing buildings.",
		Impact:      "Expected UHI reduction: 0.8°C",
	},
	{
		Title:       "Enhance Microclimate Regulation",
		Category:    "Climate Adaptation",
		Priority:    "medium",
		Explanation: "Install misting systems in public spaces during heat waves. Create water features to improve thermal comfort.",
		Impact:      "Expected health risk reduction: 15%",
	},
	{
		Title:       "High-Albedo Pavements",
		Category:    "Urban Planning",
		Priority:    "medium",
		Explanation: "Replace dark asphalt with light-colored or permeable pavements to reduce surface temperature by 3-7°C.",
		Impact:      "Expected UHI reduction: 0.5°C",
	},
}
