package predict

import "math"

// Scenario simulator: a local what-if model over the four environment
// sliders. It is a deliberately simple heuristic for interactive
// exploration; the real prediction models live on the backend.

// ScenarioParams are the slider values.
type ScenarioParams struct {
	NDVI           float64 // 0..1
	BuiltupPercent float64 // 0..100
	Humidity       float64 // 20..100, relative %
	Temperature    float64 // °C
}

// ScenarioResult compares the current scenario against a mitigated one.
type ScenarioResult struct {
	UHIBefore        float64
	UHIAfter         float64
	HealthRiskBefore float64
	HealthRiskAfter  float64
	ImprovementPct   float64
}

// Mitigation applied for the "after" scenario: greener cover and less
// sealed surface, roughly matching the top two fallback strategies.
const (
	mitigationNDVIGain    = 0.15
	mitigationBuiltupDrop = 10.0
)

// Simulate runs the heuristic for the given parameters. Deterministic:
// the same inputs always produce the same result.
func Simulate(p ScenarioParams) ScenarioResult {
	before := scenarioUHI(p)

	mitigated := p
	mitigated.NDVI = math.Min(1, p.NDVI+mitigationNDVIGain)
	mitigated.BuiltupPercent = math.Max(0, p.BuiltupPercent-mitigationBuiltupDrop)
	after := scenarioUHI(mitigated)

	riskBefore := scenarioHealthRisk(before, p.Humidity)
	riskAfter := scenarioHealthRisk(after, mitigated.Humidity)

	improvement := 0.0
	if before > 0 {
		improvement = (before - after) / before * 100
	}

	return ScenarioResult{
		UHIBefore:        round1(before),
		UHIAfter:         round1(after),
		HealthRiskBefore: round1(riskBefore),
		HealthRiskAfter:  round1(riskAfter),
		ImprovementPct:   round1(improvement),
	}
}

// scenarioUHI estimates UHI intensity (°C): sealing and heat push it up,
// vegetation pulls it down.
func scenarioUHI(p ScenarioParams) float64 {
	uhi := 1.5 + 0.06*p.BuiltupPercent - 4.0*p.NDVI + 0.08*(p.Temperature-30)
	return math.Max(0, uhi)
}

// scenarioHealthRisk maps UHI and humidity to the 0-10 composite index.
func scenarioHealthRisk(uhi, humidity float64) float64 {
	risk := uhi*0.9 + (humidity-50)*0.04
	return math.Max(0, math.Min(10, risk))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
