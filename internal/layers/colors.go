// Package layers maps data-point metrics to visual layer encodings.
package layers

import "github.com/uhilab/heatscope/internal/models"

// Color is a hex RGB value suitable for map markers.
type Color string

const (
	ColorRed    Color = "#dc2626"
	ColorOrange Color = "#f97316"
	ColorYellow Color = "#facc15"
	ColorGreen  Color = "#22c55e"
	ColorBlue   Color = "#3b82f6"
)

// Marker radius for data-point circles, meters.
const MarkerRadius = 500

// ColorForUHI buckets a UHI intensity (°C). Thresholds are strictly
// greater-than: a value exactly on a boundary falls to the lower bucket.
func ColorForUHI(v float64) Color {
	switch {
	case v > 12:
		return ColorRed
	case v > 8:
		return ColorOrange
	case v > 5:
		return ColorYellow
	default:
		return ColorGreen
	}
}

// ColorForTemp buckets an air temperature (°C).
func ColorForTemp(v float64) Color {
	switch {
	case v > 38:
		return ColorRed
	case v > 35:
		return ColorOrange
	case v > 30:
		return ColorYellow
	default:
		return ColorBlue
	}
}

// Eligible reports whether any point may render under the given toggles.
// A point needs the UHI or temperature layer active to appear at all.
func Eligible(t models.LayerToggles) bool {
	return t.UHI || t.Temperature
}

// ColorFor picks a point's color under the active layers. The UHI layer
// wins over temperature when both are on. ok is false when neither layer
// is active and the point must not render.
func ColorFor(p models.UHIDataPoint, t models.LayerToggles) (c Color, ok bool) {
	if !Eligible(t) {
		return "", false
	}
	if t.UHI {
		return ColorForUHI(p.UHIIntensity), true
	}
	return ColorForTemp(p.Temperature), true
}

// Marker is a render-ready data point: position, color, radius, payload.
// How it is drawn is up to the presentation layer.
type Marker struct {
	Lat    float64
	Lng    float64
	Color  Color
	Radius float64
	Point  models.UHIDataPoint
}

// Markers applies the rendering filter policy to a point collection.
func Markers(points []models.UHIDataPoint, t models.LayerToggles) []Marker {
	if !Eligible(t) {
		return nil
	}
	markers := make([]Marker, 0, len(points))
	for _, p := range points {
		color, ok := ColorFor(p, t)
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			Lat:    p.Latitude,
			Lng:    p.Longitude,
			Color:  color,
			Radius: MarkerRadius,
			Point:  p,
		})
	}
	return markers
}
