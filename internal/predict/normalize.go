package predict

import (
	"encoding/json"
	"strconv"

	"github.com/uhilab/heatscope/internal/models"
)

// The backend is inconsistent about field names across prediction modes:
// batch rows may carry "uhi" or "UHI_Intensity_C", "lat" or "latitude".
// Normalization lives here, with one documented precedence order per
// field: the canonical lower-case name wins, the model-output name is
// the fallback.

func rowFromMap(m map[string]any) models.PredictionRow {
	return models.PredictionRow{
		Cluster:    stringField(m, "cluster"),
		Lat:        floatField(m, "latitude", "lat"),
		Lng:        floatField(m, "longitude", "lon", "lng"),
		UHI:        floatPtrField(m, "uhi", "UHI_Intensity_C"),
		HealthRisk: floatPtrField(m, "health_risk", "Health_Risk_Index"),
	}
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func floatField(m map[string]any, keys ...string) float64 {
	if p := floatPtrField(m, keys...); p != nil {
		return *p
	}
	return 0
}

func floatPtrField(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			f := n
			return &f
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return &f
			}
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}
