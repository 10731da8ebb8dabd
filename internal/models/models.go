package models

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeocodeResult is a single ranked match from the geocoding endpoint.
type GeocodeResult struct {
	DisplayName string    `json:"display_name"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	BoundingBox []float64 `json:"boundingbox"`
	Type        string    `json:"type"`
	Importance  float64   `json:"importance"`
}

// UHIDataPoint is one sampled location returned by the data endpoint.
type UHIDataPoint struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	UHIIntensity   float64 `json:"uhi_intensity"`
	HealthRisk     float64 `json:"health_risk"`
	NDVI           float64 `json:"ndvi"`
	BuiltupPercent float64 `json:"builtup_percent"`
	LandCover      string  `json:"land_cover"`
	GreenCover     float64 `json:"green_cover"`
	Cluster        string  `json:"cluster"`
	Timestamp      string  `json:"timestamp"`
}

// Viewport is the visible map region: center plus zoom level.
type Viewport struct {
	Center LatLng
	Zoom   int
}

// DefaultViewport centers on Maharashtra at state-wide zoom.
var DefaultViewport = Viewport{Center: LatLng{Lat: 19.0, Lng: 76.0}, Zoom: 7}

// BoundingBox is a rectangular lat/lng region used to scope data queries.
type BoundingBox struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

// bboxPad is the fixed half-degree padding applied around the viewport
// center. It does not adapt to zoom level: low zoom under-covers the
// visible map and high zoom over-fetches. Known limitation.
const bboxPad = 0.5

// BoundingBox derives the data-query region from the viewport center.
func (v Viewport) BoundingBox() BoundingBox {
	return BoundingBox{
		MinLat: v.Center.Lat - bboxPad,
		MinLng: v.Center.Lng - bboxPad,
		MaxLat: v.Center.Lat + bboxPad,
		MaxLng: v.Center.Lng + bboxPad,
	}
}

// LayerToggles holds the independent visual layer flags.
type LayerToggles struct {
	Temperature bool
	Humidity    bool
	UHI         bool
	Vegetation  bool
}

// DefaultLayerToggles enables every layer, matching the initial UI state.
var DefaultLayerToggles = LayerToggles{Temperature: true, Humidity: true, UHI: true, Vegetation: true}

// AreaMarker marks a selected search result on the map. Radius is in km.
type AreaMarker struct {
	Lat    float64
	Lng    float64
	Radius float64
}

// Prediction is one day of a time-series forecast. Index 0 of a
// prediction sequence is day 1 of the horizon.
type Prediction struct {
	Date                string   `json:"date"`
	UHIIntensity        *float64 `json:"uhi_intensity"`
	Temperature         float64  `json:"temperature"`
	HeatwaveProbability float64  `json:"heatwave_probability"`
	HealthRiskIndex     *float64 `json:"health_risk_index"`
}

// PredictionRow is the canonical tabular result all prediction modes
// converge to. UHI and HealthRisk are nil when the backend omitted them;
// display code renders nil as "N/A", never as zero.
type PredictionRow struct {
	Cluster    string
	Lat        float64
	Lng        float64
	UHI        *float64
	HealthRisk *float64
}

// MitigationStrategy is one recommended UHI countermeasure.
type MitigationStrategy struct {
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Priority    string   `json:"priority"` // "high", "medium" or "low"
	Explanation string   `json:"explanation"`
	Impact      string   `json:"impact,omitempty"`
	Cost        string   `json:"cost,omitempty"`
	Feasibility string   `json:"feasibility,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Cluster is a named regional grouping used as a prediction-model
// context key.
type Cluster struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
}

// DefaultClusters is the static Maharashtra catalog, used when the
// backend config endpoint is unavailable.
var DefaultClusters = []Cluster{
	{ID: "cluster_aurangabad_jalna", Name: "Aurangabad - Jalna", Center: LatLng{19.8762, 75.3433}, Zoom: 10},
	{ID: "cluster_kolhapur_ichalkaranji", Name: "Kolhapur - Ichalkaranji", Center: LatLng{16.7050, 74.2433}, Zoom: 10},
	{ID: "cluster_mmr", Name: "MMR (Mumbai Metro Region)", Center: LatLng{19.0760, 72.8777}, Zoom: 10},
	{ID: "cluster_nagpur_wardha", Name: "Nagpur - Wardha", Center: LatLng{21.1458, 79.0882}, Zoom: 10},
	{ID: "cluster_nashik_ahmednagar", Name: "Nashik - Ahmednagar", Center: LatLng{19.9975, 73.7898}, Zoom: 10},
	{ID: "cluster_pune_metropolitan", Name: "Pune (Metropolitan)", Center: LatLng{18.5204, 73.8567}, Zoom: 10},
	{ID: "cluster_solapur_sangli", Name: "Solapur - Sangli", Center: LatLng{17.6599, 75.9064}, Zoom: 10},
}
