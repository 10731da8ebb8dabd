// Package client wraps the remote UHI analytics API. Each method maps to
// one backend capability and does serialization plus status-to-error
// mapping only; retry policy belongs to callers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/uhilab/heatscope/internal/httputil"
	"github.com/uhilab/heatscope/internal/metrics"
	"github.com/uhilab/heatscope/internal/models"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httputil.NewClient(timeout),
	}
}

// SetToken attaches a bearer token from a previous Login to all
// subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

type GeocodeResponse struct {
	Results []models.GeocodeResult `json:"results"`
	Query   string                 `json:"query"`
}

func (c *Client) Geocode(ctx context.Context, query string) (*GeocodeResponse, error) {
	params := url.Values{"q": {query}}
	var out GeocodeResponse
	if err := c.getJSON(ctx, "geocode", "/api/geocode?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DataParams scopes a data query. BBox is the usual form; the point
// fields are the optional radius variant.
type DataParams struct {
	BBox      *models.BoundingBox
	Lat       *float64
	Lng       *float64
	Radius    *float64
	TimeRange string
}

type DataResponse struct {
	Data  []models.UHIDataPoint `json:"data"`
	BBox  []float64             `json:"bbox"`
	Count int                   `json:"count"`
}

func (c *Client) GetData(ctx context.Context, p DataParams) (*DataResponse, error) {
	params := url.Values{}
	if p.BBox != nil {
		b := p.BBox
		params.Set("bbox", fmt.Sprintf("%g,%g,%g,%g", b.MinLat, b.MinLng, b.MaxLat, b.MaxLng))
	}
	if p.Lat != nil {
		params.Set("lat", strconv.FormatFloat(*p.Lat, 'f', -1, 64))
	}
	if p.Lng != nil {
		params.Set("lng", strconv.FormatFloat(*p.Lng, 'f', -1, 64))
	}
	if p.Radius != nil {
		params.Set("radius", strconv.FormatFloat(*p.Radius, 'f', -1, 64))
	}
	if p.TimeRange != "" {
		params.Set("time_range", p.TimeRange)
	}

	var out DataResponse
	if err := c.getJSON(ctx, "data", "/api/data?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Area identifies the region a prediction or strategy request covers:
// either a bounding box or a center point.
type Area struct {
	BBox   []float64      `json:"bbox,omitempty"`
	Center *models.LatLng `json:"center,omitempty"`
}

type TimeSeriesRequest struct {
	Area    Area   `json:"area"`
	Horizon int    `json:"horizon"`
	Cluster string `json:"cluster,omitempty"`
}

type TimeSeriesResponse struct {
	Predictions []models.Prediction `json:"predictions"`
	HorizonDays int                 `json:"horizon_days"`
	Cluster     string              `json:"cluster"`
	Area        models.LatLng       `json:"area"`
}

func (c *Client) PredictTimeSeries(ctx context.Context, req TimeSeriesRequest) (*TimeSeriesResponse, error) {
	var out TimeSeriesResponse
	if err := c.postJSON(ctx, "predict", "/api/predict", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type SingleRequest struct {
	Cluster   string  `json:"cluster"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Month     int     `json:"month"`
}

type SinglePredictions struct {
	UHIIntensityC   *float64 `json:"UHI_Intensity_C"`
	HealthRiskIndex *float64 `json:"Health_Risk_Index"`
}

type SingleResponse struct {
	Cluster     string            `json:"cluster"`
	Predictions SinglePredictions `json:"predictions"`
}

func (c *Client) PredictSingle(ctx context.Context, req SingleRequest) (*SingleResponse, error) {
	var out SingleResponse
	if err := c.postJSON(ctx, "predict_single", "/predict/single", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictBatch uploads a raw CSV as multipart form data. The backend
// returns either {"predictions": [...]} or a bare array; both shapes are
// accepted and returned as loosely typed rows for normalization upstream.
func (c *Client) PredictBatch(ctx context.Context, filename string, file io.Reader) ([]map[string]any, error) {
	const op = "predict_batch"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict/batch", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, status, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Predictions []map[string]any `json:"predictions"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Predictions != nil {
		return envelope.Predictions, nil
	}

	var bare []map[string]any
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, &RemoteError{Op: op, Status: status, Message: err.Error(), Parse: true}
	}
	return bare, nil
}

type StrategyRequest struct {
	Area           Area     `json:"area"`
	UHIIntensity   *float64 `json:"uhi_intensity,omitempty"`
	HealthRisk     *float64 `json:"health_risk,omitempty"`
	NDVI           *float64 `json:"ndvi,omitempty"`
	BuiltupPercent *float64 `json:"builtup_percent,omitempty"`
}

type StrategyResponse struct {
	Strategies      []models.MitigationStrategy `json:"strategies"`
	Area            models.LatLng               `json:"area"`
	Characteristics struct {
		UHIIntensity   *float64 `json:"uhi_intensity,omitempty"`
		NDVI           *float64 `json:"ndvi,omitempty"`
		BuiltupPercent *float64 `json:"builtup_percent,omitempty"`
	} `json:"characteristics"`
}

func (c *Client) GetMitigationStrategies(ctx context.Context, req StrategyRequest) (*StrategyResponse, error) {
	var out StrategyResponse
	if err := c.postJSON(ctx, "mitigation_strategies", "/api/mitigation-strategies", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAIStrategies(ctx context.Context, req StrategyRequest) (*StrategyResponse, error) {
	var out StrategyResponse
	if err := c.postJSON(ctx, "ai_strategies", "/api/ai-strategies", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type ReportRequest struct {
	Title       string                      `json:"title"`
	City        string                      `json:"city"`
	Area        Area                        `json:"area"`
	DataSummary map[string]any              `json:"data_summary"`
	Predictions []models.Prediction         `json:"predictions"`
	Strategies  []models.MitigationStrategy `json:"strategies"`
	ChartsData  map[string]any              `json:"charts_data,omitempty"`
	MapImage    string                      `json:"map_image,omitempty"`
}

// ReportFallback is the structured 501 response sent when the server has
// PDF generation disabled. It is an expected outcome, not a failure.
type ReportFallback struct {
	Error    string `json:"error"`
	Reason   string `json:"reason"`
	Fallback string `json:"fallback"`
}

// ReportResult holds exactly one of PDF or Fallback. Callers must branch
// on Fallback before treating the result as binary report data.
type ReportResult struct {
	PDF      []byte
	Fallback *ReportFallback
}

func (c *Client) GenerateReport(ctx context.Context, reportReq ReportRequest) (*ReportResult, error) {
	const op = "report"

	payload, err := json.Marshal(reportReq)
	if err != nil {
		return nil, fmt.Errorf("marshal report request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/report", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APILatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APICallsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.APICallsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode == http.StatusNotImplemented {
		var fb ReportFallback
		if err := json.Unmarshal(body, &fb); err != nil {
			return nil, &RemoteError{Op: op, Status: resp.StatusCode, Message: err.Error(), Parse: true}
		}
		return &ReportResult{Fallback: &fb}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Op: op, Status: resp.StatusCode, Message: errorMessage(body)}
	}

	return &ReportResult{PDF: body}, nil
}

type HealthResponse struct {
	Status       string   `json:"status"`
	ModelsLoaded bool     `json:"models_loaded"`
	Clusters     []string `json:"clusters"`
	Timestamp    string   `json:"timestamp"`
}

func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.getJSON(ctx, "health", "/api/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type ConfigResponse struct {
	DefaultCity      string           `json:"default_city"`
	DefaultLat       float64          `json:"default_lat"`
	DefaultLon       float64          `json:"default_lon"`
	DefaultZoom      int              `json:"default_zoom"`
	ServerPDFEnabled bool             `json:"server_pdf_enabled"`
	Clusters         []models.Cluster `json:"clusters"`
}

func (c *Client) GetConfig(ctx context.Context) (*ConfigResponse, error) {
	var out ConfigResponse
	if err := c.getJSON(ctx, "config", "/api/config", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type LoginResponse struct {
	Token string `json:"token"`
	User  struct {
		Email string `json:"email"`
	} `json:"user"`
	ExpiresIn int `json:"expires_in"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	req := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}

	var out LoginResponse
	if err := c.postJSON(ctx, "login", "/api/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doJSON(op, req, out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(op, req, out)
}

func (c *Client) doJSON(op string, req *http.Request, out any) error {
	body, status, err := c.do(op, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &RemoteError{Op: op, Status: status, Message: err.Error(), Parse: true}
	}
	return nil
}

// do executes the request and returns the body of a 2xx response. Any
// other status becomes a RemoteError. No retries happen here.
func (c *Client) do(op string, req *http.Request) ([]byte, int, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APILatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APICallsTotal.WithLabelValues(op, "error").Inc()
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.APICallsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &RemoteError{Op: op, Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, resp.StatusCode, nil
}

// errorMessage pulls the backend's "detail" field out of an error body
// when present, otherwise returns the raw body truncated.
func errorMessage(body []byte) string {
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
