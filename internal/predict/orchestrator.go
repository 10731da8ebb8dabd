// Package predict coordinates the three prediction workflows: batch CSV
// upload, single-point predict and multi-day time-series predict. Each
// mode validates its own input, carries its own in-progress flag and
// never clobbers previously displayed results on failure.
package predict

import (
	"bytes"
	"context"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/uhilab/heatscope/internal/client"
	"github.com/uhilab/heatscope/internal/csvio"
	"github.com/uhilab/heatscope/internal/models"
)

// validHorizons is the fixed set of time-series horizons, in days.
var validHorizons = map[int]bool{1: true, 7: true, 30: true}

// API is the slice of the backend client the orchestrator depends on.
type API interface {
	PredictSingle(ctx context.Context, req client.SingleRequest) (*client.SingleResponse, error)
	PredictTimeSeries(ctx context.Context, req client.TimeSeriesRequest) (*client.TimeSeriesResponse, error)
	PredictBatch(ctx context.Context, filename string, file io.Reader) ([]map[string]any, error)
}

type Orchestrator struct {
	api API

	mu         sync.Mutex
	singleBusy bool
	seriesBusy bool
	batchBusy  bool
	rows       []models.PredictionRow
	series     []models.Prediction
	uploaded   []map[string]string
}

func New(api API) *Orchestrator {
	return &Orchestrator{api: api}
}

// SingleInput carries the single-predict form fields. Values arrive as
// strings so validation owns the numeric conversion.
type SingleInput struct {
	Cluster string
	Lat     string
	Lng     string
	Month   string
}

// Single runs the single-point prediction. Validation failures return a
// ValidationError before any network call. The result replaces the rows
// table with exactly one normalized row.
func (o *Orchestrator) Single(ctx context.Context, in SingleInput) (models.PredictionRow, error) {
	lat, err := requireFloat("latitude", in.Lat)
	if err != nil {
		return models.PredictionRow{}, err
	}
	lng, err := requireFloat("longitude", in.Lng)
	if err != nil {
		return models.PredictionRow{}, err
	}
	month, err := requireInt("month", in.Month)
	if err != nil {
		return models.PredictionRow{}, err
	}
	if month < 1 || month > 12 {
		return models.PredictionRow{}, invalid("month", "must be between 1 and 12")
	}

	o.setSingleBusy(true)
	defer o.setSingleBusy(false)

	resp, err := o.api.PredictSingle(ctx, client.SingleRequest{
		Cluster:   in.Cluster,
		Latitude:  lat,
		Longitude: lng,
		Month:     month,
	})
	if err != nil {
		return models.PredictionRow{}, err
	}

	cluster := resp.Cluster
	if cluster == "" {
		cluster = in.Cluster
	}
	row := models.PredictionRow{
		Cluster:    cluster,
		Lat:        lat,
		Lng:        lng,
		UHI:        resp.Predictions.UHIIntensityC,
		HealthRisk: resp.Predictions.HealthRiskIndex,
	}

	o.mu.Lock()
	o.rows = []models.PredictionRow{row}
	o.mu.Unlock()
	return row, nil
}

// SeriesInput carries the time-series form fields.
type SeriesInput struct {
	Cluster string
	Lat     string
	Lng     string
	Horizon int
}

// Series runs the multi-day prediction. The response's predictions array
// is kept in chronological order as returned: index 0 is day 1. It feeds
// charts and stays separate from the rows table.
func (o *Orchestrator) Series(ctx context.Context, in SeriesInput) ([]models.Prediction, error) {
	lat, err := requireFloat("latitude", in.Lat)
	if err != nil {
		return nil, err
	}
	lng, err := requireFloat("longitude", in.Lng)
	if err != nil {
		return nil, err
	}
	if !validHorizons[in.Horizon] {
		return nil, invalid("horizon", "must be 1, 7 or 30 days")
	}

	o.setSeriesBusy(true)
	defer o.setSeriesBusy(false)

	resp, err := o.api.PredictTimeSeries(ctx, client.TimeSeriesRequest{
		Area:    client.Area{Center: &models.LatLng{Lat: lat, Lng: lng}},
		Horizon: in.Horizon,
		Cluster: in.Cluster,
	})
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.series = resp.Predictions
	o.mu.Unlock()
	return resp.Predictions, nil
}

// Batch validates the filename, parses the CSV client-side (the parsed
// rows are kept for reuse), uploads the raw file and normalizes the
// response into prediction rows.
func (o *Orchestrator) Batch(ctx context.Context, filename string, content []byte) ([]models.PredictionRow, error) {
	if !strings.HasSuffix(filename, ".csv") {
		return nil, invalid("file", "must be a .csv file")
	}

	parsed, err := csvio.ParseRecords(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	o.setBatchBusy(true)
	defer o.setBatchBusy(false)

	o.mu.Lock()
	o.uploaded = parsed
	o.mu.Unlock()

	preds, err := o.api.PredictBatch(ctx, filename, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	rows := make([]models.PredictionRow, 0, len(preds))
	for _, m := range preds {
		rows = append(rows, rowFromMap(m))
	}
	log.Printf("predict: batch returned %d rows", len(rows))

	o.mu.Lock()
	o.rows = rows
	o.mu.Unlock()
	return rows, nil
}

// Rows returns the current results table.
func (o *Orchestrator) Rows() []models.PredictionRow {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.PredictionRow, len(o.rows))
	copy(out, o.rows)
	return out
}

// SeriesResults returns the current time-series predictions.
func (o *Orchestrator) SeriesResults() []models.Prediction {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.Prediction, len(o.series))
	copy(out, o.series)
	return out
}

// Uploaded returns the client-side parse of the last batch upload.
func (o *Orchestrator) Uploaded() []map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]map[string]string, len(o.uploaded))
	for i, rec := range o.uploaded {
		m := make(map[string]string, len(rec))
		for k, v := range rec {
			m[k] = v
		}
		out[i] = m
	}
	return out
}

func (o *Orchestrator) SingleBusy() bool { o.mu.Lock(); defer o.mu.Unlock(); return o.singleBusy }
func (o *Orchestrator) SeriesBusy() bool { o.mu.Lock(); defer o.mu.Unlock(); return o.seriesBusy }
func (o *Orchestrator) BatchBusy() bool  { o.mu.Lock(); defer o.mu.Unlock(); return o.batchBusy }

func (o *Orchestrator) setSingleBusy(v bool) { o.mu.Lock(); o.singleBusy = v; o.mu.Unlock() }
func (o *Orchestrator) setSeriesBusy(v bool) { o.mu.Lock(); o.seriesBusy = v; o.mu.Unlock() }
func (o *Orchestrator) setBatchBusy(v bool)  { o.mu.Lock(); o.batchBusy = v; o.mu.Unlock() }

func requireFloat(field, value string) (float64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, invalid(field, "is required")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, invalid(field, "must be a number")
	}
	return f, nil
}

func requireInt(field, value string) (int, error) {
	if strings.TrimSpace(value) == "" {
		return 0, invalid(field, "is required")
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid(field, "must be a number")
	}
	return n, nil
}

// FormatMetric renders a nullable metric for display: "N/A" when the
// backend omitted the value, never zero.
func FormatMetric(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
