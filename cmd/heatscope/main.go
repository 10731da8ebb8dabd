// heatscope is a CLI for the UHI analytics backend: viewport data loads,
// predictions, mitigation strategies, reports and CSV export, with a
// local SQLite cache.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/cenkalti/backoff/v4"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/uhilab/heatscope/internal/client"
	"github.com/uhilab/heatscope/internal/csvio"
	"github.com/uhilab/heatscope/internal/models"
	"github.com/uhilab/heatscope/internal/predict"
	"github.com/uhilab/heatscope/internal/search"
	"github.com/uhilab/heatscope/internal/store"
	"github.com/uhilab/heatscope/internal/strategies"
	"github.com/uhilab/heatscope/internal/viewport"
)

type Globals struct {
	APIBase string        `env:"HEATSCOPE_API_BASE" default:"http://localhost:8000" help:"Backend API base URL."`
	Token   string        `env:"HEATSCOPE_TOKEN" help:"Bearer token for authenticated endpoints."`
	Timeout time.Duration `default:"30s" help:"Per-request HTTP timeout."`
	DB      string        `default:"data/heatscope.db" help:"Path to the local SQLite cache."`
}

type CLI struct {
	Globals

	Search     SearchCmd     `cmd:"" help:"Geocode a place and show the selected viewport."`
	Data       DataCmd       `cmd:"" help:"Load UHI data points for a viewport."`
	Predict    PredictCmd    `cmd:"" help:"Run predictions."`
	Strategies StrategiesCmd `cmd:"" help:"Fetch mitigation strategies for an area."`
	Report     ReportCmd     `cmd:"" help:"Generate a PDF report."`
	Simulate   SimulateCmd   `cmd:"" help:"Run the local what-if scenario simulator."`
	Export     ExportCmd     `cmd:"" help:"Export cached data to CSV."`
	Health     HealthCmd     `cmd:"" help:"Check backend health."`
	Config     ConfigCmd     `cmd:"" help:"Show backend configuration and clusters."`
	Login      LoginCmd      `cmd:"" help:"Log in and print a bearer token."`
}

// app carries the shared wiring each command needs.
type app struct {
	client  *client.Client
	globals *Globals
}

// openStore opens the SQLite cache and runs migrations. Callers close
// the returned DB.
func (a *app) openStore() (*store.Store, *sql.DB, error) {
	if dir := filepath.Dir(a.globals.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", a.globals.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, db, nil
}

type SearchCmd struct {
	Query []string `arg:"" help:"Free-text place query."`
}

// viewportRecorder captures the viewport the search controller selects.
type viewportRecorder struct {
	v  models.Viewport
	ok bool
}

func (r *viewportRecorder) SetViewport(v models.Viewport) {
	r.v = v
	r.ok = true
}

func (c *SearchCmd) Run(a *app) error {
	query := strings.Join(c.Query, " ")

	rec := &viewportRecorder{}
	ctl := search.New(a.client, rec)
	if err := ctl.Search(context.Background(), query); err != nil {
		return err
	}

	results := ctl.Results()
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. %s (%.4f, %.4f)\n", i+1, r.DisplayName, r.Latitude, r.Longitude)
	}
	if rec.ok {
		fmt.Printf("viewport: center (%.4f, %.4f) zoom %d\n", rec.v.Center.Lat, rec.v.Center.Lng, rec.v.Zoom)
	}
	if m := ctl.Marker(); m != nil {
		fmt.Printf("marker: (%.4f, %.4f) radius %.0f km\n", m.Lat, m.Lng, m.Radius)
	}
	return nil
}

type DataCmd struct {
	Lat  float64 `default:"19.0" help:"Viewport center latitude."`
	Lng  float64 `default:"76.0" help:"Viewport center longitude."`
	Zoom int     `default:"7" help:"Viewport zoom level."`
}

func (c *DataCmd) Run(a *app) error {
	loader := viewport.New(a.client)
	loader.SetLayerToggles(models.DefaultLayerToggles)

	vp := models.Viewport{Center: models.LatLng{Lat: c.Lat, Lng: c.Lng}, Zoom: c.Zoom}
	loader.SetViewport(vp)
	// CLI runs are one-shot: skip the debounce and fetch now.
	if err := loader.LoadNow(context.Background()); err != nil {
		return err
	}

	snap := loader.Snapshot()
	fmt.Printf("loaded %d data points (%s)\n", len(snap.Points), snap.State)

	st, db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	bbox := vp.BoundingBox()
	key := fmt.Sprintf("%g,%g,%g,%g", bbox.MinLat, bbox.MinLng, bbox.MaxLat, bbox.MaxLng)
	if err := st.InsertDataPoints(key, snap.Points); err != nil {
		return fmt.Errorf("cache data points: %w", err)
	}

	markers := loader.Markers()
	fmt.Printf("%d markers after layer filtering\n", len(markers))
	return nil
}

type PredictCmd struct {
	Single SingleCmd `cmd:"" help:"Single-point prediction for a cluster, location and month."`
	Series SeriesCmd `cmd:"" help:"Multi-day time-series prediction."`
	Batch  BatchCmd  `cmd:"" help:"Upload a CSV of locations for batch prediction."`
}

type SingleCmd struct {
	Cluster string `help:"Cluster identifier."`
	Lat     string `required:"" help:"Latitude."`
	Lng     string `required:"" help:"Longitude."`
	Month   string `required:"" help:"Month number, 1-12."`
}

func (c *SingleCmd) Run(a *app) error {
	orc := predict.New(a.client)
	row, err := orc.Single(context.Background(), predict.SingleInput{
		Cluster: c.Cluster,
		Lat:     c.Lat,
		Lng:     c.Lng,
		Month:   c.Month,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s (%.4f, %.4f): UHI %s °C, health risk %s\n",
		row.Cluster, row.Lat, row.Lng,
		predict.FormatMetric(row.UHI), predict.FormatMetric(row.HealthRisk))

	return persistRows(a, "single", orc.Rows())
}

type SeriesCmd struct {
	Cluster string `help:"Cluster identifier."`
	Lat     string `required:"" help:"Latitude."`
	Lng     string `required:"" help:"Longitude."`
	Horizon int    `default:"7" help:"Forecast horizon in days: 1, 7 or 30."`
}

func (c *SeriesCmd) Run(a *app) error {
	orc := predict.New(a.client)
	preds, err := orc.Series(context.Background(), predict.SeriesInput{
		Cluster: c.Cluster,
		Lat:     c.Lat,
		Lng:     c.Lng,
		Horizon: c.Horizon,
	})
	if err != nil {
		return err
	}

	for _, p := range preds {
		fmt.Printf("%s: UHI %s °C, temp %.1f °C, heatwave %.0f%%, health risk %s\n",
			p.Date, predict.FormatMetric(p.UHIIntensity), p.Temperature,
			p.HeatwaveProbability*100, predict.FormatMetric(p.HealthRiskIndex))
	}
	return nil
}

type BatchCmd struct {
	File string `arg:"" type:"existingfile" help:"CSV file of locations to predict."`
}

func (c *BatchCmd) Run(a *app) error {
	content, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.File, err)
	}

	orc := predict.New(a.client)
	rows, err := orc.Batch(context.Background(), filepath.Base(c.File), content)
	if err != nil {
		return err
	}

	fmt.Printf("batch returned %d rows\n", len(rows))
	for _, r := range rows {
		fmt.Printf("%s (%.4f, %.4f): UHI %s °C, health risk %s\n",
			r.Cluster, r.Lat, r.Lng,
			predict.FormatMetric(r.UHI), predict.FormatMetric(r.HealthRisk))
	}
	return persistRows(a, "batch", rows)
}

func persistRows(a *app, mode string, rows []models.PredictionRow) error {
	if len(rows) == 0 {
		return nil
	}
	st, db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := st.InsertPredictionRows(mode, rows); err != nil {
		return fmt.Errorf("cache prediction rows: %w", err)
	}
	return nil
}

type StrategiesCmd struct {
	Lat float64 `default:"19.0" help:"Area center latitude."`
	Lng float64 `default:"76.0" help:"Area center longitude."`
	AI  bool    `help:"Use the AI-generated strategy endpoint."`
}

func (c *StrategiesCmd) Run(a *app) error {
	loader := strategies.New(a.client)
	req := client.StrategyRequest{
		Area: client.Area{Center: &models.LatLng{Lat: c.Lat, Lng: c.Lng}},
	}

	if _, err := loader.Generate(context.Background(), req, c.AI); err != nil {
		log.Printf("strategies: fetch failed, showing built-in set: %v", err)
	}

	for _, s := range loader.Strategies() {
		fmt.Printf("[%s] %s (%s)\n", s.Priority, s.Title, s.Category)
		fmt.Printf("    %s\n", s.Explanation)
		if s.Impact != "" {
			fmt.Printf("    %s\n", s.Impact)
		}
	}
	if !loader.Fetched() {
		fmt.Println("(built-in fallback strategies)")
	}
	return nil
}

type ReportCmd struct {
	Title string  `default:"UHI Analysis Report" help:"Report title."`
	City  string  `default:"Maharashtra" help:"City or region name."`
	Lat   float64 `default:"19.0" help:"Area center latitude."`
	Lng   float64 `default:"76.0" help:"Area center longitude."`
	Out   string  `help:"Output PDF path. Defaults to uhi_strategies_report_<date>.pdf."`
}

// reportDataSummary builds the report's data summary from the cached
// points, falling back to "N/A" fields when nothing has been loaded.
func reportDataSummary(a *app) map[string]any {
	na := map[string]any{
		"avg_uhi_intensity": "N/A",
		"avg_temperature":   "N/A",
		"data_points":       "N/A",
	}

	st, db, err := a.openStore()
	if err != nil {
		return na
	}
	defer db.Close()

	points, err := st.LatestDataPoints()
	if err != nil || len(points) == 0 {
		return na
	}

	var uhi, temp float64
	for _, p := range points {
		uhi += p.UHIIntensity
		temp += p.Temperature
	}
	n := float64(len(points))
	return map[string]any{
		"avg_uhi_intensity": uhi / n,
		"avg_temperature":   temp / n,
		"data_points":       len(points),
	}
}

func (c *ReportCmd) Run(a *app) error {
	result, err := a.client.GenerateReport(context.Background(), client.ReportRequest{
		Title:       c.Title,
		City:        c.City,
		Area:        client.Area{Center: &models.LatLng{Lat: c.Lat, Lng: c.Lng}},
		DataSummary: reportDataSummary(a),
	})
	if err != nil {
		return err
	}

	if result.Fallback != nil {
		fmt.Printf("server-side PDF unavailable: %s\n", result.Fallback.Reason)
		fmt.Printf("fallback: %s\n", result.Fallback.Fallback)
		return nil
	}

	out := c.Out
	if out == "" {
		out = fmt.Sprintf("uhi_strategies_report_%s.pdf", time.Now().Format("2006-01-02"))
	}
	if err := os.WriteFile(out, result.PDF, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, len(result.PDF))
	return nil
}

type SimulateCmd struct {
	NDVI        float64 `default:"0.3" help:"Vegetation index, 0-1."`
	Builtup     float64 `default:"60" help:"Built-up surface percentage, 0-100."`
	Humidity    float64 `default:"55" help:"Relative humidity percentage."`
	Temperature float64 `default:"34" help:"Air temperature in °C."`
}

func (c *SimulateCmd) Run(a *app) error {
	result := predict.Simulate(predict.ScenarioParams{
		NDVI:           c.NDVI,
		BuiltupPercent: c.Builtup,
		Humidity:       c.Humidity,
		Temperature:    c.Temperature,
	})

	fmt.Printf("UHI intensity:  %.1f °C -> %.1f °C\n", result.UHIBefore, result.UHIAfter)
	fmt.Printf("health risk:    %.1f -> %.1f\n", result.HealthRiskBefore, result.HealthRiskAfter)
	fmt.Printf("improvement:    %.1f%%\n", result.ImprovementPct)
	return nil
}

type ExportCmd struct {
	Data        ExportDataCmd        `cmd:"" help:"Export the last cached data points."`
	Predictions ExportPredictionsCmd `cmd:"" help:"Export the last cached prediction rows."`
}

type ExportDataCmd struct {
	Dir string `default:"." help:"Output directory."`
}

func (c *ExportDataCmd) Run(a *app) error {
	st, db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	points, err := st.LatestDataPoints()
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("no cached data points; run 'heatscope data' first")
	}

	path := filepath.Join(c.Dir, csvio.DataPointsFilename(time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := csvio.ExportDataPoints(f, points); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d rows)\n", path, len(points))
	return nil
}

type ExportPredictionsCmd struct {
	Dir string `default:"." help:"Output directory."`
}

func (c *ExportPredictionsCmd) Run(a *app) error {
	st, db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := st.LatestPredictionRows()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no cached prediction rows; run 'heatscope predict' first")
	}

	path := filepath.Join(c.Dir, csvio.PredictionsFilename(time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := csvio.ExportPredictions(f, rows); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d rows)\n", path, len(rows))
	return nil
}

type HealthCmd struct {
	Wait time.Duration `default:"0s" help:"Keep retrying with backoff until healthy or this long has passed."`
}

func (c *HealthCmd) Run(a *app) error {
	check := func() (*client.HealthResponse, error) {
		return a.client.HealthCheck(context.Background())
	}

	var resp *client.HealthResponse
	var err error
	if c.Wait > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = c.Wait
		err = backoff.Retry(func() error {
			resp, err = check()
			return err
		}, bo)
	} else {
		resp, err = check()
	}
	if err != nil {
		return err
	}

	fmt.Printf("status: %s\n", resp.Status)
	fmt.Printf("models loaded: %v\n", resp.ModelsLoaded)
	fmt.Printf("clusters: %d\n", len(resp.Clusters))
	return nil
}

type ConfigCmd struct{}

func (c *ConfigCmd) Run(a *app) error {
	cfg, err := a.client.GetConfig(context.Background())
	if err != nil {
		// Offline fallback: show the static cluster catalog.
		log.Printf("config: fetch failed, showing built-in clusters: %v", err)
		for _, cl := range models.DefaultClusters {
			fmt.Printf("%s: %s (%.4f, %.4f)\n", cl.ID, cl.Name, cl.Center.Lat, cl.Center.Lng)
		}
		return nil
	}

	fmt.Printf("default city: %s (%.4f, %.4f) zoom %d\n", cfg.DefaultCity, cfg.DefaultLat, cfg.DefaultLon, cfg.DefaultZoom)
	fmt.Printf("server PDF: %v\n", cfg.ServerPDFEnabled)
	for _, cl := range cfg.Clusters {
		fmt.Printf("%s: %s (%.4f, %.4f)\n", cl.ID, cl.Name, cl.Center.Lat, cl.Center.Lng)
	}
	return nil
}

type LoginCmd struct {
	Email    string `required:"" help:"Account email."`
	Password string `required:"" help:"Account password."`
}

func (c *LoginCmd) Run(a *app) error {
	resp, err := a.client.Login(context.Background(), c.Email, c.Password)
	if err != nil {
		return err
	}
	fmt.Printf("token: %s\n", resp.Token)
	fmt.Printf("expires in: %s\n", (time.Duration(resp.ExpiresIn) * time.Second))
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("heatscope"),
		kong.Description("Urban heat island analytics client."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)

	apiClient := client.New(cli.APIBase, cli.Timeout)
	if cli.Token != "" {
		apiClient.SetToken(cli.Token)
	}

	err := kctx.Run(&app{client: apiClient, globals: &cli.Globals})
	kctx.FatalIfErrorf(err)
}
