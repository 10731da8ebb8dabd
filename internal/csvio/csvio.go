// Package csvio handles CSV import and the two fixed-order exports.
// Exports use strict RFC 4180 quoting, so embedded commas in string
// fields (e.g. land cover labels) survive a round trip.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/uhilab/heatscope/internal/models"
)

// dataPointHeader is the fixed export column order for data points.
var dataPointHeader = []string{
	"Latitude", "Longitude", "Temperature", "Humidity", "UHI Intensity",
	"Health Risk", "NDVI", "Builtup %", "Land Cover", "Green Cover %",
}

// predictionHeader is the fixed export column order for prediction rows.
var predictionHeader = []string{
	"cluster", "latitude", "longitude", "UHI_Intensity_C", "Health_Risk_Index",
}

// ParseRecords reads CSV text with a header row into string-keyed
// records. Rows with a different field count than the header are kept
// and mapped positionally; a structurally broken file (e.g. bad quoting)
// is reported as a single error.
func ParseRecords(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("parse csv: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}

	var records []map[string]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rec := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(row) {
				rec[key] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// ExportDataPoints writes the fixed-order, header-labeled data-point CSV.
func ExportDataPoints(w io.Writer, points []models.UHIDataPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dataPointHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range points {
		row := []string{
			formatFloat(p.Latitude),
			formatFloat(p.Longitude),
			formatFloat(p.Temperature),
			formatFloat(p.Humidity),
			formatFloat(p.UHIIntensity),
			formatFloat(p.HealthRisk),
			formatFloat(p.NDVI),
			formatFloat(p.BuiltupPercent),
			p.LandCover,
			formatFloat(p.GreenCover),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DataPointsFromRecords rebuilds data points from records previously
// produced by ExportDataPoints, completing the round trip.
func DataPointsFromRecords(records []map[string]string) ([]models.UHIDataPoint, error) {
	points := make([]models.UHIDataPoint, 0, len(records))
	for i, rec := range records {
		var p models.UHIDataPoint
		var err error
		fields := []struct {
			key string
			dst *float64
		}{
			{"Latitude", &p.Latitude},
			{"Longitude", &p.Longitude},
			{"Temperature", &p.Temperature},
			{"Humidity", &p.Humidity},
			{"UHI Intensity", &p.UHIIntensity},
			{"Health Risk", &p.HealthRisk},
			{"NDVI", &p.NDVI},
			{"Builtup %", &p.BuiltupPercent},
			{"Green Cover %", &p.GreenCover},
		}
		for _, f := range fields {
			*f.dst, err = strconv.ParseFloat(rec[f.key], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: parse %s %q: %w", i+1, f.key, rec[f.key], err)
			}
		}
		p.LandCover = rec["Land Cover"]
		points = append(points, p)
	}
	return points, nil
}

// ExportPredictions writes the fixed-order prediction-row CSV. Missing
// UHI or health-risk values are emitted as empty fields, never zero.
func ExportPredictions(w io.Writer, rows []models.PredictionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(predictionHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		row := []string{
			r.Cluster,
			formatFloat(r.Lat),
			formatFloat(r.Lng),
			formatFloatPtr(r.UHI),
			formatFloatPtr(r.HealthRisk),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DataPointsFilename is date-stamped: uhi_data_2026-08-28.csv.
func DataPointsFilename(now time.Time) string {
	return fmt.Sprintf("uhi_data_%s.csv", now.Format("2006-01-02"))
}

// PredictionsFilename is epoch-stamped: predictions_1756339200000.csv.
func PredictionsFilename(now time.Time) string {
	return fmt.Sprintf("predictions_%d.csv", now.UnixMilli())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
