// Package store is the local SQLite cache: the last fetched map points
// and a history of prediction results, so exports work offline.
package store

import (
	"database/sql"
	"time"

	"github.com/uhilab/heatscope/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertDataPoints replaces the cached points for a bbox key with a
// fresh fetch. The bbox string is the query key, not re-derived.
func (s *Store) InsertDataPoints(bbox string, points []models.UHIDataPoint) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM uhi_points WHERE bbox = ?`, bbox); err != nil {
		tx.Rollback()
		return err
	}

	now := time.Now().UTC()
	for _, p := range points {
		if _, err := tx.Exec(`
			INSERT INTO uhi_points (bbox, latitude, longitude, temperature, humidity, uhi_intensity, health_risk, ndvi, builtup_percent, land_cover, green_cover, cluster, timestamp, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, bbox, p.Latitude, p.Longitude, p.Temperature, p.Humidity, p.UHIIntensity, p.HealthRisk, p.NDVI, p.BuiltupPercent, p.LandCover, p.GreenCover, p.Cluster, p.Timestamp, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LatestDataPoints returns the points from the most recent fetch, across
// all bbox keys.
func (s *Store) LatestDataPoints() ([]models.UHIDataPoint, error) {
	rows, err := s.db.Query(`
		SELECT latitude, longitude, temperature, humidity, uhi_intensity, health_risk, ndvi, builtup_percent, land_cover, green_cover, cluster, timestamp
		FROM uhi_points
		WHERE fetched_at = (SELECT MAX(fetched_at) FROM uhi_points)
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.UHIDataPoint
	for rows.Next() {
		var p models.UHIDataPoint
		if err := rows.Scan(&p.Latitude, &p.Longitude, &p.Temperature, &p.Humidity, &p.UHIIntensity, &p.HealthRisk, &p.NDVI, &p.BuiltupPercent, &p.LandCover, &p.GreenCover, &p.Cluster, &p.Timestamp); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// InsertPredictionRows appends a batch of results under a mode label
// ("single", "series" or "batch").
func (s *Store) InsertPredictionRows(mode string, rows []models.PredictionRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, r := range rows {
		uhi := nullFloat(r.UHI)
		risk := nullFloat(r.HealthRisk)
		if _, err := tx.Exec(`
			INSERT INTO prediction_rows (mode, cluster, latitude, longitude, uhi, health_risk, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, mode, r.Cluster, r.Lat, r.Lng, uhi, risk, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LatestPredictionRows returns the rows from the most recent insert.
func (s *Store) LatestPredictionRows() ([]models.PredictionRow, error) {
	rows, err := s.db.Query(`
		SELECT cluster, latitude, longitude, uhi, health_risk
		FROM prediction_rows
		WHERE created_at = (SELECT MAX(created_at) FROM prediction_rows)
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PredictionRow
	for rows.Next() {
		var r models.PredictionRow
		var uhi, risk sql.NullFloat64
		if err := rows.Scan(&r.Cluster, &r.Lat, &r.Lng, &uhi, &risk); err != nil {
			return nil, err
		}
		r.UHI = floatPtr(uhi)
		r.HealthRisk = floatPtr(risk)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
