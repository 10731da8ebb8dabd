package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/uhilab/heatscope/internal/models"
)

func boundingBox(minLat, minLng, maxLat, maxLng float64) models.BoundingBox {
	return models.BoundingBox{MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng}
}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return New(srv.URL, 5*time.Second), srv
}

func TestGeocode(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/geocode" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Pune" {
			t.Errorf("q = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":[{"display_name":"Pune, Maharashtra","latitude":18.5204,"longitude":73.8567}],"query":"Pune"}`)
	})
	defer srv.Close()

	resp, err := c.Geocode(context.Background(), "Pune")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].DisplayName != "Pune, Maharashtra" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestGetDataBBoxParam(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("bbox"); got != "18.5,73.3,19.5,74.3" {
			t.Errorf("bbox = %q", got)
		}
		io.WriteString(w, `{"data":[{"latitude":18.6,"longitude":73.5,"uhi_intensity":6.2}],"count":1}`)
	})
	defer srv.Close()

	bbox := boundingBox(18.5, 73.3, 19.5, 74.3)
	resp, err := c.GetData(context.Background(), DataParams{BBox: &bbox})
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if resp.Count != 1 || len(resp.Data) != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Data[0].UHIIntensity != 6.2 {
		t.Errorf("uhi = %v", resp.Data[0].UHIIntensity)
	}
}

func TestRemoteErrorFromStatus(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail":"month must be between 1 and 12"}`)
	})
	defer srv.Close()

	_, err := c.PredictSingle(context.Background(), SingleRequest{Cluster: "x", Month: 13})
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want RemoteError", err)
	}
	if re.Status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", re.Status)
	}
	if re.Message != "month must be between 1 and 12" {
		t.Errorf("message = %q", re.Message)
	}
	if re.Parse {
		t.Error("status error should not be flagged as parse failure")
	}
}

func TestRemoteErrorFromMalformedBody(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{not json`)
	})
	defer srv.Close()

	_, err := c.HealthCheck(context.Background())
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want RemoteError", err)
	}
	if !re.Parse {
		t.Error("decode failure should be flagged as parse failure")
	}
	if re.Status != http.StatusOK {
		t.Errorf("status = %d, want 200", re.Status)
	}
}

func TestPredictBatchEnvelopeShape(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "data.csv" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		io.WriteString(w, `{"predictions":[{"cluster":"cluster_mmr","uhi":4.5}]}`)
	})
	defer srv.Close()

	rows, err := c.PredictBatch(context.Background(), "data.csv", strings.NewReader("latitude,longitude\n19.0,72.8\n"))
	if err != nil {
		t.Fatalf("PredictBatch: %v", err)
	}
	if len(rows) != 1 || rows[0]["cluster"] != "cluster_mmr" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestPredictBatchBareArrayShape(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"cluster":"cluster_mmr"},{"cluster":"cluster_pune_metropolitan"}]`)
	})
	defer srv.Close()

	rows, err := c.PredictBatch(context.Background(), "data.csv", strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("PredictBatch: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestGenerateReportFallbackOn501(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
		io.WriteString(w, `{"error":"pdf generation disabled","reason":"missing system dependency","fallback":"use client-side export"}`)
	})
	defer srv.Close()

	result, err := c.GenerateReport(context.Background(), ReportRequest{Title: "t"})
	if err != nil {
		t.Fatalf("501 must not be an error, got %v", err)
	}
	if result.Fallback == nil {
		t.Fatal("fallback not set")
	}
	if result.Fallback.Fallback != "use client-side export" {
		t.Errorf("fallback = %+v", result.Fallback)
	}
	if result.PDF != nil {
		t.Error("PDF should be nil on fallback")
	}
}

func TestGenerateReportPDF(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake")
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdf)
	})
	defer srv.Close()

	result, err := c.GenerateReport(context.Background(), ReportRequest{Title: "t"})
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if string(result.PDF) != string(pdf) {
		t.Errorf("pdf = %q", result.PDF)
	}
	if result.Fallback != nil {
		t.Errorf("unexpected fallback: %+v", result.Fallback)
	}
}

func TestBearerTokenAttached(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("Authorization = %q", got)
		}
		io.WriteString(w, `{"status":"healthy"}`)
	})
	defer srv.Close()

	c.SetToken("tok123")
	if _, err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
