// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package api

import (
	"bytes"
	"context"
	"encoding/binary"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mergus/internal/conditions"
	"github.com/tomtom215/mergus/internal/config"
	"github.com/tomtom215/mergus/internal/exif"
	"github.com/tomtom215/mergus/internal/logbook"
	"github.com/tomtom215/mergus/internal/models"
	"github.com/tomtom215/mergus/internal/sites"
	"github.com/tomtom215/mergus/internal/store"
)

type stubWeather struct {
	result conditions.Result[models.Weather]
}

func (s stubWeather) Fetch(context.Context, float64, float64, string) conditions.Result[models.Weather] {
	return s.result
}

type stubMarine struct {
	result conditions.Result[models.Marine]
}

func (s stubMarine) Fetch(context.Context, float64, float64, string) conditions.Result[models.Marine] {
	return s.result
}

type stubGeocoder struct {
	result conditions.Result[models.ReverseGeocode]
}

func (s stubGeocoder) Fetch(context.Context, float64, float64) conditions.Result[models.ReverseGeocode] {
	return s.result
}

// envelope mirrors models.APIResponse with raw data for per-test decoding.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := *config.LoadDefault()
	cfg.Store = config.StoreConfig{InMemory: true}
	cfg.Security.RateLimitDisable = true

	st, err := store.Open(cfg.Store)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	matcher := sites.NewMatcherWithSites([]models.DiveSite{
		{Name: "Hamdeok Beach Reef", Latitude: 33.5434, Longitude: 126.6694, Country: "South Korea", Region: "Jeju"},
		{Name: "Seongsan Ilchulbong Wall", Latitude: 33.4587, Longitude: 126.9423, Country: "South Korea", Region: "Jeju"},
	})

	weather := stubWeather{conditions.Result[models.Weather]{
		Success: true,
		Data:    &models.Weather{Condition: "Clear", AirTemperature: 26.0},
	}}
	marine := stubMarine{conditions.Result[models.Marine]{
		Success: true,
		Data:    &models.Marine{SeaSurfaceTemperature: 24.0},
	}}
	geocode := stubGeocoder{conditions.Result[models.ReverseGeocode]{
		Success: false,
		Error:   "geocode provider unreachable",
	}}

	extractor := exif.NewExtractor(cfg.Extract, nil)
	lb := logbook.NewService(st, nil, matcher, weather, marine, geocode, cfg.Sites)
	handler := NewHandler(extractor, lb, matcher, weather, marine, geocode, nil, cfg, "test")

	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if env.Status != "success" {
		t.Errorf("envelope status = %q, want success", env.Status)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	var health healthResponse
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.Sites != 2 {
		t.Errorf("health = %+v, want ok with 2 sites", health)
	}
}

func TestSiteNearest(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	t.Run("match", func(t *testing.T) {
		t.Parallel()

		resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sites/nearest?lat=33.545&lng=126.670", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}

		var body siteNearestResponse
		if err := json.Unmarshal(env.Data, &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !body.Matched {
			t.Fatal("matched = false, want true")
		}
		if body.Match.Site.Name != "Hamdeok Beach Reef" {
			t.Errorf("site = %q, want Hamdeok Beach Reef", body.Match.Site.Name)
		}
	})

	t.Run("no match is still success", func(t *testing.T) {
		t.Parallel()

		resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sites/nearest?lat=0&lng=-150", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}

		var body siteNearestResponse
		if err := json.Unmarshal(env.Data, &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Matched {
			t.Error("matched = true, want false")
		}
	})

	t.Run("missing parameter", func(t *testing.T) {
		t.Parallel()

		resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sites/nearest?lat=33.5", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		if env.Error == nil || env.Error.Code != "MALFORMED_REQUEST" {
			t.Errorf("error = %+v, want MALFORMED_REQUEST", env.Error)
		}
	})

	t.Run("latitude out of range", func(t *testing.T) {
		t.Parallel()

		resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sites/nearest?lat=120&lng=0", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
		}
	})
}

func TestSitesNearby(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sites/nearby?lat=33.5434&lng=126.6694&radius_m=50000", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var matches []models.SiteMatch
	if err := json.Unmarshal(env.Data, &matches); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].DistanceM > matches[1].DistanceM {
		t.Error("matches not sorted by distance")
	}

	// limit=1 truncates.
	_, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/sites/nearby?lat=33.5434&lng=126.6694&radius_m=50000&limit=1", nil)
	if err := json.Unmarshal(env.Data, &matches); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("len(matches) = %d with limit=1, want 1", len(matches))
	}
}

func TestWeatherEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/weather?lat=33.5&lng=126.5", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var weather models.Weather
	if err := json.Unmarshal(env.Data, &weather); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if weather.Condition != "Clear" || weather.AirTemperature != 26.0 {
		t.Errorf("weather = %+v, want stubbed payload", weather)
	}
}

func TestGeocodeEndpointProviderFailure(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/geocode/reverse?lat=33.5&lng=126.5", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "PROVIDER_ERROR" {
		t.Errorf("error = %+v, want PROVIDER_ERROR", env.Error)
	}
}

func TestLogsCRUD(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	// Create
	payload := models.DiveLog{
		Date:      "2026-07-15",
		TimeStart: "10:30",
		TimeEnd:   "11:15",
		Latitude:  33.5434,
		Longitude: 126.6694,
		SiteName:  "Hamdeok Beach Reef",
		MaxDepth:  18.5,
	}
	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/logs", payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (error: %+v)", resp.StatusCode, env.Error)
	}
	var created models.DiveLog
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created log has empty id")
	}
	if created.IsSynced {
		t.Error("created log IsSynced = true, want false")
	}

	// List
	_, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/logs", nil)
	var logs []models.DiveLog
	if err := json.Unmarshal(env.Data, &logs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("len(logs) = %d, want 1", len(logs))
	}

	// Get by id
	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/logs/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}

	// Update
	created.Notes = "strong current on the second half"
	resp, env = doJSON(t, http.MethodPut, srv.URL+"/api/v1/logs/"+created.ID, created)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200 (error: %+v)", resp.StatusCode, env.Error)
	}

	// Unsynced
	_, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/logs/unsynced", nil)
	if err := json.Unmarshal(env.Data, &logs); err != nil {
		t.Fatalf("decode unsynced: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("len(unsynced) = %d, want 1", len(logs))
	}

	// Delete
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/logs/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}

	// Gone
	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/logs/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", env.Error)
	}
}

func TestCreateLogValidation(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	tests := []struct {
		name    string
		payload models.DiveLog
	}{
		{"missing date", models.DiveLog{TimeStart: "10:30"}},
		{"bad date format", models.DiveLog{Date: "15/07/2026"}},
		{"bad time", models.DiveLog{Date: "2026-07-15", TimeStart: "25:00"}},
		{"latitude out of range", models.DiveLog{Date: "2026-07-15", Latitude: 91}},
		{"depth out of range", models.DiveLog{Date: "2026-07-15", MaxDepth: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/logs", tt.payload)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
			}
		})
	}
}

func TestCreateLogMalformedBody(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/logs", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestClientLogs(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	t.Run("accepted", func(t *testing.T) {
		t.Parallel()

		entry := models.ClientLogEntry{Level: "error", Message: "IndexedDB write failed", Component: "logbook-form"}
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/client-logs", entry)
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("status = %d, want 202", resp.StatusCode)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		t.Parallel()

		entry := models.ClientLogEntry{Level: "verbose", Message: "nope"}
		resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/client-logs", entry)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
		}
	})
}

func TestSyncReplayWithoutRemote(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync/replay", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if env.Error == nil {
		t.Error("error = nil, want remote-not-configured error")
	}
}

// buildTestTIFF assembles a minimal TIFF carrying a DateTime tag so the
// extraction endpoint has something real to parse.
func buildTestTIFF(t *testing.T, dateTime string) []byte {
	t.Helper()

	var buf bytes.Buffer
	le := binary.LittleEndian

	buf.WriteString("II")
	binary.Write(&buf, le, uint16(0x2A))
	binary.Write(&buf, le, uint32(8))

	value := dateTime + "\x00"
	binary.Write(&buf, le, uint16(1))      // one entry
	binary.Write(&buf, le, uint16(0x0132)) // DateTime
	binary.Write(&buf, le, uint16(2))      // ASCII
	binary.Write(&buf, le, uint32(len(value)))
	binary.Write(&buf, le, uint32(8+2+12+4)) // value offset
	binary.Write(&buf, le, uint32(0))        // next IFD
	buf.WriteString(value)

	return buf.Bytes()
}

func TestExtractEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	t.Run("mixed batch", func(t *testing.T) {
		t.Parallel()

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)

		good, err := mw.CreateFormFile("photos", "dive.tif")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		good.Write(buildTestTIFF(t, "2026:07:15 10:30:00"))

		bad, err := mw.CreateFormFile("photos", "bare.jpg")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		bad.Write([]byte{0xFF, 0xD8, 0xFF, 0xDB})

		mw.Close()

		resp, err := http.Post(srv.URL+"/api/v1/exif", mw.FormDataContentType(), &body)
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}

		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		var payload extractResponse
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if len(payload.Results) != 2 {
			t.Fatalf("len(results) = %d, want 2", len(payload.Results))
		}
		if !payload.Results[0].Success || payload.Results[1].Success {
			t.Errorf("success pattern = [%v %v], want [true false]",
				payload.Results[0].Success, payload.Results[1].Success)
		}
		if payload.Summary.Date != "2026-07-15" {
			t.Errorf("summary date = %q, want 2026-07-15", payload.Summary.Date)
		}
		if payload.Draft == nil || payload.Draft.Date != "2026-07-15" {
			t.Errorf("draft = %+v, want pre-filled date", payload.Draft)
		}
	})

	t.Run("no files", func(t *testing.T) {
		t.Parallel()

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		mw.WriteField("gps_consent", "true")
		mw.Close()

		resp, err := http.Post(srv.URL+"/api/v1/exif", mw.FormDataContentType(), &body)
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("bogus consent flag", func(t *testing.T) {
		t.Parallel()

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		f, _ := mw.CreateFormFile("photos", "dive.jpg")
		f.Write([]byte{0xFF, 0xD8})
		mw.WriteField("gps_consent", "maybe")
		mw.Close()

		resp, err := http.Post(srv.URL+"/api/v1/exif", mw.FormDataContentType(), &body)
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		t.Parallel()

		resp, err := http.Post(srv.URL+"/api/v1/exif", "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}
