package tawhiri

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lydakis/trajbridge/internal/engine"
)

const standardPayload = `{
	"launch_latitude": 36.8491253,
	"launch_longitude": -121.5,
	"launch_altitude": 0,
	"launch_datetime": "2026-10-18T12:00:00Z",
	"ascent_rate": 5,
	"burst_altitude": 25000,
	"descent_rate": 5,
	"launch_site": "X"
}`

func TestNormalizeStandardProfile(t *testing.T) {
	c := New("http://unused", time.Second)

	req, err := c.Normalize(context.Background(), engine.Payload(standardPayload))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	var params map[string]string
	if err := json.Unmarshal(req, &params); err != nil {
		t.Fatalf("decoding normalized request: %v", err)
	}

	want := map[string]string{
		"profile":          ProfileStandard,
		"launch_latitude":  "36.8491253",
		"launch_longitude": "238.5",
		"launch_altitude":  "0",
		"launch_datetime":  "2026-10-18T12:00:00Z",
		"ascent_rate":      "5",
		"burst_altitude":   "25000",
		"descent_rate":     "5",
	}
	if len(params) != len(want) {
		t.Fatalf("normalized params = %v, want %v", params, want)
	}
	for k, v := range want {
		if params[k] != v {
			t.Fatalf("param %s = %q, want %q", k, params[k], v)
		}
	}
}

func TestNormalizeFloatProfileRequiresStopAfterLaunch(t *testing.T) {
	c := New("http://unused", time.Second)

	payload := `{
		"profile": "float_profile",
		"launch_latitude": 10,
		"launch_longitude": 20,
		"launch_datetime": "2026-10-18T12:00:00Z",
		"ascent_rate": "5.5",
		"float_altitude": 15000,
		"stop_datetime": "2026-10-18T11:00:00Z"
	}`
	_, err := c.Normalize(context.Background(), engine.Payload(payload))
	if !errors.Is(err, engine.ErrInvalidRequest) {
		t.Fatalf("Normalize() error = %v, want ErrInvalidRequest", err)
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	c := New("http://unused", time.Second)

	cases := map[string]string{
		"not an object":     `[1,2,3]`,
		"missing latitude":  `{"launch_longitude": 1, "launch_datetime": "2026-10-18T12:00:00Z", "ascent_rate": 5, "burst_altitude": 1, "descent_rate": 5}`,
		"latitude range":    `{"launch_latitude": 91, "launch_longitude": 1, "launch_datetime": "2026-10-18T12:00:00Z", "ascent_rate": 5, "burst_altitude": 1, "descent_rate": 5}`,
		"unknown profile":   `{"profile": "rocket", "launch_latitude": 1, "launch_longitude": 1, "launch_datetime": "2026-10-18T12:00:00Z"}`,
		"bad datetime":      `{"launch_latitude": 1, "launch_longitude": 1, "launch_datetime": "yesterday", "ascent_rate": 5, "burst_altitude": 1, "descent_rate": 5}`,
		"negative rate":     `{"launch_latitude": 1, "launch_longitude": 1, "launch_datetime": "2026-10-18T12:00:00Z", "ascent_rate": -5, "burst_altitude": 1, "descent_rate": 5}`,
		"non-numeric field": `{"launch_latitude": true, "launch_longitude": 1, "launch_datetime": "2026-10-18T12:00:00Z", "ascent_rate": 5, "burst_altitude": 1, "descent_rate": 5}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Normalize(context.Background(), engine.Payload(payload))
			if !errors.Is(err, engine.ErrInvalidRequest) {
				t.Fatalf("Normalize() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestPredictReturnsBodyVerbatim(t *testing.T) {
	const body = `{"metadata": {"complete_datetime": "x"}, "prediction": [{"stage": "ascent", "trajectory": []}]}`

	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/" {
			t.Errorf("path = %q, want /api/v1/", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", 5*time.Second)
	defer c.Close()

	req, err := c.Normalize(context.Background(), engine.Payload(standardPayload))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	res, err := c.Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if string(res) != body {
		t.Fatalf("Predict() = %s, want %s", res, body)
	}
	if got := gotQuery["burst_altitude"]; len(got) != 1 || got[0] != "25000" {
		t.Fatalf("burst_altitude query = %v, want [25000]", got)
	}
	if _, ok := gotQuery["launch_site"]; ok {
		t.Fatal("unknown payload field leaked into the query")
	}
}

func TestPredictMapsAPIErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"prediction exception", http.StatusInternalServerError, `{"error": {"type": "PredictionException", "description": "outside of time range"}}`, engine.ErrOutOfRange},
		{"invalid dataset", http.StatusNotFound, `{"error": {"type": "InvalidDatasetException", "description": "no dataset"}}`, engine.ErrOutOfRange},
		{"request exception", http.StatusBadRequest, `{"error": {"type": "RequestException", "description": "bad"}}`, engine.ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := New(srv.URL, 5*time.Second)
			_, err := c.Predict(context.Background(), engine.Request(`{"profile":"standard_profile"}`))
			if !errors.Is(err, tc.want) {
				t.Fatalf("Predict() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestPredictUnstructuredErrorIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	_, err := c.Predict(context.Background(), engine.Request(`{}`))
	if err == nil {
		t.Fatal("Predict() error = nil, want non-nil")
	}
	if errors.Is(err, engine.ErrOutOfRange) || errors.Is(err, engine.ErrInvalidRequest) {
		t.Fatalf("Predict() error = %v, want unclassified error", err)
	}
}
