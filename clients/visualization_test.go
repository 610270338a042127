package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateTimeline(t *testing.T) {
	var got TimelineReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-timeline" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.Write([]byte(`{"Status":"ok","Path":"/out/timeline.png"}`))
	}))
	defer srv.Close()

	req := TimelineReq{Timestamps: []float64{0.1, 1.4}, Durations: []float64{1.3, 2}, Speakers: []string{"LeftSpeak", "RightSpeak"}}
	resp, err := NewHTTP().GenerateTimeline(context.Background(), srv.URL, req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Path != "/out/timeline.png" {
		t.Errorf("path: got %q", resp.Path)
	}
	if len(got.Speakers) != 2 || got.Speakers[1] != "RightSpeak" {
		t.Errorf("server received %+v", got)
	}
}

func TestGenerateRadarError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no renderer", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTP().GenerateRadar(context.Background(), srv.URL, RadarReq{Participant: "slot 0"})
	if err == nil || !strings.Contains(err.Error(), "viz radar 503") {
		t.Fatalf("got %v, want a 503 error", err)
	}
}
