package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/maastricht-university/edmo-sensing/orchestrator"
)

type fakePipeline struct {
	mu        sync.Mutex
	bodies    int
	faces     int
	audio     int
	started   int
	flushed   int
	recording bool
}

func (f *fakePipeline) SubmitBody(context.Context, *orchestrator.BodyFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies++
	return nil
}

func (f *fakePipeline) SubmitFace(context.Context, *orchestrator.FaceFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faces++
	return nil
}

func (f *fakePipeline) SubmitAudio(context.Context, *orchestrator.AudioBeamFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio++
	return nil
}

func (f *fakePipeline) Start(context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	f.recording = true
	return "session-1"
}

func (f *fakePipeline) Stop(context.Context) (*orchestrator.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = false
	return &orchestrator.Session{ID: "session-1", Dir: "/tmp/session"}, nil
}

func (f *fakePipeline) Calibrate(context.Context) []int { return []int{0, 2} }

func (f *fakePipeline) Recording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording
}

func (f *fakePipeline) Flush() {
	f.mu.Lock()
	f.flushed++
	f.mu.Unlock()
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?clientId=bridge-test"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

type rawReply struct {
	Type     string          `json:"type"`
	ClientID string          `json:"client_id"`
	Payload  json.RawMessage `json:"payload"`
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg string) rawReply {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatal(err)
	}
	var r rawReply
	if err := conn.ReadJSON(&r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestWebSocketSession(t *testing.T) {
	p := &fakePipeline{}
	logger, _ := test.NewNullLogger()
	s := NewServer(p, logger)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	var welcome rawReply
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatal(err)
	}
	if welcome.Type != "welcome" || welcome.ClientID != "bridge-test" {
		t.Fatalf("welcome = %+v", welcome)
	}

	r := roundTrip(t, conn, `{"type":"start"}`)
	if r.Type != "start_ack" || !strings.Contains(string(r.Payload), "session-1") {
		t.Fatalf("start reply = %s %s", r.Type, r.Payload)
	}

	// frames are not acknowledged; the ping reply proves they were read
	for _, m := range []string{
		`{"type":"body","body":{"bodies":[]}}`,
		`{"type":"face","face":{"slot":0,"trackingId":1,"rotation":{"w":1}}}`,
		`{"type":"audio","audio":{"subFrames":[]}}`,
	} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
			t.Fatal(err)
		}
	}
	if r := roundTrip(t, conn, `{"type":"ping"}`); r.Type != "ping_ack" || string(r.Payload) != `"pong"` {
		t.Fatalf("ping reply = %s %s", r.Type, r.Payload)
	}

	r = roundTrip(t, conn, `{"type":"calibrate"}`)
	if r.Type != "calibrate_ack" || string(r.Payload) != `{"slots":[0,2]}` {
		t.Fatalf("calibrate reply = %s %s", r.Type, r.Payload)
	}

	r = roundTrip(t, conn, `{"type":"stop"}`)
	var sess orchestrator.Session
	if err := json.Unmarshal(r.Payload, &sess); err != nil {
		t.Fatal(err)
	}
	if r.Type != "stop_ack" || sess.ID != "session-1" || sess.Dir != "/tmp/session" {
		t.Fatalf("stop reply = %s %+v", r.Type, sess)
	}

	if r := roundTrip(t, conn, `{"type":"wave"}`); r.Type != "error" {
		t.Fatalf("unknown type reply = %s", r.Type)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bodies != 1 || p.faces != 1 || p.audio != 1 || p.started != 1 {
		t.Errorf("pipeline saw bodies=%d faces=%d audio=%d starts=%d", p.bodies, p.faces, p.audio, p.started)
	}
	if p.flushed != 2 {
		t.Errorf("flushed %d times, want 2 (calibrate, stop)", p.flushed)
	}

	m := s.Metrics().Snapshot()
	if m["body_frames"] != 1 || m["commands"] != 5 || m["errors"] != 1 || m["ws_connections"] != 1 {
		t.Errorf("metrics = %v", m)
	}
}

func TestHealthEndpoint(t *testing.T) {
	p := &fakePipeline{recording: true}
	logger, _ := test.NewNullLogger()
	srv := httptest.NewServer(NewServer(p, logger).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" || body["recording"] != true {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}

	resp, err = http.Post(srv.URL+"/api/metrics", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST metrics = %d", resp.StatusCode)
	}
}
