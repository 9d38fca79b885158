package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/alexwday/web-research/config"
	"github.com/alexwday/web-research/internal/research"
	"github.com/alexwday/web-research/session"
)

// stubEngine answers every turn with a fixed event sequence.
type stubEngine struct {
	events []research.Event
	seen   []string
}

func (e *stubEngine) ProcessMessage(ctx context.Context, sess *session.Session, message string, sink research.EventSink) error {
	e.seen = append(e.seen, message)
	h := sess.BeginTurn()
	h.AddSource("https://example.com", "Example")
	for _, ev := range e.events {
		if err := sink.Emit(ev); err != nil {
			return err
		}
	}
	return nil
}

func testConfig() config.Config {
	return config.Config{
		General:   config.GeneralConfig{SessionTTL: time.Hour},
		Server:    config.ServerConfig{Address: ":0"},
		Agent:     config.AgentConfig{MaxSteps: 5, TurnTimeout: time.Minute},
		Telemetry: config.TelemetryConfig{Enabled: false},
	}
}

func completeEvents(response string) []research.Event {
	return []research.Event{
		{Type: research.EventStatus, Status: "thinking"},
		{Type: research.EventStream, Content: response},
		{Type: research.EventComplete, Data: &research.CompleteData{
			Response: response,
			Sources:  []session.Source{{Index: 1, URL: "https://example.com", Title: "Example"}},
		}},
	}
}

func TestChatEndpoint(t *testing.T) {
	engine := &stubEngine{events: completeEvents("Answer [1].")}
	srv := New(testConfig(), engine, session.NewStore())
	e := srv.buildEcho()

	body, _ := json.Marshal(map[string]string{"message": "what is go?"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp["response"] != "Answer [1]." {
		t.Errorf("unexpected response: %v", resp["response"])
	}
	if resp["session_id"] == "" {
		t.Error("session_id should be set")
	}
	if len(engine.seen) != 1 || engine.seen[0] != "what is go?" {
		t.Errorf("engine saw %v", engine.seen)
	}
}

func TestChatEndpoint_MissingMessage(t *testing.T) {
	srv := New(testConfig(), &stubEngine{}, session.NewStore())
	e := srv.buildEcho()

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestSourcesAndNotesEndpoints(t *testing.T) {
	store := session.NewStore()
	sess, err := store.EnsureSession("", time.Hour)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	h := sess.BeginTurn()
	h.AddSource("https://example.com/a", "A")
	h.AddNote("a fact", "https://example.com/a")

	srv := New(testConfig(), &stubEngine{}, store)
	e := srv.buildEcho()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sources/"+sess.ID(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("sources status %d", rec.Code)
	}
	var srcResp struct {
		Sources []session.Source `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &srcResp); err != nil {
		t.Fatalf("invalid sources JSON: %v", err)
	}
	if len(srcResp.Sources) != 1 || srcResp.Sources[0].URL != "https://example.com/a" {
		t.Errorf("unexpected sources: %+v", srcResp.Sources)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes/"+sess.ID(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("notes status %d", rec.Code)
	}
	var noteResp struct {
		Notes []session.Note `json:"notes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &noteResp); err != nil {
		t.Fatalf("invalid notes JSON: %v", err)
	}
	if len(noteResp.Notes) != 1 || noteResp.Notes[0].Content != "a fact" {
		t.Errorf("unexpected notes: %+v", noteResp.Notes)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sources/nonexistent", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status %d, want 404", rec.Code)
	}
}

func TestResetEndpoint(t *testing.T) {
	store := session.NewStore()
	sess, err := store.EnsureSession("", time.Hour)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	h := sess.BeginTurn()
	h.AddNote("to be wiped", "")

	srv := New(testConfig(), &stubEngine{}, store)
	e := srv.buildEcho()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset/"+sess.ID(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status %d", rec.Code)
	}
	if len(sess.Notes()) != 0 {
		t.Error("reset should clear notes")
	}
}

func TestWebSocketChatAndClear(t *testing.T) {
	engine := &stubEngine{events: completeEvents("Streamed answer [1].")}
	srv := New(testConfig(), engine, session.NewStore())
	ts := httptest.NewServer(srv.buildEcho())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(map[string]string{"type": "chat", "message": "hello"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var types []string
	for i := 0; i < 3; i++ {
		var ev map[string]any
		if err := ws.ReadJSON(&ev); err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		types = append(types, ev["type"].(string))
	}
	want := []string{"status", "stream", "complete"}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event order %v, want %v", types, want)
		}
	}

	if err := ws.WriteJSON(map[string]string{"type": "clear"}); err != nil {
		t.Fatalf("write clear failed: %v", err)
	}
	var ev map[string]any
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read cleared failed: %v", err)
	}
	if ev["type"] != "cleared" {
		t.Errorf("expected cleared, got %v", ev)
	}
}

func TestWebSocketRejectsEmptyMessage(t *testing.T) {
	srv := New(testConfig(), &stubEngine{}, session.NewStore())
	ts := httptest.NewServer(srv.buildEcho())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(map[string]string{"type": "chat", "message": "   "}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var ev map[string]any
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if ev["type"] != "error" {
		t.Errorf("expected error event, got %v", ev)
	}
}
