package moonraker

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nonanon1/klipper/pkg/gcode"
	"github.com/nonanon1/klipper/pkg/kinematics"
	"github.com/nonanon1/klipper/pkg/log"
	"github.com/nonanon1/klipper/pkg/printer"
	"github.com/nonanon1/klipper/pkg/toolhead"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := log.New(io.Discard, log.ERROR)
	pr := printer.New(logger)
	th := toolhead.New(kinematics.NewCartesian(), logger)
	t.Cleanup(th.Close)
	if err := pr.AddObject("toolhead", th); err != nil {
		t.Fatal(err)
	}
	dispatcher := gcode.NewDispatcher(logger)
	err := dispatcher.RegisterCommand("PING", "Test command", func(cmd *gcode.Command) error {
		cmd.RespondInfo("pong")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := pr.Connect(); err != nil {
		t.Fatal(err)
	}
	return New(":7125", NewPrinterAdapter(pr, dispatcher), logger)
}

func getResult(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("response missing 'result' field: %v", resp)
	}
	return result
}

func TestServerInfo(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/server/info", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	result := getResult(t, rec)
	if result["klippy_state"] != "ready" {
		t.Errorf("expected klippy_state 'ready', got %v", result["klippy_state"])
	}
	if result["klippy_connected"] != true {
		t.Errorf("expected klippy_connected true, got %v", result["klippy_connected"])
	}
}

func TestObjectsList(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/printer/objects/list", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	result := getResult(t, rec)
	objects, ok := result["objects"].([]any)
	if !ok {
		t.Fatal("result missing 'objects' field")
	}
	found := false
	for _, obj := range objects {
		if obj == "toolhead" {
			found = true
		}
	}
	if !found {
		t.Errorf("objects list %v missing toolhead", objects)
	}
}

func TestObjectsQuery(t *testing.T) {
	s := newTestServer(t)

	body := bytes.NewBufferString(`{"objects":{"toolhead":["scan_window","kinematics"],"bogus":null}}`)
	req := httptest.NewRequest("POST", "/printer/objects/query", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	result := getResult(t, rec)
	status, ok := result["status"].(map[string]any)
	if !ok {
		t.Fatal("result missing 'status' field")
	}
	thStatus, ok := status["toolhead"].(map[string]any)
	if !ok {
		t.Fatal("status missing 'toolhead'")
	}
	if _, ok := thStatus["scan_window"]; !ok {
		t.Error("toolhead status missing requested 'scan_window' attribute")
	}
	if _, ok := thStatus["queued_moves"]; ok {
		t.Error("attribute filter leaked unrequested 'queued_moves'")
	}
	if _, ok := status["bogus"]; ok {
		t.Error("unknown object should be omitted from status")
	}
}

func TestGCodeScript(t *testing.T) {
	s := newTestServer(t)

	body := bytes.NewBufferString(`{"script":"PING"}`)
	req := httptest.NewRequest("POST", "/printer/gcode/script", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	result := getResult(t, rec)
	responses, ok := result["responses"].([]any)
	if !ok || len(responses) != 1 || responses[0] != "pong" {
		t.Errorf("responses = %v, want [pong]", result["responses"])
	}
}

func TestGCodeScriptUnknownCommand(t *testing.T) {
	s := newTestServer(t)

	body := bytes.NewBufferString(`{"script":"NO_SUCH_COMMAND"}`)
	req := httptest.NewRequest("POST", "/printer/gcode/script", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected status 400 for unknown command, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "toolhead_flushes_total") {
		t.Errorf("metrics output missing toolhead_flushes_total:\n%s", body)
	}
}

func TestWebSocket(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	wsURL := "ws" + server.URL[4:] + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect websocket: %v", err)
	}
	defer conn.Close()

	req := map[string]any{"jsonrpc": "2.0", "method": "printer.objects.list", "id": 1}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("failed to send message: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp jsonRPCResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if resp.Error != nil {
		t.Errorf("unexpected error: %v", resp.Error)
	}
	if resp.Result == nil {
		t.Error("expected result, got nil")
	}
}

func TestWebSocketSubscription(t *testing.T) {
	s := newTestServer(t)
	s.running.Store(true)
	go s.statusBroadcastLoop()
	defer s.Stop()

	server := httptest.NewServer(s.Handler())
	defer server.Close()

	wsURL := "ws" + server.URL[4:] + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect websocket: %v", err)
	}
	defer conn.Close()

	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "printer.objects.subscribe",
		"params":  map[string]any{"objects": map[string]any{"toolhead": nil}},
		"id":      1,
	}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp jsonRPCResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil {
		t.Fatalf("subscribe failed: %v", resp.Error)
	}

	// The broadcast loop should follow up with a status notification.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var notification map[string]any
	if err := conn.ReadJSON(&notification); err != nil {
		t.Fatalf("no status update received: %v", err)
	}
	if notification["method"] != "notify_status_update" {
		t.Errorf("expected notify_status_update, got %v", notification["method"])
	}
}

func TestWebSocketUnknownMethod(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	wsURL := "ws" + server.URL[4:] + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect websocket: %v", err)
	}
	defer conn.Close()

	req := map[string]any{"jsonrpc": "2.0", "method": "nope.nothing", "id": 7}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp jsonRPCResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil {
		t.Fatal("expected a JSON-RPC error for unknown method")
	}
}
