// Package moonraker exposes a Moonraker-compatible status API for the
// filter lifecycle host. Clients query filter state over REST or a
// JSON-RPC websocket and submit reconfiguration commands.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package moonraker

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nonanon1/klipper/pkg/log"
	"github.com/nonanon1/klipper/pkg/metrics"
	"github.com/nonanon1/klipper/pkg/pool"
)

// PrinterInterface is the host surface the server queries.
type PrinterInterface interface {
	// GetObjectsList returns the names of queryable host objects.
	GetObjectsList() []string
	// GetObjectStatus returns an object's status, filtered to attrs
	// when non-empty.
	GetObjectStatus(name string, attrs []string) map[string]any
	// ExecuteGCode runs a command line and returns its responses.
	ExecuteGCode(script string) ([]string, error)
	// GetKlippyState returns "startup", "ready" or "error".
	GetKlippyState() string
}

// Server serves the status API.
type Server struct {
	printer PrinterInterface

	httpServer *http.Server
	addr       string

	wsUpgrader websocket.Upgrader
	wsClients  map[int64]*wsClient
	wsClientMu sync.Mutex
	nextWSID   int64

	// subscriptions maps client id -> object name -> requested attrs
	// (nil attrs = all).
	subMu         sync.Mutex
	subscriptions map[int64]map[string][]string

	running   atomic.Bool
	stopCh    chan struct{}
	startTime time.Time
	logger    *log.Logger
}

// New creates a status API server.
func New(addr string, pr PrinterInterface, logger *log.Logger) *Server {
	s := &Server{
		printer:       pr,
		addr:          addr,
		wsClients:     make(map[int64]*wsClient),
		subscriptions: make(map[int64]map[string][]string),
		stopCh:        make(chan struct{}),
		startTime:     time.Now(),
		logger:        logger.WithPrefix("moonraker"),
	}
	s.wsUpgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return s
}

// Handler returns the HTTP handler with all endpoints registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", s.handleWebSocket)
	mux.HandleFunc("/server/info", s.handleServerInfo)
	mux.HandleFunc("/printer/info", s.handlePrinterInfo)
	mux.HandleFunc("/printer/objects/list", s.handleObjectsList)
	mux.HandleFunc("/printer/objects/query", s.handleObjectsQuery)
	mux.HandleFunc("/printer/gcode/script", s.handleGCodeScript)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return mux
}

// Start runs the server until Stop or listen failure.
func (s *Server) Start() error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	s.running.Store(true)
	go s.statusBroadcastLoop()
	s.logger.Info("status API listening on %s", s.addr)
	return s.httpServer.ListenAndServe()
}

// Stop closes the server and all websocket clients.
func (s *Server) Stop() error {
	if s.running.CompareAndSwap(true, false) {
		close(s.stopCh)
	}
	s.wsClientMu.Lock()
	for _, client := range s.wsClients {
		client.close()
	}
	s.wsClients = make(map[int64]*wsClient)
	s.wsClientMu.Unlock()
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

type jsonRPCRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      any            `json:"id,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
	ID      any           `json:"id,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) dispatchMethod(method string, params map[string]any, client *wsClient) (any, error) {
	switch method {
	case "server.info":
		return s.methodServerInfo()
	case "printer.info":
		return s.methodPrinterInfo()
	case "printer.objects.list":
		return s.methodObjectsList()
	case "printer.objects.query":
		return s.methodObjectsQuery(params)
	case "printer.objects.subscribe":
		return s.methodObjectsSubscribe(params, client)
	case "printer.gcode.script":
		return s.methodGCodeScript(params)
	default:
		return nil, fmt.Errorf("method not found: %s", method)
	}
}

func (s *Server) methodServerInfo() (any, error) {
	hostname, _ := os.Hostname()
	state := s.printer.GetKlippyState()
	return map[string]any{
		"klippy_connected": state == "ready",
		"klippy_state":     state,
		"hostname":         hostname,
		"websocket_count":  s.clientCount(),
	}, nil
}

func (s *Server) methodPrinterInfo() (any, error) {
	hostname, _ := os.Hostname()
	state := s.printer.GetKlippyState()
	msg := "Printer is ready"
	if state != "ready" {
		msg = "Printer is not ready"
	}
	return map[string]any{
		"state":         state,
		"state_message": msg,
		"hostname":      hostname,
	}, nil
}

func (s *Server) methodObjectsList() (any, error) {
	return map[string]any{"objects": s.printer.GetObjectsList()}, nil
}

// parseObjectsParam extracts the object -> attrs selection from a
// query or subscribe request. Nil attrs means all attributes.
func parseObjectsParam(params map[string]any) (map[string][]string, error) {
	objectsParam, ok := params["objects"]
	if !ok {
		return nil, fmt.Errorf("missing 'objects' parameter")
	}
	objects, ok := objectsParam.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("'objects' must be an object")
	}
	selection := make(map[string][]string, len(objects))
	for objName, attrsVal := range objects {
		var attrs []string
		if attrList, ok := attrsVal.([]any); ok {
			for _, attr := range attrList {
				if attrStr, ok := attr.(string); ok {
					attrs = append(attrs, attrStr)
				}
			}
		}
		selection[objName] = attrs
	}
	return selection, nil
}

func (s *Server) queryStatus(selection map[string][]string) map[string]any {
	result := make(map[string]any)
	for objName, attrs := range selection {
		if status := s.printer.GetObjectStatus(objName, attrs); status != nil {
			result[objName] = status
		}
	}
	return result
}

func (s *Server) methodObjectsQuery(params map[string]any) (any, error) {
	selection, err := parseObjectsParam(params)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"eventtime": time.Since(s.startTime).Seconds(),
		"status":    s.queryStatus(selection),
	}, nil
}

// methodObjectsSubscribe registers a websocket client for periodic
// status updates and returns the current status of the selection.
func (s *Server) methodObjectsSubscribe(params map[string]any, client *wsClient) (any, error) {
	if client == nil {
		return nil, fmt.Errorf("subscriptions require a websocket connection")
	}
	selection, err := parseObjectsParam(params)
	if err != nil {
		return nil, err
	}
	s.subMu.Lock()
	s.subscriptions[client.id] = selection
	s.subMu.Unlock()
	return map[string]any{
		"eventtime": time.Since(s.startTime).Seconds(),
		"status":    s.queryStatus(selection),
	}, nil
}

// statusBroadcastLoop pushes notify_status_update messages to
// subscribed clients.
func (s *Server) statusBroadcastLoop() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
		s.subMu.Lock()
		subs := make(map[int64]map[string][]string, len(s.subscriptions))
		for id, sel := range s.subscriptions {
			subs[id] = sel
		}
		s.subMu.Unlock()
		if len(subs) == 0 {
			continue
		}
		eventtime := time.Since(s.startTime).Seconds()
		for id, sel := range subs {
			s.wsClientMu.Lock()
			client := s.wsClients[id]
			s.wsClientMu.Unlock()
			if client == nil {
				continue
			}
			client.send(map[string]any{
				"jsonrpc": "2.0",
				"method":  "notify_status_update",
				"params":  []any{s.queryStatus(sel), eventtime},
			})
		}
	}
}

func (s *Server) methodGCodeScript(params map[string]any) (any, error) {
	script, ok := params["script"].(string)
	if !ok {
		return nil, fmt.Errorf("missing 'script' parameter")
	}
	responses, err := s.printer.ExecuteGCode(script)
	if err != nil {
		return nil, err
	}
	return map[string]any{"responses": responses}, nil
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	result, _ := s.methodServerInfo()
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handlePrinterInfo(w http.ResponseWriter, r *http.Request) {
	result, _ := s.methodPrinterInfo()
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handleObjectsList(w http.ResponseWriter, r *http.Request) {
	result, _ := s.methodObjectsList()
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handleObjectsQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeJSONError(w, err)
		return
	}
	result, err := s.methodObjectsQuery(params)
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handleGCodeScript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeJSONError(w, err)
		return
	}
	result, err := s.methodGCodeScript(params)
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)
	buf.WriteString(metrics.Gather())
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.Write(buf.Bytes())
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeJSONError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": -32000, "message": err.Error()},
	})
}

func (s *Server) clientCount() int {
	s.wsClientMu.Lock()
	defer s.wsClientMu.Unlock()
	return len(s.wsClients)
}
