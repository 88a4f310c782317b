package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// connectRequest is the body of POST /api/connect.
type connectRequest struct {
	StreamName string `json:"stream_name"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// handleConnect resolves and binds the requested stream. Failures (discovery,
// match, inlet) come back as descriptive 4xx/5xx errors and leave the pipeline
// disconnected.
func handleConnect(w http.ResponseWriter, r *http.Request, processor *Processor) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.StreamName == "" {
		writeError(w, http.StatusBadRequest, "stream_name is required")
		return
	}

	info, err := processor.Connect(req.StreamName)
	if err != nil {
		log.Printf("Connect to %q failed: %v", req.StreamName, err)
		writeError(w, http.StatusBadGateway, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// handleDisconnect always succeeds.
func handleDisconnect(w http.ResponseWriter, r *http.Request, processor *Processor) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	processor.Disconnect()
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// handleStreamInfo is a non-blocking read of the current descriptor.
func handleStreamInfo(w http.ResponseWriter, r *http.Request, processor *Processor) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	info := processor.CurrentStreamInfo()
	if info == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"connected": false})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleStart begins the tick loop; harmless if already running.
func handleStart(w http.ResponseWriter, r *http.Request, processor *Processor) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	processor.Start()
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStats(w http.ResponseWriter, r *http.Request, processor *Processor, hub *EventHub) {
	stats := struct {
		Pipeline PipelineStats `json:"pipeline"`
		Clients  int           `json:"websocket_clients"`
	}{
		Pipeline: processor.Stats(),
		Clients:  hub.ClientCount(),
	}
	writeJSON(w, http.StatusOK, stats)
}

// corsMiddleware is a permissive CORS wrapper, enabled by config.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
