// Package http wires the host-control and participant-play views onto
// websockets. Views hold no authority: they issue intents to the engine and
// reload aggregates whenever the fan-out cues them.
package http

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"livequiz-service/internal/engine"
	"livequiz-service/internal/fanout"
	"livequiz-service/internal/identity"
	"livequiz-service/internal/infra/blob"
)

// Handler serves the realtime session views and the image upload path.
type Handler struct {
	engine     *engine.Engine
	hub        *fanout.Hub
	identities identity.Provider
	blobs      blob.Store
	hostPoll   time.Duration
	playPoll   time.Duration
	upgrader   websocket.Upgrader
}

func NewHandler(e *engine.Engine, hub *fanout.Hub, identities identity.Provider, blobs blob.Store, hostPoll, playPoll time.Duration) *Handler {
	return &Handler{
		engine:     e,
		hub:        hub,
		identities: identities,
		blobs:      blobs,
		hostPoll:   hostPoll,
		playPoll:   playPoll,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts all routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws/host", h.ServeHost)
	mux.HandleFunc("/ws/play", h.ServePlay)
	mux.HandleFunc("/images", h.ServeImages)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func outbound(typ string, payload any) outboundMessage[any] {
	return outboundMessage[any]{Type: typ, Payload: payload}
}

func errMsg(message string) outboundMessage[any] {
	return outbound("error", errorPayload{Message: message})
}

// ServeImages accepts question image bytes and returns the stored URL.
// Off the session critical path.
func (h *Handler) ServeImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8<<20))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	url, err := h.blobs.Upload(r.Context(), data, path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// startWriter serializes all websocket writes through one goroutine.
func startWriter(conn *websocket.Conn, send <-chan outboundMessage[any]) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()
	return done
}
