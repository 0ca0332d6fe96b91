// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/vive_track/internal/config"
	"github.com/relabs-tech/vive_track/internal/log"
	"github.com/relabs-tech/vive_track/internal/preview"
	"github.com/relabs-tech/vive_track/internal/snapshot"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSResponse is every message the server writes on /ws.
type WSResponse struct {
	Type    string       `json:"type"` // tick, ack, error
	Tick    *TickMessage `json:"tick,omitempty"`
	Message string       `json:"message,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) writeLoop() {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// WebServer serves the latest tick over HTTP and streams ticks to web
// socket clients. Commands from either are handed to publish.
type WebServer struct {
	mu   sync.RWMutex
	last TickMessage
	have bool

	clientsMu sync.Mutex
	clients   map[*wsClient]struct{}

	publish  func(Command) error
	snapshot snapshot.Options
}

// NewWebServer returns a server that forwards commands to publish.
func NewWebServer(publish func(Command) error) *WebServer {
	return &WebServer{
		clients:  make(map[*wsClient]struct{}),
		publish:  publish,
		snapshot: snapshot.DefaultOptions(),
	}
}

// Update stores m as the latest tick and pushes it to every web socket
// client. Slow clients miss ticks.
func (s *WebServer) Update(m TickMessage) {
	s.mu.Lock()
	s.last, s.have = m, true
	s.mu.Unlock()

	payload, err := json.Marshal(WSResponse{Type: "tick", Tick: &m})
	if err != nil {
		log.Error("web: marshal tick", "err", err)
		return
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

func (s *WebServer) latest() (TickMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.have
}

// Handler returns the HTTP routes.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/frames", s.handleFrames)
	mux.HandleFunc("GET /api/frames/{class}/{ordinal}", s.handleFrame)
	mux.HandleFunc("GET /api/snapshot.png", s.handleSnapshot)
	mux.HandleFunc("POST /api/commands", s.handleCommand)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *WebServer) handleFrames(w http.ResponseWriter, r *http.Request) {
	m, ok := s.latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, m)
}

func (s *WebServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	m, ok := s.latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	f, ok := m.Find(r.PathValue("class") + "#" + r.PathValue("ordinal"))
	if !ok {
		http.Error(w, "unknown role", http.StatusNotFound)
		return
	}
	writeJSON(w, f)
}

func (s *WebServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	m, ok := s.latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := snapshot.WritePNG(w, s.snapshot, previewStreams(m)...); err != nil {
		log.Error("web: snapshot", "err", err)
	}
}

// previewStreams places the built-in mesh of each available role at its
// frame.
func previewStreams(m TickMessage) []iter.Seq[preview.Vertex] {
	var streams []iter.Seq[preview.Vertex]
	for _, f := range m.Frames {
		if !f.Available {
			continue
		}
		p := preview.NewProjector(preview.BuiltinMesh(f.Class), preview.DefaultColor(f.Class))
		p.Transform(f.Frame)
		streams = append(streams, p.Vertices())
	}
	return streams
}

func (s *WebServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd, err := ParseCommand(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.publish(cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleWS streams ticks to the client and reads commands from it.
func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("web: websocket upgrade error", "err", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, 8)}
	go c.writeLoop()

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		close(c.send)
		s.clientsMu.Unlock()
	}()

	reply := func(resp WSResponse) {
		payload, err := json.Marshal(resp)
		if err != nil {
			return
		}
		s.clientsMu.Lock()
		defer s.clientsMu.Unlock()
		select {
		case c.send <- payload:
		default:
		}
	}

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			log.Debug("web: websocket closed", "err", err)
			return
		}
		if err := cmd.Validate(); err != nil {
			reply(WSResponse{Type: "error", Message: err.Error()})
			continue
		}
		if err := s.publish(cmd); err != nil {
			reply(WSResponse{Type: "error", Message: err.Error()})
			continue
		}
		reply(WSResponse{Type: "ack", Message: cmd.Action})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("web: json encode error", "err", err)
	}
}

// RunWeb bridges MQTT and HTTP: frames from the tracker feed the API and
// the web socket, commands from the browser go to TOPIC_COMMANDS.
func RunWeb() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Info("web: connected to MQTT broker", "broker", cfg.MQTTBroker)

	server := NewWebServer(func(cmd Command) error {
		payload, err := json.Marshal(cmd)
		if err != nil {
			return err
		}
		token := client.Publish(cfg.TopicCommands, 1, false, payload)
		token.Wait()
		return token.Error()
	})

	token := client.Subscribe(cfg.TopicFrames, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m TickMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Warn("web: MQTT payload unmarshal error", "err", err)
			return
		}
		server.Update(m)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Info("web: subscribed", "topic", cfg.TopicFrames)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Info("web server listening", "addr", addr)
	return http.ListenAndServe(addr, server.Handler())
}
