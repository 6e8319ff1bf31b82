// ABOUTME: WebSocket remote control server embedded in the player
// ABOUTME: Accepts play/stop/request commands and pushes status and beats
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Resonate-Protocol/etabla-go/internal/catalog"
	"github.com/Resonate-Protocol/etabla-go/internal/discovery"
	"github.com/Resonate-Protocol/etabla-go/internal/player"
	"github.com/Resonate-Protocol/etabla-go/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 5 * time.Second
	writeDeadline    = 10 * time.Second
	pingInterval     = 30 * time.Second
	sendBuffer       = 64
)

// Controller is the part of the playback controller the server drives
type Controller interface {
	Play() error
	Stop() error
	Toggle() error
	Update(player.Request) error
	Status() player.Status
	Beat() player.BeatState
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Name     string
	Patterns []string // accepted pattern names, empty accepts any
	Debug    bool
}

// Server exposes a controller over WebSocket
type Server struct {
	config   ServerConfig
	ctrl     Controller
	serverID string
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	httpServer *http.Server
	listener   net.Listener

	clients   map[string]*client
	clientsMu sync.RWMutex

	stateMu    sync.Mutex
	lastStatus player.Status
	lastBeat   player.BeatState
	haveState  bool

	shutdownMu sync.RWMutex
	isShutdown bool
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

type client struct {
	id       string
	name     string
	conn     *websocket.Conn
	sendChan chan interface{}
}

// envelope is an inbound message with its payload left undecoded
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewServer creates a server for ctrl
func NewServer(config ServerConfig, ctrl Controller) *Server {
	s := &Server{
		config:   config,
		ctrl:     ctrl,
		serverID: uuid.NewString(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Controllers run on the local network; browsers are not served
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
	s.mux.HandleFunc(discovery.Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the WebSocket endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on addr and serves in the background
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.mux}

	log.Printf("Remote control listening on %s%s", ln.Addr(), discovery.Path)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Remote control server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listen address once started
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes every connection and the listener
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.shutdownMu.Lock()
		s.isShutdown = true
		s.shutdownMu.Unlock()

		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := s.httpServer.Shutdown(ctx); err != nil {
				log.Printf("Remote control shutdown error: %v", err)
			}
			cancel()
		}

		// Hijacked connections are not closed by Shutdown
		s.clientsMu.RLock()
		for _, c := range s.clients {
			c.conn.Close()
		}
		s.clientsMu.RUnlock()

		s.wg.Wait()
	})
}

// PublishStatus pushes a status change to every controller. Safe to call
// from controller callbacks.
func (s *Server) PublishStatus(st player.Status) {
	s.stateMu.Lock()
	s.lastStatus = st
	s.haveState = true
	payload := NewStatusPayload(st, s.lastBeat)
	s.stateMu.Unlock()

	s.broadcast(Message{Type: TypeStatus, Payload: payload})
}

// PublishBeat pushes a beat change to every controller
func (s *Server) PublishBeat(b player.BeatState) {
	s.stateMu.Lock()
	s.lastBeat = b
	if !s.haveState {
		s.stateMu.Unlock()
		return
	}
	payload := NewStatusPayload(s.lastStatus, b)
	s.stateMu.Unlock()

	s.broadcast(Message{Type: TypeStatus, Payload: payload})
}

// ClientCount returns the number of connected controllers
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) broadcast(msg Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		select {
		case c.sendChan <- msg:
		default:
			log.Printf("Dropping status for %s: send buffer full", c.name)
		}
	}
}

func (s *Server) snapshot() StatusPayload {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.haveState {
		return NewStatusPayload(s.lastStatus, s.lastBeat)
	}
	return NewStatusPayload(s.ctrl.Status(), s.ctrl.Beat())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	if s.config.Debug {
		log.Printf("[DEBUG] Remote connection from %s", r.RemoteAddr)
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting remote connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != TypeHello {
		log.Printf("Expected %s, got %q", TypeHello, msg.Type)
		return
	}

	var hello ClientHello
	if err := json.Unmarshal(msg.Payload, &hello); err != nil {
		log.Printf("Error unmarshaling client hello: %v", err)
		return
	}
	if hello.ClientID == "" {
		log.Printf("Client hello missing ClientID")
		return
	}

	c := &client{
		id:       hello.ClientID,
		name:     hello.Name,
		conn:     conn,
		sendChan: make(chan interface{}, sendBuffer),
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[c.id]; exists {
		s.clientsMu.Unlock()
		log.Printf("Controller ID %s already connected (name: %s), rejecting duplicate", c.id, existing.name)
		conn.WriteJSON(Message{Type: TypeError, Payload: ErrorPayload{
			Error:   "duplicate_client_id",
			Message: "Client ID already connected",
		}})
		return
	}
	// Queue the greeting before any broadcast can reach this client
	c.sendChan <- Message{Type: TypeServerHello, Payload: ServerHello{
		ServerID:        s.serverID,
		Name:            s.config.Name,
		Version:         ProtocolVersion,
		SoftwareVersion: version.Version,
		Patterns:        s.config.Patterns,
	}}
	c.sendChan <- Message{Type: TypeStatus, Payload: s.snapshot()}
	s.clients[c.id] = c
	s.clientsMu.Unlock()

	log.Printf("Remote controller connected: %s", c.name)

	writerDone := make(chan struct{})
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c.id)
		s.clientsMu.Unlock()
		close(c.sendChan)
		<-writerDone
		log.Printf("Remote controller disconnected: %s", c.name)
	}()

	go func() {
		defer close(writerDone)
		s.clientWriter(c)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		s.handleClientMessage(c, data)
	}
}

// clientWriter sends queued messages and keepalive pings
func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("Error writing to %s: %v", c.name, err)
				c.conn.Close()
				for range c.sendChan {
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				c.conn.Close()
				for range c.sendChan {
				}
				return
			}
		}
	}
}

func (s *Server) handleClientMessage(c *client, data []byte) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	var err error
	switch msg.Type {
	case TypePlay:
		log.Printf("Remote play from %s", c.name)
		err = s.ctrl.Play()
	case TypeStop:
		log.Printf("Remote stop from %s", c.name)
		err = s.ctrl.Stop()
	case TypeToggle:
		err = s.ctrl.Toggle()
	case TypeRequest:
		err = s.handleRequest(msg.Payload)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}

	if err != nil {
		s.sendError(c, msg.Type, err)
	}
}

func (s *Server) handleRequest(payload json.RawMessage) error {
	var patch RequestPatch
	if err := json.Unmarshal(payload, &patch); err != nil {
		return fmt.Errorf("invalid request payload: %w", err)
	}

	req, err := s.apply(s.ctrl.Status().Request, patch)
	if err != nil {
		return err
	}
	return s.ctrl.Update(req)
}

// apply merges a patch into req, validating names
func (s *Server) apply(req player.Request, patch RequestPatch) (player.Request, error) {
	if patch.Pattern != nil {
		if len(s.config.Patterns) > 0 && !slices.Contains(s.config.Patterns, *patch.Pattern) {
			return req, fmt.Errorf("unknown pattern %q", *patch.Pattern)
		}
		req.Pattern = *patch.Pattern
	}
	if patch.Tempo != nil {
		req.Tempo = *patch.Tempo
	}
	if patch.Key != nil {
		k, err := catalog.ParseKey(*patch.Key)
		if err != nil {
			return req, err
		}
		req.Key = k
	}
	if patch.FineTune != nil {
		req.FineTune = *patch.FineTune
	}
	return req, nil
}

func (s *Server) sendError(c *client, op string, err error) {
	msg := Message{Type: TypeError, Payload: ErrorPayload{Error: op, Message: err.Error()}}
	select {
	case c.sendChan <- msg:
	default:
	}
}
