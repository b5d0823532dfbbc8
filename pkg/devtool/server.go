package devtool

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ServerConfig controls the inspection server.
type ServerConfig struct {
	// Address is the listen address for Start.
	Address string

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// WriteTimeout bounds each WebSocket write.
	WriteTimeout time.Duration

	// PingInterval is how often stream clients are pinged.
	PingInterval time.Duration

	// PongTimeout is how long to wait for any client traffic before the
	// connection is considered dead.
	PongTimeout time.Duration

	// SendBuffer is the per-client event queue size. Events beyond it are
	// dropped instead of stalling the registry.
	SendBuffer int

	// CheckOrigin validates upgrade requests.
	CheckOrigin func(*http.Request) bool

	// Logger receives server logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultServerConfig returns the default configuration. The server binds
// loopback only; inspection is a development surface.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:         "127.0.0.1:8490",
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		SendBuffer:      64,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}

// Server publishes a registry over HTTP and streams its events over
// WebSocket.
type Server struct {
	registry *Registry
	config   *ServerConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*streamClient

	httpServer *http.Server
}

// streamClient is one connected /stream consumer.
type streamClient struct {
	id   string
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() { close(c.done) })
}

// NewServer creates an inspection server over the given registry.
func NewServer(registry *Registry, config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	} else {
		defaults := DefaultServerConfig()
		if config.Address == "" {
			config.Address = defaults.Address
		}
		if config.ReadBufferSize == 0 {
			config.ReadBufferSize = defaults.ReadBufferSize
		}
		if config.WriteBufferSize == 0 {
			config.WriteBufferSize = defaults.WriteBufferSize
		}
		if config.WriteTimeout == 0 {
			config.WriteTimeout = defaults.WriteTimeout
		}
		if config.PingInterval == 0 {
			config.PingInterval = defaults.PingInterval
		}
		if config.PongTimeout == 0 {
			config.PongTimeout = defaults.PongTimeout
		}
		if config.SendBuffer == 0 {
			config.SendBuffer = defaults.SendBuffer
		}
		if config.CheckOrigin == nil {
			config.CheckOrigin = defaults.CheckOrigin
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		registry: registry,
		config:   config,
		logger:   logger.With("component", "devtool"),
		clients:  make(map[string]*streamClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}
}

// Handler returns the HTTP handler with every inspection route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/cells", s.handleCells)
	r.Get("/cells/{id}", s.handleCell)
	r.Get("/stats", s.handleStats)
	r.Get("/stream", s.handleStream)
	return r
}

// Start listens on the configured address and blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("inspection server listening", "address", s.config.Address)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown disconnects stream clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	clients := make([]*streamClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ClientCount returns the number of connected stream clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.registry.Snapshot())
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid cell id", http.StatusBadRequest)
		return
	}

	ent, ok := s.registry.Get(id)
	if !ok {
		http.Error(w, "unknown cell", http.StatusNotFound)
		return
	}
	s.writeJSON(w, ent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.registry.Stats())
}

// handleStream upgrades to WebSocket and pushes registry events as JSON
// until the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade error", "error", err)
		return
	}

	client := &streamClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan Event, s.config.SendBuffer),
		done: make(chan struct{}),
	}

	// Subscribe before the client becomes visible, so a connected client
	// never misses events. Slow consumers drop events instead of
	// blocking the registry.
	off := s.registry.Subscribe(func(ev Event) {
		select {
		case client.send <- ev:
		default:
		}
	})

	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()

	s.logger.Info("stream client connected", "client_id", client.id)

	go s.writeLoop(client)
	s.readLoop(client)

	off()
	s.removeClient(client)
	s.logger.Info("stream client disconnected", "client_id", client.id)
}

// readLoop consumes client frames until the connection closes. Stream
// clients send nothing except pongs and close frames, so the payloads are
// discarded; the read keeps the deadline honest.
func (s *Server) readLoop(c *streamClient) {
	defer c.close()

	c.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

// writeLoop sends queued events and periodic pings until the client is
// closed.
func (s *Server) writeLoop(c *streamClient) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				s.logger.Error("write error", "client_id", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Server) removeClient(c *streamClient) {
	c.close()
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode error", "error", err)
	}
}
