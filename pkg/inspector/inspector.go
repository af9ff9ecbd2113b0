// Package inspector exposes a read-only HTTP surface for observing a
// running pool: a JSON status snapshot, Prometheus metrics and a
// WebSocket feed of live statistics.
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taskwellio/taskwell/pkg/jobs"
	"github.com/taskwellio/taskwell/pkg/observability/prometheus"
	"github.com/taskwellio/taskwell/pkg/pool"
)

// Config configures the inspector server
type Config struct {
	// Addr is the listen address, e.g. ":8081"
	Addr string

	// FeedInterval is the push period for the WebSocket stats feed.
	// Default: 1s.
	FeedInterval time.Duration

	// Logger for inspector events. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default inspector configuration
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		FeedInterval: time.Second,
	}
}

// Status is the inspector's status snapshot
type Status struct {
	Running bool       `json:"running"`
	Uptime  string     `json:"uptime"`
	Kinds   []string   `json:"kinds"`
	Stats   pool.Stats `json:"stats"`
}

// Inspector serves pool observability endpoints
type Inspector struct {
	cfg      Config
	pool     pool.Pool
	registry *jobs.Registry
	logger   *slog.Logger
	started  time.Time

	server   *http.Server
	ln       net.Listener
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New creates an inspector. Call Start to begin serving.
func New(cfg Config, p pool.Pool, registry *jobs.Registry) (*Inspector, error) {
	if p == nil {
		return nil, errors.New("pool cannot be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8081"
	}
	if cfg.FeedInterval <= 0 {
		cfg.FeedInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	i := &Inspector{
		cfg:      cfg,
		pool:     p,
		registry: registry,
		logger:   cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // read-only surface, allow all origins
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", i.handleStatus)
	mux.Handle("/metrics", prometheus.Handler())
	mux.HandleFunc("/feed", i.handleFeed)

	i.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return i, nil
}

// Start begins listening on the configured address
func (i *Inspector) Start() error {
	ln, err := net.Listen("tcp", i.cfg.Addr)
	if err != nil {
		return fmt.Errorf("inspector: listen %s: %w", i.cfg.Addr, err)
	}
	i.ln = ln
	i.started = time.Now()

	go func() {
		if err := i.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			i.logger.Error("inspector: serve stopped", "error", err)
		}
	}()

	i.logger.Info("inspector listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address (useful with ":0")
func (i *Inspector) Addr() string {
	if i.ln == nil {
		return i.cfg.Addr
	}
	return i.ln.Addr().String()
}

// Shutdown stops the server and closes all feed connections
func (i *Inspector) Shutdown(ctx context.Context) error {
	i.mu.Lock()
	for conn := range i.clients {
		conn.Close()
		delete(i.clients, conn)
	}
	i.mu.Unlock()
	return i.server.Shutdown(ctx)
}

func (i *Inspector) status() Status {
	var kinds []string
	if i.registry != nil {
		kinds = i.registry.Kinds()
	}
	return Status{
		Running: i.pool.IsRunning(),
		Uptime:  time.Since(i.started).Round(time.Millisecond).String(),
		Kinds:   kinds,
		Stats:   i.pool.Stats(),
	}
}

// handleStatus returns the pool's status as JSON
func (i *Inspector) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(i.status())
}

// handleFeed upgrades to WebSocket and pushes stats snapshots until
// the client disconnects
func (i *Inspector) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		i.logger.Error("inspector: websocket upgrade failed", "error", err)
		return
	}

	i.mu.Lock()
	i.clients[conn] = struct{}{}
	i.mu.Unlock()

	go i.serveFeed(conn)
}

// serveFeed pushes periodic snapshots on one connection
func (i *Inspector) serveFeed(conn *websocket.Conn) {
	defer i.removeClient(conn)

	// Reads are discarded; the loop only detects disconnects
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(i.cfg.FeedInterval)
	defer ticker.Stop()

	// First snapshot goes out immediately
	if err := conn.WriteJSON(i.status()); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(i.status()); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					i.logger.Error("inspector: feed write failed", "error", err)
				}
				return
			}
		}
	}
}

// removeClient drops a feed connection
func (i *Inspector) removeClient(conn *websocket.Conn) {
	i.mu.Lock()
	_, ok := i.clients[conn]
	delete(i.clients, conn)
	i.mu.Unlock()
	if ok {
		conn.Close()
	}
}
