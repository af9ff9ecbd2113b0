package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/taskwellio/taskwell/pkg/jobs"
	"github.com/taskwellio/taskwell/pkg/journal"
	"github.com/taskwellio/taskwell/pkg/pool"
)

// Config configures the HTTP submission gateway
type Config struct {
	// Addr is the listen address, e.g. ":8080"
	Addr string

	// Auth configures request authentication for the submit route
	Auth AuthConfig

	// ReadTimeout / WriteTimeout bound request handling
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// WrapJob, when set, wraps every accepted job before submission
	WrapJob func(pool.Job) pool.Job

	// Journal records accepted submissions. Default: journal.Nop().
	Journal journal.Journal

	// OnOutcome, when set, is called once per authenticated submit
	// request with "accepted", "rejected" or "invalid" (metrics hook)
	OnOutcome func(outcome string)

	// Logger for gateway events. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default gateway configuration
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		Auth:         AuthConfig{Mode: AuthModeNone},
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Metrics is a snapshot of gateway request counters
type Metrics struct {
	TotalRequests    int64
	AcceptedRequests int64
	RejectedRequests int64
}

// Gateway is the HTTP submission front end: jobs come in as JSON
// envelopes, pool backpressure goes out as 503s instead of queueing
// unbounded work.
type Gateway struct {
	cfg      Config
	pool     pool.Pool
	registry *jobs.Registry
	journal  journal.Journal
	logger   *slog.Logger
	server   *fasthttp.Server
	ln       net.Listener

	totalRequests    int64
	acceptedRequests int64
	rejectedRequests int64
}

// New creates a gateway. Call Start to begin serving.
func New(cfg Config, p pool.Pool, registry *jobs.Registry) (*Gateway, error) {
	if p == nil {
		return nil, errors.New("pool cannot be nil")
	}
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Nop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	g := &Gateway{
		cfg:      cfg,
		pool:     p,
		registry: registry,
		journal:  cfg.Journal,
		logger:   cfg.Logger,
	}

	authMiddleware, err := AuthMiddleware(cfg.Auth)
	if err != nil {
		return nil, err
	}

	submit := authMiddleware(g.handleSubmit)
	g.server = &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			switch string(ctx.Path()) {
			case "/v1/jobs":
				if !ctx.IsPost() {
					writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
					return
				}
				submit(ctx)
			case "/v1/stats":
				g.handleStats(ctx)
			case "/healthz":
				writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
			default:
				writeError(ctx, fasthttp.StatusNotFound, "not found")
			}
		},
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return g, nil
}

// Start begins listening on the configured address
func (g *Gateway) Start() error {
	ln, err := net.Listen("tcp", g.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", g.cfg.Addr, err)
	}
	g.ln = ln

	go func() {
		if err := g.server.Serve(ln); err != nil {
			g.logger.Error("gateway: serve stopped", "error", err)
		}
	}()

	g.logger.Info("gateway listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address (useful with ":0")
func (g *Gateway) Addr() string {
	if g.ln == nil {
		return g.cfg.Addr
	}
	return g.ln.Addr().String()
}

// Shutdown stops the server, waiting for in-flight requests up to ctx
func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.ShutdownWithContext(ctx)
}

// Metrics returns a snapshot of request counters
func (g *Gateway) Metrics() Metrics {
	return Metrics{
		TotalRequests:    atomic.LoadInt64(&g.totalRequests),
		AcceptedRequests: atomic.LoadInt64(&g.acceptedRequests),
		RejectedRequests: atomic.LoadInt64(&g.rejectedRequests),
	}
}

// handleSubmit accepts a job submission envelope
func (g *Gateway) handleSubmit(ctx *fasthttp.RequestCtx) {
	atomic.AddInt64(&g.totalRequests, 1)
	requestID := uuid.NewString()
	ctx.Response.Header.Set("X-Request-ID", requestID)

	var sub jobs.Submission
	if err := json.Unmarshal(ctx.PostBody(), &sub); err != nil {
		g.outcome("invalid")
		writeError(ctx, fasthttp.StatusBadRequest, "invalid submission payload")
		return
	}
	if sub.Kind == "" {
		g.outcome("invalid")
		writeError(ctx, fasthttp.StatusBadRequest, "kind is required")
		return
	}

	job, err := g.registry.Job(sub)
	if err != nil {
		g.outcome("invalid")
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	if g.cfg.WrapJob != nil {
		job = g.cfg.WrapJob(job)
	}
	// The pool, the journal and the response all report the job under
	// the same request ID.
	job = pool.WithID(requestID, job)

	if err := g.pool.TrySubmit(job); err != nil {
		atomic.AddInt64(&g.rejectedRequests, 1)
		g.outcome("rejected")
		if errors.Is(err, pool.ErrPoolFull) {
			// Fail-fast backpressure: tell the client to come back
			// rather than queueing unbounded work
			writeError(ctx, fasthttp.StatusServiceUnavailable, "queue full, retry later")
			return
		}
		writeError(ctx, fasthttp.StatusServiceUnavailable, err.Error())
		return
	}

	atomic.AddInt64(&g.acceptedRequests, 1)
	g.outcome("accepted")

	if err := g.journal.Record(ctx, journal.Entry{
		JobID:  requestID,
		Name:   job.Name(),
		Source: "gateway",
		Status: journal.StatusAccepted,
		Queued: time.Now(),
	}); err != nil {
		g.logger.Warn("gateway: journal record failed", "request_id", requestID, "error", err)
	}

	writeJSON(ctx, fasthttp.StatusAccepted, map[string]string{
		"request_id": requestID,
		"name":       job.Name(),
		"kind":       sub.Kind,
	})
}

// handleStats returns the pool's counters as JSON
func (g *Gateway) handleStats(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, g.pool.Stats())
}

func (g *Gateway) outcome(o string) {
	if g.cfg.OnOutcome != nil {
		g.cfg.OnOutcome(o)
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}
