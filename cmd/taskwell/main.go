// Command taskwell runs the worker pool daemon: a fixed set of workers
// draining a bounded job queue, fed by an HTTP gateway and optionally a
// NATS bridge, observable through the inspector.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/taskwellio/taskwell/pkg/config"
	"github.com/taskwellio/taskwell/pkg/failfast"
	"github.com/taskwellio/taskwell/pkg/gateway"
	"github.com/taskwellio/taskwell/pkg/inspector"
	"github.com/taskwellio/taskwell/pkg/jobs"
	"github.com/taskwellio/taskwell/pkg/journal"
	"github.com/taskwellio/taskwell/pkg/natsbridge"
	"github.com/taskwellio/taskwell/pkg/observability/prometheus"
	"github.com/taskwellio/taskwell/pkg/observability/tracing"
	"github.com/taskwellio/taskwell/pkg/pool"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the configuration file (YAML or JSON)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		failfast.Exitf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	var traceShutdown func(context.Context) error
	if cfg.Observability.Tracing.Enabled {
		traceShutdown, err = tracing.Init(ctx, tracing.Config{
			Exporter:    cfg.Observability.Tracing.Exporter,
			Endpoint:    cfg.Observability.Tracing.Endpoint,
			ServiceName: cfg.Observability.Tracing.ServiceName,
			SampleRatio: cfg.Observability.Tracing.SampleRatio,
		})
		if err != nil {
			failfast.Exitf("init tracing: %v", err)
		}
		logger.Info("tracing enabled", "exporter", cfg.Observability.Tracing.Exporter)
	}

	// Journal
	jnl := openJournal(ctx, cfg.Journal)
	defer jnl.Close()

	// Metrics
	var metrics *prometheus.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = prometheus.GetMetrics()
	}

	// Pool, with metrics and the journal chained onto job completion
	journalHook := journal.Hook(jnl, "pool", func(format string, args ...interface{}) {
		logger.Warn(fmt.Sprintf(format, args...))
	})
	p := pool.New(pool.Config{
		Workers:   cfg.Pool.Workers,
		QueueSize: cfg.Pool.QueueSize,
		OnJobDone: func(r pool.JobResult) {
			if metrics != nil {
				metrics.ObserveJob(r)
			}
			journalHook(r)
		},
	})
	if metrics != nil {
		prometheus.DefaultRegisterer.MustRegister(prometheus.NewCollector(p))
	}
	logger.Info("pool started", "workers", p.Workers(), "queue_capacity", p.Stats().Capacity)

	// Job kinds
	registry := jobs.NewRegistry()
	if err := jobs.RegisterBuiltins(registry, func(format string, args ...interface{}) {
		logger.Info(fmt.Sprintf(format, args...))
	}); err != nil {
		failfast.Exitf("register builtin jobs: %v", err)
	}

	// Submission surfaces
	var gw *gateway.Gateway
	if cfg.Gateway.Enabled {
		gwCfg := gateway.DefaultConfig(cfg.Gateway.Addr)
		gwCfg.Auth = gateway.AuthConfig{
			Mode:         cfg.Gateway.Auth.Mode,
			JWTSecret:    cfg.Gateway.Auth.JWTSecret,
			Issuer:       cfg.Gateway.Auth.JWTIssuer,
			Leeway:       time.Duration(cfg.Gateway.Auth.JWTLeewaySeconds) * time.Second,
			APIKeyHashes: cfg.Gateway.Auth.APIKeyHashes,
		}
		gwCfg.Journal = jnl
		gwCfg.Logger = logger
		if cfg.Observability.Tracing.Enabled {
			gwCfg.WrapJob = func(j pool.Job) pool.Job { return tracing.WrapJob(j, "gateway") }
		}
		if metrics != nil {
			gwCfg.OnOutcome = func(outcome string) {
				metrics.GatewayRequestsTotal.WithLabelValues(outcome).Inc()
			}
		}

		gw, err = gateway.New(gwCfg, p, registry)
		if err != nil {
			failfast.Exitf("create gateway: %v", err)
		}
		if err := gw.Start(); err != nil {
			failfast.Exit(err)
		}
	}

	var insp *inspector.Inspector
	if cfg.Inspector.Enabled {
		inspCfg := inspector.DefaultConfig(cfg.Inspector.Addr)
		inspCfg.Logger = logger
		if cfg.Inspector.FeedIntervalMS > 0 {
			inspCfg.FeedInterval = time.Duration(cfg.Inspector.FeedIntervalMS) * time.Millisecond
		}

		insp, err = inspector.New(inspCfg, p, registry)
		if err != nil {
			failfast.Exitf("create inspector: %v", err)
		}
		if err := insp.Start(); err != nil {
			failfast.Exit(err)
		}
	}

	var bridge *natsbridge.Bridge
	if cfg.NATS.Enabled {
		bridgeCfg := natsbridge.Config{
			URL:    cfg.NATS.URL,
			Prefix: cfg.NATS.Prefix,
			Queue:  cfg.NATS.Queue,
			Logger: logger,
		}
		if cfg.Observability.Tracing.Enabled {
			bridgeCfg.WrapJob = func(j pool.Job) pool.Job { return tracing.WrapJob(j, "nats") }
		}

		bridge, err = natsbridge.New(bridgeCfg, p, registry)
		if err != nil {
			failfast.Exitf("connect nats bridge: %v", err)
		}
		logger.Info("nats bridge connected", "url", cfg.NATS.URL)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop intake first so no new jobs arrive while the pool drains
	if bridge != nil {
		if err := bridge.Close(); err != nil {
			logger.Error("nats bridge close failed", "error", err)
		}
	}
	if gw != nil {
		if err := gw.Shutdown(shutdownCtx); err != nil {
			logger.Error("gateway shutdown failed", "error", err)
		}
	}

	// Graceful drain: queued jobs run to completion within the timeout,
	// anything left after that is pulled off the queue and journaled
	if err := p.Shutdown(shutdownCtx); err != nil {
		drained := p.ShutdownNow()
		logger.Warn("graceful drain timed out", "drained_jobs", len(drained))
		recordDrained(jnl, drained, logger)
	}

	if insp != nil {
		if err := insp.Shutdown(shutdownCtx); err != nil {
			logger.Error("inspector shutdown failed", "error", err)
		}
	}
	if traceShutdown != nil {
		if err := traceShutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}

	logger.Info("stopped", "stats", p.Stats())
}

// openJournal builds the journal for the configured driver
func openJournal(ctx context.Context, cfg config.JournalConfig) journal.Journal {
	switch cfg.Driver {
	case "", "none":
		return journal.Nop()
	case "pgx":
		j, err := journal.NewPGX(ctx, cfg.DSN)
		if err != nil {
			failfast.Exitf("open pgx journal: %v", err)
		}
		return j
	default:
		j, err := journal.NewSQL(journal.SQLConfig{DriverName: cfg.Driver, DSN: cfg.DSN})
		if err != nil {
			failfast.Exitf("open %s journal: %v", cfg.Driver, err)
		}
		return j
	}
}

// recordDrained journals jobs removed unexecuted at shutdown.
// The drain totals reach Prometheus through the pool Collector.
func recordDrained(jnl journal.Journal, drained []pool.Job, logger *slog.Logger) {
	now := time.Now()
	for _, job := range drained {
		e := journal.Entry{
			Name:     job.Name(),
			Source:   "pool",
			Status:   journal.StatusDrained,
			Finished: now,
		}
		if ij, ok := job.(pool.IdentifiedJob); ok {
			e.JobID = ij.ID()
		}
		if err := jnl.Record(context.Background(), e); err != nil {
			logger.Warn("journal drained job failed", "job", job.Name(), "error", err)
		}
	}
}
