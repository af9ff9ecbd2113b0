package config

// File is the top-level daemon configuration loaded by cmd/taskwell.
// Defaults are applied first, then the file, then TASKWELL_* environment
// overrides.
type File struct {
	Pool          PoolConfig          `yaml:"pool" json:"pool"`
	Gateway       GatewayConfig       `yaml:"gateway" json:"gateway"`
	Inspector     InspectorConfig     `yaml:"inspector" json:"inspector"`
	NATS          NATSConfig          `yaml:"nats" json:"nats"`
	Journal       JournalConfig       `yaml:"journal" json:"journal"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// PoolConfig sizes the worker pool
type PoolConfig struct {
	Workers   int `yaml:"workers" json:"workers"`
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// GatewayConfig configures the HTTP submission gateway
type GatewayConfig struct {
	Enabled bool       `yaml:"enabled" json:"enabled"`
	Addr    string     `yaml:"addr" json:"addr"`
	Auth    AuthConfig `yaml:"auth" json:"auth"`
}

// AuthConfig selects the gateway authentication mode:
// "none", "jwt" (HS256 bearer tokens) or "apikey" (bcrypt-hashed keys)
type AuthConfig struct {
	Mode             string   `yaml:"mode" json:"mode"`
	JWTSecret        string   `yaml:"jwt_secret" json:"jwt_secret"`
	JWTIssuer        string   `yaml:"jwt_issuer" json:"jwt_issuer"`
	JWTLeewaySeconds int      `yaml:"jwt_leeway_seconds" json:"jwt_leeway_seconds"`
	APIKeyHashes     []string `yaml:"api_key_hashes" json:"api_key_hashes"`
}

// InspectorConfig configures the status/metrics/feed endpoint
type InspectorConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Addr           string `yaml:"addr" json:"addr"`
	FeedIntervalMS int    `yaml:"feed_interval_ms" json:"feed_interval_ms"`
}

// NATSConfig configures the messaging ingestion bridge
type NATSConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url" json:"url"`
	Prefix  string `yaml:"prefix" json:"prefix"`
	Queue   string `yaml:"queue" json:"queue"`
}

// JournalConfig configures the job journal.
// Driver is "none", "sqlite3" or "postgres" (database/sql), or "pgx"
// (native pgxpool).
type JournalConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// ObservabilityConfig configures metrics and tracing
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// MetricsConfig enables Prometheus metrics on the inspector
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// TracingConfig configures OpenTelemetry tracing.
// Exporter is "stdout", "jaeger" or "zipkin".
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	Exporter    string  `yaml:"exporter" json:"exporter"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	ServiceName string  `yaml:"service_name" json:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio" json:"sample_ratio"`
}

// Default returns the daemon configuration defaults
func Default() File {
	return File{
		Pool: PoolConfig{
			Workers:   4,
			QueueSize: 0, // pool defaults this to Workers
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Addr:    ":8080",
			Auth:    AuthConfig{Mode: "none"},
		},
		Inspector: InspectorConfig{
			Enabled:        true,
			Addr:           ":8081",
			FeedIntervalMS: 1000,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Prefix:  "taskwell",
			Queue:   "taskwell-workers",
		},
		Journal: JournalConfig{
			Driver: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true},
			Tracing: TracingConfig{
				Enabled:     false,
				Exporter:    "stdout",
				ServiceName: "taskwell",
				SampleRatio: 1.0,
			},
		},
	}
}

// LoadFile loads the daemon configuration: defaults, then the file at
// path, then TASKWELL_* env overrides, then validation. An empty path
// means defaults only; a supplied path that does not exist is an error.
func LoadFile(path string) (File, error) {
	cfg := Default()

	if path != "" {
		if err := Load(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := ApplyEnvOverrides("TASKWELL", &cfg); err != nil {
		return cfg, err
	}

	if err := Validate(&cfg,
		OneOfValidator("Gateway.Auth.Mode", "none", "jwt", "apikey"),
		OneOfValidator("Journal.Driver", "none", "sqlite3", "postgres", "pgx"),
		OneOfValidator("Observability.Tracing.Exporter", "stdout", "jaeger", "zipkin"),
		RangeValidator("Observability.Tracing.SampleRatio", 0, 1),
	); err != nil {
		return cfg, err
	}

	return cfg, nil
}
