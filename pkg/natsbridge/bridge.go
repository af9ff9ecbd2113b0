package natsbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/taskwellio/taskwell/pkg/failfast"
	"github.com/taskwellio/taskwell/pkg/jobs"
	"github.com/taskwellio/taskwell/pkg/pool"
)

// Config configures the NATS ingestion bridge
type Config struct {
	// URL is the NATS server URL, e.g. "nats://127.0.0.1:4222"
	URL string

	// Prefix is prepended to all subjects. Default: "taskwell".
	Prefix string

	// Queue is the queue group name, so multiple bridge instances share
	// the subscription. Default: "taskwell-workers".
	Queue string

	// Name is an optional NATS connection name
	Name string

	// WrapJob, when set, wraps every accepted job before submission
	// (tracing instrumentation hooks in here)
	WrapJob func(pool.Job) pool.Job

	// Logger for bridge events. Default: slog.Default().
	Logger *slog.Logger
}

// reply is the acknowledgement sent when a submission carries a reply
// subject
type reply struct {
	Accepted  bool   `json:"accepted"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Bridge subscribes to <prefix>.submit.<kind> subjects and feeds decoded
// submissions into the pool. Pool backpressure propagates to the
// messaging tier as reject replies instead of blocking the NATS
// callback.
type Bridge struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	pool     pool.Pool
	registry *jobs.Registry
	prefix   string
	wrapJob  func(pool.Job) pool.Job
	logger   *slog.Logger
}

// New connects to NATS and starts the queue subscription
func New(cfg Config, p pool.Pool, registry *jobs.Registry) (*Bridge, error) {
	if p == nil {
		return nil, errors.New("pool cannot be nil")
	}
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}

	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "taskwell"
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "taskwell-workers"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(url, func(o *nats.Options) error {
		if cfg.Name != "" {
			o.Name = cfg.Name
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("natsbridge: connect: %w", err)
	}

	b := &Bridge{
		nc:       nc,
		pool:     p,
		registry: registry,
		prefix:   prefix,
		wrapJob:  cfg.WrapJob,
		logger:   logger,
	}

	sub, err := nc.QueueSubscribe(prefix+".submit.>", queue, b.handle)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsbridge: subscribe: %w", err)
	}
	b.sub = sub

	return b, nil
}

// handle processes one submission message
func (b *Bridge) handle(msg *nats.Msg) {
	var sub jobs.Submission
	if err := json.Unmarshal(msg.Data, &sub); err != nil {
		b.logger.Warn("bridge: bad submission payload", "subject", msg.Subject, "error", err)
		b.reply(msg, reply{Error: "invalid submission payload"})
		return
	}
	if sub.Kind == "" {
		// subject carries the kind: <prefix>.submit.<kind>
		sub.Kind = strings.TrimPrefix(msg.Subject, b.prefix+".submit.")
	}

	job, err := b.registry.Job(sub)
	if err != nil {
		b.logger.Warn("bridge: submission rejected", "kind", sub.Kind, "error", err)
		b.reply(msg, reply{Error: err.Error()})
		return
	}
	if b.wrapJob != nil {
		job = b.wrapJob(job)
	}

	// The reply's request ID is the ID the pool reports the job under,
	// so a submitter can correlate the ack with journal entries.
	requestID := uuid.NewString()
	job = pool.WithID(requestID, job)
	if err := b.pool.TrySubmit(job); err != nil {
		// ErrPoolFull here is backpressure surfacing to the messaging
		// tier; the submitter decides whether to retry
		b.logger.Warn("bridge: submit failed", "kind", sub.Kind, "error", err)
		b.reply(msg, reply{Error: err.Error()})
		return
	}

	b.reply(msg, reply{Accepted: true, RequestID: requestID})
}

// reply acknowledges msg when it has a reply subject
func (b *Bridge) reply(msg *nats.Msg, r reply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(r)
	failfast.Err(err)
	if err := msg.Respond(data); err != nil {
		b.logger.Warn("bridge: reply failed", "error", err)
	}
}

// Close unsubscribes and drains the NATS connection
func (b *Bridge) Close() error {
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			b.nc.Close()
			return err
		}
	}
	return b.nc.Drain()
}
