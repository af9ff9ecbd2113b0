package inspector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taskwellio/taskwell/pkg/jobs"
	"github.com/taskwellio/taskwell/pkg/pool"
)

func startTestInspector(t *testing.T, p pool.Pool, registry *jobs.Registry) *Inspector {
	t.Helper()

	cfg := DefaultConfig("127.0.0.1:0")
	cfg.FeedInterval = 20 * time.Millisecond
	i, err := New(cfg, p, registry)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := i.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		i.Shutdown(ctx)
	})
	return i
}

func TestInspector_RequiresPool(t *testing.T) {
	if _, err := New(DefaultConfig(""), nil, nil); err == nil {
		t.Error("New() with nil pool should fail")
	}
}

func TestInspector_Status(t *testing.T) {
	p := pool.New(pool.Config{Workers: 2, QueueSize: 4})
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	registry := jobs.NewRegistry()
	registry.Register("echo", func(ctx context.Context, payload json.RawMessage) error {
		return nil
	})

	i := startTestInspector(t, p, registry)

	resp, err := http.Get("http://" + i.Addr() + "/status")
	if err != nil {
		t.Fatalf("Get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running {
		t.Error("Running = false, want true")
	}
	if status.Stats.Workers != 2 || status.Stats.Capacity != 4 {
		t.Errorf("stats = %+v, want 2 workers / capacity 4", status.Stats)
	}
	if len(status.Kinds) != 1 || status.Kinds[0] != "echo" {
		t.Errorf("kinds = %v, want [echo]", status.Kinds)
	}
}

func TestInspector_Metrics(t *testing.T) {
	p := pool.New(pool.Config{Workers: 1})
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	i := startTestInspector(t, p, jobs.NewRegistry())

	resp, err := http.Get("http://" + i.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("Get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "taskwell_") {
		t.Error("metrics output should contain taskwell_ metric families")
	}
}

func TestInspector_Feed(t *testing.T) {
	p := pool.New(pool.Config{Workers: 1, QueueSize: 2})
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	i := startTestInspector(t, p, jobs.NewRegistry())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+i.Addr()+"/feed", nil)
	if err != nil {
		t.Fatalf("Dial feed: %v", err)
	}
	defer conn.Close()

	// Expect at least two snapshots from the periodic feed
	for n := 0; n < 2; n++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var status Status
		if err := conn.ReadJSON(&status); err != nil {
			t.Fatalf("snapshot %d: %v", n, err)
		}
		if status.Stats.Workers != 1 {
			t.Errorf("snapshot %d: workers = %d, want 1", n, status.Stats.Workers)
		}
	}
}

func TestInspector_FeedClosedOnShutdown(t *testing.T) {
	p := pool.New(pool.Config{Workers: 1})
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	i := startTestInspector(t, p, jobs.NewRegistry())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+i.Addr()+"/feed", nil)
	if err != nil {
		t.Fatalf("Dial feed: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := i.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	// The server side closed the connection, reads must now fail
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for n := 0; n < 10; n++ {
		var status Status
		if err := conn.ReadJSON(&status); err != nil {
			return
		}
	}
	t.Error("feed connection should be closed after shutdown")
}
