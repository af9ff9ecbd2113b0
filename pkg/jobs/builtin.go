package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RegisterBuiltins installs the demo job kinds shipped with the daemon:
// "sleep" pauses for a duration, "echo" prints its message.
func RegisterBuiltins(r *Registry, printf func(format string, args ...interface{})) error {
	if printf == nil {
		printf = func(format string, args ...interface{}) {
			fmt.Printf(format+"\n", args...)
		}
	}

	if err := r.Register("sleep", func(ctx context.Context, payload json.RawMessage) error {
		var req struct {
			Millis int64 `json:"millis"`
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return fmt.Errorf("sleep payload: %w", err)
			}
		}
		if req.Millis <= 0 {
			req.Millis = 100
		}
		select {
		case <-time.After(time.Duration(req.Millis) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}); err != nil {
		return err
	}

	return r.Register("echo", func(ctx context.Context, payload json.RawMessage) error {
		var req struct {
			Message string `json:"message"`
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return fmt.Errorf("echo payload: %w", err)
			}
		}
		printf("echo: %s", req.Message)
		return nil
	})
}
