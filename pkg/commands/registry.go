package commands

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/webview-relay/pkg/relay"
)

// Handler runs a command against its raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Registry maps command names to handlers.
type Registry interface {
	Register(name string, h Handler)
	Invoke(ctx context.Context, name string, args json.RawMessage) (any, error)
	Names() []string
}

type registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      Logger
}

// NewRegistry returns a registry with optional pre-registered handlers.
func NewRegistry(handlers map[string]Handler, log Logger) Registry {
	if log == nil {
		log = noopLogger{}
	}
	r := &registry{
		handlers: make(map[string]Handler),
		log:      log,
	}
	for name, h := range handlers {
		r.Register(name, h)
	}
	return r
}

// Register associates a handler with a command name.
func (r *registry) Register(name string, h Handler) {
	if name = strings.TrimSpace(name); name == "" || h == nil {
		return
	}

	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
}

// Names lists registered commands in lexical order.
func (r *registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Invoke runs the named command. Unknown names fail with KindInvalidInput.
func (r *registry) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	h := r.handlers[name]
	r.mu.RUnlock()

	if h == nil {
		return nil, relay.InvalidInput("unknown command: %s", name)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	result, err := h(ctx, args)
	meta := map[string]any{
		"command":     name,
		"duration_ms": time.Since(start).Milliseconds(),
		"ok":          err == nil,
	}
	if err != nil {
		meta["error"] = err.Error()
		meta["kind"] = errorKind(err)
	}
	r.log.DebugObj("command invoked", "command_meta", meta)
	return result, err
}

// decodeArgs unmarshals args into dst. Missing or null arguments decode as
// an empty object.
func decodeArgs(command string, args json.RawMessage, dst any) error {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(trimmed), dst); err != nil {
		return relay.InvalidInput("invalid arguments for %s: %v", command, err)
	}
	return nil
}
