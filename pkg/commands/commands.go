package commands

import (
	"context"
	"encoding/json"

	"github.com/samvad-hq/webview-relay/pkg/netlog"
	"github.com/samvad-hq/webview-relay/pkg/relay"
)

// Command names exposed to the front-end.
const (
	ProxyRequest         = "proxy_request"
	APIRequest           = "api_request"
	TestProxy            = "test_proxy"
	TestEcho             = "test_echo"
	NetworkGetLogs       = "network_get_logs"
	NetworkClearLogs     = "network_clear_logs"
	NetworkToggleLogging = "network_toggle_logging"
	NetworkExportLogs    = "network_export_logs"
)

const proxyOK = "Proxy is working!"

// Deps are the collaborators the default command set runs against.
type Deps struct {
	// Relay performs outbound calls. Calls are recorded by Netlog.
	Relay relay.Doer
	// Netlog may be nil; a disabled in-memory recorder is used instead.
	Netlog *netlog.Recorder
	Log    Logger
}

type successResult struct {
	Success bool `json:"success"`
}

type toggleResult struct {
	Success bool `json:"success"`
	Enabled bool `json:"enabled"`
}

type exportResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

// DefaultRegistry wires the relay, forwarder, diagnostics and network log
// commands.
func DefaultRegistry(deps Deps) Registry {
	rec := deps.Netlog
	if rec == nil {
		rec = netlog.NewRecorder(nil, nil, nil, netlog.Options{})
	}
	doer := netlog.Observe(deps.Relay, rec)
	fwd := relay.NewForwarder(doer)

	return NewRegistry(map[string]Handler{
		ProxyRequest:         proxyRequest(doer),
		APIRequest:           apiRequest(fwd),
		TestProxy:            testProxy,
		TestEcho:             testEcho,
		NetworkGetLogs:       getLogs(rec),
		NetworkClearLogs:     clearLogs(rec),
		NetworkToggleLogging: toggleLogging(rec),
		NetworkExportLogs:    exportLogs(rec),
	}, deps.Log)
}

func proxyRequest(doer relay.Doer) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args struct {
			Request *relay.Request `json:"request"`
		}
		if err := decodeArgs(ProxyRequest, raw, &args); err != nil {
			return nil, err
		}
		if args.Request == nil {
			return nil, relay.InvalidInput("missing argument: request")
		}
		resp, err := doer.Do(ctx, *args.Request)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
}

func apiRequest(fwd *relay.Forwarder) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args struct {
			URL  *string `json:"url"`
			Body *string `json:"body"`
		}
		if err := decodeArgs(APIRequest, raw, &args); err != nil {
			return nil, err
		}
		if args.URL == nil {
			return nil, relay.InvalidInput("missing argument: url")
		}
		if args.Body == nil {
			return nil, relay.InvalidInput("missing argument: body")
		}
		body, err := fwd.Forward(ctx, *args.URL, *args.Body)
		if err != nil {
			return nil, err
		}
		return body, nil
	}
}

func testProxy(context.Context, json.RawMessage) (any, error) {
	return proxyOK, nil
}

func testEcho(_ context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Message *string `json:"message"`
	}
	if err := decodeArgs(TestEcho, raw, &args); err != nil {
		return nil, err
	}
	if args.Message == nil {
		return nil, relay.InvalidInput("missing argument: message")
	}
	return "Echo: " + *args.Message, nil
}

func getLogs(rec *netlog.Recorder) Handler {
	return func(context.Context, json.RawMessage) (any, error) {
		entries, err := rec.Logs()
		if err != nil {
			return nil, err
		}
		return entries, nil
	}
}

func clearLogs(rec *netlog.Recorder) Handler {
	return func(context.Context, json.RawMessage) (any, error) {
		if err := rec.Clear(); err != nil {
			return nil, err
		}
		return successResult{Success: true}, nil
	}
}

func toggleLogging(rec *netlog.Recorder) Handler {
	return func(_ context.Context, raw json.RawMessage) (any, error) {
		var args struct {
			Enabled *bool `json:"enabled"`
		}
		if err := decodeArgs(NetworkToggleLogging, raw, &args); err != nil {
			return nil, err
		}
		if args.Enabled == nil {
			return nil, relay.InvalidInput("missing argument: enabled")
		}
		return toggleResult{Success: true, Enabled: rec.SetEnabled(*args.Enabled)}, nil
	}
}

func exportLogs(rec *netlog.Recorder) Handler {
	return func(_ context.Context, raw json.RawMessage) (any, error) {
		var args struct {
			Path string `json:"path"`
		}
		if err := decodeArgs(NetworkExportLogs, raw, &args); err != nil {
			return nil, err
		}
		path, err := rec.Export(args.Path)
		if err != nil {
			return nil, err
		}
		return exportResult{Success: true, Path: path}, nil
	}
}
