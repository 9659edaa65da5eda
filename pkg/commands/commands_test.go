package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/webview-relay/pkg/httpclient"
	"github.com/samvad-hq/webview-relay/pkg/netlog"
	"github.com/samvad-hq/webview-relay/pkg/relay"
)

func newTestRegistry(t *testing.T, exportDir string) (Registry, *netlog.Recorder) {
	t.Helper()
	rec := netlog.NewRecorder(netlog.NewMemoryStore(50), nil, nil, netlog.Options{
		Enabled:   true,
		BodyLimit: 1000,
		ExportDir: exportDir,
	})
	reg := DefaultRegistry(Deps{
		Relay:  relay.New(httpclient.Options{Timeout: 5 * time.Second}),
		Netlog: rec,
	})
	return reg, rec
}

func invoke(t *testing.T, reg Registry, name, args string) (any, error) {
	t.Helper()
	return reg.Invoke(context.Background(), name, json.RawMessage(args))
}

func TestDefaultRegistryNames(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())
	want := []string{
		APIRequest,
		NetworkClearLogs,
		NetworkExportLogs,
		NetworkGetLogs,
		NetworkToggleLogging,
		ProxyRequest,
		TestEcho,
		TestProxy,
	}
	got := reg.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected command names: %v", got)
	}
}

func TestInvokeUnknownCommand(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())
	_, err := invoke(t, reg, "open_devtools", "{}")
	if relay.KindOf(err) != relay.KindInvalidInput {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestDiagnosticCommands(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())

	got, err := invoke(t, reg, TestProxy, "")
	if err != nil || got != "Proxy is working!" {
		t.Fatalf("test_proxy: got %v err=%v", got, err)
	}

	got, err = invoke(t, reg, TestEcho, `{"message":"hi there"}`)
	if err != nil || got != "Echo: hi there" {
		t.Fatalf("test_echo: got %v err=%v", got, err)
	}

	got, err = invoke(t, reg, TestEcho, `{"message":""}`)
	if err != nil || got != "Echo: " {
		t.Fatalf("test_echo empty: got %v err=%v", got, err)
	}

	if _, err := invoke(t, reg, TestEcho, `{}`); relay.KindOf(err) != relay.KindInvalidInput {
		t.Fatalf("expected invalid_input for missing message, got %v", err)
	}
	if _, err := invoke(t, reg, TestEcho, `{"message":`); relay.KindOf(err) != relay.KindInvalidInput {
		t.Fatalf("expected invalid_input for malformed args, got %v", err)
	}
	if _, err := invoke(t, reg, TestEcho, `{"message":42}`); relay.KindOf(err) != relay.KindInvalidInput {
		t.Fatalf("expected invalid_input for mistyped args, got %v", err)
	}
}

func TestProxyRequestRelaysAndRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(r.Method + ":" + string(body) + ":" + r.Header.Get("Origin")))
	}))
	defer srv.Close()

	reg, rec := newTestRegistry(t, t.TempDir())
	args := `{"request":{"url":"` + srv.URL + `","method":"PUT","headers":[["Origin","tauri://localhost"],["X-Trace","1"]],"body":"data"}}`

	got, err := invoke(t, reg, ProxyRequest, args)
	if err != nil {
		t.Fatalf("proxy_request: %v", err)
	}
	resp, ok := got.(*relay.Response)
	if !ok {
		t.Fatalf("expected *relay.Response, got %T", got)
	}
	// An empty trailing segment means the Origin header never reached the server.
	if resp.Status != http.StatusCreated || resp.Body != "PUT:data:" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	entries, err := rec.Logs()
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(entries) != 2 || entries[0].Type != netlog.TypeRequest || entries[1].Type != netlog.TypeResponse {
		t.Fatalf("expected request and response entries, got %+v", entries)
	}
	if entries[1].Status != http.StatusCreated {
		t.Fatalf("unexpected logged status %d", entries[1].Status)
	}
}

func TestProxyRequestValidation(t *testing.T) {
	reg, rec := newTestRegistry(t, t.TempDir())

	if _, err := invoke(t, reg, ProxyRequest, `{}`); relay.KindOf(err) != relay.KindInvalidInput {
		t.Fatalf("expected invalid_input for missing request, got %v", err)
	}
	_, err := invoke(t, reg, ProxyRequest, `{"request":{"url":"http://127.0.0.1:1","method":"TRACE","headers":[]}}`)
	if relay.KindOf(err) != relay.KindInvalidInput {
		t.Fatalf("expected invalid_input for TRACE, got %v", err)
	}

	entries, _ := rec.Logs()
	if len(entries) != 2 || entries[1].Type != netlog.TypeError || entries[1].ErrorKind != string(relay.KindInvalidInput) {
		t.Fatalf("expected logged invalid_input error, got %+v", entries)
	}
}

func TestAPIRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" || r.Header.Get("Accept") != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "teapot") {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte(`{"error":"teapot"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	reg, _ := newTestRegistry(t, t.TempDir())

	got, err := invoke(t, reg, APIRequest, `{"url":"`+srv.URL+`","body":"{}"}`)
	if err != nil || got != `{"ok":true}` {
		t.Fatalf("api_request: got %v err=%v", got, err)
	}

	_, err = invoke(t, reg, APIRequest, `{"url":"`+srv.URL+`","body":"{\"kind\":\"teapot\"}"}`)
	var rerr *relay.Error
	if !errors.As(err, &rerr) || rerr.Kind != relay.KindHTTPStatus || rerr.Status != http.StatusTeapot {
		t.Fatalf("expected http_status 418, got %v", err)
	}
	if rerr.Error() != `HTTP 418: {"error":"teapot"}` {
		t.Fatalf("unexpected message %q", rerr.Error())
	}

	if _, err := invoke(t, reg, APIRequest, `{"url":"`+srv.URL+`"}`); relay.KindOf(err) != relay.KindInvalidInput {
		t.Fatalf("expected invalid_input for missing body, got %v", err)
	}
}

func TestNetworkLogCommands(t *testing.T) {
	dir := t.TempDir()
	reg, rec := newTestRegistry(t, dir)

	if _, err := invoke(t, reg, TestProxy, ""); err != nil {
		t.Fatalf("test_proxy: %v", err)
	}
	rec.LogRequest(relay.Request{URL: "https://example.com", Method: relay.MethodGet})

	got, err := invoke(t, reg, NetworkGetLogs, "")
	if err != nil {
		t.Fatalf("network_get_logs: %v", err)
	}
	if entries := got.([]netlog.Entry); len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}

	got, err = invoke(t, reg, NetworkExportLogs, "{}")
	if err != nil {
		t.Fatalf("network_export_logs: %v", err)
	}
	exported := got.(exportResult)
	if !exported.Success || filepath.Dir(exported.Path) != dir {
		t.Fatalf("unexpected export result %+v", exported)
	}
	if _, err := os.Stat(exported.Path); err != nil {
		t.Fatalf("export file missing: %v", err)
	}

	explicit := filepath.Join(dir, "custom", "logs.json")
	got, err = invoke(t, reg, NetworkExportLogs, `{"path":"`+explicit+`"}`)
	if err != nil || got.(exportResult).Path != explicit {
		t.Fatalf("explicit export: got %v err=%v", got, err)
	}

	got, err = invoke(t, reg, NetworkToggleLogging, `{"enabled":false}`)
	if err != nil || got != (toggleResult{Success: true, Enabled: false}) {
		t.Fatalf("toggle: got %v err=%v", got, err)
	}
	if rec.Enabled() {
		t.Fatalf("expected recorder to be disabled")
	}
	if _, err := invoke(t, reg, NetworkToggleLogging, `{}`); relay.KindOf(err) != relay.KindInvalidInput {
		t.Fatalf("expected invalid_input for missing enabled, got %v", err)
	}

	got, err = invoke(t, reg, NetworkClearLogs, "")
	if err != nil || got != (successResult{Success: true}) {
		t.Fatalf("clear: got %v err=%v", got, err)
	}
	if entries, _ := rec.Logs(); len(entries) != 0 {
		t.Fatalf("expected empty log after clear, got %d", len(entries))
	}
}

func TestNewReplyEnvelope(t *testing.T) {
	raw, err := json.Marshal(NewReply("Echo: x", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"ok":true,"result":"Echo: x"}` {
		t.Fatalf("unexpected success envelope %s", raw)
	}

	reply := NewReply(nil, relay.InvalidInput("unsupported http method: TRACE"))
	reply.ID = json.RawMessage(`7`)
	raw, _ = json.Marshal(reply)
	if string(raw) != `{"id":7,"ok":false,"error":{"kind":"invalid_input","message":"unsupported http method: TRACE"}}` {
		t.Fatalf("unexpected error envelope %s", raw)
	}

	if got := NewReply(nil, errors.New("disk full")); got.Error.Kind != KindInternal {
		t.Fatalf("expected internal kind, got %+v", got.Error)
	}
}
