package netlog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/webview-relay/pkg/publishers"
	"github.com/samvad-hq/webview-relay/pkg/relay"
)

type stubPublisher struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
}

func (s *stubPublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	if s.err != nil {
		return 0, s.err
	}
	return 1, nil
}

type stubDoer struct {
	resp *relay.Response
	err  error
}

func (s stubDoer) Do(context.Context, relay.Request) (*relay.Response, error) {
	return s.resp, s.err
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func newTestRecorder(pub Publisher, opts Options) *Recorder {
	rec := NewRecorder(NewMemoryStore(10), pub, nil, opts)
	rec.now = fixedClock
	return rec
}

func TestObserveRecordsRequestAndResponse(t *testing.T) {
	pub := &stubPublisher{}
	rec := newTestRecorder(pub, Options{Source: "test", Enabled: true, BodyLimit: 5})
	doer := Observe(stubDoer{resp: &relay.Response{
		Status:  200,
		Headers: relay.Headers{{Name: "Content-Type", Value: "text/html; charset=utf-8"}},
		Body:    "<html><head><title> Vault </title></head><body>hello</body></html>",
	}}, rec)

	body := `{"a":1}`
	resp, err := doer.Do(context.Background(), relay.Request{URL: "https://x", Method: "POST", Body: &body})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("expected response passed through, got %d", resp.Status)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	logs, err := rec.Logs()
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(logs))
	}
	if logs[0].Type != TypeRequest || logs[0].Method != "POST" || *logs[0].Body != body {
		t.Fatalf("unexpected request entry %#v", logs[0])
	}
	got := logs[1]
	if got.Type != TypeResponse || got.Status != 200 {
		t.Fatalf("unexpected response entry %#v", got)
	}
	if *got.Body != "<html..." {
		t.Fatalf("expected truncated body, got %q", *got.Body)
	}
	if got.Title != "Vault" {
		t.Fatalf("expected html title, got %q", got.Title)
	}
	if !got.Timestamp.Equal(fixedClock()) {
		t.Fatalf("unexpected timestamp %v", got.Timestamp)
	}
	if len(pub.events) != 2 || pub.events[0].Kind != TypeRequest || pub.events[1].Kind != TypeResponse || pub.events[1].Source != "test" {
		t.Fatalf("unexpected mirrored events %#v", pub.events)
	}
}

func TestRecorderMirrorsInRecordOrder(t *testing.T) {
	pub := &stubPublisher{}
	rec := newTestRecorder(pub, Options{Enabled: true})
	doer := Observe(stubDoer{resp: &relay.Response{Status: 204}}, rec)

	const calls = 20
	for i := 0; i < calls; i++ {
		if _, err := doer.Do(context.Background(), relay.Request{URL: "https://x/" + strconv.Itoa(i), Method: "GET"}); err != nil {
			t.Fatalf("Do %d: %v", i, err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(pub.events) != 2*calls {
		t.Fatalf("expected %d mirrored events, got %d", 2*calls, len(pub.events))
	}
	for i := 0; i < calls; i++ {
		req, resp := pub.events[2*i], pub.events[2*i+1]
		url := "https://x/" + strconv.Itoa(i)
		if req.Kind != TypeRequest || req.URL != url || resp.Kind != TypeResponse || resp.URL != url {
			t.Fatalf("event pair %d out of order: %+v then %+v", i, req, resp)
		}
	}
}

func TestRecorderAfterCloseStopsMirroring(t *testing.T) {
	pub := &stubPublisher{}
	rec := NewRecorder(NewMemoryStore(10), pub, nil, Options{Enabled: true})
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	rec.LogRequest(relay.Request{URL: "https://late", Method: "GET"})
	if err := rec.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no mirrored events after close, got %d", len(pub.events))
	}
}

func TestRecorderKeepsZeroDurations(t *testing.T) {
	rec := newTestRecorder(nil, Options{Enabled: true})
	rec.LogRequest(relay.Request{URL: "https://x", Method: "GET"})
	rec.LogResponse("GET", "https://x", &relay.Response{Status: 200}, 0)
	rec.LogError("GET", "https://x", errors.New("boom"), 0)

	logs, _ := rec.Logs()
	if len(logs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(logs))
	}
	raw, err := json.Marshal(logs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded[0]["duration"]; ok {
		t.Fatalf("request entry should carry no duration: %v", decoded[0])
	}
	for _, e := range decoded[1:] {
		if d, ok := e["duration"]; !ok || d != float64(0) {
			t.Fatalf("expected duration 0 on %v entry, got %v", e["type"], e["duration"])
		}
	}
}

func TestObserveRecordsErrors(t *testing.T) {
	rec := newTestRecorder(nil, Options{Enabled: true})
	cause := &relay.Error{Kind: relay.KindTransport, Msg: "request failed: refused"}
	doer := Observe(stubDoer{err: cause}, rec)

	_, err := doer.Do(context.Background(), relay.Request{URL: "https://x", Method: "GET"})
	if !errors.Is(err, cause) {
		t.Fatalf("expected error passed through, got %v", err)
	}

	logs, _ := rec.Logs()
	if len(logs) != 2 || logs[1].Type != TypeError {
		t.Fatalf("expected request + error entries, got %#v", logs)
	}
	if logs[1].Error != "request failed: refused" || logs[1].ErrorKind != "transport" {
		t.Fatalf("unexpected error entry %#v", logs[1])
	}
}

func TestRecorderDisabledSkipsEntries(t *testing.T) {
	rec := newTestRecorder(nil, Options{Enabled: false})
	rec.LogRequest(relay.Request{URL: "https://x", Method: "GET"})
	if logs, _ := rec.Logs(); len(logs) != 0 {
		t.Fatalf("expected no entries while disabled, got %d", len(logs))
	}

	if !rec.SetEnabled(true) || !rec.Enabled() {
		t.Fatalf("expected recorder enabled")
	}
	rec.LogRequest(relay.Request{URL: "https://x", Method: "GET"})
	if logs, _ := rec.Logs(); len(logs) != 1 {
		t.Fatalf("expected 1 entry after enabling, got %d", len(logs))
	}
}

func TestRecorderMirroringFailureDoesNotAffectLog(t *testing.T) {
	pub := &stubPublisher{err: errors.New("queue down")}
	rec := newTestRecorder(pub, Options{Enabled: true})
	rec.LogRequest(relay.Request{URL: "https://x", Method: "GET"})
	_ = rec.Close()

	if logs, _ := rec.Logs(); len(logs) != 1 {
		t.Fatalf("expected entry retained despite mirroring failure")
	}
}

func TestRecorderExport(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecorder(nil, Options{Enabled: true, ExportDir: filepath.Join(dir, "exports")})
	rec.LogRequest(relay.Request{URL: "https://x", Method: "DELETE"})

	path, err := rec.Export("")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasSuffix(path, "network-logs-1714564800000.json") {
		t.Fatalf("unexpected export path %s", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(entries) != 1 || entries[0].Method != "DELETE" {
		t.Fatalf("unexpected exported entries %#v", entries)
	}

	explicit := filepath.Join(dir, "custom.json")
	got, err := rec.Export(explicit)
	if err != nil {
		t.Fatalf("Export explicit: %v", err)
	}
	if got != explicit {
		t.Fatalf("expected %s, got %s", explicit, got)
	}
}

func TestRecorderClear(t *testing.T) {
	rec := newTestRecorder(nil, Options{Enabled: true})
	rec.LogRequest(relay.Request{URL: "https://x", Method: "GET"})
	if err := rec.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	logs, err := rec.Logs()
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if logs == nil || len(logs) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", logs)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	if got := truncate("héllo wörld", 4); got != "héll..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncate("unbounded", 0); got != "unbounded" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
