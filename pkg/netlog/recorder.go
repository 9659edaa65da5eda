package netlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/webview-relay/pkg/publishers"
	"github.com/samvad-hq/webview-relay/pkg/relay"
)

const (
	publishTimeout = 10 * time.Second
	// mirrorBacklog bounds events waiting for the sinks; newer events are
	// dropped once it is full.
	mirrorBacklog = 1024
)

// Publisher mirrors entries to downstream sinks.
type Publisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Options tunes a Recorder.
type Options struct {
	// Source tags mirrored events, usually the app name.
	Source string
	// Enabled is the initial logging state.
	Enabled bool
	// BodyLimit caps logged response bodies in characters; zero keeps them whole.
	BodyLimit int
	// ExportDir receives exports made without an explicit path.
	ExportDir string
}

// Recorder is the host-side network logger. It is safe for concurrent use.
type Recorder struct {
	store     Store
	pub       Publisher
	log       Logger
	enabled   atomic.Bool
	source    string
	bodyLimit int
	exportDir string
	now       func() time.Time

	mirrorMu   sync.RWMutex
	mirror     chan publishers.Event
	mirrorDone chan struct{}
	closed     bool
}

// NewRecorder builds a recorder over store. A nil store falls back to an
// in-memory ring; pub may be nil.
func NewRecorder(store Store, pub Publisher, log Logger, opts Options) *Recorder {
	if store == nil {
		store = NewMemoryStore(DefaultMaxEntries)
	}
	if log == nil {
		log = noopLogger{}
	}
	r := &Recorder{
		store:     store,
		pub:       pub,
		log:       log,
		source:    opts.Source,
		bodyLimit: opts.BodyLimit,
		exportDir: opts.ExportDir,
		now:       time.Now,
	}
	r.enabled.Store(opts.Enabled)
	if pub != nil {
		r.mirror = make(chan publishers.Event, mirrorBacklog)
		r.mirrorDone = make(chan struct{})
		go r.runMirror()
	}
	return r
}

// Enabled reports whether new exchanges are being recorded.
func (r *Recorder) Enabled() bool { return r.enabled.Load() }

// SetEnabled toggles recording and returns the new state.
func (r *Recorder) SetEnabled(enabled bool) bool {
	r.enabled.Store(enabled)
	return enabled
}

// LogRequest records an outbound request.
func (r *Recorder) LogRequest(req relay.Request) {
	r.record(Entry{
		Type:    TypeRequest,
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers,
		Body:    req.Body,
	})
}

// LogResponse records the response to a request for url.
func (r *Recorder) LogResponse(method, url string, resp *relay.Response, elapsed time.Duration) {
	if !r.Enabled() {
		return
	}
	body := truncate(resp.Body, r.bodyLimit)
	r.record(Entry{
		Type:       TypeResponse,
		Method:     method,
		URL:        url,
		Status:     resp.Status,
		Headers:    resp.Headers,
		Body:       &body,
		Title:      htmlTitle(resp.Headers, resp.Body),
		DurationMS: millis(elapsed),
	})
}

// LogError records a failed exchange.
func (r *Recorder) LogError(method, url string, err error, elapsed time.Duration) {
	r.record(Entry{
		Type:       TypeError,
		Method:     method,
		URL:        url,
		Error:      err.Error(),
		ErrorKind:  string(relay.KindOf(err)),
		DurationMS: millis(elapsed),
	})
}

// Logs returns all retained entries, oldest first.
func (r *Recorder) Logs() ([]Entry, error) {
	entries, err := r.store.List()
	if err != nil {
		return nil, fmt.Errorf("list network logs: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Clear drops every retained entry.
func (r *Recorder) Clear() error {
	if err := r.store.Clear(); err != nil {
		return fmt.Errorf("clear network logs: %w", err)
	}
	return nil
}

// Export writes the retained entries as indented JSON. An empty path
// selects network-logs-<unix-ms>.json inside the export directory.
func (r *Recorder) Export(path string) (string, error) {
	entries, err := r.Logs()
	if err != nil {
		return "", err
	}

	if path == "" {
		path = filepath.Join(r.exportDir, fmt.Sprintf("network-logs-%d.json", r.now().UnixMilli()))
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create export directory: %w", err)
		}
	}

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode network logs: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", fmt.Errorf("write network logs: %w", err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// Close delivers queued mirrors and closes the store. Entries recorded
// after Close are stored but no longer mirrored.
func (r *Recorder) Close() error {
	r.mirrorMu.Lock()
	if r.mirror != nil && !r.closed {
		r.closed = true
		close(r.mirror)
	}
	r.mirrorMu.Unlock()

	if r.mirrorDone != nil {
		<-r.mirrorDone
	}
	return r.store.Close()
}

func (r *Recorder) record(e Entry) {
	if !r.Enabled() {
		return
	}
	e.Timestamp = r.now().UTC()

	if err := r.store.Append(e); err != nil {
		r.log.WarnObj("network log append failed", "netlog_error", map[string]any{
			"url":   e.URL,
			"error": err.Error(),
		})
	}
	if r.mirror == nil {
		return
	}
	r.enqueue(publishers.NewEvent(r.source, e.Type, e.Method, e.URL, e.Status, e))
}

// enqueue hands evt to the mirror worker without blocking the caller.
func (r *Recorder) enqueue(evt publishers.Event) {
	r.mirrorMu.RLock()
	defer r.mirrorMu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.mirror <- evt:
	default:
		r.log.WarnObj("network log mirror backlog full; event dropped", "netlog_publish_error", map[string]any{
			"url":  evt.URL,
			"kind": evt.Kind,
		})
	}
}

// runMirror publishes events one at a time so sinks see them in record order.
func (r *Recorder) runMirror() {
	defer close(r.mirrorDone)
	for evt := range r.mirror {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if _, err := r.pub.Publish(ctx, evt); err != nil {
			r.log.WarnObj("network log mirroring failed", "netlog_publish_error", map[string]any{
				"url":   evt.URL,
				"error": err.Error(),
			})
		}
		cancel()
	}
}
