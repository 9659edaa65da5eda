package netlog

import (
	"context"
	"time"

	"github.com/samvad-hq/webview-relay/pkg/relay"
)

// observedDoer records every exchange that passes through the wrapped Doer.
type observedDoer struct {
	next relay.Doer
	rec  *Recorder
}

// Observe wraps next so that requests, responses and failures are recorded
// by rec. Results and errors are returned unchanged.
func Observe(next relay.Doer, rec *Recorder) relay.Doer {
	if rec == nil {
		return next
	}
	return &observedDoer{next: next, rec: rec}
}

func (o *observedDoer) Do(ctx context.Context, req relay.Request) (*relay.Response, error) {
	o.rec.LogRequest(req)
	start := time.Now()

	resp, err := o.next.Do(ctx, req)
	if err != nil {
		o.rec.LogError(req.Method, req.URL, err, time.Since(start))
		return nil, err
	}
	o.rec.LogResponse(req.Method, req.URL, resp, time.Since(start))
	return resp, nil
}
