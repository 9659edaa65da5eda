package relay

import (
	"context"
	"fmt"
)

// Forwarder posts JSON payloads to a single API through a Doer.
type Forwarder struct {
	relay Doer
}

// NewForwarder wraps d with the fixed JSON API convention.
func NewForwarder(d Doer) *Forwarder {
	return &Forwarder{relay: d}
}

// Forward POSTs body to url with JSON content negotiation headers and returns
// the response body for 2xx replies. Relay failures are returned unchanged;
// any other status yields a KindHTTPStatus error.
func (f *Forwarder) Forward(ctx context.Context, url, body string) (string, error) {
	req := Request{
		URL:    url,
		Method: MethodPost,
		Headers: Headers{
			{Name: "Content-Type", Value: "application/json"},
			{Name: "Accept", Value: "application/json"},
		},
		Body: &body,
	}

	resp, err := f.relay.Do(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Status >= 200 && resp.Status < 300 {
		return resp.Body, nil
	}
	return "", &Error{
		Kind:   KindHTTPStatus,
		Msg:    fmt.Sprintf("HTTP %d: %s", resp.Status, resp.Body),
		Status: resp.Status,
		Body:   resp.Body,
	}
}
