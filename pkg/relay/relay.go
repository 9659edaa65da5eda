package relay

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/webview-relay/pkg/httpclient"
)

// Doer dispatches a relay request and maps the reply.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Relay performs HTTP calls on behalf of the front-end. A single Relay is
// meant to live for the whole process and is safe for concurrent use.
type Relay struct {
	opts httpclient.Options

	once   sync.Once
	client *resty.Client
	err    error
}

// New returns a Relay whose client is built from opts on first use.
func New(opts httpclient.Options) *Relay {
	return &Relay{opts: opts}
}

// Do validates req, dispatches it and maps the response.
func (r *Relay) Do(ctx context.Context, req Request) (*Response, error) {
	if _, ok := supportedMethods[req.Method]; !ok {
		return nil, newError(KindInvalidInput, nil, "unsupported http method: %s", req.Method)
	}

	client, err := r.httpClient()
	if err != nil {
		return nil, newError(KindClient, err, "create http client")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	sent := make(http.Header, len(req.Headers))
	for _, h := range req.Headers {
		if dropHeader(h.Name) {
			continue
		}
		sent.Add(h.Name, h.Value)
	}
	out := client.R().SetContext(httpclient.WithCallerHeaders(ctx, sent))
	out.Header = sent.Clone()
	if req.Body != nil {
		out.SetBody(bodyBytes(*req.Body))
	}

	resp, err := out.Execute(req.Method, req.URL)
	if err != nil {
		return nil, classifyFailure(resp, err)
	}

	body := resp.Body()
	if !utf8.Valid(body) {
		return nil, newError(KindBodyDecode, nil, "read response body: invalid utf-8 in %d bytes", len(body))
	}

	return &Response{
		Status:  uint16(resp.StatusCode()),
		Headers: responseHeaders(resp.Header()),
		Body:    string(body),
	}, nil
}

// httpClient builds the shared client once; a construction error sticks.
func (r *Relay) httpClient() (*resty.Client, error) {
	r.once.Do(func() {
		r.client, r.err = httpclient.NewRestyHTTPClient(r.opts)
	})
	return r.client, r.err
}

// bodyBytes always returns a non-nil slice so an empty body is still sent
// as a body rather than omitted.
func bodyBytes(s string) []byte {
	b := make([]byte, len(s))
	copy(b, s)
	return b
}

// dropHeader reports headers the transport derives itself.
func dropHeader(name string) bool {
	return strings.EqualFold(name, "origin") || strings.EqualFold(name, "host")
}

// classifyFailure separates dispatch errors from body read errors. net/http
// reports every dispatch failure as *url.Error; once a response arrived any
// other error came from reading its body.
func classifyFailure(resp *resty.Response, err error) error {
	var uerr *url.Error
	if resp != nil && resp.RawResponse != nil && !errors.As(err, &uerr) {
		return newError(KindBodyDecode, err, "read response body")
	}
	return newError(KindTransport, err, "request failed")
}

// responseHeaders flattens src sorted by name, keeping per-name value order
// and skipping values that are not valid UTF-8.
func responseHeaders(src http.Header) Headers {
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(Headers, 0, len(src))
	for _, name := range names {
		for _, v := range src[name] {
			if !utf8.ValidString(v) {
				continue
			}
			out = append(out, Header{Name: name, Value: v})
		}
	}
	return out
}
