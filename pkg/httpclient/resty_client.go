package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options configures the shared outbound client.
type Options struct {
	// Timeout bounds a whole exchange; zero means no client-side timeout.
	Timeout time.Duration
	// ProxyURL routes outbound calls through an HTTP(S) proxy when set.
	ProxyURL string
	// CABundleFile adds PEM roots on top of the system pool.
	CABundleFile string
	// Transport replaces the default transport; ProxyURL and CABundleFile
	// are ignored when it is set.
	Transport http.RoundTripper
}

// NewRestyHTTPClient builds a configured resty.Client for relaying arbitrary verbs.
// Certificate verification is always enabled.
func NewRestyHTTPClient(opts Options) (*resty.Client, error) {
	c := newRestyBaseClient(opts.Timeout)

	if opts.Transport != nil {
		c.SetTransport(opts.Transport)
		return c, nil
	}

	if proxy := strings.TrimSpace(opts.ProxyURL); proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("parse proxy url: %q is not absolute", proxy)
		}
		c.SetProxy(u.String())
	}

	if path := strings.TrimSpace(opts.CABundleFile); path != "" {
		pool, err := loadRootCAs(path)
		if err != nil {
			return nil, err
		}
		c.SetTLSClientConfig(&tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		})
	}

	return c, nil
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetCookieJar(nil)
	c.SetAllowGetMethodPayload(true)
	c.SetPreRequestHook(stripDefaultHeaders)
	return c
}

type callerHeadersKey struct{}

// defaultHeaders are the headers resty fills in on its own.
var defaultHeaders = []string{"Content-Type", "Accept", "User-Agent"}

// WithCallerHeaders marks ctx so that requests dispatched with it carry only
// the given headers: resty's own Content-Type, Accept and User-Agent values
// are removed unless h sets them.
func WithCallerHeaders(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, callerHeadersKey{}, h)
}

func stripDefaultHeaders(_ *resty.Client, req *http.Request) error {
	caller, ok := req.Context().Value(callerHeadersKey{}).(http.Header)
	if !ok {
		return nil
	}
	for _, name := range defaultHeaders {
		if _, set := caller[name]; set {
			continue
		}
		req.Header.Del(name)
	}
	// A present but empty User-Agent stops net/http from sending its own.
	if _, set := caller["User-Agent"]; !set {
		req.Header["User-Agent"] = nil
	}
	return nil
}

// loadRootCAs returns the system pool extended with the PEM certificates in path.
func loadRootCAs(path string) (*x509.CertPool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca bundle: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(raw) {
		return nil, fmt.Errorf("ca bundle %q contains no PEM certificates", path)
	}
	return pool, nil
}
