package netlog

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/webview-relay/pkg/relay"
)

// Entry types.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeError    = "error"
)

// Entry is a single network log record.
type Entry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Type       string        `json:"type"`
	Method     string        `json:"method,omitempty"`
	URL        string        `json:"url"`
	Status     uint16        `json:"status,omitempty"`
	Headers    relay.Headers `json:"headers,omitempty"`
	Body       *string       `json:"body,omitempty"`
	Title      string        `json:"title,omitempty"`
	Error      string        `json:"error,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	// DurationMS is nil for request entries; a fast exchange records 0.
	DurationMS *int64         `json:"duration,omitempty"`
}

func millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}

// truncate shortens s to limit runes and marks the cut with "...".
// A non-positive limit keeps s intact.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

// htmlTitle extracts the document title from HTML responses.
func htmlTitle(headers relay.Headers, body string) string {
	if !isHTML(headers) || body == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func isHTML(headers relay.Headers) bool {
	for _, h := range headers {
		if strings.EqualFold(h.Name, "Content-Type") && strings.Contains(strings.ToLower(h.Value), "text/html") {
			return true
		}
	}
	return false
}
