package publishers

import (
	"time"
)

// Event represents a network log entry mirrored downstream.
type Event struct {
	Source     string    `json:"source"`
	Kind       string    `json:"kind"`
	Method     string    `json:"method,omitempty"`
	URL        string    `json:"url"`
	Status     uint16    `json:"status,omitempty"`
	Payload    any       `json:"payload"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewEvent constructs an Event for the given source + log entry.
func NewEvent(source, kind, method, url string, status uint16, payload any) Event {
	return Event{
		Source:     source,
		Kind:       kind,
		Method:     method,
		URL:        url,
		Status:     status,
		Payload:    payload,
		RecordedAt: time.Now().UTC(),
	}
}

// attributes returns the routing attributes attached to queue/topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"source": e.Source,
		"kind":   e.Kind,
	}
}
