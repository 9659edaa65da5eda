package relay

import (
	"encoding/json"
	"fmt"
)

// Supported request methods. Matching is exact and case-sensitive.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
	MethodPatch  = "PATCH"
)

var supportedMethods = map[string]struct{}{
	MethodGet:    {},
	MethodPost:   {},
	MethodPut:    {},
	MethodDelete: {},
	MethodPatch:  {},
}

// Request describes an outbound call issued by the front-end.
type Request struct {
	URL     string  `json:"url"`
	Method  string  `json:"method"`
	Headers Headers `json:"headers"`
	// Body is nil when no body should be sent at all.
	Body *string `json:"body,omitempty"`
}

// Response is the normalized result of a relayed call.
type Response struct {
	Status  uint16  `json:"status"`
	Headers Headers `json:"headers"`
	Body    string  `json:"body"`
}

// Header is a single name/value pair. It encodes as a two-element JSON array.
type Header struct {
	Name  string
	Value string
}

// Headers keeps pairs in insertion order and allows duplicates.
type Headers []Header

// Values returns every value recorded for name, compared exactly.
func (h Headers) Values(name string) []string {
	var out []string
	for _, hdr := range h {
		if hdr.Name == name {
			out = append(out, hdr.Value)
		}
	}
	return out
}

func (h Header) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{h.Name, h.Value})
}

func (h *Header) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("header must be a [name, value] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("header must be a [name, value] pair, got %d elements", len(pair))
	}
	h.Name, h.Value = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes nil as an empty list so the wire shape is always an array.
func (h Headers) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Header(h))
}
