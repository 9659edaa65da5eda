package publishers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sinks is the validated content of a sinks file.
type Sinks struct {
	entries []PublisherConfig
	byID    map[string]int
}

type sinksDocument struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// LoadSinks reads a YAML or JSON sinks file. ${VAR} references are expanded
// from the environment before decoding so credentials can stay out of the
// file. Unknown fields are rejected.
func LoadSinks(path string) (*Sinks, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sinks file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sinks file: %w", err)
	}
	doc, err := decodeSinks([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("decode sinks file %s: %w", path, err)
	}
	return newSinks(doc.Publishers)
}

// decodeSinks picks JSON for .json files and YAML otherwise; YAML also
// accepts JSON documents.
func decodeSinks(data []byte, ext string) (sinksDocument, error) {
	var doc sinksDocument
	if strings.EqualFold(ext, ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return doc, dec.Decode(&doc)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return doc, dec.Decode(&doc)
}

func newSinks(cfgs []PublisherConfig) (*Sinks, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("sinks file declares no publishers")
	}

	s := &Sinks{
		entries: make([]PublisherConfig, 0, len(cfgs)),
		byID:    make(map[string]int, len(cfgs)),
	}
	for i, raw := range cfgs {
		cfg := raw.normalized()
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := s.byID[cfg.ID]; dup {
			return nil, fmt.Errorf("publishers[%d]: duplicate id %q", i, cfg.ID)
		}
		s.byID[cfg.ID] = len(s.entries)
		s.entries = append(s.entries, cfg)
	}
	return s, nil
}

// Lookup returns the sink declared with id.
func (s *Sinks) Lookup(id string) (PublisherConfig, bool) {
	if s == nil {
		return PublisherConfig{}, false
	}
	i, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return PublisherConfig{}, false
	}
	return s.entries[i], true
}

// Enabled returns the sinks that are switched on, in file order.
func (s *Sinks) Enabled() []PublisherConfig {
	if s == nil {
		return nil
	}
	var out []PublisherConfig
	for _, cfg := range s.entries {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}
