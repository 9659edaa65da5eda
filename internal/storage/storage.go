package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/webview-relay/pkg/netlog"
)

// Package storage provides the network log backends.

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	MaxEntries      int
	EntryTTL        time.Duration
	CleanupInterval time.Duration
}

const (
	defaultEntryTTL        = 24 * time.Hour
	defaultCleanupInterval = time.Hour
)

// NewStore creates the configured network log backend.
func NewStore(typ, path string, opts Options) (netlog.Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "memory":
		return netlog.NewMemoryStore(opts.MaxEntries), nil
	case "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = netlog.DefaultMaxEntries
	}
	if opts.EntryTTL <= 0 {
		opts.EntryTTL = defaultEntryTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Append(netlog.Entry) error      { return nil }
func (noopStore) List() ([]netlog.Entry, error) { return nil, nil }
func (noopStore) Clear() error                  { return nil }
func (noopStore) Close() error                  { return nil }
