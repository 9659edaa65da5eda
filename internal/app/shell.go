package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samvad-hq/webview-relay/internal/bridge"
	"github.com/samvad-hq/webview-relay/internal/config"
	"github.com/samvad-hq/webview-relay/internal/logger"
	"github.com/samvad-hq/webview-relay/internal/storage"
	"github.com/samvad-hq/webview-relay/pkg/commands"
	"github.com/samvad-hq/webview-relay/pkg/httpclient"
	"github.com/samvad-hq/webview-relay/pkg/netlog"
	"github.com/samvad-hq/webview-relay/pkg/publishers"
	"github.com/samvad-hq/webview-relay/pkg/relay"
)

// Shell is the host-side runtime. It owns the relay, the network log and
// its sinks, and exposes the command set over the bridges.
type Shell struct {
	cfg      *config.Config
	recorder *netlog.Recorder
	fanout   *publishers.Fanout
	registry commands.Registry
	log      logger.Logger
}

// NewShell builds the runtime from config.
func NewShell(ctx context.Context, cfg *config.Config, log logger.Logger) (*Shell, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rl := relay.New(httpclient.Options{
		Timeout:      cfg.RequestTimeout,
		ProxyURL:     cfg.ProxyURL,
		CABundleFile: cfg.CABundleFile,
	})

	fanout, err := loadSinks(ctx, cfg.SinksFile, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.NetlogStore, cfg.NetlogBBoltPath, storage.Options{
		MaxEntries:      cfg.NetlogMaxEntries,
		EntryTTL:        cfg.NetlogTTL,
		CleanupInterval: cfg.NetlogCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init network log storage: %w", err)
	}
	log.InfoObj("network log initialized", "netlog_config", map[string]any{
		"enabled":                  cfg.NetlogEnabled,
		"store":                    cfg.NetlogStore,
		"path":                     cfg.NetlogBBoltPath,
		"max_entries":              cfg.NetlogMaxEntries,
		"body_limit":               cfg.NetlogBodyLimit,
		"ttl_seconds":              int(cfg.NetlogTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.NetlogCleanupInterval.Seconds()),
	})

	var pub netlog.Publisher
	if fanout.Size() > 0 {
		pub = fanout
	}
	recorder := netlog.NewRecorder(store, pub, log, netlog.Options{
		Source:    cfg.AppName,
		Enabled:   cfg.NetlogEnabled,
		BodyLimit: cfg.NetlogBodyLimit,
		ExportDir: cfg.NetlogExportDir,
	})

	registry := commands.DefaultRegistry(commands.Deps{
		Relay:  rl,
		Netlog: recorder,
		Log:    log,
	})
	log.InfoObj("commands registered", "commands", registry.Names())

	return &Shell{
		cfg:      cfg,
		recorder: recorder,
		fanout:   fanout,
		registry: registry,
		log:      log,
	}, nil
}

// loadSinks builds the network log mirrors listed in path. An empty path
// yields an empty fanout.
func loadSinks(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		return publishers.NewFanout(nil), nil
	}

	sinks, err := publishers.LoadSinks(path)
	if err != nil {
		return nil, fmt.Errorf("load sinks file: %w", err)
	}
	enabled := sinks.Enabled()
	clients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, sinkCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   sinkCfg.ID,
			"type": sinkCfg.Type,
		})
	}
	log.InfoObj("sinks registry loaded", "sinks_meta", map[string]any{
		"count": len(summaries),
		"sinks": summaries,
	})
	return publishers.NewFanout(clients), nil
}

// Commands exposes the registered command set.
func (s *Shell) Commands() commands.Registry {
	return s.registry
}

// Invoke runs a single command and wraps its outcome in a reply envelope.
func (s *Shell) Invoke(ctx context.Context, name string, args []byte) commands.Reply {
	result, err := s.registry.Invoke(ctx, name, args)
	return commands.NewReply(result, err)
}

// ServeHTTP runs the HTTP bridge until ctx is cancelled.
func (s *Shell) ServeHTTP(ctx context.Context) error {
	handler := bridge.NewHTTPHandler(s.registry, s.cfg.AllowedOrigins, s.log)
	return bridge.ServeHTTP(ctx, s.cfg.ListenAddr, handler, s.log)
}

// ServeStdio runs the line-delimited bridge over in and out.
func (s *Shell) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.InfoObj("stdio bridge starting", "commands", s.registry.Names())
	return bridge.ServeStdio(ctx, s.registry, in, out, s.log)
}

// Close flushes pending sink deliveries and releases storage and sink clients.
func (s *Shell) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if err := s.recorder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close network log: %w", err))
	}
	if err := s.fanout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sinks: %w", err))
	}
	return errors.Join(errs...)
}
