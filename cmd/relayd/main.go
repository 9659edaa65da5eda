package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/samvad-hq/webview-relay/internal/app"
	"github.com/samvad-hq/webview-relay/internal/config"
	"github.com/samvad-hq/webview-relay/internal/logger"
)

type cli struct {
	Serve  serveCmd  `cmd:"" default:"1" help:"Serve commands over HTTP on the configured loopback address."`
	Stdio  stdioCmd  `cmd:"" help:"Serve commands as JSON lines over stdin/stdout."`
	Invoke invokeCmd `cmd:"" help:"Run a single command and print its reply."`
}

type serveCmd struct{}

func (serveCmd) Run(ctx context.Context, shell *app.Shell) error {
	return shell.ServeHTTP(ctx)
}

type stdioCmd struct{}

func (stdioCmd) Run(ctx context.Context, shell *app.Shell) error {
	return shell.ServeStdio(ctx, os.Stdin, os.Stdout)
}

type invokeCmd struct {
	Command string `arg:"" help:"Command name, e.g. proxy_request."`
	Args    string `arg:"" optional:"" default:"{}" help:"Command arguments as a JSON object."`
}

func (c invokeCmd) Run(ctx context.Context, shell *app.Shell) error {
	reply := shell.Invoke(ctx, c.Command, []byte(c.Args))

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reply); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("%s failed: %s", c.Command, reply.Error.Kind)
	}
	return nil
}

func main() {
	var cmd cli
	kctx := kong.Parse(&cmd,
		kong.Name("relayd"),
		kong.Description("HTTP relay and network log host for desktop web front-ends."),
		kong.UsageOnError(),
	)
	if err := run(kctx); err != nil {
		fmt.Fprintf(os.Stderr, "relayd failed: %v\n", err)
		os.Exit(1)
	}
}

func run(kctx *kong.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("relayd starting", "config", map[string]any{
		"command":      kctx.Command(),
		"app_env":      cfg.Env,
		"listen_addr":  cfg.ListenAddr,
		"netlog_store": cfg.NetlogStore,
		"sinks_file":   cfg.SinksFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shell, err := app.NewShell(ctx, cfg, logger.Default())
	if err != nil {
		logger.ErrorObj("failed to initialize shell", "error", err)
		return err
	}
	defer func() {
		if err := shell.Close(); err != nil {
			logger.ErrorObj("shell close failed", "error", err)
		}
	}()

	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(shell)
}
