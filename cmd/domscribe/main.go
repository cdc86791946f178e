// CLAUDE:SUMMARY CLI entry point for domscribe — render, file-apply, live-attach, and MCP stdio modes.
// Command domscribe maintains document metadata from the command line.
//
// Usage:
//
//	domscribe -config domscribe.yaml -render            # print rendered metadata
//	domscribe -config domscribe.yaml -apply page.html   # rewrite a file's head
//	domscribe -config domscribe.yaml -url https://example.com  # drive a live page
//	domscribe -mcp                                      # serve registry tools on stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domscribe/dom"
	"github.com/hazyhaar/domscribe/dom/htmldoc"
	"github.com/hazyhaar/domscribe/dom/roddoc"
	"github.com/hazyhaar/domscribe/meta"
	"github.com/hazyhaar/domscribe/snapstore"
	"github.com/hazyhaar/domscribe/state/sqlstate"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	configPath := flag.String("config", "", "path to domscribe.yaml config file")
	renderOnly := flag.Bool("render", false, "render metadata markup to stdout and exit")
	applyPath := flag.String("apply", "", "apply metadata to an HTML file in place")
	liveURL := flag.String("url", "", "attach to a live page at URL")
	serveMCP := flag.Bool("mcp", false, "serve registry tools over MCP stdio")
	snapshotPath := flag.String("snapshot", "", "path to the snapshot SQLite database")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *applyPath, *liveURL, *snapshotPath, *renderOnly, *serveMCP); err != nil {
		logger.Error("domscribe: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, applyPath, liveURL, snapshotPath string, renderOnly, serveMCP bool) error {
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	if snapshotPath == "" {
		snapshotPath = cfg.SnapshotDB
	}

	var snaps *snapstore.Store
	if snapshotPath != "" {
		snaps, err = snapstore.Open(snapshotPath)
		if err != nil {
			return fmt.Errorf("snapshot store: %w", err)
		}
		defer snaps.Close()
	}

	switch {
	case renderOnly:
		return runRender(ctx, logger, cfg, snaps)
	case applyPath != "":
		return runApply(ctx, logger, cfg, applyPath, snaps)
	case liveURL != "":
		return runLive(ctx, logger, cfg, liveURL, snaps, serveMCP)
	case serveMCP:
		return runMCP(ctx, logger, cfg, snaps)
	}

	// Returning instead of exiting here lets the deferred snapshot store
	// close run.
	return errors.New("no mode selected: use -render, -apply <file>, -url <url> or -mcp")
}

func resolveConfig(path string) (*meta.Config, error) {
	if path == "" {
		return &meta.Config{}, nil
	}
	cfg, err := meta.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// One-shot: seed a no-document registry and print the rendered markup.
func runRender(ctx context.Context, logger *slog.Logger, cfg *meta.Config, snaps *snapstore.Store) error {
	reg, cleanup, err := buildRegistry(ctx, logger, cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := restoreInto(ctx, logger, reg, snaps); err != nil {
		return err
	}
	if err := settle(ctx, reg); err != nil {
		return err
	}
	fmt.Println(reg.HTML())
	return persistFrom(ctx, logger, reg, snaps)
}

// One-shot: parse an HTML file, sync metadata into its head, write it back.
func runApply(ctx context.Context, logger *slog.Logger, cfg *meta.Config, path string, snaps *snapstore.Store) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	doc, err := htmldoc.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	reg, cleanup, err := buildRegistry(ctx, logger, cfg, doc)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := restoreInto(ctx, logger, reg, snaps); err != nil {
		return err
	}
	if err := settle(ctx, reg); err != nil {
		return err
	}

	out, err := doc.HTML()
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Info("domscribe: applied", "file", path, "entries", reg.Count())
	return persistFrom(ctx, logger, reg, snaps)
}

// Daemon: attach to a live page and keep its metadata in sync until the
// signal arrives. With -mcp the registry tools are also served on stdio.
func runLive(ctx context.Context, logger *slog.Logger, cfg *meta.Config, pageURL string, snaps *snapstore.Store, serveMCP bool) error {
	doc, err := roddoc.Open(ctx, pageURL, roddoc.OpenOptions{
		RemoteURL:       cfg.Browser.RemoteURL,
		NavigateTimeout: cfg.Browser.NavigateTimeout,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("attach %s: %w", pageURL, err)
	}
	defer doc.Close()

	reg, cleanup, err := buildRegistry(ctx, logger, cfg, doc)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := restoreInto(ctx, logger, reg, snaps); err != nil {
		return err
	}
	if err := settle(ctx, reg); err != nil {
		return err
	}
	logger.Info("domscribe: attached", "url", pageURL, "entries", reg.Count())

	if serveMCP {
		if err := serveStdio(ctx, logger, reg); err != nil {
			return err
		}
	} else {
		<-ctx.Done()
	}

	logger.Info("domscribe: shutting down")
	return persistAtShutdown(logger, reg, snaps)
}

// Daemon: serve the registry tools on stdio against a no-document registry.
func runMCP(ctx context.Context, logger *slog.Logger, cfg *meta.Config, snaps *snapstore.Store) error {
	reg, cleanup, err := buildRegistry(ctx, logger, cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := restoreInto(ctx, logger, reg, snaps); err != nil {
		return err
	}
	if err := settle(ctx, reg); err != nil {
		return err
	}

	if err := serveStdio(ctx, logger, reg); err != nil {
		return err
	}
	logger.Info("domscribe: shutting down")
	return persistAtShutdown(logger, reg, snaps)
}

// buildRegistry assembles the registry from config: the SQLite state store
// when one is configured, otherwise in-process state. The returned cleanup
// closes the registry before the store so the final drain can still read it.
func buildRegistry(ctx context.Context, logger *slog.Logger, cfg *meta.Config, doc dom.Document) (*meta.Registry, func(), error) {
	opts := cfg.RegistryOptions()
	opts.Document = doc
	opts.Logger = logger

	var closeState func()
	if cfg.State.DBPath != "" {
		st, err := sqlstate.Open(cfg.State.DBPath, sqlstate.Options{
			PollInterval: cfg.State.PollInterval,
			Debounce:     cfg.State.Debounce,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("state store: %w", err)
		}
		go st.Watch(ctx)
		opts.State = st
		closeState = func() { st.Close() }
		logger.Info("domscribe: state store", "db", cfg.State.DBPath)
	}

	reg := meta.New(opts)
	reg.Start(ctx)
	cleanup := func() {
		reg.Close()
		if closeState != nil {
			closeState()
		}
	}
	return reg, cleanup, nil
}

func serveStdio(ctx context.Context, logger *slog.Logger, reg *meta.Registry) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "domscribe",
		Version: "1.0.0",
	}, nil)
	reg.RegisterMCP(srv)

	logger.Info("domscribe: MCP serving on stdio")
	err := srv.Run(ctx, &mcp.IOTransport{Reader: os.Stdin, Writer: os.Stdout})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

// settle waits out the queued mutations plus the title rebuilds they
// schedule while executing.
func settle(ctx context.Context, reg *meta.Registry) error {
	if err := reg.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := reg.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func restoreInto(ctx context.Context, logger *slog.Logger, reg *meta.Registry, snaps *snapstore.Store) error {
	if snaps == nil {
		return nil
	}
	data, id, err := snaps.Load(ctx)
	if errors.Is(err, snapstore.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := reg.Restore(data).Wait(ctx); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	logger.Info("domscribe: snapshot restored", "id", id, "bytes", len(data))
	return nil
}

func persistFrom(ctx context.Context, logger *slog.Logger, reg *meta.Registry, snaps *snapstore.Store) error {
	if snaps == nil {
		return nil
	}
	data, err := reg.Serialize(ctx)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	id, err := snaps.Save(ctx, data)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	logger.Info("domscribe: snapshot saved", "id", id, "bytes", len(data))
	return nil
}

// persistAtShutdown saves under a fresh context: the signal context is
// already cancelled by the time the daemons get here.
func persistAtShutdown(logger *slog.Logger, reg *meta.Registry, snaps *snapstore.Store) error {
	if snaps == nil {
		return nil
	}
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return persistFrom(saveCtx, logger, reg, snaps)
}
