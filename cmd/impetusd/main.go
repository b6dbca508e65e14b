// Command impetusd hosts Impetus game rooms over HTTP and WebSocket.
// Each room is an independent authoritative rules engine; the daemon adds
// seat tokens, bot play, optional input deadlines, and the SQLite archive.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/talgya/impetus/internal/api"
	"github.com/talgya/impetus/internal/archive"
	"github.com/talgya/impetus/internal/rooms"
)

type config struct {
	Port          int           `env:"IMPETUS_PORT" envDefault:"8080"`
	ArchivePath   string        `env:"IMPETUS_ARCHIVE" envDefault:"data/impetus.db"` // empty disables archiving
	InputDeadline time.Duration `env:"IMPETUS_INPUT_DEADLINE" envDefault:"0"`        // 0 waits forever
	LogLevel      slog.Level    `env:"IMPETUS_LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:""` // "pretty" forces the tint handler
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse environment", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	slog.Info("impetusd starting", "port", cfg.Port, "input_deadline", cfg.InputDeadline)

	// ── Archive ───────────────────────────────────────────────────────
	var sink rooms.Sink
	var store *archive.Store
	if cfg.ArchivePath != "" {
		if dir := filepath.Dir(cfg.ArchivePath); dir != "." {
			os.MkdirAll(dir, 0755)
		}
		var err error
		store, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			slog.Error("failed to open archive", "path", cfg.ArchivePath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		sink = store
		slog.Info("archive opened", "path", cfg.ArchivePath)
	} else {
		slog.Info("archiving disabled")
	}

	// ── Rooms + API ───────────────────────────────────────────────────
	manager := rooms.NewManager(cfg.InputDeadline, sink)
	server := &api.Server{
		Rooms: manager,
		Port:  cfg.Port,
	}
	server.Start()

	// Block until shutdown signal, then close every room so subscribers
	// drain and pending archive writes land before the store closes.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("shutting down")
	manager.Shutdown()
}

// setupLogging installs the default slog handler: tint when stderr is a
// terminal or LOG_FORMAT=pretty asks for it, plain text otherwise.
func setupLogging(cfg config) {
	var handler slog.Handler
	if cfg.LogFormat == "pretty" || isatty.IsTerminal(os.Stderr.Fd()) {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		})
	}
	slog.SetDefault(slog.New(handler))
}
