package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/0xADE/ade-launchd/internal/config"
	"github.com/0xADE/ade-launchd/internal/helper"
	"github.com/0xADE/ade-launchd/internal/icons"
	"github.com/0xADE/ade-launchd/internal/index"
	"github.com/0xADE/ade-launchd/internal/launcher"
	"github.com/0xADE/ade-launchd/internal/logx"
	"github.com/0xADE/ade-launchd/internal/runindex"
	"github.com/0xADE/ade-launchd/internal/scanner"
	"github.com/0xADE/ade-launchd/internal/store"
	"github.com/0xADE/ade-launchd/server"
)

func main() {
	os.Exit(run())
}

// run starts the daemon and blocks until it stops. It returns the process
// exit code so deferred cleanup runs before exiting.
func run() int {
	// Initialize configuration
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize config: %v\n", err)
		return 1
	}
	cfg := config.Get()
	env := cfg.Env()

	logger, closer, err := openLogger(env.LogFile, logx.ParseLevel(cfg.LogLevel()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return 1
	}
	defer closer.Close()

	db, err := store.Open(env.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open application store: %v\n", err)
		return 1
	}
	defer db.Close()

	h := helper.New(env.Helper, logger)
	ctl := index.NewController(db, tools(h, logger), logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snap := cfg.Snapshot()
	if err := ctl.Init(ctx, snap); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize index: %v\n", err)
		return 1
	}

	if cacheDir, err := runindex.DefaultCacheDir(); err == nil {
		if n, err := runindex.Import(db, cacheDir, logger); err != nil {
			logger.Warnf("Run index import failed: %v", err)
		} else if n > 0 {
			if err := ctl.Reload(); err != nil {
				logger.Warnf("Reload after import failed: %v", err)
			}
		}
	}

	// Start config watcher
	watcher, err := config.NewWatcher(cfg, logger, func(next config.Snapshot) {
		logger.SetLevel(logx.ParseLevel(cfg.LogLevel()))
		rescan := sourcesChanged(snap, next)
		snap = next
		if err := ctl.Init(ctx, next); err != nil {
			logger.Errorf("Applying settings failed: %v", err)
			return
		}
		if rescan {
			if err := ctl.ForceRefresh(ctx); err != nil {
				logger.Errorf("Rescan after settings change failed: %v", err)
			}
		}
	})
	if err != nil {
		logger.Warnf("Settings watcher disabled: %v", err)
	} else {
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	srv, err := server.NewServer(cfg.UnixSocket(), ctl, launcher.New(h, cfg.Terminal(), logger), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		return 1
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Infof("ade-launchd started on %s", cfg.UnixSocket())

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
		cancel()
		if err := srv.Stop(); err != nil {
			logger.Errorf("Error stopping server: %v", err)
		}
	case err := <-serverErr:
		if err != nil {
			logger.Errorf("Server error: %v", err)
			return 1
		}
	}

	logger.Infof("ade-launchd stopped")
	return 0
}

// tools builds the scanner and icon generator for a settings snapshot.
// Unreadable custom scripts fall back to the built-in ones.
func tools(h *helper.Helper, logger *logx.Logger) index.Tools {
	return func(snap config.Snapshot) (index.SourceScanner, index.IconGenerator) {
		sc := scanner.New(h, logger)
		if len(snap.Extensions) > 0 {
			sc.Extensions = snap.Extensions
		}
		sc.Executables = snap.Executables
		if script, err := scanner.LoadRegistryScript(snap.RegistryScript); err != nil {
			logger.Warnf("Using built-in registry script: %v", err)
		} else {
			sc.RegistryScript = script
		}

		gen := icons.New(h, snap.IconDir, logger)
		if script, err := icons.LoadScript(snap.IconScript); err != nil {
			logger.Warnf("Using built-in icon script: %v", err)
		} else {
			gen.Script = script
		}
		return sc, gen
	}
}

func sourcesChanged(prev, next config.Snapshot) bool {
	return !slices.Equal(prev.SearchPaths, next.SearchPaths) ||
		!slices.Equal(prev.Extensions, next.Extensions) ||
		prev.Executables != next.Executables ||
		prev.RegistryScript != next.RegistryScript
}

func openLogger(path string, level logx.Level) (*logx.Logger, io.Closer, error) {
	if path == "" {
		return logx.New(os.Stderr, level), io.NopCloser(nil), nil
	}
	return logx.NewFile(path, level)
}
