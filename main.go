// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
phixiv fixes pixiv embeds: it serves link previews and Mastodon statuses for pixiv artworks.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"codeberg.org/phixiv/phixiv/config"
	"codeberg.org/phixiv/phixiv/core"
	"codeberg.org/phixiv/phixiv/core/audit"
	"codeberg.org/phixiv/phixiv/core/requests"
	"codeberg.org/phixiv/phixiv/server/router"
	"codeberg.org/phixiv/phixiv/server/routes"
	"codeberg.org/phixiv/phixiv/server/utils"
)

const (
	// Values for http.Server timeouts.
	// ref: gosec: G112
	readHeaderTimeout time.Duration = 15 * time.Second
	readTimeout       time.Duration = 15 * time.Second
	writeTimeout      time.Duration = 30 * time.Second
	idleTimeout       time.Duration = 30 * time.Second

	serverShutdownDeadline time.Duration = 5 * time.Second

	socketPermissions os.FileMode = 0o660
)

var errChmodSocket = errors.New("failed to change unix socket permissions")

// main is the entry point of the application.
func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

// run orchestrates the application startup and graceful shutdown.
func run() error {
	audit.SetDefaultLogger()

	cfg := &config.ServerConfig{}
	if err := cfg.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client := requests.NewClient(cfg, utils.NewHTTPClient(cfg.Upstream.Timeout))

	listings, err := core.NewListingCache(cfg, core.NewBuilder(cfg, client))
	if err != nil {
		return fmt.Errorf("failed to create listing cache: %w", err)
	}

	router := router.NewRouter()
	router.DefineRoutes(cfg, routes.New(cfg, listings, client))

	if err := router.RegisterMiddleware(cfg); err != nil {
		return err
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := chooseListener(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		// either a signal or Serve failing
		<-groupCtx.Done()

		if ctx.Err() != nil {
			log.Info().Msg("Shutdown signal received, shutting down server...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownDeadline)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Server exited gracefully")

	return nil
}

func chooseListener(ctx context.Context, cfg *config.ServerConfig) (net.Listener, error) {
	// Check if we should use a Unix domain socket
	if cfg.Server.UnixSocket != "" {
		unixAddr := cfg.Server.UnixSocket

		unixListener, err := (&net.ListenConfig{}).Listen(ctx, "unix", unixAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start Unix socket listener on %v: %w", unixAddr, err)
		}

		if err := os.Chmod(unixAddr, socketPermissions); err != nil {
			_ = unixListener.Close()

			return nil, fmt.Errorf("%w: %w", errChmodSocket, err)
		}

		log.Info().
			Str("address", unixAddr).
			Msg("Listening on Unix domain socket")

		return unixListener, nil
	}

	// Otherwise, fall back to TCP listener
	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)

	tcpListener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start TCP listener on %v: %w", addr, err)
	}

	addr = tcpListener.Addr().String()

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		_ = tcpListener.Close()

		return nil, fmt.Errorf("failed to parse listener address %q: %w", addr, err)
	}

	// Log the address and convenient URL for local development
	log.Info().
		Str("address", addr).
		Str("port", port).
		Str("url", fmt.Sprintf("http://localhost:%v/artworks/20", port)).
		Msg("Listening on address")

	return tcpListener, nil
}
