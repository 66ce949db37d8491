// Package main is the entry point of the conduit API server.
//
// main only reads configuration, builds the logger and hands over to
// internal/server. Everything else lives in internal/.
//
// Usage:
//
//	server                         # defaults + CONDUIT_* environment
//	server -config conduit.yaml    # YAML file, environment still wins
//	server -routes                 # print the route table as JSON and exit
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-chi/docgen"

	"github.com/sakif/conduit/internal/config"
	"github.com/sakif/conduit/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	printRoutes := flag.Bool("routes", false, "print the route table as JSON and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Without a configured secret every restart signs with a new key and
	// invalidates all issued tokens. Fine for local development only.
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = rand.Text()
		logger.Warn("CONDUIT_AUTH_JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	if *printRoutes {
		// An in-memory database keeps -routes free of side effects.
		cfg.Database.Path = ":memory:"
		srv, err := server.New(cfg, logger)
		if err != nil {
			logger.Error("failed to create server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Println(docgen.JSONRoutesDoc(srv.Routes()))
		srv.Close()
		return
	}

	if cfg.Database.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
