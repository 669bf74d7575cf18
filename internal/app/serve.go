package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lantern.fyi/grantmatch/internal/cli"
	"lantern.fyi/grantmatch/internal/db"
	"lantern.fyi/grantmatch/internal/embed"
	"lantern.fyi/grantmatch/internal/export"
	"lantern.fyi/grantmatch/internal/httpapi"
	"lantern.fyi/grantmatch/internal/logging"
	"lantern.fyi/grantmatch/internal/match"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Host interface to bind (defaults to config)")
	port := fs.Int("port", 0, "HTTP port (defaults to config)")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *port < 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	embedder, err := embed.NewOpenAIEmbedder(cfg.EmbeddingHost, cfg.EmbeddingModel)
	if err != nil {
		logger.Error().Err(err).Msg("embedder initialization failed")
		fmt.Fprintf(os.Stderr, "Failed to initialize embedder: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	serveHost := cfg.HTTPHost
	if *host != "" {
		serveHost = *host
	}
	servePort := cfg.HTTPPort
	if *port > 0 {
		servePort = *port
	}

	srv := httpapi.NewServer(
		pool,
		match.NewService(pool, embedder, logger),
		export.NewService(pool, logger),
		logger,
		httpapi.Options{
			Host:            serveHost,
			Port:            servePort,
			ReadTimeout:     *readTimeout,
			WriteTimeout:    *writeTimeout,
			ShutdownTimeout: *shutdownTimeout,
			SessionTTL:      time.Duration(cfg.SessionTTLHours) * time.Hour,
			SessionSecure:   cfg.SessionSecure,
		},
	)

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", serveHost).Int("port", servePort).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
