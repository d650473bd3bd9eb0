package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netchatbridge/internal/bridge"
	"netchatbridge/internal/command"
	"netchatbridge/internal/config"
	"netchatbridge/internal/constants"
	"netchatbridge/internal/models"
	"netchatbridge/internal/permissions"
	"netchatbridge/internal/retry"
	"netchatbridge/internal/store"
	"netchatbridge/internal/tracing"
	"netchatbridge/pkg/matrix"
	"netchatbridge/pkg/netchat"

	"github.com/sirupsen/logrus"
	"go.mau.fi/util/random"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose        = flag.Bool("verbose", false, "Enable verbose logging")
	configPath     = flag.String("config", "configuration.json", "Path to configuration file")
	secretsPath    = flag.String("secrets", "secrets.json", "Path to Matrix credentials file")
	dbPath         = flag.String("db", "netchat_bridge.db", "Path to the persistent store (created if missing)")
	generateConfig = flag.Bool("generate-config", false, "Write a default configuration file and exit")
	version        = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("netchat-bridge %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	if *generateConfig {
		if err := config.WriteDefault(*configPath); err != nil {
			logrus.Fatalf("Unable to write configuration to %s: %v", *configPath, err)
		}
		logrus.Infof("Wrote default configuration to %s", *configPath)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting netchat-bridge")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	secrets, err := config.LoadSecrets(*secretsPath)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	configureLogLevel(logger, cfg)

	tracingManager := tracing.NewManager(cfg.Tracing, Version, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// The store is the only fatal dependency; give it a few attempts
	// before giving up.
	var st *store.SQLiteStore
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: constants.DefaultStoreBackoffMs * time.Millisecond,
		MaxDelay:     constants.DefaultStoreMaxBackoffMs * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultStoreRetryAttempts,
		Jitter:       true,
	})
	err = backoff.Retry(ctx, func() error {
		var initErr error
		st, initErr = store.New(*dbPath)
		if initErr != nil {
			logger.Warnf("Failed to open store: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to open store after retries: %w", err)
	}
	defer st.Close()

	requestTimeout := time.Duration(cfg.RequestTimeoutSec) * time.Second

	// The session tag only marks outbound requests; computed once here
	// and handed to the one component that talks to NetChat.
	ncClient := netchat.NewClient(netchat.ClientConfig{
		BaseURL:    cfg.NetChatBaseURL,
		Timeout:    requestTimeout,
		SessionTag: random.String(constants.SessionTagLen),
		Version:    Version,
	}, logger)

	mxClient, err := matrix.NewClient(matrix.ClientConfig{
		HomeserverURL:     secrets.HomeserverURL,
		Username:          secrets.Username,
		Password:          secrets.Password,
		DeviceID:          constants.MatrixDeviceID,
		DeviceDisplayName: constants.MatrixDeviceDisplayName,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to build Matrix client: %w", err)
	}

	registry := bridge.NewRegistry(st, ncClient, logger)

	inboundQueue := make(chan models.InboundMessage, constants.ForwardQueueSize)
	outboundQueue := make(chan models.OutboundMessage, constants.ForwardQueueSize)

	poller := bridge.NewPoller(registry, ncClient, inboundQueue,
		time.Duration(cfg.RefreshIntervalSec)*time.Second, requestTimeout, logger)
	inboundForwarder := bridge.NewInboundForwarder(mxClient, inboundQueue, requestTimeout, logger)
	outboundForwarder := bridge.NewOutboundForwarder(ncClient, outboundQueue, requestTimeout, logger)

	joiner := bridge.NewJoiner(mxClient, bridge.JoinerConfig{
		InitialDelay: time.Duration(cfg.JoinInitialBackoffSec) * time.Second,
		MaxDelay:     time.Duration(cfg.JoinMaxBackoffSec) * time.Second,
		Multiplier:   cfg.JoinBackoffMultiplier,
	}, logger)

	gate := permissions.NewGate(mxClient)
	dispatcher := command.NewDispatcher(mxClient, registry, gate, logger)
	eventLoop := bridge.NewEventLoop(mxClient, registry, dispatcher, joiner,
		outboundQueue, cfg.CommandPrefix, requestTimeout, logger)

	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}
	defer poller.Stop()
	if err := inboundForwarder.Start(ctx); err != nil {
		return fmt.Errorf("failed to start inbound forwarder: %w", err)
	}
	defer inboundForwarder.Stop()
	if err := outboundForwarder.Start(ctx); err != nil {
		return fmt.Errorf("failed to start outbound forwarder: %w", err)
	}
	defer outboundForwarder.Stop()

	go eventLoop.Run(ctx)

	var opsServer *Server
	if cfg.Server.Enabled {
		opsServer = NewServer(cfg.Server, registry, Version, logger)
		go func() {
			if err := opsServer.Start(); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Ops server stopped")
			}
		}()
	}

	// The Matrix sync loop is the process backbone: when it returns the
	// bridge is done.
	clientErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		clientErrCh <- mxClient.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-clientErrCh:
		if err != nil {
			logger.Error(err)
			return err
		}
	}

	if opsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			constants.DefaultGracefulShutdownSec*time.Second)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown ops server gracefully: %w", err)
		}
	}

	logger.Info("Shutdown completed")
	return nil
}

func configureLogLevel(logger *logrus.Logger, cfg *models.Config) {
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled")
		return
	}
	if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
			return
		}
		logger.SetLevel(level)
		return
	}
	logger.SetLevel(logrus.InfoLevel)
}
