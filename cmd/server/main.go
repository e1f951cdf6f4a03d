package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chatwire/auth"
	"chatwire/infrastructure/ws"
	"chatwire/internal"
	"chatwire/moderation"
	"chatwire/repositories"
	"chatwire/runtime"
	"chatwire/runtime/workers"
	"chatwire/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper: it calls run() and
	// handles the OS exit code, so every defer in run() still executes.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := config.CharacterRune()
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug store inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		internal.StartDebugServer(db, config.DebugPort, endpoint)
	}

	store := repositories.NewConversationRepository(db, logger)
	defer func() {
		_ = store.Close()
	}()

	// 4. Core wiring: presence, moderation, routing
	moderator, err := moderation.NewModerator(config.CensoredWordList(), charReplacement)
	if err != nil {
		return exitConfig, fmt.Errorf("moderation word list: %w", err)
	}

	registry := runtime.NewRegistry(logger)
	router := runtime.NewRouter(logger, store, registry, moderator)
	chatService := services.NewChatService(router, store)

	// 5. Background workers under supervision
	broadcaster := runtime.NewRosterBroadcaster(logger, registry)
	heartbeat := workers.NewHeartbeatWorker(logger, registry, config.MetricInterval)

	sup := workers.NewSupervisor(logger)
	sup.Add(broadcaster, heartbeat)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. Realtime boundary
	verifier := auth.NewTokenService(config.JWTSecret, config.JWTIssuer, config.TokenDuration)
	server := ws.NewServer(ctx, logger, ws.Config{
		Addr:            fmt.Sprintf("%s:%d", config.Host, config.Port),
		ReadTimeout:     config.ReadTimeout,
		SendBuffer:      config.SendBuffer,
		ShutdownTimeout: config.ShutdownTimeout,
		OriginPatterns:  config.AllowedOriginList(),
	}, verifier, registry, chatService)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("realtime server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	_ = server.Shutdown()
	sup.Stop()
	<-supDone
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
