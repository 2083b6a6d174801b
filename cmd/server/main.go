package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"campus-connect/ai"
	"campus-connect/auth"
	"campus-connect/infrastructure/httpapi"
	"campus-connect/infrastructure/ws"
	"campus-connect/internal"
	"campus-connect/moderation"
	"campus-connect/observability"
	"campus-connect/relay"
	"campus-connect/repositories"
	"campus-connect/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle. Keeping
// the logic out of main ensures deferred cleanup executes before the process
// exits and keeps initialization testable.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB records, Bluge search index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	messages, err := repositories.NewMessageRepository(db, index, log, config.SearchLimit)
	if err != nil {
		return err
	}
	defer func() { _ = messages.Close() }()
	users := repositories.NewUserRepository(db)

	// 3. Moderation gate
	denylist, err := moderation.LoadDenylist()
	if err != nil {
		return fmt.Errorf("denylist loading failed: %w", err)
	}
	log.Info(fmt.Sprintf("%d denylist files loaded [%s]",
		len(denylist.Languages), strings.Join(denylist.Languages, ",")))
	log.Info(fmt.Sprintf("%d unique denylist entries loaded", len(denylist.Entries)))

	gate, err := moderation.NewGate(denylist.Entries, ai.NewSentimentClassifier(),
		config.ModerationThreshold, log)
	if err != nil {
		return err
	}

	// 4. Relay pipeline & services
	monitor := observability.NewMonitor()
	registry := relay.NewConnectionRegistry(log, monitor)
	tokens := auth.NewTokenManager(config.AuthSecret, config.AuthTokenDuration)
	chatService := services.NewChatService(log, tokens, registry, gate, messages, monitor)
	authService := services.NewAuthService(users, tokens, config.AllowedEmailDomain)

	// 5. HTTP surface
	chatHandler := ws.NewHandler(log, chatService, config.SendTimeout, config.MaxMessageSize)
	apiHandler := httpapi.NewHandler(log, authService, chatService, tokens, monitor)
	router := httpapi.NewRouter(apiHandler, chatHandler)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	chatService.Shutdown()
	log.Info("Program stopped cleanly")

	return nil
}
