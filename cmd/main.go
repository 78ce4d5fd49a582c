package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/LorenzoCecattoPaim/Math/internal/cli"
	"github.com/LorenzoCecattoPaim/Math/internal/config"
	"github.com/LorenzoCecattoPaim/Math/internal/logger"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/oauth"
	"github.com/LorenzoCecattoPaim/Math/internal/session"
	state "github.com/LorenzoCecattoPaim/Math/internal/storage/bbolt"
	storage "github.com/LorenzoCecattoPaim/Math/internal/storage/minio"
	"github.com/LorenzoCecattoPaim/Math/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	// another provalab process may hold the file lock
	store, err := state.NewStoreFromFile(cfg.StatePath(), &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		logger.Fatal("failed to open local state", "error", err, "path", cfg.StatePath())
	}

	tokens, err := token.NewStore(store, logger)
	if err != nil {
		store.Close()
		logger.Fatal("failed to load session token", "error", err)
	}

	app := cli.NewApp(cfg, logger, store, tokens,
		googleSource(cfg, logger),
		avatarStorage(ctx, cfg, logger),
		cli.BuildInfo{Version: buildVersion, Date: buildDate, Commit: buildCommit},
	)

	err = cli.Execute(ctx, app, os.Args[1:])
	if closeErr := store.Close(); closeErr != nil {
		logger.Error("failed to close local state", "error", closeErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// googleSource returns nil when Google login is not configured so the
// session reports model.ErrGoogleDisabled.
func googleSource(cfg *config.Config, logger *logger.Logger) session.GoogleTokenSource {
	provider, err := oauth.NewProvider(cfg.Google, logger, oauth.WithURLHandler(func(authURL string) error {
		_, err := fmt.Fprintf(os.Stderr, "Open this link to sign in with Google:\n\n  %s\n\n", authURL)
		return err
	}))
	if errors.Is(err, model.ErrGoogleDisabled) {
		logger.Debug("Google login unavailable", "error", err)
		return nil
	}
	if err != nil {
		logger.Warn("failed to initialize Google login", "error", err)
		return nil
	}
	return provider
}

// avatarStorage returns nil when object storage is not configured or not
// reachable; avatar uploads then fail with model.ErrAvatarStorageDisabled.
func avatarStorage(ctx context.Context, cfg *config.Config, logger *logger.Logger) model.ObjectStorage {
	client, err := storage.NewClient(ctx, cfg.Storage)
	if errors.Is(err, model.ErrAvatarStorageDisabled) {
		return nil
	}
	if err != nil {
		logger.Warn("failed to initialize avatar storage", "error", err)
		return nil
	}
	return client
}
