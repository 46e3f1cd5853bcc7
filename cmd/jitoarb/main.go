// Command jitoarb watches Jupiter buy/sell spreads and, when one clears the
// configured threshold, submits a tipped swap bundle through the Jito block
// engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/jitoarb/internal/app"
	"github.com/alanyoungcy/jitoarb/internal/config"
	"github.com/alanyoungcy/jitoarb/internal/crypto"
)

func main() {
	configPath := flag.String("config", "", "path to TOML configuration file (optional)")
	encryptTo := flag.String("encrypt-key", "", "encrypt the configured wallet key to this file or s3:// URI and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *encryptTo != "" {
		if err := encryptKey(ctx, cfg, *encryptTo, logger); err != nil {
			logger.Error("encrypt key failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("jitoarb starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)

	err = application.Run(ctx)
	application.Close()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("jitoarb stopped")
	default:
		logger.Error("application exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func encryptKey(ctx context.Context, cfg *config.Config, dest string, logger *slog.Logger) error {
	var store app.BlobStore
	if crypto.IsRemote(dest) {
		s, err := app.NewBlobStore(ctx, cfg)
		if err != nil {
			return err
		}
		store = s
	}
	pub, err := app.EncryptKey(ctx, cfg, dest, store)
	if err != nil {
		return err
	}
	logger.Info("wallet key encrypted",
		slog.String("wallet", pub),
		slog.String("dest", dest),
	)
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
