package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/moments/internal/config"
	"github.com/spec-kit/moments/internal/describe"
	"github.com/spec-kit/moments/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	uploadDir := flag.String("uploads", cfg.Media.UploadDir, "directory of uploaded images")
	metadata := flag.String("metadata", cfg.Media.MetadataFile, "catalog file to update")
	endpoint := flag.String("url", cfg.Media.DescriberURL, "describer service endpoint")
	threshold := flag.Float64("threshold", cfg.Media.DescriberThreshold, "minimum detection score kept as a label")
	workers := flag.Int("workers", cfg.Media.DescriberWorkers, "concurrent describe calls")
	timeout := flag.Duration("timeout", 30*time.Second, "per-image request timeout")
	flag.Parse()

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if *endpoint == "" {
		logger.Fatal("describer url is required (-url or DESCRIBER_URL)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := describe.LoadCatalog(*metadata)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}

	describer := describe.NewHTTPDescriber(*endpoint, *threshold, *timeout)
	result, err := describe.NewGenerator(describer, *uploadDir, *workers, logger).Generate(ctx, catalog)
	if err != nil {
		logger.Fatal("generate descriptions", zap.Error(err))
	}

	if err := catalog.Save(*metadata); err != nil {
		logger.Fatal("save catalog", zap.Error(err))
	}
	logger.Info("catalog updated",
		zap.String("path", *metadata),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
}
