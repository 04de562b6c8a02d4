package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/moments/internal/auth"
	"github.com/spec-kit/moments/internal/config"
	"github.com/spec-kit/moments/internal/describe"
	"github.com/spec-kit/moments/internal/observability"
	"github.com/spec-kit/moments/internal/persistence"
	"github.com/spec-kit/moments/internal/repository"
	"github.com/spec-kit/moments/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	seedValue := flag.Uint64("seed", cfg.Seed.Seed, "random seed; equal seeds produce equal data")
	users := flag.Int("users", cfg.Seed.Users, "accounts to generate")
	follows := flag.Int("follows", cfg.Seed.Follows, "follow edges to draw")
	tags := flag.Int("tags", cfg.Seed.Tags, "tags to create")
	collects := flag.Int("collects", cfg.Seed.Collects, "collect edges to draw")
	comments := flag.Int("comments", cfg.Seed.Comments, "total comments to reach")
	uploadDir := flag.String("uploads", cfg.Media.UploadDir, "directory of uploaded images")
	metadata := flag.String("metadata", cfg.Media.MetadataFile, "image description catalog")
	flag.Parse()

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	catalog, err := describe.LoadCatalog(*metadata)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}

	store := seed.Store{
		Users:   repository.NewUserRepository(pg.PoolHandle()),
		Content: repository.NewContentRepository(pg.PoolHandle()),
	}
	seeder := seed.New(store, auth.NewBcryptHasher(cfg.Auth.BcryptCost), catalog, *seedValue, logger)

	summary, err := seeder.Run(ctx, seed.Plan{
		Users:     *users,
		Follows:   *follows,
		Tags:      *tags,
		UploadDir: *uploadDir,
		Collects:  *collects,
		Comments:  *comments,
	})
	if err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	logger.Info("seeded",
		zap.Uint64("seed", *seedValue),
		zap.Int("users", summary.Users),
		zap.Int("photos", summary.Photos))
}
