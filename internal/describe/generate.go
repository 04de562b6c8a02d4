package describe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ListImages returns the image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageTypes[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Generator fills a catalog with descriptions of uploaded images.
type Generator struct {
	describer Describer
	uploadDir string
	workers   int
	logger    *zap.Logger
}

// NewGenerator builds a generator running up to workers describe calls at once.
func NewGenerator(describer Describer, uploadDir string, workers int, logger *zap.Logger) *Generator {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{describer: describer, uploadDir: uploadDir, workers: workers, logger: logger}
}

// Result summarizes a generation run.
type Result struct {
	Processed int
	Skipped   int
	Failed    int
}

// Generate describes every image in the upload dir that the catalog does
// not yet hold. A failing image is logged and left out so the next run
// retries it.
func (g *Generator) Generate(ctx context.Context, catalog *Catalog) (Result, error) {
	names, err := ListImages(g.uploadDir)
	if err != nil {
		return Result{}, err
	}

	var processed, skipped, failed atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	for _, name := range names {
		if catalog.Has(name) {
			skipped.Add(1)
			g.logger.Debug("skipping image, already processed", zap.String("file", name))
			continue
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			desc, err := g.describeFile(egCtx, name)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				failed.Add(1)
				g.logger.Warn("describe image", zap.String("file", name), zap.Error(err))
				return nil
			}
			catalog.Put(name, desc)
			processed.Add(1)
			g.logger.Info("processed image",
				zap.String("file", name),
				zap.String("caption", desc.Caption),
				zap.Strings("objects", desc.Labels))
			return nil
		})
	}

	err = eg.Wait()
	return Result{
		Processed: int(processed.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}, err
}

func (g *Generator) describeFile(ctx context.Context, name string) (Description, error) {
	data, err := os.ReadFile(filepath.Join(g.uploadDir, name))
	if err != nil {
		return Description{}, err
	}
	return g.describer.Describe(ctx, Image{
		Filename:    name,
		ContentType: imageTypes[strings.ToLower(filepath.Ext(name))],
		Data:        data,
	})
}
