// Command lruksim replays a synthetic page workload against the buffer pool
// and logs the resulting cache metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/sibexico/lrukpool/storage"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file (default: LRUKPOOL_* environment)")
	numPages := flag.Int("pages", 1000, "number of pages in the data file")
	hotPages := flag.Int("hot", 20, "number of frequently accessed pages")
	rounds := flag.Int("rounds", 50, "number of workload rounds")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lruksim: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.SlogLevel()}))

	w := workload{
		numPages: *numPages,
		hotPages: *hotPages,
		rounds:   *rounds,
		rng:      rand.New(rand.NewSource(*seed)),
	}
	if err := run(context.Background(), config, w, logger); err != nil {
		logger.Error("simulation failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*storage.Config, error) {
	if path != "" {
		return storage.LoadConfigFromFile(path)
	}
	config := storage.LoadConfigFromEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

type workload struct {
	numPages int
	hotPages int
	rounds   int
	rng      *rand.Rand
}

func run(ctx context.Context, config *storage.Config, w workload, logger *slog.Logger) error {
	if w.hotPages <= 0 || w.hotPages > w.numPages {
		return fmt.Errorf("hot pages must be between 1 and %d", w.numPages)
	}
	if w.rounds <= 0 {
		return fmt.Errorf("rounds must be greater than 0")
	}

	if dir := filepath.Dir(config.DataFile); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dm, err := storage.NewDiskManagerWithCompression(config.DataFile, config.CompressionType())
	if err != nil {
		return err
	}
	defer dm.Close()

	bpm, err := storage.NewBufferPoolManagerFromConfig(config, dm, logger)
	if err != nil {
		return err
	}

	logger.Info("starting simulation",
		slog.String("policy", config.ReplacerPolicy),
		slog.Uint64("k", uint64(config.ReplacerK)),
		slog.Uint64("pool_size", uint64(config.BufferPoolSize)),
		slog.Int("pages", w.numPages),
		slog.Int("hot_pages", w.hotPages),
	)

	pageIds, err := populate(bpm, w.numPages)
	if err != nil {
		return err
	}
	bpm.GetMetrics().Reset()

	// Each round touches the hot set a few times, then scans a slice of the cold pages once
	scanLen := max(1, (w.numPages-w.hotPages)/w.rounds)
	cold := pageIds[w.hotPages:]
	for round := 0; round < w.rounds; round++ {
		for i := 0; i < 3*w.hotPages; i++ {
			if err := touch(bpm, pageIds[w.rng.Intn(w.hotPages)], false); err != nil {
				return err
			}
		}
		start := (round * scanLen) % max(1, len(cold))
		for i := 0; i < scanLen && len(cold) > 0; i++ {
			if err := touch(bpm, cold[(start+i)%len(cold)], round%2 == 0); err != nil {
				return err
			}
		}
	}

	if err := bpm.FlushAllPages(ctx); err != nil {
		return err
	}

	metrics := bpm.GetMetrics()
	logger.Info("simulation finished",
		slog.Float64("hit_rate", metrics.GetCacheHitRate()),
		slog.Uint64("evictions", metrics.GetPageEvictions()),
	)
	if metrics.Enabled() {
		metrics.LogMetrics(logger)
	}
	return nil
}

// populate creates n pages, each stamped with its own ID
func populate(bpm *storage.BufferPoolManager, n int) ([]uint32, error) {
	ids := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		page, err := bpm.NewPage()
		if err != nil {
			return nil, fmt.Errorf("failed to create page %d: %w", i, err)
		}
		page.Write(0, []byte(fmt.Sprintf("page-%08d", page.GetPageId())))
		ids = append(ids, page.GetPageId())
		if err := bpm.UnpinPage(page.GetPageId(), true); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func touch(bpm *storage.BufferPoolManager, pageId uint32, write bool) error {
	page, err := bpm.FetchPage(pageId)
	if err != nil {
		return err
	}
	if write {
		page.Write(16, []byte{byte(pageId)})
	}
	return bpm.UnpinPage(pageId, write)
}
