package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		workers     int
		capacity    uint
		fpr         float64
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing gzip CSV coupon files")
	flag.StringVar(&pattern, "pattern", "*.csv.gz", "glob of coupon files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "files parsed concurrently")
	flag.UintVar(&capacity, "bloom-capacity", 10_000_000, "expected number of coupon rows")
	flag.Float64Var(&fpr, "bloom-fpr", 1e-7, "bloom filter false positive rate")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, ingestOptions{
		Workers:       workers,
		BloomCapacity: capacity,
		BloomFPR:      fpr,
	}); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, opts ingestOptions) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrapf(err, "glob %s", glob)
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", glob)
	}
	sort.Strings(files)

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	stats, err := ingest(ctx, files, postgres.NewCouponRepository(pool), opts)
	if err != nil {
		return errors.Wrap(err, "ingest coupons")
	}

	slog.Info("ingest summary",
		slog.Int("files", len(files)),
		slog.Uint64("rows", stats.Rows),
		slog.Uint64("created", stats.Created),
		slog.Uint64("existing", stats.Existing),
		slog.Uint64("duplicates", stats.Duplicates),
	)
	return nil
}
