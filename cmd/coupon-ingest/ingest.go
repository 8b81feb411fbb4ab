package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
)

const progressEvery = 100_000

var hundred = decimal.NewFromInt(100)

type couponCreator interface {
	Create(ctx context.Context, c *coupon.Coupon) error
}

type ingestOptions struct {
	Workers       int
	BloomCapacity uint
	BloomFPR      float64
}

type ingestStats struct {
	Rows       uint64
	Created    uint64
	Existing   uint64
	Duplicates uint64
}

// ingest parses files concurrently and writes their coupons through a single
// writer. The bloom filter only marks a (user, code) pair as a candidate
// repeat of this run; the store's unique constraint decides. A rejected
// candidate counts as a duplicate, any other rejected pair as existing.
func ingest(ctx context.Context, files []string, repo couponCreator, opts ingestOptions) (ingestStats, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	rows := make(chan *coupon.Coupon, 1024)

	g, ctx := errgroup.WithContext(ctx)

	parsers, pctx := errgroup.WithContext(ctx)
	parsers.SetLimit(opts.Workers)
	g.Go(func() error {
		defer close(rows)
		for _, path := range files {
			parsers.Go(func() error {
				n, err := streamCouponFile(pctx, path, func(c *coupon.Coupon) error {
					select {
					case rows <- c:
						return nil
					case <-pctx.Done():
						return pctx.Err()
					}
				})
				if err != nil {
					return errors.Wrapf(err, "parse %s", path)
				}
				slog.Info("file parsed", slog.String("path", path), slog.Int("rows", n))
				return nil
			})
		}
		return parsers.Wait()
	})

	var stats ingestStats
	g.Go(func() error {
		seen := bloom.NewWithEstimates(opts.BloomCapacity, opts.BloomFPR)
		for c := range rows {
			stats.Rows++
			if stats.Rows%progressEvery == 0 {
				slog.Info("write progress",
					slog.Uint64("rows", stats.Rows),
					slog.Uint64("created", stats.Created),
				)
			}
			candidate := seen.TestAndAddString(c.UserID + "\x00" + c.Code)
			err := repo.Create(ctx, c)
			switch {
			case err == nil:
				stats.Created++
			case errors.Is(err, coupon.ErrDuplicateCode) && candidate:
				stats.Duplicates++
			case errors.Is(err, coupon.ErrDuplicateCode):
				stats.Existing++
			default:
				return errors.Wrapf(err, "create coupon %s for %s", c.Code, c.UserID)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// streamCouponFile opens a gzip-compressed CSV file and calls fn for each
// coupon row. It returns the number of rows read.
func streamCouponFile(ctx context.Context, path string, fn func(*coupon.Coupon) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return readCoupons(ctx, gz, fn)
}

// readCoupons reads user_id,code,discount[,expires_at] records. A leading
// header row is skipped.
func readCoupons(ctx context.Context, r io.Reader, fn func(*coupon.Coupon) error) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var n int
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, errors.Wrapf(err, "line %d", line)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "user_id") {
			continue
		}
		c, err := parseCoupon(rec)
		if err != nil {
			return n, errors.Wrapf(err, "line %d", line)
		}
		if err := fn(c); err != nil {
			return n, err
		}
		n++
	}
}

func parseCoupon(rec []string) (*coupon.Coupon, error) {
	if len(rec) < 3 || len(rec) > 4 {
		return nil, errors.Errorf("want 3 or 4 fields, got %d", len(rec))
	}
	userID := strings.TrimSpace(rec[0])
	if userID == "" {
		return nil, errors.New("empty user_id")
	}
	code := coupon.NormalizeCode(rec[1])
	if code == "" {
		return nil, errors.New("empty code")
	}
	discount, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
	if err != nil {
		return nil, errors.Wrap(err, "parse discount")
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return nil, errors.Errorf("discount %s out of range", discount)
	}

	c := &coupon.Coupon{
		Code:     code,
		UserID:   userID,
		Discount: discount,
		Active:   true,
	}
	if len(rec) == 4 {
		if c.ExpiresAt, err = parseExpiry(strings.TrimSpace(rec[3])); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// parseExpiry accepts RFC 3339 timestamps and plain dates. Empty means the
// coupon never expires.
func parseExpiry(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse expires_at %q", s)
	}
	return t, nil
}
