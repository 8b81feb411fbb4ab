package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/auth"
	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/storage/mongo"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
)

type seedConfig struct {
	DatabaseURL string
	MongoURI    string
	MongoDB     string
	CartFile    string
	UserID      string
	AuthSecret  string
	TokenTTL    time.Duration
}

func main() {
	var cfg seedConfig

	flag.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", "", "MongoDB URI (or MONGO_URI env)")
	flag.StringVar(&cfg.MongoDB, "mongo-db", "storefront", "MongoDB database holding carts")
	flag.StringVar(&cfg.CartFile, "cart-file", "db/seed/cart.json", "path to the demo cart JSON file")
	flag.StringVar(&cfg.UserID, "user-id", "demo-user", "user owning the seeded cart and coupons")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", "", "access token secret; prints a demo token when set (or CHECKOUT_AUTH_SECRET env)")
	flag.DurationVar(&cfg.TokenTTL, "token-ttl", 24*time.Hour, "validity of the printed demo token")
	flag.Parse()

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = os.Getenv("MONGO_URI")
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = "mongodb://localhost:27017"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = os.Getenv("CHECKOUT_AUTH_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, cfg seedConfig) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool), cfg.UserID); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	slog.Info("connecting to mongo")

	mdb, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return errors.Wrap(err, "connect to mongo")
	}
	defer func() { _ = mdb.Client().Disconnect(context.WithoutCancel(ctx)) }()

	if err := seedCart(ctx, mongo.NewCartRepository(mdb), cfg.UserID, cfg.CartFile); err != nil {
		return errors.Wrap(err, "seed cart")
	}

	if cfg.AuthSecret != "" {
		if err := printToken(cfg.AuthSecret, cfg.UserID, cfg.TokenTTL); err != nil {
			return errors.Wrap(err, "issue token")
		}
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository, userID string) error {
	slog.Info("seeding demo coupons", slog.String("user_id", userID))

	coupons := []coupon.Coupon{
		{
			Code:      "WELCOME10",
			UserID:    userID,
			Discount:  decimal.NewFromInt(10),
			Active:    true,
			ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
		},
		{
			Code:     "LOYAL25",
			UserID:   userID,
			Discount: decimal.NewFromInt(25),
			Active:   true,
		},
	}

	for i := range coupons {
		c := &coupons[i]
		err := repo.Create(ctx, c)
		switch {
		case errors.Is(err, coupon.ErrDuplicateCode):
			slog.Info("coupon already exists", slog.String("code", c.Code))
		case err != nil:
			return errors.Wrapf(err, "create coupon %s", c.Code)
		default:
			slog.Info("created coupon", slog.String("code", c.Code), slog.String("discount", c.Discount.String()))
		}
	}

	return nil
}

func seedCart(ctx context.Context, repo *mongo.CartRepository, userID, cartFile string) error {
	slog.Info("reading cart file", slog.String("path", cartFile))

	data, err := os.ReadFile(cartFile)
	if err != nil {
		return errors.Wrap(err, "read cart file")
	}

	var items []cart.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse cart JSON")
	}
	if err := cart.Validate(items); err != nil {
		return errors.Wrap(err, "validate cart")
	}

	if err := repo.SaveUserCart(ctx, userID, items); err != nil {
		return errors.Wrap(err, "save cart")
	}

	slog.Info("saved cart", slog.String("user_id", userID), slog.Int("items", len(items)))
	return nil
}

func printToken(secret, userID string, ttl time.Duration) error {
	v, err := auth.NewVerifier([]byte(secret), "")
	if err != nil {
		return err
	}
	token, err := v.Issue(userID, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
