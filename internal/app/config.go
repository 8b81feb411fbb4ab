package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Redis       RedisConfig
	Mongo       MongoConfig
	Stripe      StripeConfig
	Reward      RewardConfig
	Auth        AuthConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// RedisConfig configures the confirmation lock. An empty URL disables it.
type RedisConfig struct {
	URL     string        `usage:"Redis URL (CHECKOUT_REDIS_URL or REDIS_URL)"`
	LockTTL time.Duration `default:"30s" usage:"Confirmation lock TTL" flag:"redis-lock-ttl"`
}

// MongoConfig configures the cart store.
type MongoConfig struct {
	URI      string `default:"mongodb://localhost:27017" usage:"MongoDB URI (CHECKOUT_MONGO_URI or MONGO_URI)"`
	Database string `default:"storefront" usage:"MongoDB database holding carts"`
}

// StripeConfig configures the payment provider.
type StripeConfig struct {
	SecretKey      string        `usage:"Stripe secret key (CHECKOUT_STRIPE_SECRET_KEY or STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	BaseURL        string        `usage:"Override of the Stripe API base URL" flag:"stripe-base-url"`
	Currency       string        `default:"pln" usage:"Checkout currency"`
	PaymentMethods []string      `default:"card,p24,blik" usage:"Accepted payment method types"`
	SuccessURL     string        `default:"http://localhost:5173/purchase-success?session_id={CHECKOUT_SESSION_ID}" usage:"Redirect after payment"`
	CancelURL      string        `default:"http://localhost:5173/purchase-cancel" usage:"Redirect after cancellation"`
	Timeout        time.Duration `default:"10s" usage:"Per-call timeout"`
	MaxFailures    uint32        `default:"5" usage:"Consecutive failures that open the circuit breaker"`
	OpenTimeout    time.Duration `default:"30s" usage:"How long the circuit breaker stays open"`
}

// RewardConfig controls loyalty coupon issuance.
type RewardConfig struct {
	Threshold int64         `default:"20000" usage:"Adjusted total in minor units that must be exceeded"`
	Percent   string        `default:"10" usage:"Discount percent of the reward coupon"`
	Lifetime  time.Duration `default:"720h" usage:"Reward coupon validity"`
	IssueOn   string        `default:"build" usage:"When to issue rewards: build or confirm" flag:"reward-issue-on"`
}

// Policy converts the config into a coupon.RewardPolicy.
func (c RewardConfig) Policy() (coupon.RewardPolicy, error) {
	percent, err := decimal.NewFromString(c.Percent)
	if err != nil {
		return coupon.RewardPolicy{}, errors.Wrap(err, "parse reward percent")
	}
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return coupon.RewardPolicy{}, errors.Errorf("reward percent %s out of range", percent)
	}
	return coupon.RewardPolicy{
		Threshold: c.Threshold,
		Percent:   percent,
		Lifetime:  c.Lifetime,
	}, nil
}

// AuthConfig configures access token verification.
type AuthConfig struct {
	Secret     string `usage:"HMAC secret of access tokens (CHECKOUT_AUTH_SECRET)" flag:"auth-secret"`
	CookieName string `default:"accessToken" usage:"Access token cookie name"`
}

// KafkaConfig configures order event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string      `usage:"Kafka broker addresses"`
	Topic        string        `default:"orders" usage:"Topic for order events"`
	WriteTimeout time.Duration `default:"5s" usage:"Per-event write timeout"`
}

// RateLimitConfig controls the per-client token bucket rate limiter and the
// stricter per-user limit on checkout session creation.
type RateLimitConfig struct {
	Max           int           `default:"100" usage:"Max requests per window"`
	Window        time.Duration `default:"1m"  usage:"Rate limit window duration"`
	SessionMax    int           `default:"10"  usage:"Max checkout sessions per user per window" flag:"session-rate-max"`
	SessionWindow time.Duration `default:"1m"  usage:"Checkout session rate limit window" flag:"session-rate-window"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"http://localhost:5173" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set CHECKOUT_DATABASE_URL or DATABASE_URL")
	}
	if c.Stripe.SecretKey == "" {
		return errors.New("stripe secret key is required: set CHECKOUT_STRIPE_SECRET_KEY or STRIPE_SECRET_KEY")
	}
	if c.Auth.Secret == "" {
		return errors.New("auth secret is required: set CHECKOUT_AUTH_SECRET")
	}
	switch checkout.RewardTiming(c.Reward.IssueOn) {
	case checkout.RewardOnBuild, checkout.RewardOnConfirm:
	default:
		return errors.Errorf("unknown reward issue-on %q: want build or confirm", c.Reward.IssueOn)
	}
	if _, err := c.Reward.Policy(); err != nil {
		return err
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (DATABASE_URL, PORT and friends) to the CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	fallback := func(dst *string, key string) {
		if *dst == "" {
			*dst = getenv(key)
		}
	}
	fallback(&c.DatabaseURL, "DATABASE_URL")
	fallback(&c.Redis.URL, "REDIS_URL")
	fallback(&c.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	if v := getenv("MONGO_URI"); v != "" && getenv("CHECKOUT_MONGO_URI") == "" {
		c.Mongo.URI = v
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
