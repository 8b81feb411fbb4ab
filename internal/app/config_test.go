package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:        defaultAddr,
		DatabaseURL: "postgres://localhost/checkout",
		Stripe:      StripeConfig{SecretKey: "sk_test_1"},
		Auth:        AuthConfig{Secret: "secret"},
		Reward: RewardConfig{
			Threshold: 20000,
			Percent:   "10",
			Lifetime:  720 * time.Hour,
			IssueOn:   "build",
		},
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL":      "postgres://platform/db",
		"REDIS_URL":         "redis://platform:6379/0",
		"STRIPE_SECRET_KEY": "sk_platform",
		"MONGO_URI":         "mongodb://platform:27017",
		"PORT":              "9090",
	}
	getenv := func(k string) string { return env[k] }

	var cfg Config
	cfg.Addr = defaultAddr
	cfg.Mongo.URI = "mongodb://localhost:27017"
	cfg.applyPlatformDefaults(getenv)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379/0", cfg.Redis.URL)
	assert.Equal(t, "sk_platform", cfg.Stripe.SecretKey)
	assert.Equal(t, "mongodb://platform:27017", cfg.Mongo.URI)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestApplyPlatformDefaults_PrefixedWins(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL":       "postgres://platform/db",
		"MONGO_URI":          "mongodb://platform:27017",
		"CHECKOUT_MONGO_URI": "mongodb://explicit:27017",
		"PORT":               "9090",
	}
	getenv := func(k string) string { return env[k] }

	cfg := Config{
		Addr:        "127.0.0.1:8000",
		DatabaseURL: "postgres://explicit/db",
		Mongo:       MongoConfig{URI: "mongodb://explicit:27017"},
	}
	cfg.applyPlatformDefaults(getenv)

	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "mongodb://explicit:27017", cfg.Mongo.URI)
	assert.Equal(t, "127.0.0.1:8000", cfg.Addr)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "confirm timing", mutate: func(c *Config) { c.Reward.IssueOn = "confirm" }},
		{name: "no database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL is required"},
		{name: "no stripe key", mutate: func(c *Config) { c.Stripe.SecretKey = "" }, wantErr: "stripe secret key is required"},
		{name: "no auth secret", mutate: func(c *Config) { c.Auth.Secret = "" }, wantErr: "auth secret is required"},
		{name: "bad timing", mutate: func(c *Config) { c.Reward.IssueOn = "later" }, wantErr: "unknown reward issue-on"},
		{name: "bad percent", mutate: func(c *Config) { c.Reward.Percent = "ten" }, wantErr: "parse reward percent"},
		{name: "percent too large", mutate: func(c *Config) { c.Reward.Percent = "150" }, wantErr: "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRewardConfigPolicy(t *testing.T) {
	p, err := RewardConfig{Threshold: 5000, Percent: "12.5", Lifetime: time.Hour}.Policy()
	require.NoError(t, err)
	assert.Equal(t, int64(5000), p.Threshold)
	assert.True(t, decimal.RequireFromString("12.5").Equal(p.Percent))
	assert.Equal(t, time.Hour, p.Lifetime)
}
