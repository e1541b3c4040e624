package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (TAKEAWAY_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (TAKEAWAY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Restaurant  RestaurantConfig
	Stripe      StripeConfig
	Checkout    CheckoutConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// RestaurantConfig is printed on receipts.
type RestaurantConfig struct {
	Name    string `default:"Kebab" usage:"Restaurant name"`
	Address string `usage:"Restaurant address"`
	Phone   string `usage:"Restaurant phone"`
}

// StripeConfig configures card payments. Without a secret key only cash
// checkout is available.
type StripeConfig struct {
	SecretKey string `usage:"Stripe secret key (TAKEAWAY_STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	Currency  string `default:"eur" usage:"ISO currency code for payment intents"`
}

// CheckoutConfig controls card checkout sessions.
type CheckoutConfig struct {
	SessionTTL      time.Duration `default:"1h"  env:"SESSION_TTL" usage:"How long a card checkout can be confirmed"`
	JanitorInterval time.Duration `default:"10m" usage:"How often expired checkout sessions are purged"`
	ConfirmRedirect string        `usage:"Browser redirect after payment confirmation, {orderId} is substituted"`
	RateLimit       RateLimitConfig
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(nil)
}

// loadConfig parses args as flags; nil means os.Args[1:].
func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TAKEAWAY",
		Args:      args,
		Files:     []string{"takeaway.yaml", "/etc/takeaway/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set TAKEAWAY_DATABASE_URL or DATABASE_URL")
	case c.Checkout.SessionTTL <= 0:
		return errors.New("checkout session TTL must be positive")
	case c.Checkout.JanitorInterval <= 0:
		return errors.New("checkout janitor interval must be positive")
	case len(c.Stripe.Currency) != 3:
		return errors.Errorf("invalid currency %q", c.Stripe.Currency)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's TAKEAWAY_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Stripe.SecretKey == "" {
		c.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
