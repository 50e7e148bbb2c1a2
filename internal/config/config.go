// Package config loads the orchestrator's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GatewayConfig declares one payment gateway and its activation strategy.
type GatewayConfig struct {
	ID       string `yaml:"id"`
	Strategy string `yaml:"strategy"` // redirect, popup, wallet
}

// PolicyRuleConfig is one retry policy rule as written in the file.
type PolicyRuleConfig struct {
	ID               string `yaml:"id"`
	Expression       string `yaml:"expression"`
	Priority         int    `yaml:"priority"`
	AllowRetry       bool   `yaml:"allowRetry"`
	RequireNewMethod bool   `yaml:"requireNewMethod"`
	EscalateSupport  bool   `yaml:"escalateSupport"`
}

// Config is the full server configuration.
type Config struct {
	Listen string `yaml:"listen"`
	Origin string `yaml:"origin"` // accepted callback sender origin

	CheckoutAPIBaseURL string `yaml:"checkoutApiBaseUrl"`
	PricingAPIBaseURL  string `yaml:"pricingApiBaseUrl"`
	CallbackURL        string `yaml:"callbackUrl"`

	RedisURL string `yaml:"redisUrl"` // empty means in-memory stores

	RateLimit struct {
		Ceiling       int `yaml:"ceiling"`
		WarnAt        int `yaml:"warnAt"`
		WindowMinutes int `yaml:"windowMinutes"`
	} `yaml:"rateLimit"`

	CallbackTimeoutSeconds int `yaml:"callbackTimeoutSeconds"`
	DebounceMillis         int `yaml:"debounceMillis"`

	Gateways    []GatewayConfig    `yaml:"gateways"`
	PolicyRules []PolicyRuleConfig `yaml:"policyRules"`
}

// Load reads and validates the configuration file. The CHECKOUT_LISTEN
// environment variable overrides the listen address.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if addr := os.Getenv("CHECKOUT_LISTEN"); addr != "" {
		c.Listen = addr
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.RateLimit.Ceiling == 0 {
		c.RateLimit.Ceiling = 5
	}
	if c.RateLimit.WarnAt == 0 {
		c.RateLimit.WarnAt = 3
	}
	if c.RateLimit.WindowMinutes == 0 {
		c.RateLimit.WindowMinutes = 15
	}
	if c.CallbackTimeoutSeconds == 0 {
		c.CallbackTimeoutSeconds = 300
	}
	if c.DebounceMillis == 0 {
		c.DebounceMillis = 400
	}
}

func (c *Config) validate() error {
	if c.Origin == "" {
		return fmt.Errorf("config: origin is required")
	}
	if c.CheckoutAPIBaseURL == "" {
		return fmt.Errorf("config: checkoutApiBaseUrl is required")
	}
	if c.PricingAPIBaseURL == "" {
		return fmt.Errorf("config: pricingApiBaseUrl is required")
	}
	if c.RateLimit.Ceiling < 1 {
		return fmt.Errorf("config: rateLimit.ceiling must be positive")
	}
	if c.RateLimit.WarnAt > c.RateLimit.Ceiling {
		return fmt.Errorf("config: rateLimit.warnAt cannot exceed ceiling")
	}
	for _, g := range c.Gateways {
		switch g.Strategy {
		case "redirect", "popup", "wallet":
		default:
			return fmt.Errorf("config: gateway %q has unknown strategy %q", g.ID, g.Strategy)
		}
	}
	return nil
}

// Window returns the rate-limit window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.RateLimit.WindowMinutes) * time.Minute
}

// CallbackTimeout returns the payment callback wait as a duration.
func (c *Config) CallbackTimeout() time.Duration {
	return time.Duration(c.CallbackTimeoutSeconds) * time.Second
}

// Debounce returns the session write coalescing delay.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}
