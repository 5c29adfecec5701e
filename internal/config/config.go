// Package config loads per-concern configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// IssuerConfig configures the issuer side: minting, pricing and the
// demo resource server.
type IssuerConfig struct {
	// ServerSecret seeds the credential HMAC chain. Required, at least
	// 32 bytes.
	ServerSecret string `env:"SATGATE_SERVER_SECRET,required,notEmpty"`

	Location string `env:"SATGATE_LOCATION" envDefault:"satgate"`
	Service  string `env:"SATGATE_SERVICE" envDefault:"satgate"`

	// DefaultPrice is the price in base units for resources without an
	// entry in ResourcePrices.
	DefaultPrice int64 `env:"SATGATE_PRICE" envDefault:"10"`

	// ResourcePrices overrides the price per resource, e.g.
	// "premium:50,bulk:5".
	ResourcePrices map[string]int64 `env:"SATGATE_RESOURCE_PRICES"`

	// TokenValidity is how long minted credentials verify.
	TokenValidity time.Duration `env:"SATGATE_TOKEN_VALIDITY" envDefault:"30m"`

	HTTPAddr string `env:"SATGATE_HTTP_ADDR" envDefault:":8080"`
}

// GatewayConfig configures the connection to the payment node.
type GatewayConfig struct {
	Endpoint string        `env:"SATGATE_GATEWAY_URL,required,notEmpty"`
	APIKey   string        `env:"SATGATE_GATEWAY_API_KEY"`
	Timeout  time.Duration `env:"SATGATE_GATEWAY_TIMEOUT" envDefault:"30s"`
}

// AgentConfig configures the budget-enforced agent.
type AgentConfig struct {
	// BudgetCeiling is the cumulative spend ceiling in base units.
	BudgetCeiling int64 `env:"SATGATE_BUDGET" envDefault:"1000"`

	// LedgerPath is where the spend ledger is persisted.
	LedgerPath string `env:"SATGATE_LEDGER_PATH" envDefault:"satgate-ledger.json"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// LoadIssuer parses the issuer configuration from the environment.
func LoadIssuer() (IssuerConfig, error) {
	var cfg IssuerConfig
	if err := env.Parse(&cfg); err != nil {
		return IssuerConfig{}, err
	}
	if cfg.DefaultPrice <= 0 {
		return IssuerConfig{}, fmt.Errorf("SATGATE_PRICE must be positive, got %d", cfg.DefaultPrice)
	}
	return cfg, nil
}

// LoadGateway parses the gateway configuration from the environment.
func LoadGateway() (GatewayConfig, error) {
	var cfg GatewayConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// LoadAgent parses the agent configuration from the environment.
func LoadAgent() (AgentConfig, error) {
	var cfg AgentConfig
	if err := env.Parse(&cfg); err != nil {
		return AgentConfig{}, err
	}
	if cfg.BudgetCeiling < 0 {
		return AgentConfig{}, fmt.Errorf("SATGATE_BUDGET must not be negative, got %d", cfg.BudgetCeiling)
	}
	return cfg, nil
}

// LoadLog parses the logging configuration from the environment.
func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	err := env.Parse(&cfg)
	return cfg, err
}
