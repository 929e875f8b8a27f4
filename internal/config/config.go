// Package config loads engine configuration from the environment. The
// business constants of the valuation model live here as named settings so
// no rule hides behind an inline literal.
package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config is the full engine configuration.
type Config struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	DatabaseURL string        `env:"DATABASE_URL"`
	RedisURL    string        `env:"REDIS_URL"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"30s"`

	// MaxOrderQuantity is the largest quantity accepted per order.
	MaxOrderQuantity int64 `env:"MAX_ORDER_QUANTITY" envDefault:"10000"`

	// TradeRetries bounds automatic retries on serialization conflicts.
	TradeRetries int `env:"TRADE_RETRIES" envDefault:"3"`

	// SettleSweep is the cron spec for the pending-fixture sweeper.
	SettleSweep string `env:"SETTLE_SWEEP" envDefault:"@every 1m"`

	// MinMarketCap is the floor no mutation may take a club's cap below.
	MinMarketCap decimal.Decimal `env:"MIN_MARKET_CAP" envDefault:"10"`

	// DefaultSharePrice is quoted when a club has no shares to divide by.
	// Whether a zero-share club should quote this or refuse trading is an
	// open product question; the engine quotes it everywhere consistently.
	DefaultSharePrice decimal.Decimal `env:"DEFAULT_SHARE_PRICE" envDefault:"20"`

	// TransferRate is the fraction of the loser's market cap moved to the
	// winner on a decisive result.
	TransferRate decimal.Decimal `env:"TRANSFER_RATE" envDefault:"0.10"`
}

// decimalType lets the env parser handle decimal.Decimal fields directly.
var decimalType = reflect.TypeOf(decimal.Decimal{})

func parseDecimal(v string) (interface{}, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", v, err)
	}
	return d, nil
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	err := env.ParseWithOptions(&cfg, env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			decimalType: parseDecimal,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.TransferRate.LessThan(decimal.Zero) || cfg.TransferRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("config: TRANSFER_RATE must be in [0, 1], got %s", cfg.TransferRate)
	}
	if cfg.MinMarketCap.IsNegative() {
		return nil, fmt.Errorf("config: MIN_MARKET_CAP must be non-negative, got %s", cfg.MinMarketCap)
	}
	return &cfg, nil
}
