package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535] (got %d)", c.Server.Port)
	}

	if err := c.Engine.validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	return nil
}

func (e *EngineConfig) validate() error {
	threshold, err := ParseAmountThreshold(e.AmountThresholdRaw)
	if err != nil {
		return fmt.Errorf("amount_threshold: %w", err)
	}
	e.AmountThreshold = threshold

	if e.MinSkipRatio < 0 || e.MinSkipRatio > 1 {
		return fmt.Errorf("min_skip_ratio must be in [0, 1] (got %v)", e.MinSkipRatio)
	}

	return nil
}

// ParseAmountThreshold parses a decimal string (e.g. "0.01") into a
// non-negative decimal amount.
func ParseAmountThreshold(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must be >= 0 (got %s)", d)
	}
	return d, nil
}
