package asset

import (
	"slices"

	"github.com/shopspring/decimal"

	"frizo/margin_engine/pkg/utils"
)

// Config market parameters of one tradable asset
type Config struct {
	Symbol          string          `json:"symbol" validate:"required,uppercase"`
	MarkPrice       decimal.Decimal `json:"mark_price"`
	ContractValue   decimal.Decimal `json:"contract_value"` // notional size of one contract unit
	AllowedLeverage []int           `json:"allowed_leverage" validate:"required,min=1,dive,gt=0"`

	leverageSet map[int]struct{}
}

// AllowsLeverage reports whether leverage is one of the permitted tiers.
func (c Config) AllowsLeverage(leverage int) bool {
	if c.leverageSet == nil {
		return utils.Contains(c.AllowedLeverage, leverage)
	}
	_, ok := c.leverageSet[leverage]
	return ok
}

func (c Config) clone() Config {
	c.AllowedLeverage = slices.Clone(c.AllowedLeverage)
	return c
}

func (c *Config) index() {
	c.leverageSet = make(map[int]struct{}, len(c.AllowedLeverage))
	for _, l := range c.AllowedLeverage {
		c.leverageSet[l] = struct{}{}
	}
}
