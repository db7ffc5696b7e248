package asset

import "github.com/shopspring/decimal"

// DefaultAssets built-in catalog used when no catalog file is configured
var DefaultAssets = []Config{
	{
		Symbol:          "BTC",
		MarkPrice:       decimal.RequireFromString("62000"),
		ContractValue:   decimal.RequireFromString("0.001"),
		AllowedLeverage: []int{5, 10, 20, 50, 100},
	},
	{
		Symbol:          "ETH",
		MarkPrice:       decimal.RequireFromString("3200"),
		ContractValue:   decimal.RequireFromString("0.01"),
		AllowedLeverage: []int{5, 10, 25, 50},
	},
}

// Default returns a catalog over DefaultAssets.
func Default() *Catalog {
	c, err := NewCatalog(DefaultAssets)
	if err != nil {
		panic(err)
	}
	return c
}
