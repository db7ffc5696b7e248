package asset

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalogYAML = `
assets:
  - symbol: btc
    mark_price: 62000
    contract_value: 0.001
    allowed_leverage: [5, 10, 20, 50, 100]
  - symbol: SOL
    mark_price: "145.37"
    contract_value: "0.1"
    allowed_leverage: [2, 5]
`

func TestCatalogLookup(t *testing.T) {
	catalog := Default()

	t.Run("CaseInsensitive", func(t *testing.T) {
		for _, symbol := range []string{"BTC", "btc", "Btc", " btc "} {
			cfg, err := catalog.Lookup(symbol)
			require.NoError(t, err, symbol)
			assert.Equal(t, "BTC", cfg.Symbol)
			assert.True(t, cfg.MarkPrice.Equal(decimal.NewFromInt(62000)))
			assert.True(t, cfg.ContractValue.Equal(decimal.RequireFromString("0.001")))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := catalog.Lookup("DOGE")
		assert.ErrorIs(t, err, ErrAssetNotFound)

		_, err = catalog.Lookup("")
		assert.ErrorIs(t, err, ErrAssetNotFound)
	})

	t.Run("LeverageMembership", func(t *testing.T) {
		cfg, err := catalog.Lookup("ETH")
		require.NoError(t, err)

		assert.True(t, cfg.AllowsLeverage(25))
		assert.False(t, cfg.AllowsLeverage(20))
		assert.False(t, cfg.AllowsLeverage(0))
		assert.False(t, cfg.AllowsLeverage(-5))
	})

	t.Run("ReturnedConfigIsACopy", func(t *testing.T) {
		cfg, err := catalog.Lookup("BTC")
		require.NoError(t, err)
		cfg.AllowedLeverage[0] = 999

		again, err := catalog.Lookup("BTC")
		require.NoError(t, err)
		assert.Equal(t, 5, again.AllowedLeverage[0])
	})
}

func TestCatalogList(t *testing.T) {
	catalog, err := NewCatalog([]Config{
		{Symbol: "eth", MarkPrice: decimal.NewFromInt(1), ContractValue: decimal.NewFromInt(1), AllowedLeverage: []int{1}},
		{Symbol: "ADA", MarkPrice: decimal.NewFromInt(1), ContractValue: decimal.NewFromInt(1), AllowedLeverage: []int{1}},
	})
	require.NoError(t, err)

	list := catalog.List()
	require.Len(t, list, 2)
	assert.Equal(t, "ADA", list[0].Symbol)
	assert.Equal(t, "ETH", list[1].Symbol)
	assert.Equal(t, 2, catalog.Len())
}

func TestNewCatalogRejectsInvalidAssets(t *testing.T) {
	valid := func() Config {
		return Config{
			Symbol:          "BTC",
			MarkPrice:       decimal.NewFromInt(100),
			ContractValue:   decimal.RequireFromString("0.01"),
			AllowedLeverage: []int{10},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"EmptySymbol", func(c *Config) { c.Symbol = "" }},
		{"ZeroMarkPrice", func(c *Config) { c.MarkPrice = decimal.Zero }},
		{"NegativeContractValue", func(c *Config) { c.ContractValue = decimal.NewFromInt(-1) }},
		{"NoLeverage", func(c *Config) { c.AllowedLeverage = nil }},
		{"NonPositiveLeverage", func(c *Config) { c.AllowedLeverage = []int{10, 0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			_, err := NewCatalog([]Config{cfg})
			assert.Error(t, err)
		})
	}

	t.Run("Duplicate", func(t *testing.T) {
		dup := valid()
		dup.Symbol = "btc"
		_, err := NewCatalog([]Config{valid(), dup})
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := NewCatalog(nil)
		assert.Error(t, err)
	})
}

func TestParse(t *testing.T) {
	assets, err := Parse([]byte(testCatalogYAML))
	require.NoError(t, err)
	require.Len(t, assets, 2)

	assert.True(t, assets[0].ContractValue.Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, "145.37", assets[1].MarkPrice.String())
	assert.Equal(t, []int{2, 5}, assets[1].AllowedLeverage)

	t.Run("BadDecimal", func(t *testing.T) {
		_, err := Parse([]byte("assets:\n  - symbol: X\n    mark_price: abc\n    contract_value: 1\n    allowed_leverage: [1]\n"))
		assert.ErrorContains(t, err, "mark_price")
	})

	t.Run("NegativePrice", func(t *testing.T) {
		_, err := Parse([]byte("assets:\n  - symbol: X\n    mark_price: -1\n    contract_value: 1\n    allowed_leverage: [1]\n"))
		assert.ErrorContains(t, err, "mark price")
	})
}

func TestCatalogReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogYAML), 0644))

	catalog := Default()
	_, err := catalog.Lookup("SOL")
	require.ErrorIs(t, err, ErrAssetNotFound)

	require.NoError(t, catalog.Reload(path))

	sol, err := catalog.Lookup("sol")
	require.NoError(t, err)
	assert.True(t, sol.AllowsLeverage(2))

	_, err = catalog.Lookup("ETH")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	t.Run("FailedReloadKeepsSnapshot", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("assets: []\n"), 0644))

		assert.Error(t, catalog.Reload(bad))
		assert.Error(t, catalog.Reload(filepath.Join(t.TempDir(), "missing.yaml")))

		_, err := catalog.Lookup("SOL")
		assert.NoError(t, err)
	})
}

func TestCatalogConcurrentReplace(t *testing.T) {
	catalog := Default()
	other := []Config{{
		Symbol:          "BTC",
		MarkPrice:       decimal.NewFromInt(70000),
		ContractValue:   decimal.RequireFromString("0.001"),
		AllowedLeverage: []int{5, 10, 20, 50, 100},
	}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				cfg, err := catalog.Lookup("BTC")
				if err != nil {
					t.Error(err)
					return
				}
				// either the old or the new snapshot, never a mix
				if !cfg.MarkPrice.Equal(decimal.NewFromInt(62000)) && !cfg.MarkPrice.Equal(decimal.NewFromInt(70000)) {
					t.Errorf("unexpected mark price %s", cfg.MarkPrice)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			require.NoError(t, catalog.Replace(other))
		} else {
			require.NoError(t, catalog.Replace(DefaultAssets))
		}
	}
	wg.Wait()
}

func TestShippedCatalogMatchesDefault(t *testing.T) {
	assets, err := LoadFile(filepath.Join("..", "..", "configs", "assets.yaml"))
	require.NoError(t, err)
	require.Len(t, assets, len(DefaultAssets))

	for i, a := range assets {
		want := DefaultAssets[i]
		assert.Equal(t, want.Symbol, a.Symbol)
		assert.True(t, want.MarkPrice.Equal(a.MarkPrice), a.Symbol)
		assert.True(t, want.ContractValue.Equal(a.ContractValue), a.Symbol)
		assert.Equal(t, want.AllowedLeverage, a.AllowedLeverage)
	}
}
