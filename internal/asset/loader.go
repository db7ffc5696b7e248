package asset

import (
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// catalogFile on-disk layout:
//
//	assets:
//	  - symbol: BTC
//	    mark_price: "62000"
//	    contract_value: "0.001"
//	    allowed_leverage: [5, 10, 20, 50, 100]
type catalogFile struct {
	Assets []fileEntry `yaml:"assets"`
}

// decimals are kept as raw text so they parse exactly
type fileEntry struct {
	Symbol          string `yaml:"symbol"`
	MarkPrice       string `yaml:"mark_price"`
	ContractValue   string `yaml:"contract_value"`
	AllowedLeverage []int  `yaml:"allowed_leverage"`
}

// LoadFile reads the asset definitions at path.
func LoadFile(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read asset catalog %s", path)
	}

	assets, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse asset catalog %s", path)
	}
	return assets, nil
}

// Parse decodes a YAML asset catalog document.
func Parse(data []byte) ([]Config, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}

	assets := make([]Config, 0, len(file.Assets))
	for i, entry := range file.Assets {
		markPrice, err := decimal.NewFromString(entry.MarkPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "assets[%d] %s: mark_price", i, entry.Symbol)
		}
		contractValue, err := decimal.NewFromString(entry.ContractValue)
		if err != nil {
			return nil, errors.Wrapf(err, "assets[%d] %s: contract_value", i, entry.Symbol)
		}

		assets = append(assets, Config{
			Symbol:          entry.Symbol,
			MarkPrice:       markPrice,
			ContractValue:   contractValue,
			AllowedLeverage: entry.AllowedLeverage,
		})
	}

	// structural checks (positivity, duplicates) happen when the snapshot is built
	if _, err := newSnapshot(assets); err != nil {
		return nil, err
	}
	return assets, nil
}
