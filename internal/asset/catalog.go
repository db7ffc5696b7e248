package asset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
)

var ErrAssetNotFound = errors.New("asset not found")

var validate = validator.New()

// Catalog read-only symbol -> Config lookup.
// Lookups never lock; Replace and Reload swap in a fully built snapshot.
type Catalog struct {
	current atomic.Pointer[snapshot]
}

type snapshot struct {
	assets  map[string]Config
	symbols []string // sorted
}

// NewCatalog builds a catalog from the given assets
func NewCatalog(assets []Config) (*Catalog, error) {
	snap, err := newSnapshot(assets)
	if err != nil {
		return nil, err
	}

	c := &Catalog{}
	c.current.Store(snap)
	return c, nil
}

// Normalize uppercases and trims a client supplied symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Lookup returns the asset registered under symbol (case-insensitive).
func (c *Catalog) Lookup(symbol string) (Config, error) {
	snap := c.current.Load()
	cfg, ok := snap.assets[Normalize(symbol)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrAssetNotFound, symbol)
	}
	return cfg.clone(), nil
}

// List returns every asset ordered by symbol.
func (c *Catalog) List() []Config {
	snap := c.current.Load()
	list := make([]Config, 0, len(snap.symbols))
	for _, symbol := range snap.symbols {
		list = append(list, snap.assets[symbol].clone())
	}
	return list
}

// Len number of supported assets
func (c *Catalog) Len() int {
	return len(c.current.Load().symbols)
}

// Replace atomically swaps the catalog content. On error the old content stays in place.
func (c *Catalog) Replace(assets []Config) error {
	snap, err := newSnapshot(assets)
	if err != nil {
		return err
	}
	c.current.Store(snap)
	return nil
}

// Reload re-reads the catalog file at path and swaps it in.
func (c *Catalog) Reload(path string) error {
	assets, err := LoadFile(path)
	if err != nil {
		return err
	}
	return c.Replace(assets)
}

func newSnapshot(assets []Config) (*snapshot, error) {
	if len(assets) == 0 {
		return nil, errors.New("asset catalog is empty")
	}

	snap := &snapshot{
		assets:  make(map[string]Config, len(assets)),
		symbols: make([]string, 0, len(assets)),
	}

	for _, a := range assets {
		cfg := a.clone()
		cfg.Symbol = Normalize(cfg.Symbol)

		if err := validate.Struct(cfg); err != nil {
			return nil, fmt.Errorf("asset %q: %w", cfg.Symbol, err)
		}
		if !cfg.MarkPrice.IsPositive() {
			return nil, fmt.Errorf("asset %s: mark price must be greater than zero", cfg.Symbol)
		}
		if !cfg.ContractValue.IsPositive() {
			return nil, fmt.Errorf("asset %s: contract value must be greater than zero", cfg.Symbol)
		}
		if _, dup := snap.assets[cfg.Symbol]; dup {
			return nil, fmt.Errorf("asset %s: duplicate symbol", cfg.Symbol)
		}

		cfg.index()
		snap.assets[cfg.Symbol] = cfg
		snap.symbols = append(snap.symbols, cfg.Symbol)
	}

	sort.Strings(snap.symbols)
	return snap, nil
}
