// Package catalog provides the static coin-package lookup injected into the
// ledger service. Packages are fixed at process start; there is no shared
// mutable state.
package catalog

import (
	"fmt"
	"sort"

	"github.com/MarkoPoloResearchLab/coinledger/pkg/coinledger"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Catalog is a read-only package lookup keyed by package id.
type Catalog struct {
	packages map[string]coinledger.Package
	ordered  []coinledger.Package
}

// New builds a catalog from the given packages. Duplicate ids and
// non-positive amounts are rejected up front so lookups never have to
// re-validate.
func New(packages []coinledger.Package) (*Catalog, error) {
	byID := make(map[string]coinledger.Package, len(packages))
	for _, coinPackage := range packages {
		if coinPackage.PackageID == "" {
			return nil, fmt.Errorf("%w: package with empty id", coinledger.ErrValidation)
		}
		if _, exists := byID[coinPackage.PackageID]; exists {
			return nil, fmt.Errorf("%w: duplicate package id %q", coinledger.ErrValidation, coinPackage.PackageID)
		}
		if coinPackage.Coins <= 0 {
			return nil, fmt.Errorf("%w: package %q has non-positive coins", coinledger.ErrValidation, coinPackage.PackageID)
		}
		if !coinPackage.Price.IsPositive() {
			return nil, fmt.Errorf("%w: package %q has non-positive price", coinledger.ErrValidation, coinPackage.PackageID)
		}
		byID[coinPackage.PackageID] = coinPackage
	}
	ordered := make([]coinledger.Package, 0, len(byID))
	for _, coinPackage := range byID {
		ordered = append(ordered, coinPackage)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Coins < ordered[j].Coins })
	return &Catalog{packages: byID, ordered: ordered}, nil
}

// Package returns the catalog entry for the id or ErrInvalidPackage.
func (catalog *Catalog) Package(packageID string) (coinledger.Package, error) {
	coinPackage, found := catalog.packages[packageID]
	if !found {
		return coinledger.Package{}, fmt.Errorf("%w: unknown package %q", coinledger.ErrInvalidPackage, packageID)
	}
	return coinPackage, nil
}

// Packages lists all catalog entries ordered by coin amount.
func (catalog *Catalog) Packages() []coinledger.Package {
	listed := make([]coinledger.Package, len(catalog.ordered))
	copy(listed, catalog.ordered)
	return listed
}

// Default returns the built-in coin packages used when no catalog file is
// configured.
func Default() *Catalog {
	builtin, err := New([]coinledger.Package{
		{PackageID: "coins_100", Name: "Starter", Coins: 100, Price: decimal.NewFromFloat(100.0)},
		{PackageID: "coins_495", Name: "Value", Coins: 495, Price: decimal.NewFromFloat(500.0)},
		{PackageID: "coins_1000", Name: "Plus", Coins: 1000, Price: decimal.NewFromFloat(950.0)},
		{PackageID: "coins_5250", Name: "Max", Coins: 5250, Price: decimal.NewFromFloat(4750.0)},
	})
	if err != nil {
		panic(err)
	}
	return builtin
}

type filePackage struct {
	ID    string  `mapstructure:"id"`
	Name  string  `mapstructure:"name"`
	Coins int64   `mapstructure:"coins"`
	Price float64 `mapstructure:"price"`
}

// LoadFile reads a catalog definition (yaml/json/toml, any format viper
// understands) with a top-level `packages` list.
func LoadFile(path string) (*Catalog, error) {
	loader := viper.New()
	loader.SetConfigFile(path)
	if err := loader.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var filePackages []filePackage
	if err := loader.UnmarshalKey("packages", &filePackages); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	packages := make([]coinledger.Package, 0, len(filePackages))
	for _, entry := range filePackages {
		packages = append(packages, coinledger.Package{
			PackageID: entry.ID,
			Name:      entry.Name,
			Coins:     entry.Coins,
			Price:     decimal.NewFromFloat(entry.Price),
		})
	}
	return New(packages)
}
