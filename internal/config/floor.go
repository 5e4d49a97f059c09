package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/floor-allocation/internal/model"
)

// Tier is one of the fixed cell sizes.  Code is the short letter used
// in cell ids and the cell_type column.
type Tier struct {
	Code string
	Name string
	Area model.Area
}

// Package is a fixed donation option: one tier-sized area for a price.
type Package struct {
	ID         string
	Area       model.Area
	PriceLabel string
	PricePence int64
}

// FloorConfig is the validated floor layout and price table.  Tiers are
// sorted largest first and form a canonical coin system: every tier is a
// whole multiple of the next smaller one, so greedy decomposition is
// always exact when the area is a multiple of the smallest tier.
type FloorConfig struct {
	Tiers                []Tier
	Rectangles           []string
	PricePerSqMetrePence int64
	Packages             map[string]Package
}

// floorFile mirrors the YAML document on disk.
type floorFile struct {
	PricePerSqMetrePence int64    `yaml:"price_per_sqm_pence"`
	Rectangles           []string `yaml:"rectangles"`
	Tiers                []struct {
		Code   string  `yaml:"code"`
		Name   string  `yaml:"name"`
		AreaM2 float64 `yaml:"area_m2"`
	} `yaml:"tiers"`
	Packages []struct {
		ID         string  `yaml:"id"`
		AreaM2     float64 `yaml:"area_m2"`
		PriceLabel string  `yaml:"price_label"`
		PricePence int64   `yaml:"price_pence"`
	} `yaml:"packages"`
}

// DefaultFloor returns the built-in layout: 1.0, 0.5 and 0.25 m² tiers,
// rectangles A to D and £400 per square metre.
func DefaultFloor() FloorConfig {
	return FloorConfig{
		Tiers: []Tier{
			{Code: "F", Name: "full", Area: model.SquareMetre},
			{Code: "H", Name: "half", Area: model.SquareMetre / 2},
			{Code: "Q", Name: "quarter", Area: model.SquareMetre / 4},
		},
		Rectangles:           []string{"A", "B", "C", "D"},
		PricePerSqMetrePence: 40000,
		Packages: map[string]Package{
			"full":    {ID: "full", Area: model.SquareMetre, PriceLabel: "£400", PricePence: 40000},
			"half":    {ID: "half", Area: model.SquareMetre / 2, PriceLabel: "£200", PricePence: 20000},
			"quarter": {ID: "quarter", Area: model.SquareMetre / 4, PriceLabel: "£100", PricePence: 10000},
		},
	}
}

// LoadFloorConfig reads the YAML file at path.  An empty path yields
// DefaultFloor.  The result is validated before it is returned.
func LoadFloorConfig(path string) (FloorConfig, error) {
	if path == "" {
		cfg := DefaultFloor()
		return cfg, cfg.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return FloorConfig{}, fmt.Errorf("read floor config: %w", err)
	}
	return ParseFloorConfig(raw)
}

// ParseFloorConfig decodes and validates a YAML floor configuration.
func ParseFloorConfig(raw []byte) (FloorConfig, error) {
	var f floorFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return FloorConfig{}, fmt.Errorf("decode floor config: %w", err)
	}
	cfg := FloorConfig{
		Rectangles:           f.Rectangles,
		PricePerSqMetrePence: f.PricePerSqMetrePence,
		Packages:             make(map[string]Package, len(f.Packages)),
	}
	for _, t := range f.Tiers {
		cfg.Tiers = append(cfg.Tiers, Tier{Code: t.Code, Name: t.Name, Area: areaFromSquareMetres(t.AreaM2)})
	}
	for _, p := range f.Packages {
		if _, dup := cfg.Packages[p.ID]; dup {
			return FloorConfig{}, fmt.Errorf("duplicate package %q", p.ID)
		}
		cfg.Packages[p.ID] = Package{
			ID:         p.ID,
			Area:       areaFromSquareMetres(p.AreaM2),
			PriceLabel: p.PriceLabel,
			PricePence: p.PricePence,
		}
	}
	sort.SliceStable(cfg.Tiers, func(i, j int) bool { return cfg.Tiers[i].Area > cfg.Tiers[j].Area })
	if err := cfg.Validate(); err != nil {
		return FloorConfig{}, err
	}
	return cfg, nil
}

func areaFromSquareMetres(m2 float64) model.Area {
	return model.Area(math.Round(m2 * float64(model.SquareMetre)))
}

// Validate enforces the invariants the allocator relies on.  Tiers must
// be ordered largest first with distinct codes, and each tier must be a
// multiple of the next smaller one.
func (c FloorConfig) Validate() error {
	if len(c.Tiers) == 0 {
		return errors.New("floor config: no tiers")
	}
	if len(c.Rectangles) == 0 {
		return errors.New("floor config: no rectangles")
	}
	if c.PricePerSqMetrePence <= 0 {
		return errors.New("floor config: price per square metre must be positive")
	}
	codes := make(map[string]bool, len(c.Tiers))
	for i, t := range c.Tiers {
		if t.Code == "" {
			return fmt.Errorf("floor config: tier %d has no code", i)
		}
		if codes[t.Code] {
			return fmt.Errorf("floor config: duplicate tier code %q", t.Code)
		}
		codes[t.Code] = true
		if t.Area <= 0 {
			return fmt.Errorf("floor config: tier %s has non-positive area", t.Code)
		}
		if i > 0 {
			prev := c.Tiers[i-1]
			if t.Area >= prev.Area {
				return fmt.Errorf("floor config: tiers must be strictly decreasing (%s after %s)", t.Code, prev.Code)
			}
			if prev.Area%t.Area != 0 {
				return fmt.Errorf("floor config: tier %s (%s) is not a multiple of %s (%s)", prev.Code, prev.Area, t.Code, t.Area)
			}
		}
	}
	seen := make(map[string]bool, len(c.Rectangles))
	for _, r := range c.Rectangles {
		if r == "" || seen[r] {
			return fmt.Errorf("floor config: invalid or duplicate rectangle %q", r)
		}
		seen[r] = true
	}
	smallest := c.SmallestTier().Area
	for id, p := range c.Packages {
		if p.Area <= 0 || p.Area%smallest != 0 {
			return fmt.Errorf("floor config: package %q area %s is not a multiple of %s", id, p.Area, smallest)
		}
	}
	return nil
}

// SmallestTier returns the last (smallest) tier.
func (c FloorConfig) SmallestTier() Tier { return c.Tiers[len(c.Tiers)-1] }

// TierByCode looks up a tier by its code.
func (c FloorConfig) TierByCode(code string) (Tier, bool) {
	for _, t := range c.Tiers {
		if t.Code == code {
			return t, true
		}
	}
	return Tier{}, false
}
