// Package catalog holds the product price list. The catalog is static
// configuration: orders keep the total computed from the prices in force at
// save time and are never repriced retroactively.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"

	"comandero/backend/internal/money"
)

type Catalog struct {
	prices map[string]decimal.Decimal
}

// Default returns the built-in menu.
func Default() *Catalog {
	prices := map[string]float64{
		"Torta de Carne Asada":           110.0,
		"Torta de Cochinita Pibil":       90.0,
		"Torta Mixta":                    125.0,
		"Tacos Carne Asada (5)":          110.0,
		"Tacos Cochinita Pibil (5)":      110.0,
		"Extra de Queso o Aguacate":      15.0,
		"Chile Chilaca Relleno":          75.0,
		"Cochichilaca":                   110.0,
		"Volcán de Cochinita":            90.0,
		"Volcán de Carne Asada":          90.0,
		"Volcán Mixto":                   90.0,
		"Tostada de Ceviche de Pescado":  45.0,
		"Hazla Cochi":                    20.0,
	}
	c := &Catalog{prices: make(map[string]decimal.Decimal, len(prices))}
	for name, price := range prices {
		c.prices[name] = decimal.NewFromFloat(price)
	}
	return c
}

// LoadFile reads a JSON object of product name to price. Used to override the
// built-in menu without a rebuild.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var prices map[string]float64
	if err := json.Unmarshal(raw, &prices); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("catalog %s is empty", path)
	}
	c := &Catalog{prices: make(map[string]decimal.Decimal, len(prices))}
	for name, price := range prices {
		c.prices[name] = money.Round2(decimal.NewFromFloat(price))
	}
	return c, nil
}

// PriceOf returns the unit price of a product, or zero for unknown names.
// Unknown items are tolerated so historical orders survive menu changes.
func (c *Catalog) PriceOf(name string) decimal.Decimal {
	return c.prices[name]
}

// Total sums the unit prices of the given items. Duplicates count once per
// occurrence.
func (c *Catalog) Total(items []string) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(c.prices[item])
	}
	return money.Round2(total)
}

// Products lists the known product names in stable order.
func (c *Catalog) Products() []string {
	names := make([]string, 0, len(c.prices))
	for name := range c.prices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
