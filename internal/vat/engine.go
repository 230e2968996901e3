// Package vat computes line-level and rate-partitioned VAT figures. Rounding
// happens once per line (half-up to the cent); invoice totals sum the already
// rounded lines and are never re-rounded, so base + vat = total holds exactly.
package vat

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

// BaseRates are the rates the core always accepts regardless of settings.
// Any other percent in [0, 100] is data-valid.
var BaseRates = []decimal.Decimal{
	decimal.NewFromInt(0),
	decimal.NewFromInt(12),
	decimal.NewFromInt(21),
}

// ValidateRate rejects rates outside [0, 100].
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("vat: rate %s out of range: %w", rate, shared.ErrInvalidVatRate)
	}
	return nil
}

// LineTotals is the computed monetary triple of one invoice line.
type LineTotals struct {
	WithoutVAT money.Money
	VAT        money.Money
	WithVAT    money.Money
}

// ComputeLine derives line totals from quantity, unit price and rate:
// base = round(q x p), vat = round(base x r / 100), total = base + vat.
func ComputeLine(quantity decimal.Decimal, unitPrice money.Money, rate decimal.Decimal) (LineTotals, error) {
	if err := ValidateRate(rate); err != nil {
		return LineTotals{}, err
	}
	base := unitPrice.MulQuantity(quantity)
	tax := base.MulPercent(rate)
	return LineTotals{
		WithoutVAT: base,
		VAT:        tax,
		WithVAT:    base.Add(tax),
	}, nil
}

// RatedLine is the minimal line shape the summary operates on.
type RatedLine struct {
	Rate       decimal.Decimal
	WithoutVAT money.Money
	VAT        money.Money
}

// RateGroup is one bucket of the rate-partitioned summary.
type RateGroup struct {
	Rate  decimal.Decimal `json:"rate"`
	Base  money.Money     `json:"base"`
	VAT   money.Money     `json:"vat"`
	Total money.Money     `json:"total"`
}

// Summary partitions lines by rate. Groups are ordered by ascending rate;
// grand totals across groups equal the plain sum of the lines.
func Summary(lines []RatedLine) []RateGroup {
	byRate := make(map[string]*RateGroup)
	for _, line := range lines {
		key := line.Rate.String()
		group, ok := byRate[key]
		if !ok {
			group = &RateGroup{Rate: line.Rate}
			byRate[key] = group
		}
		group.Base = group.Base.Add(line.WithoutVAT)
		group.VAT = group.VAT.Add(line.VAT)
	}

	groups := make([]RateGroup, 0, len(byRate))
	for _, g := range byRate {
		g.Total = g.Base.Add(g.VAT)
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Rate.LessThan(groups[j].Rate)
	})
	return groups
}

// Totals sums computed lines without re-rounding.
func Totals(lines []RatedLine) LineTotals {
	var out LineTotals
	for _, line := range lines {
		out.WithoutVAT = out.WithoutVAT.Add(line.WithoutVAT)
		out.VAT = out.VAT.Add(line.VAT)
	}
	out.WithVAT = out.WithoutVAT.Add(out.VAT)
	return out
}

// Reverse splits a gross amount into base and vat for a rate:
// base = round(gross / (1 + r/100)), vat = gross - base. Display-only; the
// authoritative path for stored totals is ComputeLine.
func Reverse(gross money.Money, rate decimal.Decimal) (base, tax money.Money, err error) {
	if err := ValidateRate(rate); err != nil {
		return money.Zero(), money.Zero(), err
	}
	divisor := decimal.NewFromInt(1).Add(rate.Div(decimal.NewFromInt(100)))
	base, err = gross.Div(divisor)
	if err != nil {
		return money.Zero(), money.Zero(), err
	}
	return base, gross.Sub(base), nil
}
