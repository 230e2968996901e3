package vat

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

func rate(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestComputeLine(t *testing.T) {
	totals, err := ComputeLine(decimal.NewFromInt(2), money.MustParse("500.00"), rate(21))
	require.NoError(t, err)
	require.Equal(t, "1000.00", totals.WithoutVAT.String())
	require.Equal(t, "210.00", totals.VAT.String())
	require.Equal(t, "1210.00", totals.WithVAT.String())

	// fractional quantity rounds the base once, then taxes the rounded base
	totals, err = ComputeLine(decimal.NewFromFloat(1.5), money.MustParse("33.33"), rate(21))
	require.NoError(t, err)
	require.Equal(t, "50.00", totals.WithoutVAT.String())
	require.Equal(t, "10.50", totals.VAT.String())
	require.Equal(t, "60.50", totals.WithVAT.String())

	// negative quantities (credit notes) flow through unchanged
	totals, err = ComputeLine(decimal.NewFromInt(-1), money.MustParse("100.00"), rate(21))
	require.NoError(t, err)
	require.Equal(t, "-100.00", totals.WithoutVAT.String())
	require.Equal(t, "-21.00", totals.VAT.String())
	require.Equal(t, "-121.00", totals.WithVAT.String())
}

func TestComputeLineRejectsBadRates(t *testing.T) {
	_, err := ComputeLine(decimal.NewFromInt(1), money.MustParse("1.00"), rate(-1))
	require.ErrorIs(t, err, shared.ErrInvalidVatRate)

	_, err = ComputeLine(decimal.NewFromInt(1), money.MustParse("1.00"), rate(101))
	require.ErrorIs(t, err, shared.ErrInvalidVatRate)
}

func mixedLines(t *testing.T) []RatedLine {
	t.Helper()
	specs := []struct {
		q    int64
		p    string
		rate int64
	}{
		{1, "1000.00", 21},
		{3, "100.00", 12},
		{5, "50.00", 0},
	}
	var lines []RatedLine
	for _, s := range specs {
		totals, err := ComputeLine(decimal.NewFromInt(s.q), money.MustParse(s.p), rate(s.rate))
		require.NoError(t, err)
		lines = append(lines, RatedLine{Rate: rate(s.rate), WithoutVAT: totals.WithoutVAT, VAT: totals.VAT})
	}
	return lines
}

func TestTotalsSumWithoutRerounding(t *testing.T) {
	totals := Totals(mixedLines(t))
	require.Equal(t, "1550.00", totals.WithoutVAT.String())
	require.Equal(t, "246.00", totals.VAT.String())
	require.Equal(t, "1796.00", totals.WithVAT.String())
	// I1: base + vat = total exactly
	require.True(t, totals.WithoutVAT.Add(totals.VAT).Equal(totals.WithVAT))
}

func TestSummaryPartitionsByRate(t *testing.T) {
	groups := Summary(mixedLines(t))
	require.Len(t, groups, 3)

	require.Equal(t, "0", groups[0].Rate.String())
	require.Equal(t, "250.00", groups[0].Base.String())
	require.Equal(t, "0.00", groups[0].VAT.String())
	require.Equal(t, "250.00", groups[0].Total.String())

	require.Equal(t, "12", groups[1].Rate.String())
	require.Equal(t, "300.00", groups[1].Base.String())
	require.Equal(t, "36.00", groups[1].VAT.String())

	require.Equal(t, "21", groups[2].Rate.String())
	require.Equal(t, "1000.00", groups[2].Base.String())
	require.Equal(t, "210.00", groups[2].VAT.String())

	// grand totals across groups equal the line totals
	var base, tax money.Money
	for _, g := range groups {
		base = base.Add(g.Base)
		tax = tax.Add(g.VAT)
	}
	require.Equal(t, "1550.00", base.String())
	require.Equal(t, "246.00", tax.String())
}

func TestReverse(t *testing.T) {
	base, tax, err := Reverse(money.MustParse("1210.00"), rate(21))
	require.NoError(t, err)
	require.Equal(t, "1000.00", base.String())
	require.Equal(t, "210.00", tax.String())

	base, tax, err = Reverse(money.MustParse("336.00"), rate(12))
	require.NoError(t, err)
	require.Equal(t, "300.00", base.String())
	require.Equal(t, "36.00", tax.String())

	base, tax, err = Reverse(money.MustParse("250.00"), rate(0))
	require.NoError(t, err)
	require.Equal(t, "250.00", base.String())
	require.True(t, tax.IsZero())

	_, _, err = Reverse(money.MustParse("100.00"), rate(-5))
	require.ErrorIs(t, err, shared.ErrInvalidVatRate)
}

// Reverse-computing base from a computed gross lands within one cent of the
// stored base for every recognized rate.
func TestReverseRoundTrip(t *testing.T) {
	prices := []string{"0.01", "0.99", "13.37", "500.00", "12345.67"}
	for _, r := range BaseRates {
		for _, p := range prices {
			totals, err := ComputeLine(decimal.NewFromInt(1), money.MustParse(p), r)
			require.NoError(t, err)
			base, _, err := Reverse(totals.WithVAT, r)
			require.NoError(t, err)
			require.True(t, base.WithinCentOf(totals.WithoutVAT),
				"rate %s price %s: reverse base %s vs stored %s", r, p, base, totals.WithoutVAT)
		}
	}
}
